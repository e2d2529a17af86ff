package redline

import (
	"errors"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config contains all configuration options for the redline engine.
type Config struct {
	// Author is the name recorded on revision markup and comments.
	Author string `yaml:"author"`
	// Initials overrides the initials derived from Author on comments.
	Initials string `yaml:"initials"`
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off).
	LogLevel string `yaml:"log_level"`
	// StrictMode makes per-edit resolution failures abort the whole job.
	StrictMode bool `yaml:"strict_mode"`
}

var (
	globalConfig      *Config
	globalConfigMutex sync.RWMutex
	configOnce        sync.Once
)

func init() {
	configOnce.Do(func() {
		globalConfig = ConfigFromEnvironment()
	})
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Author:     "Redline",
		LogLevel:   "info",
		StrictMode: false,
	}
}

// ConfigFromEnvironment creates a configuration from environment variables.
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()

	if val := os.Getenv("REDLINE_AUTHOR"); val != "" {
		config.Author = val
	}
	if val := os.Getenv("REDLINE_INITIALS"); val != "" {
		config.Initials = val
	}
	if val := os.Getenv("REDLINE_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}
	if val := os.Getenv("REDLINE_STRICT_MODE"); val != "" {
		config.StrictMode = parseBool(val)
	}

	return config
}

// LoadConfigFile layers a YAML config file over the defaults. Environment
// variables still win: callers load the file first, then re-apply the
// environment.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Author == "" {
		return errors.New("author cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"off":   true,
	}
	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	return nil
}

// GetGlobalConfig returns the global configuration.
func GetGlobalConfig() *Config {
	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return DefaultConfig()
	}

	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig sets the global configuration.
func SetGlobalConfig(config *Config) {
	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	UpdateLoggerFromConfig()
}

// parseBool parses a boolean value from a string.
func parseBool(s string) bool {
	switch s {
	case "true", "1", "yes", "on", "TRUE", "True", "YES", "ON":
		return true
	}
	return false
}
