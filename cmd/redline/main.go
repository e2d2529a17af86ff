package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dealfluence/docx-redline/pkg/redline"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		// A config file is optional. Environment values override it, but
		// only when the environment configuration as a whole validates;
		// otherwise none of them are applied.
		if _, err := os.Stat(configPath); err == nil {
			config, err := redline.LoadConfigFile(configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", configPath, err)
				os.Exit(1)
			}
			redline.SetGlobalConfig(config)
		}
		env := redline.ConfigFromEnvironment()
		if err := env.Validate(); err == nil {
			mergeEnvironment(env)
		}
	}
}

// mergeEnvironment layers environment values over whatever the config
// file established.
func mergeEnvironment(env *redline.Config) {
	config := redline.GetGlobalConfig()
	if v := os.Getenv("REDLINE_AUTHOR"); v != "" {
		config.Author = env.Author
	}
	if v := os.Getenv("REDLINE_INITIALS"); v != "" {
		config.Initials = env.Initials
	}
	if v := os.Getenv("REDLINE_LOG_LEVEL"); v != "" {
		config.LogLevel = env.LogLevel
	}
	if v := os.Getenv("REDLINE_STRICT_MODE"); v != "" {
		config.StrictMode = env.StrictMode
	}
	redline.SetGlobalConfig(config)
}
