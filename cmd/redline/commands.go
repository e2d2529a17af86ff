package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dealfluence/docx-redline/pkg/redline"
)

const configPath = "redline.yaml"

var (
	extractOutput string
	diffJSON      bool
	applyOutput   string
	applyAuthor   string

	rootCmd = &cobra.Command{
		Use:           "redline",
		Short:         "Apply tracked-change edits to DOCX documents",
		Long:          "redline extracts text from DOCX files, diffs document versions, and applies edits as native Word tracked changes with optional review comments.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	extractCmd = &cobra.Command{
		Use:   "extract <input.docx>",
		Short: "Extract the flat text of a DOCX file",
		Args:  cobra.ExactArgs(1),
		RunE:  runExtract,
	}

	diffCmd = &cobra.Command{
		Use:   "diff <original.docx> <modified.docx|modified.txt>",
		Short: "Compare two document versions and list the edits between them",
		Args:  cobra.ExactArgs(2),
		RunE:  runDiff,
	}

	applyCmd = &cobra.Command{
		Use:   "apply <original.docx> <changes.json|modified.txt>",
		Short: "Apply edits to a DOCX as tracked changes",
		Long:  "Apply edits from a JSON edit list, or compute them by diffing the original against a modified text file. Each edit becomes native revision markup.",
		Args:  cobra.ExactArgs(2),
		RunE:  runApply,
	}
)

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "output file (default: stdout)")
	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "output raw JSON edits")
	applyCmd.Flags().StringVarP(&applyOutput, "output", "o", "", "output DOCX path (default: <original>_redlined.docx)")
	applyCmd.Flags().StringVar(&applyAuthor, "author", "", "author name for tracked changes (default: configured author)")

	rootCmd.AddCommand(extractCmd, diffCmd, applyCmd)
}

func readDocxText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return redline.ExtractText(data)
}

func runExtract(_ *cobra.Command, args []string) error {
	text, err := readDocxText(args[0])
	if err != nil {
		return err
	}
	if extractOutput != "" {
		if err := os.WriteFile(extractOutput, []byte(text), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Extracted text to %s\n", extractOutput)
		return nil
	}
	fmt.Println(text)
	return nil
}

func runDiff(_ *cobra.Command, args []string) error {
	original, err := readDocxText(args[0])
	if err != nil {
		return err
	}

	modified, err := readComparisonText(args[1])
	if err != nil {
		return err
	}

	edits := redline.GenerateEdits(original, modified)

	if diffJSON {
		output, err := json.MarshalIndent(edits, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Fprintf(os.Stderr, "Found %d changes:\n", len(edits))
	for _, edit := range edits {
		switch edit.Operation {
		case redline.OpDelete:
			fmt.Printf("[-] %s\n", edit.Target)
		case redline.OpInsert:
			fmt.Printf("[+] %s\n", edit.NewText)
		case redline.OpModify:
			fmt.Printf("[~] '%s' -> '%s'\n", edit.Target, edit.NewText)
		}
	}
	return nil
}

// readComparisonText loads the second diff operand, which may be another
// DOCX or a plain text file.
func readComparisonText(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".docx") {
		return readDocxText(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func runApply(_ *cobra.Command, args []string) error {
	originalPath, changesPath := args[0], args[1]

	var edits []redline.Edit
	if strings.EqualFold(filepath.Ext(changesPath), ".json") {
		fmt.Fprintf(os.Stderr, "Loading structured edits from %s...\n", changesPath)
		data, err := os.ReadFile(changesPath)
		if err != nil {
			return err
		}
		edits, err = redline.ParseEdits(data)
		if err != nil {
			return err
		}
	} else {
		fmt.Fprintf(os.Stderr, "Calculating diff from text file %s...\n", changesPath)
		original, err := readDocxText(originalPath)
		if err != nil {
			return err
		}
		modified, err := os.ReadFile(changesPath)
		if err != nil {
			return err
		}
		edits = redline.GenerateEdits(original, string(modified))
	}

	fmt.Fprintf(os.Stderr, "Applying %d edits...\n", len(edits))

	data, err := os.ReadFile(originalPath)
	if err != nil {
		return err
	}
	doc, err := redline.OpenDocument(data)
	if err != nil {
		return err
	}

	author := applyAuthor
	if author == "" {
		author = redline.GetGlobalConfig().Author
	}

	report, err := redline.ApplyEdits(doc, edits, author, time.Now())
	if err != nil {
		return err
	}

	output, err := doc.Save()
	if err != nil {
		return err
	}

	outputPath := applyOutput
	if outputPath == "" {
		ext := filepath.Ext(originalPath)
		outputPath = strings.TrimSuffix(originalPath, ext) + "_redlined" + ext
	}
	if err := os.WriteFile(outputPath, output, 0o644); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Saved to %s\n", outputPath)
	fmt.Fprintf(os.Stderr, "Stats: %d applied, %d skipped.\n", report.Applied, report.Skipped)
	for _, skip := range report.Skips {
		fmt.Fprintf(os.Stderr, "  skipped edit %d (%s): %s\n", skip.Index, skip.Edit, skip.Reason)
	}
	if report.Skipped > 0 {
		return fmt.Errorf("%d edits could not be applied", report.Skipped)
	}
	return nil
}
