package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/examscan/internal/api"
	"github.com/jackzampolin/examscan/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "examscan",
	Short: "Exam paper recognition with LLM-powered structured extraction",
	Long: `examscan turns photographed exam papers into structured documents.

A vision model reads the page; its reply is recovered into sections,
questions and handwritten notes even when the JSON it returns is fenced,
surrounded by prose, malformed or truncated.

  - extract: run the recovery pipeline on a saved model response
  - analyze: send an exam paper image to the model and extract the reply
  - enrich:  ask the model to answer every question of a document
  - watch:   extract every response dropped into the inbox directory`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.examscan/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "examscan home directory (default: ~/.examscan)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "json", "output format: json or yaml",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error (default: logging.level)",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
