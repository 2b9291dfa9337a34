package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/examscan/internal/api"
	"github.com/jackzampolin/examscan/internal/config"
	"github.com/jackzampolin/examscan/internal/home"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage examscan configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file to the home directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		path := h.ConfigPath()
		if cfgFile != "" {
			path = cfgFile
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		return api.Text(cmd.OutOrStdout(), "Wrote "+path)
	},
}

// configShowResult is the output of `examscan config show`.
type configShowResult struct {
	File    string         `json:"file" yaml:"file"`
	Entries []config.Entry `json:"entries" yaml:"entries"`
}

var configShowCmd = &cobra.Command{
	Use:   "show [key]",
	Short: "Show effective configuration values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		res := configShowResult{File: a.config.ConfigFile()}
		if len(args) == 1 {
			entry, err := a.config.Lookup(args[0])
			if err != nil {
				return err
			}
			res.Entries = []config.Entry{*entry}
		} else {
			res.Entries = a.config.Values()
		}
		return api.OutputTo(cmd.OutOrStdout(), api.GetOutputFormat(), res)
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
