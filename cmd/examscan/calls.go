package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/examscan/internal/api"
	"github.com/jackzampolin/examscan/internal/home"
	"github.com/jackzampolin/examscan/internal/llmcall"
)

var (
	callsOperation string
	callsPromptKey string
	callsModel     string
	callsSince     time.Duration
	callsFailed    bool
	callsLimit     int
)

// callsResult is the output of `examscan calls`.
type callsResult struct {
	Count       int            `json:"count" yaml:"count"`
	ByPromptKey map[string]int `json:"by_prompt_key" yaml:"by_prompt_key"`
	Calls       []llmcall.Call `json:"calls" yaml:"calls"`
}

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "List recorded model calls, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}

		filter := llmcall.QueryFilter{
			Operation: callsOperation,
			PromptKey: callsPromptKey,
			Model:     callsModel,
			Limit:     callsLimit,
		}
		if callsSince > 0 {
			after := time.Now().Add(-callsSince)
			filter.After = &after
		}
		if callsFailed {
			ok := false
			filter.Success = &ok
		}

		calls, err := llmcall.ReadFile(h.CallLogPath(), filter)
		if err != nil {
			return err
		}
		if calls == nil {
			calls = []llmcall.Call{}
		}
		return api.OutputTo(cmd.OutOrStdout(), api.GetOutputFormat(), callsResult{
			Count:       len(calls),
			ByPromptKey: llmcall.CountByPromptKey(calls),
			Calls:       calls,
		})
	},
}

func init() {
	callsCmd.Flags().StringVar(&callsOperation, "operation", "", "only calls for this operation (paper, enrich)")
	callsCmd.Flags().StringVar(&callsPromptKey, "prompt", "", "only calls using this prompt key")
	callsCmd.Flags().StringVar(&callsModel, "model", "", "only calls to this model")
	callsCmd.Flags().DurationVar(&callsSince, "since", 0, "only calls newer than this (e.g. 24h)")
	callsCmd.Flags().BoolVar(&callsFailed, "failed", false, "only failed calls")
	callsCmd.Flags().IntVar(&callsLimit, "limit", 20, "maximum calls to list (0 for all)")

	rootCmd.AddCommand(callsCmd)
}
