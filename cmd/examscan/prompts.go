package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/examscan/internal/analyze"
	"github.com/jackzampolin/examscan/internal/api"
	"github.com/jackzampolin/examscan/internal/home"
	"github.com/jackzampolin/examscan/internal/prompts"
)

// promptInfo describes one prompt for `examscan prompts`.
type promptInfo struct {
	Key         string   `json:"key" yaml:"key"`
	Description string   `json:"description" yaml:"description"`
	Variables   []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Override    bool     `json:"override" yaml:"override"`
	CID         string   `json:"cid" yaml:"cid"`
	Text        string   `json:"text,omitempty" yaml:"text,omitempty"`
}

var promptsShowText bool

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List prompts and whether an override is in effect",
	Long: `List the built-in prompts. A file <home>/prompts/<key>.tmpl replaces the
built-in text for that key; the CID is the hash of the text actually used
and is recorded with every model call.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}

		resolver := prompts.NewResolver(h.PromptsPath(), nil)
		analyze.RegisterPrompts(resolver)

		var out []promptInfo
		for _, p := range resolver.AllEmbedded() {
			resolved, err := resolver.Resolve(p.Key)
			if err != nil {
				return err
			}
			info := promptInfo{
				Key:         p.Key,
				Description: p.Description,
				Variables:   resolved.Variables,
				Override:    resolved.IsOverride,
				CID:         resolved.CID,
			}
			if promptsShowText {
				info.Text = resolved.Text
			}
			out = append(out, info)
		}
		return api.OutputTo(cmd.OutOrStdout(), api.GetOutputFormat(), out)
	},
}

func init() {
	promptsCmd.Flags().BoolVar(&promptsShowText, "text", false, "include the prompt text")

	rootCmd.AddCommand(promptsCmd)
}
