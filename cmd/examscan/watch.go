package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/examscan/internal/config"
	"github.com/jackzampolin/examscan/internal/extract"
	"github.com/jackzampolin/examscan/internal/inbox"
)

var (
	watchWorkers int
	watchSettle  time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Extract every model response dropped into the inbox",
	Long: `Watch the inbox directory (watch.inbox, default ~/.examscan/inbox) and run
the extraction pipeline on every new *.txt file once its writes settle.
Each result is saved to the results directory as <name>.json.

Edits to the config file are picked up without a restart: extraction
bounds and the log level apply to the next file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.home.EnsureExists(); err != nil {
			return err
		}

		cfg := a.config.Get()
		var current atomic.Pointer[extract.Extractor]
		current.Store(a.extractor())

		a.config.OnChange(func(cfg *config.Config) {
			current.Store(extract.New(cfg.ExtractConfig(a.logger)))
			a.applyLevel(cfg)
		})
		a.config.WatchConfig()

		dir := cfg.Watch.Inbox
		if dir == "" {
			dir = a.home.InboxPath()
		}
		w, err := inbox.New(inbox.Config{
			Dir:          dir,
			Workers:      watchWorkers,
			Settle:       watchSettle,
			PollExisting: cfg.Watch.PollExisting,
			Logger:       a.logger,
		}, extractFileHandler(a, current.Load))
		if err != nil {
			return err
		}

		if err := w.Run(cmd.Context()); err != nil {
			return err
		}
		s := w.Status()
		a.logger.Info("watch stopped", "processed", s.Processed, "failed", s.Failed)
		return nil
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 2, "concurrent extractions")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 500*time.Millisecond, "quiet period after the last write before a file is processed")

	rootCmd.AddCommand(watchCmd)
}

// extractFileHandler extracts one saved response and stores the result
// next to the others as <base>.json.
func extractFileHandler(a *app, extractor func() *extract.Extractor) inbox.Handler {
	return func(ctx context.Context, path string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		result := extractor().Extract(string(data))
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		out, err := a.home.SaveResult(result, name)
		if err != nil {
			return err
		}

		a.logger.Info("extracted response",
			"file", filepath.Base(path),
			"kind", result.Kind,
			"stage", result.Stage,
			"questions", result.Document.QuestionCount(),
			"saved", out)
		return nil
	}
}
