package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/jackzampolin/examscan/internal/analyze"
	"github.com/jackzampolin/examscan/internal/config"
	"github.com/jackzampolin/examscan/internal/extract"
	"github.com/jackzampolin/examscan/internal/home"
	"github.com/jackzampolin/examscan/internal/llmcall"
	"github.com/jackzampolin/examscan/internal/prompts"
	"github.com/jackzampolin/examscan/internal/providers"
)

// app is the per-invocation wiring shared by commands.
type app struct {
	home   *home.Dir
	config *config.Manager
	logger *slog.Logger
	level  *slog.LevelVar
}

// newApp loads .env, the home directory and configuration, and builds the
// stderr logger.
func newApp() (*app, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	mgr, err := config.NewManager(cfgFile, logger, h.Path())
	if err != nil {
		return nil, err
	}

	a := &app{home: h, config: mgr, logger: logger, level: level}
	a.applyLevel(mgr.Get())
	slog.SetDefault(logger)
	return a, nil
}

// applyLevel sets the log level from --log-level, else from config.
func (a *app) applyLevel(cfg *config.Config) {
	if logLevel != "" {
		a.level.Set(config.ParseLevel(logLevel))
		return
	}
	a.level.Set(cfg.LogLevel())
}

func (a *app) extractor() *extract.Extractor {
	return extract.New(a.config.Get().ExtractConfig(a.logger))
}

// analyzer builds an Analyzer against the configured provider. The
// returned close function flushes the call log.
func (a *app) analyzer() (*analyze.Analyzer, func() error, error) {
	cfg := a.config.Get()
	oc := cfg.OpenAIConfig()
	if oc.APIKey == "" && oc.BaseURL == "" {
		return nil, nil, fmt.Errorf("no API key configured: set OPENAI_API_KEY or provider.api_key")
	}

	if err := a.home.EnsureExists(); err != nil {
		return nil, nil, err
	}
	recorder, err := llmcall.OpenFile(a.home.CallLogPath(), a.logger)
	if err != nil {
		return nil, nil, err
	}

	client := providers.NewOpenAIClient(oc)
	an := analyze.New(client, analyze.Config{
		Model:            cfg.Provider.Model,
		VisionModel:      cfg.Provider.VisionModel,
		Temperature:      cfg.Provider.Temperature,
		MaxTokens:        cfg.Provider.MaxTokens,
		StructuredOutput: cfg.Provider.StructuredOutput,
		Retry:            cfg.RetryConfig(a.logger),
		Extractor:        a.extractor(),
		Resolver:         prompts.NewResolver(a.home.PromptsPath(), a.logger),
		Recorder:         recorder,
		Logger:           a.logger,
	})
	return an, recorder.Close, nil
}
