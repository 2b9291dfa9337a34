// Package analyze runs the exam-paper workflow around the extraction
// pipeline: send a page image to a vision model, turn the reply into a
// document, and optionally ask a text model to answer every question.
//
// A failed model call is not returned as an error. It is rewritten as a
// self-reported error response and passed through the extractor like any
// other reply, so callers handle one Result shape for every outcome.
package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/examscan/internal/exam"
	"github.com/jackzampolin/examscan/internal/extract"
	"github.com/jackzampolin/examscan/internal/llmcall"
	"github.com/jackzampolin/examscan/internal/prompts"
	"github.com/jackzampolin/examscan/internal/providers"
)

const (
	OperationPaper  = "paper"
	OperationEnrich = "enrich"

	defaultTemperature = 0.2
	callFailedMessage  = "model call failed"
)

var (
	// ErrNoImage is returned by Paper for an empty image.
	ErrNoImage = errors.New("image is required")
	// ErrNilDocument is returned by Enrich for a nil document.
	ErrNilDocument = errors.New("document is required")
)

// Config wires an Analyzer. Client is required; everything else has a
// default.
type Config struct {
	Model            string  // Text model for Enrich (client default if empty)
	VisionModel      string  // Model for Paper (falls back to Model)
	Temperature      float64 // default 0.2
	MaxTokens        int
	StructuredOutput bool // Request the document JSON schema as response format
	Retry            providers.RetryConfig

	Extractor *extract.Extractor
	Resolver  *prompts.Resolver
	Recorder  *llmcall.Recorder
	Logger    *slog.Logger
}

// Analyzer runs the paper and enrich workflows. It is safe for concurrent
// use when its collaborators are.
type Analyzer struct {
	client    providers.LLMClient
	cfg       Config
	extractor *extract.Extractor
	resolver  *prompts.Resolver
	recorder  *llmcall.Recorder
	logger    *slog.Logger
}

// Outcome is the result of one workflow step.
type Outcome struct {
	Result extract.Result `json:"result"`
	Call   *llmcall.Call  `json:"call,omitempty"`

	// SchemaErr reports schema violations of a parsed document. It is
	// advisory: the Result is still usable.
	SchemaErr   error  `json:"-"`
	SchemaError string `json:"schema_error,omitempty"`
}

// New creates an Analyzer.
func New(client providers.LLMClient, cfg Config) *Analyzer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = cfg.Logger
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extract.New(extract.Config{Logger: cfg.Logger})
	}
	if cfg.Resolver == nil {
		cfg.Resolver = prompts.NewResolver("", cfg.Logger)
	}
	RegisterPrompts(cfg.Resolver)

	return &Analyzer{
		client:    client,
		cfg:       cfg,
		extractor: cfg.Extractor,
		resolver:  cfg.Resolver,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
	}
}

// Paper sends one exam-paper image to the vision model and extracts the
// reply. mime defaults to image/jpeg.
func (a *Analyzer) Paper(ctx context.Context, image []byte, mime string) (*Outcome, error) {
	if len(image) == 0 {
		return nil, ErrNoImage
	}

	prompt, err := a.resolver.Resolve(PaperPromptKey)
	if err != nil {
		return nil, err
	}
	text, err := prompt.Render(struct{}{})
	if err != nil {
		return nil, err
	}

	req := &providers.ChatRequest{
		Model: a.cfg.VisionModel,
		Messages: []providers.Message{
			{Role: "user", Content: text, Images: [][]byte{image}, ImageMIME: mime},
		},
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}
	if a.cfg.StructuredOutput {
		req.ResponseFormat = providers.DocumentResponseFormat()
	}

	a.logger.Info("analyzing exam paper", "bytes", len(image), "mime", mime, "model", req.Model)
	return a.run(ctx, OperationPaper, prompt, req)
}

// Enrich asks the text model to add an answer and explanation to every
// question of doc and extracts the reply.
func (a *Analyzer) Enrich(ctx context.Context, doc *exam.Document) (*Outcome, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}

	system, err := a.resolver.Resolve(EnrichSystemPromptKey)
	if err != nil {
		return nil, err
	}
	systemText, err := system.Render(struct{}{})
	if err != nil {
		return nil, err
	}

	docJSON, err := json.MarshalIndent(doc.Normalize(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	user, err := a.resolver.Resolve(EnrichUserPromptKey)
	if err != nil {
		return nil, err
	}
	userText, err := user.Render(enrichData{Document: string(docJSON)})
	if err != nil {
		return nil, err
	}

	req := &providers.ChatRequest{
		Model: a.cfg.Model,
		Messages: []providers.Message{
			{Role: "system", Content: systemText},
			{Role: "user", Content: userText},
		},
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}
	if a.cfg.StructuredOutput {
		req.ResponseFormat = providers.DocumentResponseFormat()
	}

	a.logger.Info("enriching document", "questions", doc.QuestionCount(), "model", req.Model)
	return a.run(ctx, OperationEnrich, user, req)
}

// run makes the call, records it, and extracts whatever came back. Only
// cancellation of ctx is returned as an error.
func (a *Analyzer) run(ctx context.Context, op string, prompt *prompts.ResolvedPrompt, req *providers.ChatRequest) (*Outcome, error) {
	result, callErr := providers.ChatWithRetry(ctx, a.client, req, a.cfg.Retry)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	temp := req.Temperature
	call := a.recorder.Record(result, llmcall.RecordOptions{
		Operation:   op,
		PromptKey:   prompt.Key,
		PromptCID:   prompt.CID,
		Model:       req.Model,
		Temperature: &temp,
	})

	content := result.Content
	if callErr != nil {
		a.logger.Error("model call failed",
			"operation", op,
			"provider", a.client.Name(),
			"attempts", result.Attempts,
			"error", callErr)
		content = errorEnvelope(callErr)
	}

	out := &Outcome{Result: a.extractor.Extract(content), Call: call}
	if out.Result.OK() {
		if err := exam.Validate(out.Result.Document); err != nil {
			out.SchemaErr = err
			out.SchemaError = err.Error()
			a.logger.Warn("document does not match schema", "operation", op, "error", err)
		}
	}

	a.logger.Info("workflow step finished",
		"operation", op,
		"kind", out.Result.Kind,
		"stage", out.Result.Stage,
		"questions", out.Result.Document.QuestionCount())
	return out, nil
}

// errorEnvelope renders a failed call the way an upstream service reports
// its own errors.
func errorEnvelope(err error) string {
	data, mErr := json.Marshal(map[string]string{
		"error":   callFailedMessage,
		"message": err.Error(),
	})
	if mErr != nil {
		return fmt.Sprintf(`{"error": %q}`, callFailedMessage)
	}
	return string(data)
}
