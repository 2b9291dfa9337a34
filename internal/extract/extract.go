package extract

import (
	"log/slog"

	"github.com/jackzampolin/examscan/internal/exam"
)

// errorContextRadius is how much text either side of a parse error is logged.
const errorContextRadius = 50

// Config bounds the work an Extractor does per response.
type Config struct {
	// MaxInputBytes caps the response length considered (default DefaultMaxInputBytes).
	MaxInputBytes int
	// PreviewChars is the head/tail length kept in failure previews (default DefaultPreviewChars).
	PreviewChars int
	// Logger receives stage transitions (default slog.Default()).
	Logger *slog.Logger
}

// Extractor runs the extraction cascade. It is immutable once built and
// safe for concurrent use.
type Extractor struct {
	maxInputBytes int
	previewChars  int
	logger        *slog.Logger
}

// step is one entry of the cascade: the stage it reaches and the repair
// applied to the previous step's output to get there.
type step struct {
	stage  RepairStage
	repair func(string) string
}

// cascade is the fixed repair order. Each repair consumes the previous
// step's output, never the original span.
var cascade = []step{
	{stage: StageNone},
	{stage: StageBasic, repair: BasicRepair},
	{stage: StageAggressive, repair: AggressiveRepair},
	{stage: StageLineLevel, repair: LineLevelRepair},
}

// Stages returns the repair stages in the order Extract attempts them.
func Stages() []RepairStage {
	out := make([]RepairStage, len(cascade))
	for i, s := range cascade {
		out[i] = s.stage
	}
	return out
}

// New creates an Extractor. Zero config fields take defaults.
func New(cfg Config) *Extractor {
	if cfg.MaxInputBytes <= 0 {
		cfg.MaxInputBytes = DefaultMaxInputBytes
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = DefaultPreviewChars
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Extractor{
		maxInputBytes: cfg.MaxInputBytes,
		previewChars:  cfg.PreviewChars,
		logger:        cfg.Logger,
	}
}

// Extract runs the cascade with default bounds.
func Extract(response string) Result {
	return New(Config{}).Extract(response)
}

// Extract converts one model response into a Result. It never fails:
// malformed input yields a partial or failure result.
func (e *Extractor) Extract(response string) Result {
	raw := NewRawResponse(response, e.maxInputBytes)
	text := raw.Text()
	e.logger.Debug("extracting structured response",
		"length", raw.SourceLength(),
		"truncated", raw.Truncated(),
		"preview", Preview(text, e.previewChars))

	if msg, ok := upstreamError(text); ok {
		e.logger.Warn("response is an upstream error report", "message", msg)
		return failed(ReasonUpstreamError, msg, raw, StageNone, "", nil, e.previewChars)
	}

	span := Isolate(text)
	span.mustReference(text)
	if span.Tag != TagWholeText {
		e.logger.Debug("isolated candidate span",
			"tag", span.Tag,
			"start", span.Start,
			"end", span.End,
			"original_length", len(text))

		if msg, ok := upstreamError(span.Text); ok {
			e.logger.Warn("isolated span is an upstream error report", "message", msg, "tag", span.Tag)
			return failed(ReasonUpstreamError, msg, raw, StageNone, span.Tag, nil, e.previewChars)
		}
	}

	doc, stage, lastErr := e.runCascade(span)
	if doc != nil {
		e.logger.Info("parsed structured response",
			"stage", stage,
			"isolation", span.Tag,
			"sections", len(doc.Sections),
			"questions", doc.QuestionCount())
		return succeeded(doc, stage, span.Tag)
	}

	// Salvage reads the bounded original text, not a repaired intermediate.
	if doc, counts, ok := Salvage(text); ok {
		e.logger.Warn("structural parse failed, salvaged fields",
			"questions", counts.Questions,
			"printed_texts", counts.PrintedTexts,
			"note_groups", counts.NoteGroups)
		return salvaged(doc, counts, span.Tag)
	}

	e.logger.Error("no parseable structure found",
		"isolation", span.Tag,
		"error", lastErr)
	return failed(ReasonNoStructure, noStructureMessage, raw, stage, span.Tag, lastErr, e.previewChars)
}

// runCascade tries each step in order and returns the first document that
// parses, or the last stage reached and its parse error.
func (e *Extractor) runCascade(span CandidateSpan) (*exam.Document, RepairStage, *ParseError) {
	text := span.Text
	var (
		reached RepairStage
		lastErr *ParseError
	)
	for i, s := range cascade {
		if s.repair != nil {
			text = s.repair(text)
		}
		reached = s.stage

		doc, perr := parseDocument(text)
		if perr == nil {
			return doc, s.stage, nil
		}
		lastErr = perr

		next := "salvage"
		if i+1 < len(cascade) {
			next = string(cascade[i+1].stage)
		}
		e.logger.Warn("structured parse failed",
			"stage", s.stage,
			"next", next,
			"error", perr.Message,
			"offset", perr.Offset,
			"line", perr.Line,
			"column", perr.Column,
			"context", errorContext(text, perr.Offset, errorContextRadius))
	}
	return nil, reached, lastErr
}
