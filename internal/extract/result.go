package extract

import (
	"fmt"
	"unicode/utf8"

	"github.com/jackzampolin/examscan/internal/exam"
)

// Kind discriminates the three outcomes of an extraction.
type Kind string

const (
	// KindSuccess: the response parsed as a document at Stage.
	KindSuccess Kind = "success"
	// KindPartial: nothing parsed, but fields were salvaged.
	KindPartial Kind = "partial"
	// KindFailure: no usable structure; see Failure.
	KindFailure Kind = "failure"
)

// FailureReason classifies a failed extraction.
type FailureReason string

const (
	// ReasonUpstreamError: the response was itself an error report.
	ReasonUpstreamError FailureReason = "upstream_error"
	// ReasonNoStructure: no stage parsed and salvage found nothing.
	ReasonNoStructure FailureReason = "no_structure"
)

const (
	// DefaultPreviewChars is how many characters of the start and of the end
	// of a failed response the envelope keeps.
	DefaultPreviewChars = 500

	noStructureMessage = "no parseable structure found"
	salvageReason      = "structural parse failed, fields salvaged"
)

// Result is the outcome of Extract. Document is set for success and
// partial results; Failure is set only for failures.
type Result struct {
	Kind      Kind           `json:"kind" yaml:"kind"`
	Document  *exam.Document `json:"document,omitempty" yaml:"document,omitempty"`
	Stage     RepairStage    `json:"stage" yaml:"stage"`
	Isolation IsolationTag   `json:"isolation,omitempty" yaml:"isolation,omitempty"`
	Recovered *FieldCounts   `json:"recovered,omitempty" yaml:"recovered,omitempty"`
	Reason    string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Failure   *Failure       `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// Failure is the error envelope: enough of the response to diagnose it
// without retaining all of it.
type Failure struct {
	Reason       FailureReason `json:"reason" yaml:"reason"`
	Message      string        `json:"message" yaml:"message"`
	Preview      string        `json:"preview" yaml:"preview"`
	SourceLength int           `json:"source_length" yaml:"source_length"`
	Truncated    bool          `json:"truncated" yaml:"truncated"`
	Stage        RepairStage   `json:"stage" yaml:"stage"`
	Cause        *ParseError   `json:"cause,omitempty" yaml:"cause,omitempty"`
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s (after %s repair): %v", f.Reason, f.Message, f.Stage, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Reason, f.Message)
}

// OK reports whether the result carries a document.
func (r Result) OK() bool {
	return r.Kind == KindSuccess || r.Kind == KindPartial
}

// Err returns the failure as an error, or nil for success and partial results.
func (r Result) Err() error {
	if r.Kind != KindFailure || r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Caveat describes how a partial result was assembled, for display next to
// the document. It is empty for other kinds.
func (r Result) Caveat() string {
	if r.Kind != KindPartial || r.Recovered == nil {
		return ""
	}
	return fmt.Sprintf("partial result (%s): recovered %d questions, %d printed texts, %d note groups",
		r.Reason, r.Recovered.Questions, r.Recovered.PrintedTexts, r.Recovered.NoteGroups)
}

func succeeded(doc *exam.Document, stage RepairStage, tag IsolationTag) Result {
	return Result{Kind: KindSuccess, Document: doc, Stage: stage, Isolation: tag}
}

func salvaged(doc *exam.Document, counts FieldCounts, tag IsolationTag) Result {
	return Result{
		Kind:      KindPartial,
		Document:  doc,
		Stage:     StageLineLevel,
		Isolation: tag,
		Recovered: &counts,
		Reason:    salvageReason,
	}
}

func failed(reason FailureReason, msg string, raw RawResponse, stage RepairStage, tag IsolationTag, cause *ParseError, previewChars int) Result {
	return Result{
		Kind:      KindFailure,
		Stage:     stage,
		Isolation: tag,
		Failure: &Failure{
			Reason:       reason,
			Message:      msg,
			Preview:      Preview(raw.Text(), previewChars),
			SourceLength: raw.SourceLength(),
			Truncated:    raw.Truncated(),
			Stage:        stage,
			Cause:        cause,
		},
	}
}

// Preview keeps the first and last n characters of text, replacing the
// middle with a marker that says how much was dropped. Text of at most 2n
// characters is returned unchanged.
func Preview(text string, n int) string {
	if n <= 0 {
		n = DefaultPreviewChars
	}
	total := utf8.RuneCountInString(text)
	if total <= 2*n {
		return text
	}

	headEnd := byteOffset(text, n)
	tailStart := byteOffset(text, total-n)
	return fmt.Sprintf("%s\n...[%d characters omitted]...\n%s", text[:headEnd], total-2*n, text[tailStart:])
}

// byteOffset returns the byte index of the runeIdx-th rune of s.
func byteOffset(s string, runeIdx int) int {
	i := 0
	for pos := range s {
		if i == runeIdx {
			return pos
		}
		i++
	}
	return len(s)
}
