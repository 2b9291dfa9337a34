package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/examscan/internal/exam"
	"github.com/jackzampolin/examscan/internal/extract"
	"github.com/jackzampolin/examscan/internal/llmcall"
	"github.com/jackzampolin/examscan/internal/prompts"
	"github.com/jackzampolin/examscan/internal/providers"
)

const paperReply = "Here is the result:\n```json\n" + `{
  "sections": [
    {
      "section_number": "1",
      "section_title": "Multiple choice",
      "questions": [
        {
          "question_number": "1",
          "question_text": "2 + 2 = ?",
          "printed_text": "A. 3 B. 4",
          "handwritten_notes": [{"text": "B", "color": "blue"},]
        }
      ]
    }
  ]
}` + "\n```"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() providers.RetryConfig {
	return providers.RetryConfig{Attempts: 2, Delay: time.Millisecond, MaxDelay: time.Millisecond}
}

func newAnalyzer(t *testing.T, client providers.LLMClient, cfg Config) (*Analyzer, *bytes.Buffer) {
	t.Helper()
	var calls bytes.Buffer
	cfg.Logger = quietLogger()
	cfg.Recorder = llmcall.NewRecorder(&calls, cfg.Logger)
	cfg.Retry = fastRetry()
	cfg.Extractor = extract.New(extract.Config{Logger: cfg.Logger})
	return New(client, cfg), &calls
}

func TestPaper(t *testing.T) {
	client := providers.NewMockClient()
	client.ResponseText = paperReply

	a, calls := newAnalyzer(t, client, Config{Model: "text-model", VisionModel: "vision-model"})
	out, err := a.Paper(context.Background(), []byte("fake-png"), "image/png")
	if err != nil {
		t.Fatalf("Paper() error = %v", err)
	}

	if out.Result.Kind != extract.KindSuccess || out.Result.Stage != extract.StageBasic {
		t.Fatalf("unexpected result: kind=%s stage=%s", out.Result.Kind, out.Result.Stage)
	}
	if out.Result.Document.QuestionCount() != 1 {
		t.Errorf("expected 1 question, got %d", out.Result.Document.QuestionCount())
	}
	if out.SchemaErr != nil {
		t.Errorf("unexpected schema error: %v", out.SchemaErr)
	}

	reqs := client.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if req.Model != "vision-model" {
		t.Errorf("Model = %q, want vision-model", req.Model)
	}
	if req.Temperature != defaultTemperature {
		t.Errorf("Temperature = %v, want %v", req.Temperature, defaultTemperature)
	}
	if req.ResponseFormat != nil {
		t.Error("response format should be unset without StructuredOutput")
	}
	msg := req.Messages[0]
	if msg.Role != "user" || len(msg.Images) != 1 || msg.ImageMIME != "image/png" {
		t.Errorf("unexpected message: role=%s images=%d mime=%s", msg.Role, len(msg.Images), msg.ImageMIME)
	}
	if !strings.Contains(msg.Content, `"handwritten_notes"`) {
		t.Error("prompt should describe the document shape")
	}

	if out.Call == nil || out.Call.Operation != OperationPaper || out.Call.PromptKey != PaperPromptKey {
		t.Fatalf("unexpected call record: %+v", out.Call)
	}
	if out.Call.PromptCID != prompts.HashText(paperPrompt) {
		t.Error("call should carry the hash of the prompt used")
	}
	recorded, err := llmcall.Read(bytes.NewReader(calls.Bytes()), llmcall.QueryFilter{})
	if err != nil || len(recorded) != 1 || recorded[0].ID != out.Call.ID {
		t.Errorf("call was not recorded: %+v, %v", recorded, err)
	}
}

func TestPaperValidation(t *testing.T) {
	a, _ := newAnalyzer(t, providers.NewMockClient(), Config{})
	if _, err := a.Paper(context.Background(), nil, ""); !errors.Is(err, ErrNoImage) {
		t.Errorf("Paper(nil) error = %v, want ErrNoImage", err)
	}
	if _, err := a.Enrich(context.Background(), nil); !errors.Is(err, ErrNilDocument) {
		t.Errorf("Enrich(nil) error = %v, want ErrNilDocument", err)
	}
}

func TestPaperStructuredOutput(t *testing.T) {
	client := providers.NewMockClient()
	client.ResponseText = `{"sections": []}`

	a, _ := newAnalyzer(t, client, Config{StructuredOutput: true})
	if _, err := a.Paper(context.Background(), []byte("img"), ""); err != nil {
		t.Fatalf("Paper() error = %v", err)
	}
	rf := client.Requests()[0].ResponseFormat
	if rf == nil || rf.Type != "json_schema" {
		t.Fatalf("expected json_schema response format, got %+v", rf)
	}
}

func TestCallFailureBecomesEnvelope(t *testing.T) {
	client := providers.NewMockClient()
	client.ShouldFail = true

	a, calls := newAnalyzer(t, client, Config{})
	out, err := a.Paper(context.Background(), []byte("img"), "")
	if err != nil {
		t.Fatalf("Paper() error = %v", err)
	}

	if out.Result.Kind != extract.KindFailure || out.Result.Failure.Reason != extract.ReasonUpstreamError {
		t.Fatalf("expected upstream error failure, got %+v", out.Result)
	}
	if !strings.HasPrefix(out.Result.Failure.Message, callFailedMessage) {
		t.Errorf("Message = %q", out.Result.Failure.Message)
	}
	if client.RequestCount() != 2 {
		t.Errorf("expected 2 attempts, got %d", client.RequestCount())
	}
	if out.Call == nil || out.Call.Success || out.Call.Attempts != 2 {
		t.Errorf("unexpected call record: %+v", out.Call)
	}
	if calls.Len() == 0 {
		t.Error("failed call should still be recorded")
	}
}

func TestRetrySucceeds(t *testing.T) {
	client := providers.NewMockClient()
	client.Errors = []error{errors.New("transient")}
	client.ResponseText = `{"sections": [{"questions": [{"question_number": "1"}]}]}`

	a, _ := newAnalyzer(t, client, Config{})
	out, err := a.Paper(context.Background(), []byte("img"), "")
	if err != nil {
		t.Fatalf("Paper() error = %v", err)
	}
	if !out.Result.OK() || out.Call.Attempts != 2 {
		t.Errorf("expected success on second attempt, got kind=%s attempts=%d", out.Result.Kind, out.Call.Attempts)
	}
}

func TestCancelledContext(t *testing.T) {
	client := providers.NewMockClient()
	client.Latency = time.Second

	a, calls := newAnalyzer(t, client, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Paper(ctx, []byte("img"), ""); !errors.Is(err, context.Canceled) {
		t.Errorf("Paper() error = %v, want context.Canceled", err)
	}
	if calls.Len() != 0 {
		t.Error("cancelled call should not be recorded")
	}
}

func TestSchemaViolationIsAdvisory(t *testing.T) {
	client := providers.NewMockClient()
	client.ResponseText = `{"sections": [{"questions": [{"question_number": "7"}]}]}`

	a, _ := newAnalyzer(t, client, Config{})
	out, err := a.Paper(context.Background(), []byte("img"), "")
	if err != nil {
		t.Fatalf("Paper() error = %v", err)
	}
	if !out.Result.OK() {
		t.Fatalf("document should still be usable, got %+v", out.Result)
	}
	if out.SchemaErr == nil || out.SchemaError == "" {
		t.Error("empty question text should be reported as a schema violation")
	}
}

func TestEnrich(t *testing.T) {
	doc := &exam.Document{Sections: []exam.Section{{
		Number: "1",
		Questions: []exam.Question{{
			Number: "1",
			Text:   "2 + 2 = ?",
		}},
	}}}

	client := providers.NewMockClient()
	client.ResponseText = `{"sections": [{"section_number": "1", "questions": [{"question_number": "1", "question_text": "2 + 2 = ?", "answer": "4", "explanation": "Addition."}]}]}`

	a, _ := newAnalyzer(t, client, Config{Model: "text-model", VisionModel: "vision-model"})
	out, err := a.Enrich(context.Background(), doc)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if !out.Result.OK() {
		t.Fatalf("unexpected result: %+v", out.Result)
	}
	q := out.Result.Document.Sections[0].Questions[0]
	if q.Answer != "4" || q.Explanation != "Addition." {
		t.Errorf("unexpected enriched question: %+v", q)
	}

	req := client.Requests()[0]
	if req.Model != "text-model" {
		t.Errorf("Model = %q, want text-model", req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[1].Content, `"question_text": "2 + 2 = ?"`) {
		t.Errorf("user prompt should embed the document JSON:\n%s", req.Messages[1].Content)
	}
	if out.Call.Operation != OperationEnrich || out.Call.PromptKey != EnrichUserPromptKey {
		t.Errorf("unexpected call record: %+v", out.Call)
	}
}

func TestPromptOverride(t *testing.T) {
	dir := t.TempDir()
	override := "Read the paper. Reply with JSON."
	if err := os.WriteFile(filepath.Join(dir, PaperPromptKey+".tmpl"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	client := providers.NewMockClient()
	client.ResponseText = `{"sections": []}`

	a, _ := newAnalyzer(t, client, Config{Resolver: prompts.NewResolver(dir, quietLogger())})
	out, err := a.Paper(context.Background(), []byte("img"), "")
	if err != nil {
		t.Fatalf("Paper() error = %v", err)
	}
	if got := client.Requests()[0].Messages[0].Content; got != override {
		t.Errorf("prompt = %q, want override", got)
	}
	if out.Call.PromptCID != prompts.HashText(override) {
		t.Error("call should carry the hash of the override")
	}
}

func TestOutcomeJSON(t *testing.T) {
	out := &Outcome{
		Result:      extract.Extract(`{"sections": []}`),
		SchemaErr:   errors.New("bad"),
		SchemaError: "bad",
	}
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"schema_error":"bad"`) || !strings.Contains(string(data), `"kind":"success"`) {
		t.Errorf("unexpected encoding: %s", data)
	}
}

func TestErrorEnvelope(t *testing.T) {
	got := errorEnvelope(errors.New(`quota "exceeded"`))
	var m map[string]string
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("envelope is not JSON: %v", err)
	}
	if m["error"] != callFailedMessage || m["message"] != `quota "exceeded"` {
		t.Errorf("unexpected envelope: %v", m)
	}
}
