package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jackzampolin/examscan/internal/exam"
)

// ParseError describes why a span failed to parse as a JSON object.
type ParseError struct {
	Message string `json:"message" yaml:"message"`
	Offset  int    `json:"offset" yaml:"offset"`
	Line    int    `json:"line" yaml:"line"`
	Column  int    `json:"column" yaml:"column"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s (line %d, column %d, offset %d)", e.Message, e.Line, e.Column, e.Offset)
}

// parseDocument decodes text as a JSON object and normalizes it into a
// document. Anything other than a single top-level object is a failure.
func parseDocument(text string) (*exam.Document, *ParseError) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, newParseError(text, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{
			Message: fmt.Sprintf("top-level value is %s, want object", jsonKind(v)),
			Line:    1,
			Column:  1,
		}
	}
	return exam.FromMap(m), nil
}

func newParseError(text string, err error) *ParseError {
	offset := 0
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = int(syntaxErr.Offset)
	case errors.As(err, &typeErr):
		offset = int(typeErr.Offset)
	}
	if offset > len(text) {
		offset = len(text)
	}
	if offset < 0 {
		offset = 0
	}

	line := strings.Count(text[:offset], "\n") + 1
	column := offset - strings.LastIndexByte(text[:offset], '\n')
	return &ParseError{Message: err.Error(), Offset: offset, Line: line, Column: column}
}

func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// upstreamErrorRe matches the opening of a response that is itself an
// error report.
var upstreamErrorRe = regexp.MustCompile(`^\{\s*"error"\s*:`)

// upstreamError reports the message of a self-describing error response
// such as {"error": "rate limited"} or {"error": "call failed", "message": "..."}.
// It returns false when text is not such a response or does not decode.
func upstreamError(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !upstreamErrorRe.MatchString(trimmed) {
		return "", false
	}

	var envelope struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return "", false
	}

	var msg string
	switch e := envelope.Error.(type) {
	case string:
		msg = e
	case map[string]any:
		if s, ok := e["message"].(string); ok {
			msg = s
		}
	}
	msg = strings.TrimSpace(msg)
	detail := strings.TrimSpace(envelope.Message)
	switch {
	case msg == "" && detail == "":
		return "", false
	case msg == "":
		return detail, true
	case detail != "" && detail != msg:
		return msg + ": " + detail, true
	default:
		return msg, true
	}
}

// errorContext returns up to radius bytes either side of offset, widened to
// rune boundaries, for log output.
func errorContext(text string, offset, radius int) string {
	start := offset - radius
	if start < 0 {
		start = 0
	}
	end := offset + radius
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return text[start:end]
}
