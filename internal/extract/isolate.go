package extract

import (
	"fmt"
	"strings"
	"unicode"
)

// IsolationTag records how a CandidateSpan was found.
type IsolationTag string

const (
	TagFencedLabeled   IsolationTag = "fenced-labeled"
	TagFencedUnlabeled IsolationTag = "fenced-unlabeled"
	TagBraceBounded    IsolationTag = "brace-bounded"
	TagWholeText       IsolationTag = "whole-text"
)

const fence = "```"

// CandidateSpan is the substring text[Start:End] of a response that most
// likely holds the JSON payload.
type CandidateSpan struct {
	Text  string       `json:"-"`
	Start int          `json:"start"`
	End   int          `json:"end"`
	Tag   IsolationTag `json:"tag"`
}

// Isolate picks the most plausible JSON region of text. In priority order:
// a fenced block with a language tag (```json), the content between the
// first two bare fences, the span from the first '{' to the last '}', or
// the whole text. Empty fenced blocks are skipped. Isolate never fails.
func Isolate(text string) CandidateSpan {
	if span, ok := labeledFence(text); ok {
		return span
	}
	if span, ok := unlabeledFence(text); ok {
		return span
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && start < end {
		return newSpan(text, start, end+1, TagBraceBounded)
	}
	return CandidateSpan{Text: text, Start: 0, End: len(text), Tag: TagWholeText}
}

// labeledFence finds the first fence opener followed directly by a language
// tag and returns everything up to the next fence. An unclosed block runs to
// the end of the text, which is what a truncated response looks like.
func labeledFence(text string) (CandidateSpan, bool) {
	for offset := 0; ; {
		i := strings.Index(text[offset:], fence)
		if i < 0 {
			return CandidateSpan{}, false
		}
		open := offset + i
		tagEnd := open + len(fence)
		for tagEnd < len(text) && isTagByte(text[tagEnd]) {
			tagEnd++
		}
		if tagEnd == open+len(fence) || !isLetter(text[open+len(fence)]) {
			offset = open + len(fence)
			continue
		}

		end := len(text)
		if j := strings.Index(text[tagEnd:], fence); j >= 0 {
			end = tagEnd + j
		}
		span := newSpan(text, tagEnd, end, TagFencedLabeled)
		if span.Text == "" {
			offset = end
			continue
		}
		return span, true
	}
}

// unlabeledFence returns the content between the first two fences.
func unlabeledFence(text string) (CandidateSpan, bool) {
	first := strings.Index(text, fence)
	if first < 0 {
		return CandidateSpan{}, false
	}
	start := first + len(fence)
	second := strings.Index(text[start:], fence)
	if second < 0 {
		return CandidateSpan{}, false
	}
	span := newSpan(text, start, start+second, TagFencedUnlabeled)
	if span.Text == "" {
		return CandidateSpan{}, false
	}
	return span, true
}

// newSpan builds a span over text[start:end] with surrounding whitespace
// trimmed off both ends.
func newSpan(text string, start, end int, tag IsolationTag) CandidateSpan {
	s := text[start:end]
	trimmedLeft := strings.TrimLeftFunc(s, unicode.IsSpace)
	start += len(s) - len(trimmedLeft)
	trimmed := strings.TrimRightFunc(trimmedLeft, unicode.IsSpace)
	end = start + len(trimmed)
	return CandidateSpan{Text: trimmed, Start: start, End: end, Tag: tag}
}

// mustReference panics unless s is exactly text[s.Start:s.End]. A span that
// does not point into its response is a bug in Isolate, not bad input.
func (s CandidateSpan) mustReference(text string) {
	if s.Start < 0 || s.End > len(text) || s.Start > s.End || text[s.Start:s.End] != s.Text {
		panic(fmt.Sprintf("extract: span [%d:%d] (%s) does not reference the response text", s.Start, s.End, s.Tag))
	}
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isTagByte(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_' || c == '-' || c == '+' || c == '.'
}
