package extract

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxInputBytes bounds how much of a response the repair and
	// salvage passes look at.
	DefaultMaxInputBytes = 512 * 1024

	// TruncationMarker is appended to input cut at the byte limit.
	TruncationMarker = "\n...[truncated]"
)

// RawResponse is one model response, bounded to a maximum size.
type RawResponse struct {
	text         string
	sourceLength int
	truncated    bool
}

// NewRawResponse wraps text, cutting it at maxBytes (on a rune boundary)
// and appending TruncationMarker when it is longer. maxBytes <= 0 disables
// the bound.
func NewRawResponse(text string, maxBytes int) RawResponse {
	r := RawResponse{text: text, sourceLength: len(text)}
	if maxBytes <= 0 || len(text) <= maxBytes {
		return r
	}

	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	var b strings.Builder
	b.Grow(cut + len(TruncationMarker))
	b.WriteString(text[:cut])
	b.WriteString(TruncationMarker)

	r.text = b.String()
	r.truncated = true
	return r
}

// Text returns the bounded response text.
func (r RawResponse) Text() string { return r.text }

// SourceLength is the length in bytes of the response before bounding.
func (r RawResponse) SourceLength() int { return r.sourceLength }

// Truncated reports whether the response was cut at the byte limit.
func (r RawResponse) Truncated() bool { return r.truncated }
