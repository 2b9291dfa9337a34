// Package exam defines the structured exam-paper document produced by the
// extraction pipeline: sections of questions, each with printed text and
// handwritten notes. Constructors normalize loosely shaped input so that
// every collection is non-nil and every field has a typed default.
package exam

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Document is an exam paper split into sections.
type Document struct {
	Sections []Section `json:"sections" yaml:"sections"`
}

// Section is a numbered group of questions (e.g. "multiple choice").
type Section struct {
	Number    string     `json:"section_number" yaml:"section_number"`
	Title     string     `json:"section_title" yaml:"section_title"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Question is a single exam item.
// Answer and Explanation are only set after enrichment.
type Question struct {
	Number      string `json:"question_number" yaml:"question_number"`
	Text        string `json:"question_text" yaml:"question_text"`
	PrintedText string `json:"printed_text,omitempty" yaml:"printed_text,omitempty"`
	Notes       []Note `json:"handwritten_notes" yaml:"handwritten_notes"`
	Answer      string `json:"answer,omitempty" yaml:"answer,omitempty"`
	Explanation string `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// Note is a handwritten annotation and the ink color it was written in.
type Note struct {
	Text  string `json:"text" yaml:"text"`
	Color string `json:"color" yaml:"color"`
}

// New returns an empty document with a non-nil section list.
func New() *Document {
	return &Document{Sections: []Section{}}
}

// QuestionCount returns the number of questions across all sections.
func (d *Document) QuestionCount() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, s := range d.Sections {
		n += len(s.Questions)
	}
	return n
}

// JSON returns the canonical wire encoding of the document.
func (d *Document) JSON() ([]byte, error) {
	return json.Marshal(d.Normalize())
}

// Normalize returns a copy of d with every nil collection replaced by an
// empty one. A nil document normalizes to an empty document.
func (d *Document) Normalize() *Document {
	out := New()
	if d == nil {
		return out
	}
	for _, s := range d.Sections {
		ns := Section{Number: s.Number, Title: s.Title, Questions: make([]Question, 0, len(s.Questions))}
		for _, q := range s.Questions {
			nq := q
			nq.Notes = make([]Note, len(q.Notes))
			copy(nq.Notes, q.Notes)
			ns.Questions = append(ns.Questions, nq)
		}
		out.Sections = append(out.Sections, ns)
	}
	return out
}

// FromMap converts a decoded JSON object into a Document. Missing or
// mistyped fields become empty defaults; it never fails.
func FromMap(m map[string]any) *Document {
	doc := New()
	for _, raw := range asSlice(m["sections"]) {
		sm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		doc.Sections = append(doc.Sections, sectionFromMap(sm, len(doc.Sections)+1))
	}
	return doc
}

func sectionFromMap(m map[string]any, pos int) Section {
	s := Section{
		Number:    asString(m["section_number"]),
		Title:     asString(m["section_title"]),
		Questions: []Question{},
	}
	if s.Number == "" {
		s.Number = strconv.Itoa(pos)
	}
	for _, raw := range asSlice(m["questions"]) {
		qm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		s.Questions = append(s.Questions, questionFromMap(qm))
	}
	return s
}

func questionFromMap(m map[string]any) Question {
	return Question{
		Number:      asString(m["question_number"]),
		Text:        asString(m["question_text"]),
		PrintedText: asString(m["printed_text"]),
		Notes:       NotesFromValue(m["handwritten_notes"]),
		Answer:      asString(m["answer"]),
		Explanation: asString(m["explanation"]),
	}
}

// NotesFromValue converts a decoded handwritten_notes value into notes.
// Elements may be {text,color} objects or bare strings; anything else is
// skipped. The result is never nil.
func NotesFromValue(v any) []Note {
	notes := []Note{}
	for _, raw := range asSlice(v) {
		switch n := raw.(type) {
		case map[string]any:
			notes = append(notes, Note{Text: asString(n["text"]), Color: asString(n["color"])})
		case string:
			notes = append(notes, Note{Text: n})
		}
	}
	return notes
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

// asString renders scalar JSON values as text so that numeric identifiers
// like "section_number": 2 still produce "2".
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s := asString(p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}
