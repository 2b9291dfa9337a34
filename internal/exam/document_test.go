package exam

import (
	"encoding/json"
	"strings"
	"testing"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", s, err)
	}
	return m
}

func TestFromMap_FullDocument(t *testing.T) {
	m := decode(t, `{
		"sections": [{
			"section_number": "1",
			"section_title": "Multiple choice",
			"questions": [{
				"question_number": "1",
				"question_text": "2+2=?",
				"printed_text": "A. 3 B. 4",
				"handwritten_notes": [{"text": "B", "color": "blue"}],
				"answer": "B",
				"explanation": "basic addition"
			}]
		}]
	}`)

	doc := FromMap(m)
	if len(doc.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(doc.Sections))
	}
	s := doc.Sections[0]
	if s.Number != "1" || s.Title != "Multiple choice" {
		t.Errorf("unexpected section header: %+v", s)
	}
	if len(s.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(s.Questions))
	}
	q := s.Questions[0]
	if q.Text != "2+2=?" || q.PrintedText != "A. 3 B. 4" {
		t.Errorf("unexpected question: %+v", q)
	}
	if q.Answer != "B" || q.Explanation != "basic addition" {
		t.Errorf("enrichment fields not preserved: %+v", q)
	}
	if len(q.Notes) != 1 || q.Notes[0] != (Note{Text: "B", Color: "blue"}) {
		t.Errorf("unexpected notes: %+v", q.Notes)
	}
}

func TestFromMap_MissingFieldsBecomeEmpty(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty object", `{}`},
		{"null sections", `{"sections": null}`},
		{"sections wrong type", `{"sections": "oops"}`},
		{"section without questions", `{"sections": [{"section_number": "1"}]}`},
		{"question without notes", `{"sections": [{"questions": [{"question_text": "x"}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := FromMap(decode(t, tt.in))
			if doc.Sections == nil {
				t.Fatal("sections must never be nil")
			}
			for _, s := range doc.Sections {
				if s.Questions == nil {
					t.Fatal("questions must never be nil")
				}
				for _, q := range s.Questions {
					if q.Notes == nil {
						t.Fatal("notes must never be nil")
					}
				}
			}
		})
	}
}

func TestFromMap_NumericIdentifiers(t *testing.T) {
	doc := FromMap(decode(t, `{"sections": [{"section_number": 2, "questions": [{"question_number": 7, "question_text": "x"}]}]}`))
	if got := doc.Sections[0].Number; got != "2" {
		t.Errorf("section_number = %q, want 2", got)
	}
	if got := doc.Sections[0].Questions[0].Number; got != "7" {
		t.Errorf("question_number = %q, want 7", got)
	}
}

func TestFromMap_DefaultsSectionNumberToPosition(t *testing.T) {
	doc := FromMap(decode(t, `{"sections": [{"section_title": "a"}, {"section_title": "b"}]}`))
	if doc.Sections[0].Number != "1" || doc.Sections[1].Number != "2" {
		t.Errorf("unexpected numbers: %q %q", doc.Sections[0].Number, doc.Sections[1].Number)
	}
}

func TestNotesFromValue(t *testing.T) {
	var v any
	if err := json.Unmarshal([]byte(`[{"text": "a", "color": "red"}, "b", 3, null]`), &v); err != nil {
		t.Fatal(err)
	}
	notes := NotesFromValue(v)
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d: %+v", len(notes), notes)
	}
	if notes[1].Text != "b" || notes[1].Color != "" {
		t.Errorf("string note not converted: %+v", notes[1])
	}

	if got := NotesFromValue(nil); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestDocumentJSON_RoundTrip(t *testing.T) {
	doc := &Document{Sections: []Section{{
		Number:    "1",
		Title:     "Fill in",
		Questions: []Question{{Number: "1", Text: "x=?"}},
	}}}

	data, err := doc.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if !strings.Contains(string(data), `"handwritten_notes":[]`) {
		t.Errorf("nil notes should encode as empty array: %s", data)
	}

	back := FromMap(decode(t, string(data)))
	if back.QuestionCount() != 1 || back.Sections[0].Questions[0].Text != "x=?" {
		t.Errorf("round trip lost content: %+v", back)
	}
}

func TestQuestionCount_Nil(t *testing.T) {
	var doc *Document
	if doc.QuestionCount() != 0 {
		t.Error("nil document should have zero questions")
	}
}
