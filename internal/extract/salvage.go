package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/jackzampolin/examscan/internal/exam"
)

const (
	salvagedSectionNumber = "1"
	salvagedSectionTitle  = "Recovered content"
)

// fieldValue matches the separator and value after a field name: a
// double-quoted string, a single-quoted string, or bare text to end of line.
// Bare text is cut further by bareValue.
const fieldValue = `["']?\s*[:=]\s*(?:"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'|([^\s"'][^\n]*))`

var (
	questionTextRe    = regexp.MustCompile(`(?i)\bquestion_?text` + fieldValue)
	printedTextRe     = regexp.MustCompile(`(?i)\bprinted_?text` + fieldValue)
	handwrittenNoteRe = regexp.MustCompile(`(?is)\bhandwritten_?notes["']?\s*[:=]\s*\[(.*?)\]`)
	nextFieldRe       = regexp.MustCompile(`,\s*["']?[A-Za-z_][A-Za-z0-9_]*["']?\s*[:=]|[}\]]`)
)

// FieldCounts reports how many fields Salvage recovered.
type FieldCounts struct {
	Questions    int `json:"questions" yaml:"questions"`
	PrintedTexts int `json:"printed_texts" yaml:"printed_texts"`
	NoteGroups   int `json:"note_groups" yaml:"note_groups"`
}

// Total is the number of recovered fields of any kind.
func (c FieldCounts) Total() int {
	return c.Questions + c.PrintedTexts + c.NoteGroups
}

// Salvage pattern-matches question text, printed text and handwritten note
// fields out of text without regard to bracket structure, and pairs them up
// by order of appearance into one synthetic section with questions numbered
// from 1. It reports false when no question text is found.
func Salvage(text string) (*exam.Document, FieldCounts, bool) {
	questions := fieldValues(questionTextRe, text)
	if len(questions) == 0 {
		return nil, FieldCounts{}, false
	}
	printed := fieldValues(printedTextRe, text)

	var noteGroups [][]exam.Note
	for _, m := range handwrittenNoteRe.FindAllStringSubmatch(text, -1) {
		noteGroups = append(noteGroups, parseNoteFragment(m[1]))
	}

	section := exam.Section{
		Number:    salvagedSectionNumber,
		Title:     salvagedSectionTitle,
		Questions: make([]exam.Question, 0, len(questions)),
	}
	var counts FieldCounts
	for i, q := range questions {
		question := exam.Question{
			Number: strconv.Itoa(i + 1),
			Text:   q,
			Notes:  []exam.Note{},
		}
		if i < len(printed) {
			question.PrintedText = printed[i]
			counts.PrintedTexts++
		}
		if i < len(noteGroups) {
			question.Notes = noteGroups[i]
			counts.NoteGroups++
		}
		section.Questions = append(section.Questions, question)
	}
	counts.Questions = len(section.Questions)

	return &exam.Document{Sections: []exam.Section{section}}, counts, true
}

// fieldValues returns the decoded value of every match of re in text.
func fieldValues(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
		var v string
		switch {
		case m[2] >= 0:
			v = decodeJSONString(text[m[2]:m[3]])
		case m[4] >= 0:
			v = strings.ReplaceAll(text[m[4]:m[5]], `\'`, `'`)
		case m[6] >= 0:
			v = bareValue(text[m[6]:m[7]])
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// bareValue ends an unquoted value at the next `, key:` or closing brace or
// bracket on its line.
func bareValue(s string) string {
	if loc := nextFieldRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.TrimRight(s, " \t\r,")
}

func decodeJSONString(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}

// parseNoteFragment decodes the inside of a handwritten_notes array. The
// fragment is tried as JSON, then through jsonrepair; if both fail it is
// kept verbatim as a single note.
func parseNoteFragment(fragment string) []exam.Note {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return []exam.Note{}
	}

	array := "[" + fragment + "]"
	var v any
	if err := json.Unmarshal([]byte(array), &v); err == nil {
		return exam.NotesFromValue(v)
	}
	if repaired, err := jsonrepair.JSONRepair(array); err == nil {
		if err := json.Unmarshal([]byte(repaired), &v); err == nil {
			if notes := exam.NotesFromValue(v); len(notes) > 0 {
				return notes
			}
		}
	}
	return []exam.Note{{Text: fragment}}
}
