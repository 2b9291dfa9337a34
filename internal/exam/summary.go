package exam

import (
	"fmt"
	"strings"
)

// Summary is an overview report of an extracted document.
type Summary struct {
	SectionCount       int           `json:"section_count" yaml:"section_count"`
	QuestionCount      int           `json:"question_count" yaml:"question_count"`
	SectionSummary     string        `json:"section_summary" yaml:"section_summary"`
	WrongQuestionCount int           `json:"wrong_question_count" yaml:"wrong_question_count"`
	WrongQuestions     []QuestionRef `json:"wrong_questions" yaml:"wrong_questions"`
}

// QuestionRef identifies a question within its section.
type QuestionRef struct {
	SectionNumber  string `json:"section_number" yaml:"section_number"`
	QuestionNumber string `json:"question_number" yaml:"question_number"`
	QuestionText   string `json:"question_text" yaml:"question_text"`
}

// Summarize builds the overview report. A question carrying any handwritten
// note is reported as a suspected wrong answer.
func Summarize(doc *Document) Summary {
	doc = doc.Normalize()
	sum := Summary{
		SectionCount:   len(doc.Sections),
		QuestionCount:  doc.QuestionCount(),
		SectionSummary: SectionOverview(doc.Sections),
		WrongQuestions: []QuestionRef{},
	}
	for _, s := range doc.Sections {
		for _, q := range s.Questions {
			if len(q.Notes) == 0 {
				continue
			}
			sum.WrongQuestions = append(sum.WrongQuestions, QuestionRef{
				SectionNumber:  s.Number,
				QuestionNumber: q.Number,
				QuestionText:   q.Text,
			})
		}
	}
	sum.WrongQuestionCount = len(sum.WrongQuestions)
	return sum
}

// SectionOverview renders one line per section: "<number>. <title> (<n> questions)".
func SectionOverview(sections []Section) string {
	lines := make([]string, 0, len(sections))
	for i, s := range sections {
		number := s.Number
		if number == "" {
			number = fmt.Sprintf("%d", i+1)
		}
		title := s.Title
		if title == "" {
			title = fmt.Sprintf("Part %d", i+1)
		}
		lines = append(lines, fmt.Sprintf("%s. %s (%d questions)", number, title, len(s.Questions)))
	}
	return strings.Join(lines, "\n")
}

// FormatForDisplay renders a short human-readable overview of doc.
func FormatForDisplay(doc *Document) string {
	if doc == nil || len(doc.Sections) == 0 {
		return "No questions detected"
	}
	sum := Summarize(doc)

	var b strings.Builder
	fmt.Fprintf(&b, "Detected %d sections, %d questions\n", sum.SectionCount, sum.QuestionCount)
	fmt.Fprintf(&b, "Suspected wrong answers: %d\n", sum.WrongQuestionCount)
	b.WriteString("\nSections:\n")
	b.WriteString(sum.SectionSummary)
	return b.String()
}

// FormatQuestion renders a question with its notes, answer and explanation.
func FormatQuestion(q Question) string {
	parts := []string{fmt.Sprintf("Question %s: %s", q.Number, q.Text)}

	var notes []string
	for _, n := range q.Notes {
		if n.Text == "" {
			continue
		}
		notes = append(notes, fmt.Sprintf("[%s] %s", n.Color, n.Text))
	}
	if len(notes) > 0 {
		parts = append(parts, "\nHandwritten notes:\n"+strings.Join(notes, "\n"))
	}
	if q.Answer != "" {
		parts = append(parts, "\nAnswer: "+q.Answer)
	}
	if q.Explanation != "" {
		parts = append(parts, "\nExplanation: "+q.Explanation)
	}
	return strings.Join(parts, "\n")
}
