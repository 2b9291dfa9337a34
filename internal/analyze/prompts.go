package analyze

import (
	_ "embed"

	"github.com/jackzampolin/examscan/internal/prompts"
)

//go:embed paper.tmpl
var paperPrompt string

//go:embed enrich_system.tmpl
var enrichSystemPrompt string

//go:embed enrich_user.tmpl
var enrichUserPrompt string

// Prompt keys.
const (
	PaperPromptKey        = "analyze.paper.user"
	EnrichSystemPromptKey = "analyze.enrich.system"
	EnrichUserPromptKey   = "analyze.enrich.user"
)

// RegisterPrompts registers the analyze prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         PaperPromptKey,
		Text:        paperPrompt,
		Description: "Exam paper image to sections/questions/handwritten notes JSON",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         EnrichSystemPromptKey,
		Text:        enrichSystemPrompt,
		Description: "System prompt for answering extracted exam questions",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         EnrichUserPromptKey,
		Text:        enrichUserPrompt,
		Description: "Extracted document to document with answer/explanation per question",
	})
}

// enrichData is the template data for EnrichUserPromptKey.
type enrichData struct {
	Document string
}
