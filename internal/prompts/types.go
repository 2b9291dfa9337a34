// Package prompts provides prompt management with embedded defaults and
// file-based overrides.
//
// Embedded .tmpl files in code are the source of truth. A user may drop a
// file named <key>.tmpl into the overrides directory to replace one.
//
// Resolution order:
//  1. Override file (if the resolver has an overrides directory and the file exists)
//  2. Embedded default
//
// Every resolved prompt carries a content hash so that recorded model calls
// can be traced to the exact prompt text that produced them.
package prompts

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: analyze.paper.user
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 hash of the text for change detection
}

// ResolvedPrompt is the prompt text that will actually be sent.
type ResolvedPrompt struct {
	Key        string   `json:"key"`
	Text       string   `json:"text"`
	Variables  []string `json:"variables,omitempty"`
	IsOverride bool     `json:"is_override"` // true if read from the overrides directory
	CID        string   `json:"cid"`         // content hash of Text
}
