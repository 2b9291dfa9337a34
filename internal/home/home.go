package home

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultDirName is the default name for the examscan home directory.
	DefaultDirName = ".examscan"

	// ResultsDirName is the subdirectory for saved extraction results.
	ResultsDirName = "results"

	// InboxDirName is the default directory `examscan watch` reads from.
	InboxDirName = "inbox"

	// PromptsDirName holds prompt overrides, one <key>.tmpl per prompt.
	PromptsDirName = "prompts"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// CallLogFileName is the JSON-lines log of model calls.
	CallLogFileName = "calls.jsonl"

	resultTimeLayout = "20060102_150405"
)

// Dir represents the examscan home directory structure.
type Dir struct {
	path string
	now  func() time.Time
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.examscan).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path, now: time.Now}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ResultsPath returns the path to the results directory.
func (d *Dir) ResultsPath() string {
	return filepath.Join(d.path, ResultsDirName)
}

// InboxPath returns the path to the default watch inbox.
func (d *Dir) InboxPath() string {
	return filepath.Join(d.path, InboxDirName)
}

// PromptsPath returns the path to the prompt override directory.
func (d *Dir) PromptsPath() string {
	return filepath.Join(d.path, PromptsDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// CallLogPath returns the path to the model call log.
func (d *Dir) CallLogPath() string {
	return filepath.Join(d.path, CallLogFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Creating the results directory also creates the parent
	for _, dir := range []string{d.ResultsPath(), d.InboxPath(), d.PromptsPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// ResultName generates result_<yyyymmdd_hhmmss>_<id8>.json.
func (d *Dir) ResultName() string {
	return fmt.Sprintf("result_%s_%s.json", d.now().Format(resultTimeLayout), uuid.NewString()[:8])
}

// SaveResult writes v as indented JSON into the results directory and
// returns the file path. An empty name is generated; a name without a
// .json suffix gets one. Only the base name is used.
func (d *Dir) SaveResult(v any, name string) (string, error) {
	if name == "" {
		name = d.ResultName()
	}
	name = filepath.Base(name)
	if !strings.HasSuffix(strings.ToLower(name), ".json") {
		name += ".json"
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}

	if err := os.MkdirAll(d.ResultsPath(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}
	path := filepath.Join(d.ResultsPath(), name)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write result: %w", err)
	}
	return path, nil
}
