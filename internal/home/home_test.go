package home

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-examscan")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-examscan" {
			t.Errorf("expected path /tmp/test-examscan, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-examscan")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ResultsPath", dir.ResultsPath(), "/tmp/test-examscan/results"},
		{"InboxPath", dir.InboxPath(), "/tmp/test-examscan/inbox"},
		{"PromptsPath", dir.PromptsPath(), "/tmp/test-examscan/prompts"},
		{"ConfigPath", dir.ConfigPath(), "/tmp/test-examscan/config.yaml"},
		{"CallLogPath", dir.CallLogPath(), "/tmp/test-examscan/calls.jsonl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.got)
			}
		})
	}
}

func TestDir_EnsureExists(t *testing.T) {
	dir, err := New(filepath.Join(t.TempDir(), "examscan-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Directory shouldn't exist yet
	if dir.Exists() {
		t.Error("directory should not exist before EnsureExists")
	}

	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}
	for _, p := range []string{dir.ResultsPath(), dir.InboxPath(), dir.PromptsPath()} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			t.Errorf("%s should exist after EnsureExists", p)
		}
	}
}

func TestDir_ConfigExists(t *testing.T) {
	dir, _ := New(t.TempDir())

	if dir.ConfigExists() {
		t.Error("config should not exist initially")
	}

	if err := os.WriteFile(dir.ConfigPath(), []byte("test: true\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if !dir.ConfigExists() {
		t.Error("config should exist after creation")
	}
}

func TestDir_ResultName(t *testing.T) {
	dir, _ := New(t.TempDir())
	dir.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	name := dir.ResultName()
	if !regexp.MustCompile(`^result_20260304_050607_[0-9a-f]{8}\.json$`).MatchString(name) {
		t.Errorf("unexpected result name %q", name)
	}
	if name == dir.ResultName() {
		t.Error("names generated in the same second should differ")
	}
}

func TestDir_SaveResult(t *testing.T) {
	dir, _ := New(t.TempDir())
	payload := map[string]any{"kind": "success"}

	tests := []struct {
		name     string
		input    string
		wantBase string
	}{
		{"explicit name", "page1.json", "page1.json"},
		{"suffix added", "page2", "page2.json"},
		{"directories stripped", "../escape/page3.json", "page3.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := dir.SaveResult(payload, tt.input)
			if err != nil {
				t.Fatalf("SaveResult() error = %v", err)
			}
			if path != filepath.Join(dir.ResultsPath(), tt.wantBase) {
				t.Errorf("path = %s, want %s", path, tt.wantBase)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			var got map[string]any
			if err := json.Unmarshal(data, &got); err != nil || got["kind"] != "success" {
				t.Errorf("unexpected content %s: %v", data, err)
			}
		})
	}

	t.Run("generated name", func(t *testing.T) {
		path, err := dir.SaveResult(payload, "")
		if err != nil {
			t.Fatalf("SaveResult() error = %v", err)
		}
		if filepath.Dir(path) != dir.ResultsPath() || filepath.Ext(path) != ".json" {
			t.Errorf("unexpected path %s", path)
		}
	})

	t.Run("unencodable value", func(t *testing.T) {
		if _, err := dir.SaveResult(make(chan int), "bad"); err == nil {
			t.Error("expected encode error")
		}
	})
}
