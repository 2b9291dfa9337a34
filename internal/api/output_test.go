package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type sample struct {
	Kind  string   `json:"kind" yaml:"kind"`
	Notes []string `json:"notes" yaml:"notes"`
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"json", OutputFormatJSON, false},
		{"YAML", OutputFormatYAML, false},
		{"yml", OutputFormatYAML, false},
		{" json ", OutputFormatJSON, false},
		{"", DefaultOutput, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOutputFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetOutputFormat(t *testing.T) {
	defer func() { globalOutputFormat = DefaultOutput }()

	if err := SetOutputFormat("yaml"); err != nil {
		t.Fatalf("SetOutputFormat() error = %v", err)
	}
	if GetOutputFormat() != OutputFormatYAML {
		t.Errorf("expected yaml, got %s", GetOutputFormat())
	}
	if err := SetOutputFormat("toml"); err == nil {
		t.Error("expected error for unknown format")
	}
	if GetOutputFormat() != OutputFormatYAML {
		t.Error("invalid format should not change the current one")
	}
}

func TestOutputTo(t *testing.T) {
	data := sample{Kind: "success", Notes: []string{"<b>"}}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := OutputTo(&buf, OutputFormatJSON, data); err != nil {
			t.Fatalf("OutputTo() error = %v", err)
		}
		if !strings.Contains(buf.String(), `"<b>"`) {
			t.Errorf("HTML should not be escaped: %s", buf.String())
		}
		var got sample
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil || got.Kind != "success" {
			t.Errorf("unexpected JSON %s: %v", buf.String(), err)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := OutputTo(&buf, OutputFormatYAML, data); err != nil {
			t.Fatalf("OutputTo() error = %v", err)
		}
		var got sample
		if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil || got.Kind != "success" || len(got.Notes) != 1 {
			t.Errorf("unexpected YAML %s: %v", buf.String(), err)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if err := OutputTo(&bytes.Buffer{}, "xml", data); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	_ = Text(&buf, "one")
	_ = Text(&buf, "two\n")
	if buf.String() != "one\ntwo\n" {
		t.Errorf("unexpected text %q", buf.String())
	}
}
