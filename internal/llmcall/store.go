package llmcall

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"time"
)

// maxRecordBytes bounds a single JSON line; responses are stored whole.
const maxRecordBytes = 16 << 20

// QueryFilter specifies filters for listing calls.
type QueryFilter struct {
	Operation string
	PromptKey string
	Provider  string
	Model     string
	After     *time.Time
	Before    *time.Time
	Success   *bool
	Limit     int
	Offset    int
}

func (f QueryFilter) match(c *Call) bool {
	switch {
	case f.Operation != "" && c.Operation != f.Operation:
		return false
	case f.PromptKey != "" && c.PromptKey != f.PromptKey:
		return false
	case f.Provider != "" && c.Provider != f.Provider:
		return false
	case f.Model != "" && c.Model != f.Model:
		return false
	case f.After != nil && !c.Timestamp.After(*f.After):
		return false
	case f.Before != nil && !c.Timestamp.Before(*f.Before):
		return false
	case f.Success != nil && c.Success != *f.Success:
		return false
	}
	return true
}

// ReadFile lists the calls in the JSON-lines log at path, newest first.
// A missing file has no calls.
func ReadFile(path string, filter QueryFilter) ([]Call, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open call log: %w", err)
	}
	defer f.Close()
	return Read(f, filter)
}

// Read lists the calls in a JSON-lines stream, newest first. Lines that do
// not decode are skipped.
func Read(r io.Reader, filter QueryFilter) ([]Call, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRecordBytes)

	var calls []Call
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c Call
		if err := json.Unmarshal(line, &c); err != nil {
			continue
		}
		if filter.match(&c) {
			calls = append(calls, c)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read call log: %w", err)
	}

	sort.SliceStable(calls, func(i, j int) bool {
		return calls[i].Timestamp.After(calls[j].Timestamp)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(calls) {
			return nil, nil
		}
		calls = calls[filter.Offset:]
	}
	if filter.Limit > 0 && len(calls) > filter.Limit {
		calls = calls[:filter.Limit]
	}
	return calls, nil
}

// CountByPromptKey counts calls per prompt key.
func CountByPromptKey(calls []Call) map[string]int {
	counts := make(map[string]int)
	for _, c := range calls {
		counts[c.PromptKey]++
	}
	return counts
}
