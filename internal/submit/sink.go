package submit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Snapshot is the raw material of one attempt, persisted for offline
// inspection of what the endpoint actually returned.
type Snapshot struct {
	Identifier string    `json:"identifier"` // redacted form
	HTTPStatus int       `json:"http_status,omitempty"`
	Body       string    `json:"body,omitempty"`
	Reply      *Reply    `json:"reply,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sink receives the latest snapshot per account. Writes are best-effort;
// a failing sink must never fail the submission.
type Sink interface {
	Write(identifier string, snap Snapshot) error
}

// NopSink drops everything. Default for tests and for runs without a
// debug directory.
type NopSink struct{}

func (NopSink) Write(string, Snapshot) error { return nil }

// DirSink keeps one JSON file per account under a directory, named after a
// sanitized form of the identifier. Each write replaces the previous one.
type DirSink struct {
	dir string
}

func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

func (s *DirSink) Write(identifier string, snap Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.dir, sanitizeName(identifier)+".json")
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func sanitizeName(s string) string {
	if s == "" {
		return "account"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
