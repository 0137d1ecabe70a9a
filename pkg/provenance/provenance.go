package provenance

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Record is one entry in the raw-response log: everything needed to
// replay or audit a single LLM call. Records are append-only; a failed
// call and its retry appear as separate entries distinguished by
// Attempt.
type Record struct {
	ID             string    `json:"id"`
	RunID          string    `json:"run_id,omitempty"`
	DocID          string    `json:"doc_id,omitempty"`
	EntityID       string    `json:"entity_id,omitempty"`
	Kind           string    `json:"kind"`
	Model          string    `json:"model,omitempty"`
	Prompt         string    `json:"prompt"`
	Response       string    `json:"response,omitempty"`
	Error          string    `json:"error,omitempty"`
	Attempt        int       `json:"attempt"`
	PromptTokens   int       `json:"prompt_tokens,omitempty"`
	ResponseTokens int       `json:"response_tokens,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Recorder receives provenance records from the LLM-backed stages.
type Recorder interface {
	Append(rec Record) error
}

// FileLog appends records to a JSON Lines file, one object per line.
// The file is opened in append mode and existing entries are never
// touched, so interleaved runs against the same log remain intact.
type FileLog struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// OpenFileLog opens the log at path for appending, creating parent
// directories as needed.
func OpenFileLog(path string) (*FileLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "create provenance directory")
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "open provenance log")
	}

	return &FileLog{file: file, path: path}, nil
}

// Append writes one record as a single JSON line. Missing IDs and
// timestamps are filled in.
func (l *FileLog) Append(rec Record) error {
	stamp(&rec)

	line, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal provenance record")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return errors.Wrapf(err, "append to provenance log %s", l.path)
	}
	return nil
}

// Path returns the location of the underlying file.
func (l *FileLog) Path() string { return l.path }

// Close flushes and closes the underlying file.
func (l *FileLog) Close() error { return l.file.Close() }

// Memory collects records in memory, preserving append order.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

// Append stores one record.
func (m *Memory) Append(rec Record) error {
	stamp(&rec)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of everything appended so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Discard drops every record.
type Discard struct{}

// Append implements Recorder.
func (Discard) Append(Record) error { return nil }

func stamp(rec *Record) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}

// ReadAll parses every line of a JSON Lines log. Blank lines are
// skipped; a malformed line is an error, since the log is meant to be
// replayable.
func ReadAll(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open provenance log")
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, errors.Wrap(err, "parse provenance record")
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read provenance log")
	}
	return records, nil
}
