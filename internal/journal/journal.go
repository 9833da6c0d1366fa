// Package journal owns the append-only, decay-free audit trail.
//
// The journal is a newline-delimited JSON file. It is the durable source
// of truth for everything ever stored: entries are never rewritten,
// reordered or deleted, and the file survives any rebuild of the vector
// index.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/decay-mcp/pkg/types"
)

// ErrNoJournal marks a scan against a journal file that does not exist
// yet. Callers present this as the "archive empty" state, not a failure.
var ErrNoJournal = errors.New("journal file does not exist")

// Maximum length of one serialized entry the scanner will accept.
const maxLineBytes = 4 * 1024 * 1024

// Journal appends and scans the audit file. Appends are serialized by a
// mutex and use O_APPEND so concurrent writers never interleave partial
// lines; scans open their own descriptor and may run alongside appends.
type Journal struct {
	path   string
	logger *log.Logger

	mu sync.Mutex
}

// Open prepares a journal at path, creating the parent directory if
// absent. The file itself is created lazily on first append.
func Open(path string, logger *log.Logger) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	return &Journal{path: path, logger: logger}, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string { return j.path }

// Append writes one entry with the current timestamp. Errors are surfaced
// to the caller: silently losing the audit trail would defeat its purpose.
func (j *Journal) Append(content string, metadata map[string]any) error {
	entry := types.JournalEntry{
		Timestamp: time.Now().UTC(),
		Content:   content,
		Metadata:  metadata,
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	b = append(b, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal for append: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// Filter selects journal entries during a scan. Keyword matching is a
// case-insensitive substring test over Content. From is inclusive and
// Until exclusive.
type Filter struct {
	Keyword string
	From    *time.Time
	Until   *time.Time
}

// Search scans every entry in file order and returns those matching the
// filter. A missing file yields ErrNoJournal. Malformed lines (for
// example a truncated tail from a crash mid-write) are skipped, never
// fatal.
func (j *Journal) Search(filter Filter) ([]types.JournalEntry, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoJournal
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	keyword := strings.ToLower(filter.Keyword)
	var matches []types.JournalEntry
	skipped := 0

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var entry types.JournalEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			skipped++
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(entry.Content), keyword) {
			continue
		}
		if filter.From != nil && entry.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.Until != nil && !entry.Timestamp.Before(*filter.Until) {
			continue
		}
		matches = append(matches, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	if skipped > 0 && j.logger != nil {
		j.logger.Warn("skipped malformed journal lines", "count", skipped)
	}
	return matches, nil
}

// Count returns the number of well-formed entries. Used by the admin
// dashboard; a missing file counts as zero.
func (j *Journal) Count() (int64, error) {
	entries, err := j.Search(Filter{})
	if err != nil {
		if errors.Is(err, ErrNoJournal) {
			return 0, nil
		}
		return 0, err
	}
	return int64(len(entries)), nil
}
