package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	j, err := Open(filepath.Join(t.TempDir(), "data", "permanent_journal.jsonl"), logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return j
}

func TestJournal_AppendAndSearch(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	if err := j.Append("The sky is blue", map[string]any{"type": "user_observation", "category": "semantic"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := j.Append("Deploy uses blue-green rollout", map[string]any{"type": "user_observation", "category": "procedural"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	matches, err := j.Search(Filter{Keyword: "BLUE"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 case-insensitive matches, got %d", len(matches))
	}
	if matches[0].Content != "The sky is blue" {
		t.Fatalf("expected file order, got first match %q", matches[0].Content)
	}

	none, err := j.Search(Filter{Keyword: "nonexistent"})
	if err != nil {
		t.Fatalf("Search(nonexistent) error = %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %d", len(none))
	}
}

func TestJournal_MissingFileIsArchiveEmpty(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	_, err := j.Search(Filter{Keyword: "anything"})
	if !errors.Is(err, ErrNoJournal) {
		t.Fatalf("expected ErrNoJournal, got %v", err)
	}

	n, err := j.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("expected zero entries, got %d", n)
	}
}

func TestJournal_SkipsCorruptLines(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	if err := j.Append("good entry one", nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	// Simulate a crash mid-write: a truncated trailing line.
	f, err := os.OpenFile(j.Path(), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	if _, err := f.WriteString(`{"timestamp":"2026-01-01T00:00:00Z","cont`); err != nil {
		t.Fatalf("write corrupt line: %v", err)
	}
	f.Close()
	if err := j.Append("good entry two", nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	matches, err := j.Search(Filter{Keyword: "good entry"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected corrupt line skipped and 2 matches, got %d", len(matches))
	}
}

func TestJournal_DateFilter(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	if err := j.Append("dated entry", nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	in, err := j.Search(Filter{Keyword: "dated", From: &past, Until: &future})
	if err != nil {
		t.Fatalf("Search(in range) error = %v", err)
	}
	if len(in) != 1 {
		t.Fatalf("expected 1 match in range, got %d", len(in))
	}

	out, err := j.Search(Filter{Keyword: "dated", Until: &past})
	if err != nil {
		t.Fatalf("Search(out of range) error = %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected 0 matches before range, got %d", len(out))
	}
}

func TestJournal_ConcurrentAppendsDoNotInterleave(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := j.Append(fmt.Sprintf("writer %d entry %d", w, i), nil); err != nil {
					t.Errorf("Append() error = %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	entries, err := j.Search(Filter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(entries) != writers*perWriter {
		t.Fatalf("expected %d intact entries, got %d", writers*perWriter, len(entries))
	}
}

func TestJournal_SearchDoesNotMutateFile(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	if err := j.Append("immutable entry", nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	before, err := os.ReadFile(j.Path())
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := j.Search(Filter{Keyword: "immutable"}); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
	}

	after, err := os.ReadFile(j.Path())
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("journal file changed after read-only scans")
	}
}
