package types

import (
	"strings"
	"time"
)

// Category classifies a memory for decay purposes. It is a closed set;
// anything unrecognized maps to CategoryEpisodic.
type Category string

const (
	// CategoryEpisodic holds events, logs and temporary context.
	CategoryEpisodic Category = "episodic"
	// CategorySemantic holds general facts and user preferences.
	CategorySemantic Category = "semantic"
	// CategoryProcedural holds skills, workflows and code patterns.
	CategoryProcedural Category = "procedural"
)

// ParseCategory maps free-form input to a Category. Unknown, empty or
// mixed-case input degrades to CategoryEpisodic rather than failing.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategorySemantic:
		return CategorySemantic
	case CategoryProcedural:
		return CategoryProcedural
	default:
		return CategoryEpisodic
	}
}

// Valid reports whether c is one of the closed category values.
func (c Category) Valid() bool {
	switch c {
	case CategoryEpisodic, CategorySemantic, CategoryProcedural:
		return true
	}
	return false
}

func (c Category) String() string { return string(c) }

// MemoryRecord is one persisted memory item. Vector, Text, Category and
// CreatedAt are immutable after creation; LastAccessed and AccessCount
// mutate only through reinforcement.
type MemoryRecord struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	Category     Category  `json:"category"`
	Vector       []float32 `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int       `json:"access_count"`
	BaseStrength float64   `json:"base_strength"`
}

// JournalEntry is one append-only audit record. Entries are never mutated
// or deleted once written.
type JournalEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// StoreInput describes a store_memory call.
type StoreInput struct {
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
}

// StoreResult confirms a stored memory.
type StoreResult struct {
	Record  MemoryRecord `json:"record"`
	Message string       `json:"message"`
}

// RecallInput describes a recall_memory call.
type RecallInput struct {
	Query string `json:"query"`
}

// RecallOutcome distinguishes the intentional empty-result states of a
// recall from an actual result set. These are not errors.
type RecallOutcome string

const (
	// RecallOutcomeRecalled means at least one memory passed the strength threshold.
	RecallOutcomeRecalled RecallOutcome = "recalled"
	// RecallOutcomeNoMemories means similarity search returned no candidates at all.
	RecallOutcomeNoMemories RecallOutcome = "no_memories"
	// RecallOutcomeFaded means candidates existed but all decayed below threshold.
	RecallOutcomeFaded RecallOutcome = "faded"
)

// RecalledMemory pairs a surviving record with the strength it was scored
// at, before the reinforcement update was applied.
type RecalledMemory struct {
	Record   MemoryRecord `json:"record"`
	Strength float64      `json:"strength"`
}

// RecallResult is the outcome of a recall operation. Memories preserve the
// similarity order returned by the vector index.
type RecallResult struct {
	Outcome  RecallOutcome    `json:"outcome"`
	Memories []RecalledMemory `json:"memories,omitempty"`
}

// VerifyInput describes a verify_history call. From and To are optional
// YYYY-MM-DD date bounds (inclusive).
type VerifyInput struct {
	Keyword string `json:"keyword"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

// VerifyOutcome distinguishes the empty-result states of an archive scan.
type VerifyOutcome string

const (
	VerifyOutcomeMatches      VerifyOutcome = "matches"
	VerifyOutcomeNoMatch      VerifyOutcome = "no_match"
	VerifyOutcomeArchiveEmpty VerifyOutcome = "archive_empty"
)

// VerifyResult is the outcome of an archive scan. Entries are chronological,
// most recent last.
type VerifyResult struct {
	Outcome VerifyOutcome  `json:"outcome"`
	Entries []JournalEntry `json:"entries,omitempty"`
}
