// Package memory orchestrates embedding, persistence, decay scoring,
// reinforcement and the audit journal.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/xiy/decay-mcp/internal/config"
	"github.com/xiy/decay-mcp/internal/decay"
	"github.com/xiy/decay-mcp/internal/embeddings"
	"github.com/xiy/decay-mcp/internal/journal"
	"github.com/xiy/decay-mcp/internal/store"
	"github.com/xiy/decay-mcp/pkg/types"
)

// Archive is the journal surface the service depends on.
type Archive interface {
	Append(content string, metadata map[string]any) error
	Search(filter journal.Filter) ([]types.JournalEntry, error)
}

// Service coordinates the memory store, the embedding provider and the
// audit journal. All collaborators are injected so tests can substitute
// fakes.
type Service struct {
	store    store.Store
	embedder embeddings.Provider
	archive  Archive
	params   decay.Params
	cfg      config.Config
	logger   *log.Logger
}

// NewService constructs a memory service from validated configuration.
func NewService(st store.Store, embedder embeddings.Provider, archive Archive, cfg config.Config, logger *log.Logger) *Service {
	return &Service{
		store:    st,
		embedder: embedder,
		archive:  archive,
		params:   ParamsFrom(cfg),
		cfg:      cfg,
		logger:   logger,
	}
}

// ParamsFrom derives decay parameters from configuration.
func ParamsFrom(cfg config.Config) decay.Params {
	return decay.Params{
		HalfLifeHours: map[types.Category]float64{
			types.CategoryEpisodic:   cfg.HalfLifeHours.Episodic,
			types.CategorySemantic:   cfg.HalfLifeHours.Semantic,
			types.CategoryProcedural: cfg.HalfLifeHours.Procedural,
		},
		BoostCoefficient: cfg.BoostCoefficient,
	}
}

// Store embeds and persists new content, then appends it to the journal.
// The journal is the durable ledger of record: a failed append after a
// successful insert is surfaced as an error naming the stored record, not
// swallowed.
func (s *Service) Store(ctx context.Context, in types.StoreInput) (types.StoreResult, error) {
	if strings.TrimSpace(in.Content) == "" {
		return types.StoreResult{}, errors.New("content must not be empty")
	}
	cat := types.ParseCategory(in.Category)

	vec, err := s.embedder.Embed(ctx, in.Content)
	if err != nil {
		return types.StoreResult{}, fmt.Errorf("embed content: %w", err)
	}

	now := time.Now().UTC()
	rec := types.MemoryRecord{
		ID:           uuid.NewString(),
		Text:         in.Content,
		Category:     cat,
		Vector:       vec,
		CreatedAt:    now,
		LastAccessed: now,
		AccessCount:  1,
		BaseStrength: 1.0,
	}
	if err := s.store.InsertMemory(ctx, rec); err != nil {
		return types.StoreResult{}, fmt.Errorf("insert memory: %w", err)
	}

	meta := map[string]any{"type": "user_observation", "category": cat.String()}
	if err := s.archive.Append(in.Content, meta); err != nil {
		s.logger.Error("journal append failed after successful insert", "id", rec.ID, "error", err)
		return types.StoreResult{Record: rec}, fmt.Errorf("memory %s stored but journal append failed: %w", rec.ID, err)
	}

	s.logger.Debug("stored memory", "id", rec.ID, "category", cat)
	return types.StoreResult{
		Record:  rec,
		Message: fmt.Sprintf("Stored as %s memory.", cat),
	}, nil
}

// Recall runs similarity retrieval gated by decay strength. Strength is a
// filter, not a ranking key: survivors keep the similarity order from the
// index. Only survivors are reinforced, and the strengths returned are
// the pre-reinforcement values that were actually compared against the
// threshold.
func (s *Service) Recall(ctx context.Context, in types.RecallInput) (types.RecallResult, error) {
	if strings.TrimSpace(in.Query) == "" {
		return types.RecallResult{}, errors.New("query must not be empty")
	}

	vec, err := s.embedder.Embed(ctx, in.Query)
	if err != nil {
		return types.RecallResult{}, fmt.Errorf("embed query: %w", err)
	}

	cands, err := s.store.SearchSimilar(ctx, vec, s.cfg.RecallK)
	if err != nil {
		return types.RecallResult{}, fmt.Errorf("search candidates: %w", err)
	}
	if len(cands) == 0 {
		return types.RecallResult{Outcome: types.RecallOutcomeNoMemories}, nil
	}

	now := time.Now().UTC()
	recalled := make([]types.RecalledMemory, 0, len(cands))
	for _, rec := range cands {
		strength := s.params.Strength(rec, now)
		if strength < s.cfg.MinStrength {
			continue
		}
		recalled = append(recalled, types.RecalledMemory{Record: rec, Strength: strength})
	}
	if len(recalled) == 0 {
		return types.RecallResult{Outcome: types.RecallOutcomeFaded}, nil
	}

	// Reinforce by stable identifier: two records with identical text must
	// never be conflated.
	for _, m := range recalled {
		if err := s.store.Reinforce(ctx, m.Record.ID, now); err != nil {
			return types.RecallResult{}, fmt.Errorf("reinforce memory %s: %w", m.Record.ID, err)
		}
	}

	s.logger.Debug("recall complete", "candidates", len(cands), "recalled", len(recalled))
	return types.RecallResult{Outcome: types.RecallOutcomeRecalled, Memories: recalled}, nil
}

// Verify scans the full journal, bypassing decay entirely. It returns the
// most recent matches in chronological order, capped by configuration.
func (s *Service) Verify(ctx context.Context, in types.VerifyInput) (types.VerifyResult, error) {
	keyword := strings.TrimSpace(in.Keyword)
	if keyword == "" {
		return types.VerifyResult{}, errors.New("keyword must not be empty")
	}

	filter := journal.Filter{Keyword: keyword}
	if in.From != "" {
		from, err := parseDay(in.From)
		if err != nil {
			return types.VerifyResult{}, fmt.Errorf("invalid from date %q: %w", in.From, err)
		}
		filter.From = &from
	}
	if in.To != "" {
		to, err := parseDay(in.To)
		if err != nil {
			return types.VerifyResult{}, fmt.Errorf("invalid to date %q: %w", in.To, err)
		}
		until := to.AddDate(0, 0, 1) // inclusive end of day
		filter.Until = &until
	}

	matches, err := s.archive.Search(filter)
	if err != nil {
		if errors.Is(err, journal.ErrNoJournal) {
			return types.VerifyResult{Outcome: types.VerifyOutcomeArchiveEmpty}, nil
		}
		return types.VerifyResult{}, fmt.Errorf("scan archive: %w", err)
	}
	if len(matches) == 0 {
		return types.VerifyResult{Outcome: types.VerifyOutcomeNoMatch}, nil
	}

	if limit := s.cfg.VerifyMatchLimit; len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}
	return types.VerifyResult{Outcome: types.VerifyOutcomeMatches, Entries: matches}, nil
}

// Report summarizes how many records are currently above and below the
// recall threshold.
type Report struct {
	Total  int
	Active int
	Faded  int
}

// DecayReport evaluates every record's strength at the current instant.
// It reads only; nothing is ever deleted for being faded.
func (s *Service) DecayReport(ctx context.Context) (Report, error) {
	recs, err := s.store.AllMemories(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list memories: %w", err)
	}

	now := time.Now().UTC()
	rep := Report{Total: len(recs)}
	for _, rec := range recs {
		if s.params.Strength(rec, now) >= s.cfg.MinStrength {
			rep.Active++
		} else {
			rep.Faded++
		}
	}
	return rep, nil
}

// Params exposes the decay tuning, used by the admin dashboard.
func (s *Service) Params() decay.Params { return s.params }

func parseDay(s string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(s))
}
