// Package decay implements the time-dependent scoring that gates recall.
//
// A record's strength is an exponential half-life decay since last access
// plus a logarithmic reinforcement boost from its access count, capped at
// 1.0. The function is pure: no I/O, no side effects, never fails.
package decay

import (
	"math"
	"time"

	"github.com/xiy/decay-mcp/pkg/types"
)

// DefaultBoostCoefficient scales the Hebbian reinforcement term.
const DefaultBoostCoefficient = 0.15

// Default half-lives in hours per category.
const (
	DefaultEpisodicHalfLife   = 24 * 7
	DefaultSemanticHalfLife   = 24 * 30
	DefaultProceduralHalfLife = 24 * 365
)

// Params holds the tunable decay configuration.
type Params struct {
	HalfLifeHours    map[types.Category]float64
	BoostCoefficient float64
}

// DefaultParams returns the historical tuning: one week for episodic,
// one month for semantic, one year for procedural.
func DefaultParams() Params {
	return Params{
		HalfLifeHours: map[types.Category]float64{
			types.CategoryEpisodic:   DefaultEpisodicHalfLife,
			types.CategorySemantic:   DefaultSemanticHalfLife,
			types.CategoryProcedural: DefaultProceduralHalfLife,
		},
		BoostCoefficient: DefaultBoostCoefficient,
	}
}

// HalfLifeFor returns the configured half-life for a category. Unknown
// categories fall back to the episodic half-life.
func (p Params) HalfLifeFor(c types.Category) float64 {
	if hl, ok := p.HalfLifeHours[c]; ok && hl > 0 {
		return hl
	}
	if hl, ok := p.HalfLifeHours[types.CategoryEpisodic]; ok && hl > 0 {
		return hl
	}
	return DefaultEpisodicHalfLife
}

// Strength computes the record's current activation in [0, 1].
//
// Elapsed time is clamped to zero so a backward-skewed clock can never
// score a record above its decay-free maximum. Decay and boost are added
// before the cap: a heavily rehearsed record keeps meaningful strength
// even after the decay term has vanished.
func (p Params) Strength(rec types.MemoryRecord, now time.Time) float64 {
	elapsed := now.Sub(rec.LastAccessed).Hours()
	if elapsed < 0 {
		elapsed = 0
	}

	decayed := math.Exp2(-elapsed / p.HalfLifeFor(rec.Category))
	boost := math.Log1p(float64(rec.AccessCount)) * p.BoostCoefficient

	return math.Min(rec.BaseStrength*(decayed+boost), 1.0)
}
