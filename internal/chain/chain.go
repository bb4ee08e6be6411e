// Package chain assembles option chains from raw upstream legs and
// synthesizes plausible chains when the upstream is unreachable, so the UI
// always has a strike-sorted chain to render.
package chain

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"

	"tradebridge/internal/models"
)

// synthStrikes is the number of strikes a synthesized chain carries:
// three below the rounded reference price, the rounded price, three above.
const synthStrikes = 7

// LegSource fetches ungrouped option legs from the upstream.
type LegSource interface {
	GetOptionChainRaw(ctx context.Context, symbol string, strikeCount int) ([]models.OptionLeg, error)
}

// ReferenceSource resolves a current reference price for an underlying.
// A nil quote with a nil error means the upstream has no data.
type ReferenceSource interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// Synthesizer builds option chains. The primary path groups live legs; the
// fallback path fabricates a chain so the UI never sees a hard failure.
// Fabricated data is always tagged SourceSynthetic.
type Synthesizer struct {
	legs   LegSource
	ref    ReferenceSource
	rng    *rand.Rand
	logger zerolog.Logger
}

// NewSynthesizer creates a chain synthesizer.
func NewSynthesizer(legs LegSource, ref ReferenceSource, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		legs:   legs,
		ref:    ref,
		rng:    rand.New(rand.NewSource(rand.Int63())),
		logger: logger,
	}
}

// GetChain returns a strike-sorted option chain for symbol. A failed
// upstream fetch triggers the synthetic fallback; an empty-but-successful
// result does not.
func (s *Synthesizer) GetChain(ctx context.Context, symbol string, strikeCount int) *models.OptionChain {
	legs, err := s.legs.GetOptionChainRaw(ctx, symbol, strikeCount)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Option chain fetch failed, synthesizing")
		return s.synthesize(ctx, symbol)
	}

	return &models.OptionChain{
		Symbol: symbol,
		Rows:   GroupLegs(legs),
		Source: models.SourceLive,
	}
}

// GroupLegs groups raw legs by strike into paired call/put rows, ascending
// by strike. A strike appears only when both a call and a put leg exist for
// it; asymmetric data is dropped rather than shown half-filled.
func GroupLegs(legs []models.OptionLeg) []models.OptionChainRow {
	type pair struct {
		call *models.OptionLeg
		put  *models.OptionLeg
	}
	byStrike := make(map[float64]*pair)

	for i := range legs {
		leg := legs[i]
		p, ok := byStrike[leg.Strike]
		if !ok {
			p = &pair{}
			byStrike[leg.Strike] = p
		}
		switch leg.Kind {
		case models.OptionCall:
			p.call = &legs[i]
		case models.OptionPut:
			p.put = &legs[i]
		}
	}

	rows := make([]models.OptionChainRow, 0, len(byStrike))
	for strike, p := range byStrike {
		if p.call == nil || p.put == nil {
			continue
		}
		rows = append(rows, models.OptionChainRow{
			Strike:     strike,
			CallLTP:    p.call.LTP,
			CallChange: p.call.Change,
			CallOI:     p.call.OpenInterest,
			PutLTP:     p.put.LTP,
			PutChange:  p.put.Change,
			PutOI:      p.put.OpenInterest,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Strike < rows[j].Strike
	})
	return rows
}

// synthesize fabricates a chain centered on the best reference price it can
// still reach: live quote first, then the static per-symbol default table.
func (s *Synthesizer) synthesize(ctx context.Context, symbol string) *models.OptionChain {
	ref := 0.0
	if s.ref != nil {
		if quote, err := s.ref.GetQuote(ctx, symbol); err == nil && quote != nil {
			ref = quote.LTP
		}
	}
	if ref <= 0 {
		ref = DefaultPrice(symbol)
	}

	interval := StrikeInterval(symbol)
	base := math.Round(ref/interval) * interval

	rows := make([]models.OptionChainRow, 0, synthStrikes)
	for i := -synthStrikes / 2; i <= synthStrikes/2; i++ {
		rows = append(rows, models.OptionChainRow{
			Strike:     base + float64(i)*interval,
			CallLTP:    s.rng.Float64()*100 + 10,
			CallChange: (s.rng.Float64() - 0.5) * 10,
			CallOI:     int64(s.rng.Intn(5000000)),
			PutLTP:     s.rng.Float64()*100 + 10,
			PutChange:  (s.rng.Float64() - 0.5) * 10,
			PutOI:      int64(s.rng.Intn(5000000)),
		})
	}

	return &models.OptionChain{
		Symbol: symbol,
		Rows:   rows,
		Source: models.SourceSynthetic,
	}
}

// DefaultPrice returns the static fallback reference price for a symbol.
func DefaultPrice(symbol string) float64 {
	prices := map[string]float64{
		"NIFTY":      24850,
		"BANKNIFTY":  51200,
		"TCS":        3880,
		"RELIANCE":   2850,
	}
	if p, ok := prices[symbol]; ok {
		return p
	}
	return 24850
}

// StrikeInterval returns the strike spacing for a symbol's options.
func StrikeInterval(symbol string) float64 {
	intervals := map[string]float64{
		"NIFTY":     50,
		"BANKNIFTY": 100,
		"TCS":       20,
		"RELIANCE":  50,
	}
	if iv, ok := intervals[symbol]; ok {
		return iv
	}
	return 50
}
