// Package quotes provides uniform quote access regardless of polling or
// push origin. The aggregator is stateless between calls and holds no
// cache; callers that want caching do it themselves.
package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tradebridge/internal/broker"
	"tradebridge/internal/models"
)

// Normalizer converts a raw symbol to the upstream's symbol convention.
type Normalizer interface {
	Normalize(rawSymbol string) string
}

// Aggregator answers single and batched quote lookups. Failures degrade to
// nil rather than errors so callers can show a "no data" state without
// exception handling.
type Aggregator struct {
	broker    broker.Broker
	normalize Normalizer
	logger    zerolog.Logger
}

// NewAggregator creates a quote aggregator. normalize may be nil, in which
// case symbols are passed through unchanged.
func NewAggregator(b broker.Broker, normalize Normalizer, logger zerolog.Logger) *Aggregator {
	return &Aggregator{broker: b, normalize: normalize, logger: logger}
}

func (a *Aggregator) toBrokerSymbol(symbol string) string {
	if a.normalize == nil {
		return symbol
	}
	return a.normalize.Normalize(symbol)
}

// GetQuote fetches a quote for one symbol in a single round trip. It
// returns nil when the upstream has no data or the lookup failed; read
// failures are logged, never surfaced.
func (a *Aggregator) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	brokerSymbol := a.toBrokerSymbol(symbol)

	result, err := a.broker.GetQuotes(ctx, []string{brokerSymbol})
	if err != nil {
		a.logger.Warn().Err(err).Str("symbol", symbol).Msg("Quote lookup failed")
		return nil, nil
	}

	q, ok := result[brokerSymbol]
	if !ok {
		return nil, nil
	}
	q.Symbol = symbol
	return &q, nil
}

// IndexSymbols maps dashboard index names to upstream tickers.
var IndexSymbols = map[string]string{
	"NIFTY":  "NSE:NIFTY50-INDEX",
	"SENSEX": "BSE:SENSEX-INDEX",
}

// GetIndexQuotes fetches quotes for the dashboard's index headers in one
// batch. Every requested name is present in the result; a name the
// upstream could not resolve maps to nil.
func (a *Aggregator) GetIndexQuotes(ctx context.Context, names []string) map[string]*models.Quote {
	out := make(map[string]*models.Quote, len(names))
	tickers := make([]string, 0, len(names))
	byTicker := make(map[string]string, len(names))

	for _, name := range names {
		out[name] = nil
		ticker, ok := IndexSymbols[name]
		if !ok {
			ticker = a.toBrokerSymbol(name)
		}
		tickers = append(tickers, ticker)
		byTicker[ticker] = name
	}

	result, err := a.broker.GetQuotes(ctx, tickers)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Index quote lookup failed")
		return out
	}

	for ticker, q := range result {
		name, ok := byTicker[ticker]
		if !ok {
			continue
		}
		quote := q
		quote.Symbol = name
		out[name] = &quote
	}
	return out
}

// GetMarketStatus fetches market status, degrading to the default
// all-closed set when the upstream cannot be asked.
func (a *Aggregator) GetMarketStatus(ctx context.Context) []models.MarketStatus {
	statuses, err := a.broker.GetMarketStatus(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Market status lookup failed, reporting closed")
		return broker.DefaultClosedStatus()
	}
	return statuses
}

// Subscription is the cancellation handle for a polling subscription.
// Callers must Stop it on teardown: a leaked timer is the bug class this
// handle exists to prevent.
type Subscription struct {
	stop chan struct{}
	once sync.Once
}

// Stop cancels the subscription. Safe to call more than once.
func (s *Subscription) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// Poll fetches symbol's quote every interval and delivers the result to fn,
// including the initial fetch. fn receives nil when no data is available.
// All call sites share this one helper instead of scattering timer logic.
func (a *Aggregator) Poll(ctx context.Context, symbol string, interval time.Duration, fn func(*models.Quote)) *Subscription {
	sub := &Subscription{stop: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		deliver := func() {
			q, _ := a.GetQuote(ctx, symbol)
			select {
			case <-sub.stop:
				// Cancelled while the fetch was in flight; discard.
			case <-ctx.Done():
			default:
				fn(q)
			}
		}

		deliver()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.stop:
				return
			case <-ticker.C:
				deliver()
			}
		}
	}()

	return sub
}
