// Package instruments loads and caches the upstream's instrument master
// table so ticker lookups and searches never cost a network round trip.
package instruments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apierrors "tradebridge/internal/errors"
	"tradebridge/internal/logging"
	"tradebridge/internal/models"
	"tradebridge/pkg/utils"
)

// Master caches the instrument master table with a freshness window.
// The table is replaced wholesale on refresh; individual records are never
// partially updated.
type Master struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client
	store      *SnapshotStore
	logger     zerolog.Logger
	now        func() time.Time

	mu       sync.RWMutex
	table    map[string]models.InstrumentRecord
	loadedAt time.Time
}

// MasterConfig holds configuration for the instrument master cache.
type MasterConfig struct {
	URL     string
	TTL     time.Duration
	Store   *SnapshotStore // optional; enables offline startup
	Logger  zerolog.Logger
	Timeout time.Duration
}

// NewMaster creates an instrument master cache. If a snapshot store is
// configured, the last persisted table is restored so lookups work before
// the first download and across restarts.
func NewMaster(cfg MasterConfig) *Master {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	m := &Master{
		url:        cfg.URL,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: timeout},
		store:      cfg.Store,
		logger:     cfg.Logger,
		now:        time.Now,
		table:      make(map[string]models.InstrumentRecord),
	}

	if m.store != nil {
		if table, loadedAt, err := m.store.Load(); err == nil && len(table) > 0 {
			m.table = table
			m.loadedAt = loadedAt
			m.logger.Info().Int("records", len(table)).Time("loaded_at", loadedAt).
				Msg("Instrument master restored from snapshot")
		}
	}

	return m
}

// RefreshIfStale reloads the full instrument table when the freshness
// window has passed. A failed reload leaves the previous stale-but-present
// table in place: the cache never goes empty because the network did.
func (m *Master) RefreshIfStale(ctx context.Context) error {
	m.mu.RLock()
	fresh := !m.loadedAt.IsZero() && m.now().Sub(m.loadedAt) < m.ttl
	hasData := len(m.table) > 0
	loadedAt := m.loadedAt
	m.mu.RUnlock()

	if fresh {
		return nil
	}

	table, err := m.download(ctx)
	if err != nil {
		if hasData {
			logging.LogStaleServe(m.logger, "instrument_master", loadedAt, err)
			return nil
		}
		return apierrors.Wrap(err, "instrument master load failed with no prior data")
	}

	m.mu.Lock()
	m.table = table
	m.loadedAt = m.now()
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Save(table, m.now()); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to persist instrument snapshot")
		}
	}

	m.logger.Info().Int("records", len(table)).Msg("Instrument master refreshed")
	return nil
}

// masterRecord is the upstream symbol master wire format.
type masterRecord struct {
	SymTicker     string  `json:"symTicker"`
	Exchange      int     `json:"exchange"`
	Segment       int     `json:"segment"`
	ExchangeName  string  `json:"exchangeName"`
	SymDetails    string  `json:"symDetails"`
	ExSymName     string  `json:"exSymName"`
	ExSeries      string  `json:"exSeries"`
	MinLotSize    int     `json:"minLotSize"`
	TickSize      float64 `json:"tickSize"`
	ExpiryDate    string  `json:"expiryDate"`
	StrikePrice   float64 `json:"strikePrice"`
	OptType       string  `json:"optType"`
	PreviousClose float64 `json:"previousClose"`
}

func (m *Master) download(ctx context.Context) (map[string]models.InstrumentRecord, error) {
	var raw map[string]masterRecord

	err := utils.Retry(ctx, utils.DefaultRetryConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
		if err != nil {
			return err
		}
		resp, err := m.httpClient.Do(req)
		if err != nil {
			return apierrors.NewNetworkError(http.MethodGet, m.url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("symbol master returned status %d", resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return apierrors.NewNetworkError(http.MethodGet, m.url, err)
		}
		return json.Unmarshal(data, &raw)
	})
	if err != nil {
		return nil, err
	}

	table := make(map[string]models.InstrumentRecord, len(raw))
	for ticker, r := range raw {
		expiry, _ := time.Parse("2006-01-02", r.ExpiryDate)
		table[ticker] = models.InstrumentRecord{
			Ticker:       ticker,
			Exchange:     r.Exchange,
			Segment:      r.Segment,
			ExchangeName: r.ExchangeName,
			Description:  r.SymDetails,
			ShortName:    r.ExSymName,
			Series:       r.ExSeries,
			LotSize:      r.MinLotSize,
			TickSize:     r.TickSize,
			Expiry:       expiry,
			Strike:       r.StrikePrice,
			OptionType:   r.OptType,
			PrevClose:    r.PreviousClose,
		}
	}
	return table, nil
}

// Lookup returns the record for a broker-format ticker, or nil.
func (m *Master) Lookup(ticker string) *models.InstrumentRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if rec, ok := m.table[ticker]; ok {
		return &rec
	}
	return nil
}

// DisplayName returns the human-readable name for a ticker, falling back to
// the ticker itself.
func (m *Master) DisplayName(ticker string) string {
	if rec := m.Lookup(ticker); rec != nil && rec.Description != "" {
		return rec.Description
	}
	return ticker
}

// Search returns up to limit records whose ticker, description, or short
// name contains query, case-insensitively. Results come back in ticker
// order so the same query always cuts off at the same records.
func (m *Master) Search(query string, limit int) []models.InstrumentRecord {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToLower(query)

	m.mu.RLock()
	defer m.mu.RUnlock()

	tickers := make([]string, 0, len(m.table))
	for ticker := range m.table {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	results := make([]models.InstrumentRecord, 0, limit)
	for _, ticker := range tickers {
		if len(results) >= limit {
			break
		}
		rec := m.table[ticker]
		if strings.Contains(strings.ToLower(ticker), q) ||
			strings.Contains(strings.ToLower(rec.Description), q) ||
			strings.Contains(strings.ToLower(rec.ShortName), q) {
			results = append(results, rec)
		}
	}
	return results
}

// Normalize converts a raw symbol to the upstream's convention. Symbols
// already carrying an exchange prefix pass through unchanged.
func (m *Master) Normalize(rawSymbol string) string {
	if strings.Contains(rawSymbol, ":") {
		return rawSymbol
	}
	return "NSE:" + strings.ToUpper(rawSymbol) + "-EQ"
}

// LoadedAt returns when the current table was loaded. Zero when nothing has
// been loaded yet.
func (m *Master) LoadedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadedAt
}

// Size returns the number of cached records.
func (m *Master) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.table)
}

// PopularStocks returns the default watchlist seed in broker format.
func PopularStocks() []string {
	return []string{
		"NSE:RELIANCE-EQ",
		"NSE:TCS-EQ",
		"NSE:INFY-EQ",
		"NSE:HDFCBANK-EQ",
		"NSE:ICICIBANK-EQ",
		"NSE:HINDUNILVR-EQ",
		"NSE:ITC-EQ",
		"NSE:KOTAKBANK-EQ",
		"NSE:LT-EQ",
		"NSE:BHARTIARTL-EQ",
	}
}
