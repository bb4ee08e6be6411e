package instruments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tradebridge/internal/models"
)

var sampleMaster = map[string]map[string]interface{}{
	"NSE:SBIN-EQ": {
		"symTicker":  "NSE:SBIN-EQ",
		"exchange":   10,
		"segment":    10,
		"symDetails": "STATE BANK OF INDIA",
		"exSymName":  "SBIN",
		"exSeries":   "EQ",
		"minLotSize": 1,
		"tickSize":   0.05,
	},
	"NSE:SBILIFE-EQ": {
		"symTicker":  "NSE:SBILIFE-EQ",
		"exchange":   10,
		"segment":    10,
		"symDetails": "SBI LIFE INSURANCE",
		"exSymName":  "SBILIFE",
		"exSeries":   "EQ",
		"minLotSize": 1,
		"tickSize":   0.05,
	},
	"NSE:RELIANCE-EQ": {
		"symTicker":  "NSE:RELIANCE-EQ",
		"exchange":   10,
		"segment":    10,
		"symDetails": "RELIANCE INDUSTRIES",
		"exSymName":  "RELIANCE",
		"exSeries":   "EQ",
		"minLotSize": 1,
		"tickSize":   0.05,
	},
}

// newTestMaster returns a master pointed at a stub symbol master endpoint.
// The failing flag flips the endpoint into hard failure.
func newTestMaster(t *testing.T, failing *atomic.Bool) *Master {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing != nil && failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(sampleMaster)
	}))
	t.Cleanup(server.Close)

	return NewMaster(MasterConfig{
		URL:    server.URL,
		TTL:    24 * time.Hour,
		Logger: zerolog.Nop(),
	})
}

func TestRefreshLoadsTable(t *testing.T) {
	m := newTestMaster(t, nil)

	if err := m.RefreshIfStale(context.Background()); err != nil {
		t.Fatalf("RefreshIfStale failed: %v", err)
	}

	if m.Size() != 3 {
		t.Errorf("expected 3 records, got %d", m.Size())
	}
	rec := m.Lookup("NSE:SBIN-EQ")
	if rec == nil {
		t.Fatal("SBIN lookup failed")
	}
	if rec.Description != "STATE BANK OF INDIA" {
		t.Errorf("unexpected description %q", rec.Description)
	}
}

func TestRefreshSkipsWhenFresh(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		json.NewEncoder(w).Encode(sampleMaster)
	}))
	defer server.Close()

	m := NewMaster(MasterConfig{URL: server.URL, TTL: 24 * time.Hour, Logger: zerolog.Nop()})

	ctx := context.Background()
	if err := m.RefreshIfStale(ctx); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if err := m.RefreshIfStale(ctx); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}

	if atomic.LoadInt64(&calls) != 1 {
		t.Errorf("fresh table must not be redownloaded, got %d downloads", calls)
	}
}

func TestRefreshServesStaleOnFailedReload(t *testing.T) {
	var failing atomic.Bool
	m := newTestMaster(t, &failing)

	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	if err := m.RefreshIfStale(ctx); err != nil {
		t.Fatalf("initial load failed: %v", err)
	}
	loadedAt := m.LoadedAt()

	// 25 hours later the table is stale and the reload fails.
	now = now.Add(25 * time.Hour)
	failing.Store(true)

	if err := m.RefreshIfStale(ctx); err != nil {
		t.Fatalf("failed reload with prior data must not error, got %v", err)
	}
	if m.Size() != 3 {
		t.Errorf("stale table must survive a failed reload, got %d records", m.Size())
	}
	if !m.LoadedAt().Equal(loadedAt) {
		t.Errorf("loadedAt must not advance on failed reload")
	}
	if m.Lookup("NSE:SBIN-EQ") == nil {
		t.Error("stale lookups must keep working")
	}
}

func TestRefreshErrorsWithoutPriorData(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	m := newTestMaster(t, &failing)

	if err := m.RefreshIfStale(context.Background()); err == nil {
		t.Fatal("expected error when first load fails with no prior data")
	}
	if m.Size() != 0 {
		t.Errorf("table should stay empty, got %d records", m.Size())
	}
}

func TestSearch(t *testing.T) {
	m := newTestMaster(t, nil)
	if err := m.RefreshIfStale(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	// Case-insensitive substring over ticker, description, and short name.
	results := m.Search("sbi", 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 matches for 'sbi', got %d", len(results))
	}

	results = m.Search("state bank", 10)
	if len(results) != 1 {
		t.Fatalf("expected 1 match on description, got %d", len(results))
	}

	// Limit cuts the result set.
	results = m.Search("e", 1)
	if len(results) != 1 {
		t.Errorf("limit not applied, got %d results", len(results))
	}

	if results := m.Search("zzz", 10); len(results) != 0 {
		t.Errorf("expected no matches, got %d", len(results))
	}
}

func TestSearchOrderIsStable(t *testing.T) {
	m := newTestMaster(t, nil)
	if err := m.RefreshIfStale(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	// Ticker order, so the cut-off under a limit is deterministic.
	for i := 0; i < 20; i++ {
		results := m.Search("sbi", 1)
		if len(results) != 1 || results[0].Ticker != "NSE:SBILIFE-EQ" {
			t.Fatalf("run %d: expected NSE:SBILIFE-EQ under limit 1, got %+v", i, results)
		}
	}

	results := m.Search("sbi", 10)
	if len(results) != 2 || results[0].Ticker != "NSE:SBILIFE-EQ" || results[1].Ticker != "NSE:SBIN-EQ" {
		t.Fatalf("expected [NSE:SBILIFE-EQ NSE:SBIN-EQ], got %+v", results)
	}
}

func TestNormalize(t *testing.T) {
	m := NewMaster(MasterConfig{Logger: zerolog.Nop()})

	tests := []struct {
		in   string
		want string
	}{
		{"sbin", "NSE:SBIN-EQ"},
		{"RELIANCE", "NSE:RELIANCE-EQ"},
		{"NSE:NIFTY50-INDEX", "NSE:NIFTY50-INDEX"},
		{"BSE:SENSEX-INDEX", "BSE:SENSEX-INDEX"},
	}
	for _, tt := range tests {
		if got := m.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	store, err := NewSnapshotStore(filepath.Join(t.TempDir(), "instruments.db"))
	if err != nil {
		t.Fatalf("NewSnapshotStore failed: %v", err)
	}
	defer store.Close()

	loadedAt := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	table := map[string]models.InstrumentRecord{
		"NSE:SBIN-EQ": {
			Ticker:      "NSE:SBIN-EQ",
			Exchange:    10,
			Segment:     10,
			Description: "STATE BANK OF INDIA",
			ShortName:   "SBIN",
			Series:      "EQ",
			LotSize:     1,
			TickSize:    0.05,
		},
	}

	if err := store.Save(table, loadedAt); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored, at, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(restored) != 1 {
		t.Fatalf("expected 1 record, got %d", len(restored))
	}
	if !at.Equal(loadedAt) {
		t.Errorf("loadedAt mismatch: got %v, want %v", at, loadedAt)
	}
	rec := restored["NSE:SBIN-EQ"]
	if rec.Description != "STATE BANK OF INDIA" || rec.TickSize != 0.05 {
		t.Errorf("record mismatch: %+v", rec)
	}
}

func TestMasterRestoresFromSnapshot(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "instruments.db")

	store, err := NewSnapshotStore(dbPath)
	if err != nil {
		t.Fatalf("NewSnapshotStore failed: %v", err)
	}
	loadedAt := time.Now().Add(-1 * time.Hour)
	err = store.Save(map[string]models.InstrumentRecord{
		"NSE:SBIN-EQ": {Ticker: "NSE:SBIN-EQ", Description: "STATE BANK OF INDIA"},
	}, loadedAt)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	store.Close()

	store2, err := NewSnapshotStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store2.Close()

	m := NewMaster(MasterConfig{
		URL:    "http://127.0.0.1:1", // must not be needed
		TTL:    24 * time.Hour,
		Store:  store2,
		Logger: zerolog.Nop(),
	})

	if m.Size() != 1 {
		t.Errorf("expected snapshot restore, got %d records", m.Size())
	}
	if m.DisplayName("NSE:SBIN-EQ") != "STATE BANK OF INDIA" {
		t.Errorf("restored lookup failed")
	}
}
