// Package models provides domain models for the broker integration layer.
package models

import (
	"time"
)

// SessionState represents the lifecycle state of a broker session.
type SessionState string

const (
	SessionUnauthenticated SessionState = "unauthenticated"
	SessionAuthenticated   SessionState = "authenticated"
	SessionExpired         SessionState = "expired"
)

// MarketStatus represents the status of a single exchange segment.
type MarketStatus struct {
	Exchange   int    // 10=NSE, 11=MCX, 12=BSE
	Segment    int    // 10=Equity, 11=F&O, 12=Currency, 20=Commodity
	MarketType string // NORMAL, ODD_LOT, AUCTION, ...
	Status     string // OPEN, CLOSE, PREOPEN, ...
}

// Quote represents an immutable market quote snapshot. A new Quote replaces
// the previous one for the same symbol; fields are never merged.
type Quote struct {
	Symbol        string
	LTP           float64
	Open          float64
	High          float64
	Low           float64
	PrevClose     float64
	Change        float64
	ChangePercent float64
	Volume        int64
	Bid           float64
	Ask           float64
	Timestamp     time.Time
}

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Tick represents a real-time push-channel update. It carries the same shape
// as a Quote so consumers need no branching between poll and push origins.
type Tick struct {
	Symbol        string
	LTP           float64
	Open          float64
	High          float64
	Low           float64
	PrevClose     float64
	Change        float64
	ChangePercent float64
	Volume        int64
	Bid           float64
	Ask           float64
	Timestamp     time.Time
}

// QuoteFromTick converts a push-channel tick into the uniform quote shape.
func QuoteFromTick(t Tick) Quote {
	return Quote{
		Symbol:        t.Symbol,
		LTP:           t.LTP,
		Open:          t.Open,
		High:          t.High,
		Low:           t.Low,
		PrevClose:     t.PrevClose,
		Change:        t.Change,
		ChangePercent: t.ChangePercent,
		Volume:        t.Volume,
		Bid:           t.Bid,
		Ask:           t.Ask,
		Timestamp:     t.Timestamp,
	}
}

// InstrumentRecord represents one row of the instrument master table.
// Records are loaded in bulk; the whole table is replaced on refresh.
type InstrumentRecord struct {
	Ticker       string // broker-format ticker, the table key
	Exchange     int
	Segment      int
	ExchangeName string
	Description  string
	ShortName    string
	Series       string
	LotSize      int
	TickSize     float64
	Expiry       time.Time
	Strike       float64
	OptionType   string // CE, PE or empty
	PrevClose    float64
}
