// Package broker provides broker integration interfaces and implementations.
package broker

import (
	"context"
	"time"

	"tradebridge/internal/models"
)

// Broker defines the single point of contact with the upstream brokerage.
// Every other component talks to the upstream through this interface.
//
// All data methods fail fast with errors.ErrNotAuthenticated when no valid
// session exists. None of them re-authenticate silently: a new handshake is
// an explicit user action.
type Broker interface {
	// Authentication
	GetAuthURL(state string) string
	Authenticate(ctx context.Context, authCode string) error
	Logout(ctx context.Context) error
	IsAuthenticated() bool
	SessionState() models.SessionState

	// Market Data
	GetProfile(ctx context.Context) (*Profile, error)
	GetQuotes(ctx context.Context, symbols []string) (map[string]models.Quote, error)
	GetHistory(ctx context.Context, req HistoryRequest) ([]models.Candle, error)
	GetMarketStatus(ctx context.Context) ([]models.MarketStatus, error)
	GetMarketDepth(ctx context.Context, symbol string) (*models.MarketDepth, error)

	// Options. Returns ungrouped legs; grouping into strike rows is the
	// chain package's job.
	GetOptionChainRaw(ctx context.Context, symbol string, strikeCount int) ([]models.OptionLeg, error)

	// Orders & Account
	PlaceOrder(ctx context.Context, req models.OrderRequest) (*OrderResult, error)
	GetOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	GetPositions(ctx context.Context) ([]models.Position, error)
	GetHoldings(ctx context.Context) ([]models.Holding, error)
	GetFunds(ctx context.Context) ([]models.FundLimit, error)
}

// Profile represents the authenticated user's profile.
type Profile struct {
	ID          string
	Name        string
	DisplayName string
	Email       string
}

// HistoryRequest represents a request for historical candles.
type HistoryRequest struct {
	Symbol     string
	Resolution string // "1".."240" minutes, or "D"
	From       time.Time
	To         time.Time
}

// OrderFilter narrows an order book request. Zero value fetches everything.
type OrderFilter struct {
	OrderID string
	Tag     string
}

// OrderResult represents the result of an order placement.
type OrderResult struct {
	OrderID string
	Message string
}
