package quotes

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tradebridge/internal/broker"
	"tradebridge/internal/models"
)

// stubBroker implements broker.Broker for aggregator tests. Only the quote
// and status paths carry behavior; everything else is a zero stub.
type stubBroker struct {
	quotes     map[string]models.Quote
	quotesErr  error
	statuses   []models.MarketStatus
	statusErr  error
	quoteCalls int64
}

func (s *stubBroker) GetAuthURL(state string) string                         { return "" }
func (s *stubBroker) Authenticate(ctx context.Context, code string) error    { return nil }
func (s *stubBroker) Logout(ctx context.Context) error                       { return nil }
func (s *stubBroker) IsAuthenticated() bool                                  { return true }
func (s *stubBroker) SessionState() models.SessionState                      { return models.SessionAuthenticated }
func (s *stubBroker) GetProfile(ctx context.Context) (*broker.Profile, error) { return nil, nil }

func (s *stubBroker) GetQuotes(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	atomic.AddInt64(&s.quoteCalls, 1)
	if s.quotesErr != nil {
		return nil, s.quotesErr
	}
	out := make(map[string]models.Quote)
	for _, sym := range symbols {
		if q, ok := s.quotes[sym]; ok {
			out[sym] = q
		}
	}
	return out, nil
}

func (s *stubBroker) GetHistory(ctx context.Context, req broker.HistoryRequest) ([]models.Candle, error) {
	return nil, nil
}

func (s *stubBroker) GetMarketStatus(ctx context.Context) ([]models.MarketStatus, error) {
	return s.statuses, s.statusErr
}

func (s *stubBroker) GetMarketDepth(ctx context.Context, symbol string) (*models.MarketDepth, error) {
	return nil, nil
}

func (s *stubBroker) GetOptionChainRaw(ctx context.Context, symbol string, strikeCount int) ([]models.OptionLeg, error) {
	return nil, nil
}

func (s *stubBroker) PlaceOrder(ctx context.Context, req models.OrderRequest) (*broker.OrderResult, error) {
	return nil, nil
}

func (s *stubBroker) GetOrders(ctx context.Context, filter broker.OrderFilter) ([]models.Order, error) {
	return nil, nil
}

func (s *stubBroker) GetPositions(ctx context.Context) ([]models.Position, error) { return nil, nil }
func (s *stubBroker) GetHoldings(ctx context.Context) ([]models.Holding, error)   { return nil, nil }
func (s *stubBroker) GetFunds(ctx context.Context) ([]models.FundLimit, error)    { return nil, nil }

var _ broker.Broker = (*stubBroker)(nil)

func TestGetQuoteReturnsNilOnError(t *testing.T) {
	sb := &stubBroker{quotesErr: errors.New("upstream down")}
	a := NewAggregator(sb, nil, zerolog.Nop())

	q, err := a.GetQuote(context.Background(), "NSE:SBIN-EQ")
	if err != nil {
		t.Fatalf("read failures must not surface as errors, got %v", err)
	}
	if q != nil {
		t.Errorf("expected nil quote, got %+v", q)
	}
}

func TestGetQuoteReturnsNilOnMissingSymbol(t *testing.T) {
	sb := &stubBroker{quotes: map[string]models.Quote{}}
	a := NewAggregator(sb, nil, zerolog.Nop())

	q, err := a.GetQuote(context.Background(), "NSE:NOPE-EQ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q != nil {
		t.Errorf("expected nil for unresolved symbol, got %+v", q)
	}
}

func TestGetQuoteSuccess(t *testing.T) {
	sb := &stubBroker{quotes: map[string]models.Quote{
		"NSE:SBIN-EQ": {Symbol: "NSE:SBIN-EQ", LTP: 830.5},
	}}
	a := NewAggregator(sb, nil, zerolog.Nop())

	q, err := a.GetQuote(context.Background(), "NSE:SBIN-EQ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q == nil || q.LTP != 830.5 {
		t.Errorf("expected LTP 830.5, got %+v", q)
	}
}

func TestGetIndexQuotesIndependentResults(t *testing.T) {
	// NIFTY resolves, SENSEX does not: both names must still be present.
	sb := &stubBroker{quotes: map[string]models.Quote{
		"NSE:NIFTY50-INDEX": {Symbol: "NSE:NIFTY50-INDEX", LTP: 24850},
	}}
	a := NewAggregator(sb, nil, zerolog.Nop())

	result := a.GetIndexQuotes(context.Background(), []string{"NIFTY", "SENSEX"})

	if len(result) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result))
	}
	if result["NIFTY"] == nil || result["NIFTY"].LTP != 24850 {
		t.Errorf("NIFTY should resolve, got %+v", result["NIFTY"])
	}
	if result["NIFTY"].Symbol != "NIFTY" {
		t.Errorf("quote symbol should be the dashboard name, got %s", result["NIFTY"].Symbol)
	}
	if result["SENSEX"] != nil {
		t.Errorf("SENSEX should be nil, got %+v", result["SENSEX"])
	}

	if atomic.LoadInt64(&sb.quoteCalls) != 1 {
		t.Errorf("index quotes must go out in one batch, got %d calls", sb.quoteCalls)
	}
}

func TestGetIndexQuotesAllNilOnFailure(t *testing.T) {
	sb := &stubBroker{quotesErr: errors.New("upstream down")}
	a := NewAggregator(sb, nil, zerolog.Nop())

	result := a.GetIndexQuotes(context.Background(), []string{"NIFTY", "SENSEX"})

	if len(result) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result))
	}
	for name, q := range result {
		if q != nil {
			t.Errorf("%s should be nil after batch failure, got %+v", name, q)
		}
	}
}

func TestGetMarketStatusDegradesToClosed(t *testing.T) {
	sb := &stubBroker{statusErr: errors.New("upstream down")}
	a := NewAggregator(sb, nil, zerolog.Nop())

	statuses := a.GetMarketStatus(context.Background())

	if len(statuses) == 0 {
		t.Fatal("expected default closed statuses, got none")
	}
	for _, s := range statuses {
		if s.Status != "CLOSED" {
			t.Errorf("expected CLOSE status, got %s", s.Status)
		}
	}
}

func TestPollDeliversImmediatelyAndStops(t *testing.T) {
	sb := &stubBroker{quotes: map[string]models.Quote{
		"NSE:SBIN-EQ": {Symbol: "NSE:SBIN-EQ", LTP: 830.5},
	}}
	a := NewAggregator(sb, nil, zerolog.Nop())

	delivered := make(chan *models.Quote, 16)
	sub := a.Poll(context.Background(), "NSE:SBIN-EQ", 20*time.Millisecond, func(q *models.Quote) {
		delivered <- q
	})

	// Initial delivery happens without waiting a full interval.
	select {
	case q := <-delivered:
		if q == nil || q.LTP != 830.5 {
			t.Errorf("unexpected initial delivery: %+v", q)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("no initial delivery")
	}

	// At least one periodic delivery follows.
	select {
	case <-delivered:
	case <-time.After(1 * time.Second):
		t.Fatal("no periodic delivery")
	}

	sub.Stop()
	sub.Stop() // idempotent

	// Drain anything in flight, then confirm silence.
	time.Sleep(60 * time.Millisecond)
	for len(delivered) > 0 {
		<-delivered
	}
	select {
	case q := <-delivered:
		t.Errorf("delivery after Stop: %+v", q)
	case <-time.After(100 * time.Millisecond):
	}
}

type upperNormalizer struct{}

func (upperNormalizer) Normalize(raw string) string { return "NSE:" + raw + "-EQ" }

func TestGetQuoteNormalizesSymbol(t *testing.T) {
	sb := &stubBroker{quotes: map[string]models.Quote{
		"NSE:SBIN-EQ": {Symbol: "NSE:SBIN-EQ", LTP: 830.5},
	}}
	a := NewAggregator(sb, upperNormalizer{}, zerolog.Nop())

	q, err := a.GetQuote(context.Background(), "SBIN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q == nil {
		t.Fatal("expected quote after normalization")
	}
	if q.Symbol != "SBIN" {
		t.Errorf("result should carry the caller's symbol, got %s", q.Symbol)
	}
}
