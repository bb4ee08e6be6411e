// Package broker provides broker integration implementations.
package broker

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apierrors "tradebridge/internal/errors"
	"tradebridge/internal/models"
)

const (
	// defaultQuoteBatchMax is the upstream's per-request symbol limit.
	// Requests beyond it are truncated to the leading symbols, not rejected.
	defaultQuoteBatchMax = 50

	// maxStrikeCount is the upstream's per-request strike limit.
	maxStrikeCount = 50
)

// FyersBroker implements the Broker interface against a Fyers-shaped REST API.
type FyersBroker struct {
	clientID      string
	secretKey     string
	redirectURI   string
	baseURL       string
	httpClient    *http.Client
	sessionPath   string
	quoteBatchMax int
	logger        zerolog.Logger

	accessToken string
	state       models.SessionState
	mu          sync.RWMutex
}

// FyersConfig holds configuration for the Fyers broker client.
type FyersConfig struct {
	ClientID       string
	SecretKey      string
	RedirectURI    string
	BaseURL        string
	SessionPath    string
	RequestTimeout time.Duration
	QuoteBatchMax  int
	Logger         zerolog.Logger
}

// NewFyersBroker creates a new Fyers broker client.
// It automatically loads any saved session from disk.
func NewFyersBroker(cfg FyersConfig) *FyersBroker {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		// The upstream can stall without closing the connection.
		timeout = 10 * time.Second
	}
	batchMax := cfg.QuoteBatchMax
	if batchMax <= 0 {
		batchMax = defaultQuoteBatchMax
	}

	fb := &FyersBroker{
		clientID:      cfg.ClientID,
		secretKey:     cfg.SecretKey,
		redirectURI:   cfg.RedirectURI,
		baseURL:       cfg.BaseURL,
		httpClient:    &http.Client{Timeout: timeout},
		sessionPath:   cfg.SessionPath,
		quoteBatchMax: batchMax,
		logger:        cfg.Logger,
		state:         models.SessionUnauthenticated,
	}

	_ = fb.loadSession()

	return fb
}

// envelope is the upstream's common response wrapper.
type envelope struct {
	S       string `json:"s"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e envelope) ok() bool { return e.S == "ok" }

func (e envelope) brokerError() error {
	return apierrors.NewBrokerError(strconv.Itoa(e.Code), e.Message, nil)
}

// GetAuthURL returns the URL the user must visit to obtain a one-time
// auth code for the handshake.
func (f *FyersBroker) GetAuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", f.clientID)
	q.Set("redirect_uri", f.redirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	return f.baseURL + "/generate-authcode?" + q.Encode()
}

// Authenticate exchanges a one-time auth code for a session credential.
// A failed exchange returns an AuthError; the caller must restart the
// handshake, nothing retries it automatically.
func (f *FyersBroker) Authenticate(ctx context.Context, authCode string) error {
	hash := sha256.Sum256([]byte(f.clientID + ":" + f.secretKey))
	body := map[string]string{
		"grant_type": "authorization_code",
		"appIdHash":  hex.EncodeToString(hash[:]),
		"code":       authCode,
	}

	var resp struct {
		envelope
		AccessToken string `json:"access_token"`
	}
	if err := f.doJSON(ctx, http.MethodPost, "/validate-authcode", nil, body, &resp); err != nil {
		return apierrors.NewAuthError("auth code exchange failed", err)
	}
	if !resp.ok() || resp.AccessToken == "" {
		return apierrors.NewAuthError(resp.Message, apierrors.ErrInvalidAuthCode)
	}

	f.mu.Lock()
	f.accessToken = resp.AccessToken
	f.state = models.SessionAuthenticated
	f.mu.Unlock()

	if err := f.saveSession(resp.AccessToken); err != nil {
		f.logger.Warn().Err(err).Msg("Failed to persist session")
	}

	f.logger.Info().Msg("Session established")
	return nil
}

// Logout invalidates the session and clears stored credentials.
func (f *FyersBroker) Logout(ctx context.Context) error {
	f.mu.Lock()
	authenticated := f.state == models.SessionAuthenticated
	f.mu.Unlock()

	if authenticated {
		var resp envelope
		if err := f.doJSON(ctx, http.MethodPost, "/logout", nil, nil, &resp); err != nil {
			f.logger.Warn().Err(err).Msg("Upstream logout failed, clearing local session anyway")
		}
	}

	f.mu.Lock()
	f.accessToken = ""
	f.state = models.SessionUnauthenticated
	f.mu.Unlock()

	return f.clearSession()
}

// IsAuthenticated returns whether a valid session exists.
func (f *FyersBroker) IsAuthenticated() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state == models.SessionAuthenticated
}

// SessionState returns the current session lifecycle state.
func (f *FyersBroker) SessionState() models.SessionState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

func (f *FyersBroker) requireAuth() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	switch f.state {
	case models.SessionAuthenticated:
		return nil
	case models.SessionExpired:
		return apierrors.ErrSessionExpired
	default:
		return apierrors.ErrNotAuthenticated
	}
}

// expireSession marks the session expired after a 401-equivalent response.
// Re-authentication is an explicit user action, never done here.
func (f *FyersBroker) expireSession() {
	f.mu.Lock()
	if f.state == models.SessionAuthenticated {
		f.state = models.SessionExpired
		f.logger.Warn().Msg("Session expired, re-authentication required")
	}
	f.mu.Unlock()
}

// doJSON performs a request against the upstream and decodes the response
// into out. Transport failures come back as NetworkError; a 401 expires
// the session.
func (f *FyersBroker) doJSON(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := f.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	f.mu.RLock()
	token := f.accessToken
	f.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", f.clientID+":"+token)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return apierrors.NewNetworkError(method, u, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierrors.NewNetworkError(method, u, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		f.expireSession()
		return apierrors.ErrSessionExpired
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	f.logger.Debug().
		Str("method", method).
		Str("path", path).
		Dur("duration", time.Since(start)).
		Msg("Upstream call")

	return nil
}

// GetProfile fetches the authenticated user's profile.
func (f *FyersBroker) GetProfile(ctx context.Context) (*Profile, error) {
	if err := f.requireAuth(); err != nil {
		return nil, err
	}

	var resp struct {
		envelope
		Data struct {
			FyID        string `json:"fy_id"`
			Name        string `json:"name"`
			DisplayName string `json:"display_name"`
			EmailID     string `json:"email_id"`
		} `json:"data"`
	}
	if err := f.doJSON(ctx, http.MethodGet, "/profile", nil, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.brokerError()
	}

	return &Profile{
		ID:          resp.Data.FyID,
		Name:        resp.Data.Name,
		DisplayName: resp.Data.DisplayName,
		Email:       resp.Data.EmailID,
	}, nil
}

// quoteValue is the upstream's per-symbol quote payload.
type quoteValue struct {
	LP        float64 `json:"lp"`
	OpenPrice float64 `json:"open_price"`
	HighPrice float64 `json:"high_price"`
	LowPrice  float64 `json:"low_price"`
	PrevClose float64 `json:"prev_close_price"`
	Ch        float64 `json:"ch"`
	Chp       float64 `json:"chp"`
	Volume    int64   `json:"volume"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	TT        int64   `json:"tt"`
}

func (v quoteValue) toQuote(symbol string) models.Quote {
	return models.Quote{
		Symbol:        symbol,
		LTP:           v.LP,
		Open:          v.OpenPrice,
		High:          v.HighPrice,
		Low:           v.LowPrice,
		PrevClose:     v.PrevClose,
		Change:        v.Ch,
		ChangePercent: v.Chp,
		Volume:        v.Volume,
		Bid:           v.Bid,
		Ask:           v.Ask,
		Timestamp:     time.Unix(v.TT, 0),
	}
}

// GetQuotes fetches quotes for up to 50 symbols in one round trip. Longer
// requests are truncated to the first 50. Symbols the upstream failed to
// resolve are simply absent from the result map.
func (f *FyersBroker) GetQuotes(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	if err := f.requireAuth(); err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return map[string]models.Quote{}, nil
	}
	if len(symbols) > f.quoteBatchMax {
		f.logger.Debug().Int("requested", len(symbols)).Msg("Truncating quote batch")
		symbols = symbols[:f.quoteBatchMax]
	}

	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))

	var resp struct {
		envelope
		D []struct {
			N string     `json:"n"`
			S string     `json:"s"`
			V quoteValue `json:"v"`
		} `json:"d"`
	}
	if err := f.doJSON(ctx, http.MethodGet, "/data/quotes", q, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.brokerError()
	}

	quotes := make(map[string]models.Quote, len(resp.D))
	for _, item := range resp.D {
		if item.S != "ok" || item.N == "" {
			continue
		}
		quotes[item.N] = item.V.toQuote(item.N)
	}
	return quotes, nil
}

// GetHistory fetches historical candles. The upstream returns a compact
// tuple array [ts, open, high, low, close, volume]; the result is
// oldest-first with no gap filling.
func (f *FyersBroker) GetHistory(ctx context.Context, req HistoryRequest) ([]models.Candle, error) {
	if err := f.requireAuth(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("symbol", req.Symbol)
	q.Set("resolution", req.Resolution)
	q.Set("date_format", "0")
	q.Set("range_from", strconv.FormatInt(req.From.Unix(), 10))
	q.Set("range_to", strconv.FormatInt(req.To.Unix(), 10))
	q.Set("cont_flag", "1")

	var resp struct {
		envelope
		Candles [][]float64 `json:"candles"`
	}
	if err := f.doJSON(ctx, http.MethodGet, "/data/history", q, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.brokerError()
	}

	candles := make([]models.Candle, 0, len(resp.Candles))
	for _, c := range resp.Candles {
		if len(c) < 6 {
			continue
		}
		candles = append(candles, models.Candle{
			Timestamp: time.Unix(int64(c[0]), 0),
			Open:      c[1],
			High:      c[2],
			Low:       c[3],
			Close:     c[4],
			Volume:    int64(c[5]),
		})
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

// GetOptionChainRaw fetches the ungrouped option legs for a symbol.
// Grouping legs into strike rows is deliberately not done here.
func (f *FyersBroker) GetOptionChainRaw(ctx context.Context, symbol string, strikeCount int) ([]models.OptionLeg, error) {
	if err := f.requireAuth(); err != nil {
		return nil, err
	}
	if strikeCount > maxStrikeCount {
		strikeCount = maxStrikeCount
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("strikecount", strconv.Itoa(strikeCount))

	var resp struct {
		envelope
		Data struct {
			OptionsChain []struct {
				Symbol      string  `json:"symbol"`
				StrikePrice float64 `json:"strike_price"`
				OptionType  string  `json:"option_type"`
				LTP         float64 `json:"ltp"`
				LTPCh       float64 `json:"ltpch"`
				OI          int64   `json:"oi"`
			} `json:"optionsChain"`
		} `json:"data"`
	}
	if err := f.doJSON(ctx, http.MethodGet, "/data/options-chain-v3", q, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.brokerError()
	}

	legs := make([]models.OptionLeg, 0, len(resp.Data.OptionsChain))
	for _, o := range resp.Data.OptionsChain {
		var kind models.OptionKind
		switch o.OptionType {
		case "CE":
			kind = models.OptionCall
		case "PE":
			kind = models.OptionPut
		default:
			// The underlying row carries an empty option_type.
			continue
		}
		legs = append(legs, models.OptionLeg{
			Symbol:       o.Symbol,
			Strike:       o.StrikePrice,
			Kind:         kind,
			LTP:          o.LTP,
			Change:       o.LTPCh,
			OpenInterest: o.OI,
		})
	}
	return legs, nil
}

// PlaceOrder places a new order. Failures propagate untouched and are never
// retried here: a duplicated financial side effect is worse than a failed one.
func (f *FyersBroker) PlaceOrder(ctx context.Context, req models.OrderRequest) (*OrderResult, error) {
	if err := f.requireAuth(); err != nil {
		return nil, err
	}

	productType := req.ProductType
	if productType == "" {
		productType = "INTRADAY"
	}

	body := map[string]interface{}{
		"symbol":       req.Symbol,
		"qty":          req.Qty,
		"type":         int(req.Type),
		"side":         int(req.Side),
		"productType":  productType,
		"limitPrice":   req.LimitPrice,
		"stopPrice":    req.StopPrice,
		"validity":     "DAY",
		"disclosedQty": 0,
		"offlineOrder": false,
	}

	var resp struct {
		envelope
		ID string `json:"id"`
	}
	if err := f.doJSON(ctx, http.MethodPost, "/orders/sync", nil, body, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.brokerError()
	}

	return &OrderResult{OrderID: resp.ID, Message: resp.Message}, nil
}

// GetOrders fetches the order book, optionally filtered by order ID or tag.
func (f *FyersBroker) GetOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	if err := f.requireAuth(); err != nil {
		return nil, err
	}

	q := url.Values{}
	if filter.OrderID != "" {
		q.Set("id", filter.OrderID)
	} else if filter.Tag != "" {
		q.Set("orderTag", filter.Tag)
	}

	var resp struct {
		envelope
		OrderBook []struct {
			ID           string  `json:"id"`
			ExchOrdID    string  `json:"exchOrdId"`
			Symbol       string  `json:"symbol"`
			Qty          int     `json:"qty"`
			RemainingQty int     `json:"remainingQuantity"`
			FilledQty    int     `json:"filledQty"`
			Status       int     `json:"status"`
			LimitPrice   float64 `json:"limitPrice"`
			StopPrice    float64 `json:"stopPrice"`
			ProductType  string  `json:"productType"`
			Type         int     `json:"type"`
			Side         int     `json:"side"`
			TradedPrice  float64 `json:"tradedPrice"`
			Message      string  `json:"message"`
			Validity     string  `json:"orderValidity"`
			DateTime     string  `json:"orderDateTime"`
			Tag          string  `json:"orderTag"`
		} `json:"orderBook"`
	}
	if err := f.doJSON(ctx, http.MethodGet, "/orders", q, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.brokerError()
	}

	orders := make([]models.Order, len(resp.OrderBook))
	for i, o := range resp.OrderBook {
		orders[i] = models.Order{
			ID:           o.ID,
			ExchOrderID:  o.ExchOrdID,
			Symbol:       o.Symbol,
			Qty:          o.Qty,
			RemainingQty: o.RemainingQty,
			FilledQty:    o.FilledQty,
			Status:       o.Status,
			LimitPrice:   o.LimitPrice,
			StopPrice:    o.StopPrice,
			ProductType:  o.ProductType,
			Type:         models.OrderType(o.Type),
			Side:         models.OrderSide(o.Side),
			TradedPrice:  o.TradedPrice,
			Message:      o.Message,
			Validity:     o.Validity,
			PlacedAt:     o.DateTime,
			Tag:          o.Tag,
		}
	}
	return orders, nil
}

// GetPositions fetches net positions.
func (f *FyersBroker) GetPositions(ctx context.Context) ([]models.Position, error) {
	if err := f.requireAuth(); err != nil {
		return nil, err
	}

	var resp struct {
		envelope
		NetPositions []struct {
			Symbol         string  `json:"symbol"`
			ID             string  `json:"id"`
			NetQty         int     `json:"netQty"`
			NetAvg         float64 `json:"netAvg"`
			BuyQty         int     `json:"buyQty"`
			BuyAvg         float64 `json:"buyAvg"`
			SellQty        int     `json:"sellQty"`
			SellAvg        float64 `json:"sellAvg"`
			Side           int     `json:"side"`
			ProductType    string  `json:"productType"`
			RealizedProfit float64 `json:"realized_profit"`
			LTP            float64 `json:"ltp"`
			PnL            float64 `json:"pl"`
		} `json:"netPositions"`
	}
	if err := f.doJSON(ctx, http.MethodGet, "/positions", nil, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.brokerError()
	}

	positions := make([]models.Position, len(resp.NetPositions))
	for i, p := range resp.NetPositions {
		positions[i] = models.Position{
			Symbol:         p.Symbol,
			ID:             p.ID,
			NetQty:         p.NetQty,
			NetAvg:         p.NetAvg,
			BuyQty:         p.BuyQty,
			BuyAvg:         p.BuyAvg,
			SellQty:        p.SellQty,
			SellAvg:        p.SellAvg,
			Side:           p.Side,
			ProductType:    p.ProductType,
			RealizedProfit: p.RealizedProfit,
			LTP:            p.LTP,
			PnL:            p.PnL,
		}
	}
	return positions, nil
}

// GetHoldings fetches delivery holdings.
func (f *FyersBroker) GetHoldings(ctx context.Context) ([]models.Holding, error) {
	if err := f.requireAuth(); err != nil {
		return nil, err
	}

	var resp struct {
		envelope
		Holdings []struct {
			Symbol      string  `json:"symbol"`
			Quantity    int     `json:"quantity"`
			CostPrice   float64 `json:"costPrice"`
			LTP         float64 `json:"ltp"`
			MarketValue float64 `json:"marketVal"`
			PnL         float64 `json:"pl"`
		} `json:"holdings"`
	}
	if err := f.doJSON(ctx, http.MethodGet, "/holdings", nil, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.brokerError()
	}

	holdings := make([]models.Holding, len(resp.Holdings))
	for i, h := range resp.Holdings {
		invested := h.CostPrice * float64(h.Quantity)
		pnlPercent := 0.0
		if invested > 0 {
			pnlPercent = (h.PnL / invested) * 100
		}
		holdings[i] = models.Holding{
			Symbol:      h.Symbol,
			Quantity:    h.Quantity,
			CostPrice:   h.CostPrice,
			LTP:         h.LTP,
			MarketValue: h.MarketValue,
			PnL:         h.PnL,
			PnLPercent:  pnlPercent,
		}
	}
	return holdings, nil
}

// GetFunds fetches the funds statement.
func (f *FyersBroker) GetFunds(ctx context.Context) ([]models.FundLimit, error) {
	if err := f.requireAuth(); err != nil {
		return nil, err
	}

	var resp struct {
		envelope
		FundLimit []struct {
			ID              int     `json:"id"`
			Title           string  `json:"title"`
			EquityAmount    float64 `json:"equityAmount"`
			CommodityAmount float64 `json:"commodityAmount"`
		} `json:"fund_limit"`
	}
	if err := f.doJSON(ctx, http.MethodGet, "/funds", nil, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.brokerError()
	}

	funds := make([]models.FundLimit, len(resp.FundLimit))
	for i, fl := range resp.FundLimit {
		funds[i] = models.FundLimit{
			ID:              fl.ID,
			Title:           fl.Title,
			EquityAmount:    fl.EquityAmount,
			CommodityAmount: fl.CommodityAmount,
		}
	}
	return funds, nil
}

// GetMarketStatus fetches per-segment market status.
func (f *FyersBroker) GetMarketStatus(ctx context.Context) ([]models.MarketStatus, error) {
	if err := f.requireAuth(); err != nil {
		return nil, err
	}

	var resp struct {
		envelope
		MarketStatus []struct {
			Exchange   int    `json:"exchange"`
			Segment    int    `json:"segment"`
			MarketType string `json:"market_type"`
			Status     string `json:"status"`
		} `json:"marketStatus"`
	}
	if err := f.doJSON(ctx, http.MethodGet, "/data/marketStatus", nil, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.brokerError()
	}

	statuses := make([]models.MarketStatus, len(resp.MarketStatus))
	for i, s := range resp.MarketStatus {
		statuses[i] = models.MarketStatus{
			Exchange:   s.Exchange,
			Segment:    s.Segment,
			MarketType: s.MarketType,
			Status:     s.Status,
		}
	}
	return statuses, nil
}

// DefaultClosedStatus returns the status set shown when the upstream cannot
// be asked: every segment reported closed.
func DefaultClosedStatus() []models.MarketStatus {
	return []models.MarketStatus{
		{Exchange: 10, Segment: 10, MarketType: "NORMAL", Status: "CLOSED"},
		{Exchange: 11, Segment: 20, MarketType: "NORMAL", Status: "CLOSED"},
		{Exchange: 12, Segment: 10, MarketType: "NORMAL", Status: "CLOSED"},
	}
}

// GetMarketDepth fetches bid/ask depth for a symbol.
func (f *FyersBroker) GetMarketDepth(ctx context.Context, symbol string) (*models.MarketDepth, error) {
	if err := f.requireAuth(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("ohlcv_flag", "1")

	type depthLevel struct {
		Price  float64 `json:"price"`
		Volume int64   `json:"volume"`
		Ord    int     `json:"ord"`
	}
	var resp struct {
		envelope
		D map[string]struct {
			TotalBuyQty  int64        `json:"totalbuyqty"`
			TotalSellQty int64        `json:"totalsellqty"`
			Bids         []depthLevel `json:"bids"`
			Ask          []depthLevel `json:"ask"`
			LTP          float64      `json:"ltp"`
			O            float64      `json:"o"`
			H            float64      `json:"h"`
			L            float64      `json:"l"`
			C            float64      `json:"c"`
			Ch           float64      `json:"ch"`
			Chp          float64      `json:"chp"`
			V            int64        `json:"v"`
			OI           int64        `json:"oi"`
			UpperCkt     float64      `json:"upper_ckt"`
			LowerCkt     float64      `json:"lower_ckt"`
		} `json:"d"`
	}
	if err := f.doJSON(ctx, http.MethodGet, "/data/depth", q, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.brokerError()
	}

	d, ok := resp.D[symbol]
	if !ok {
		return nil, apierrors.Wrapf(apierrors.ErrDataNotFound, "no depth for %s", symbol)
	}

	depth := &models.MarketDepth{
		Symbol:       symbol,
		TotalBuyQty:  d.TotalBuyQty,
		TotalSellQty: d.TotalSellQty,
		LTP:          d.LTP,
		Open:         d.O,
		High:         d.H,
		Low:          d.L,
		PrevClose:    d.C,
		Change:       d.Ch,
		ChangePct:    d.Chp,
		Volume:       d.V,
		OpenInterest: d.OI,
		UpperCircuit: d.UpperCkt,
		LowerCircuit: d.LowerCkt,
	}
	for _, b := range d.Bids {
		depth.Bids = append(depth.Bids, models.DepthLevel{Price: b.Price, Volume: b.Volume, Orders: b.Ord})
	}
	for _, a := range d.Ask {
		depth.Asks = append(depth.Asks, models.DepthLevel{Price: a.Price, Volume: a.Volume, Orders: a.Ord})
	}
	return depth, nil
}

// Ensure FyersBroker implements Broker interface
var _ Broker = (*FyersBroker)(nil)
