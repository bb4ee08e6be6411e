package models

// OrderSide follows the upstream convention: 1=Buy, -1=Sell.
type OrderSide int

const (
	OrderBuy  OrderSide = 1
	OrderSell OrderSide = -1
)

// OrderType follows the upstream convention: 1=Limit, 2=Market,
// 3=Stop (SL-M), 4=StopLimit (SL-L).
type OrderType int

const (
	OrderLimit     OrderType = 1
	OrderMarket    OrderType = 2
	OrderStop      OrderType = 3
	OrderStopLimit OrderType = 4
)

// Order represents an order as reported by the upstream order book.
type Order struct {
	ID           string
	ExchOrderID  string
	Symbol       string
	Qty          int
	RemainingQty int
	FilledQty    int
	Status       int // 1=Canceled, 2=Filled, 4=Transit, 5=Rejected, 6=Pending, 7=Expired
	LimitPrice   float64
	StopPrice    float64
	ProductType  string
	Type         OrderType
	Side         OrderSide
	TradedPrice  float64
	Message      string
	Validity     string
	PlacedAt     string
	Tag          string
}

// OrderRequest holds the parameters for placing a new order.
type OrderRequest struct {
	Symbol      string
	Qty         int
	Type        OrderType
	Side        OrderSide
	ProductType string // INTRADAY, CNC, MARGIN
	LimitPrice  float64
	StopPrice   float64
}

// Position represents a net position.
type Position struct {
	Symbol         string
	ID             string
	NetQty         int
	NetAvg         float64
	BuyQty         int
	BuyAvg         float64
	SellQty        int
	SellAvg        float64
	Side           int // 0=Flat, 1=Long, -1=Short
	ProductType    string
	RealizedProfit float64
	LTP            float64
	PnL            float64
}

// Holding represents a delivery holding.
type Holding struct {
	Symbol       string
	Quantity     int
	CostPrice    float64
	LTP          float64
	MarketValue  float64
	PnL          float64
	PnLPercent   float64
}

// FundLimit represents one row of the funds statement.
type FundLimit struct {
	ID              int
	Title           string
	EquityAmount    float64
	CommodityAmount float64
}

// DepthLevel is a single price level in the order book depth.
type DepthLevel struct {
	Price  float64
	Volume int64
	Orders int
}

// MarketDepth represents bid/ask depth for a symbol.
type MarketDepth struct {
	Symbol       string
	TotalBuyQty  int64
	TotalSellQty int64
	Bids         []DepthLevel
	Asks         []DepthLevel
	LTP          float64
	Open         float64
	High         float64
	Low          float64
	PrevClose    float64
	Change       float64
	ChangePct    float64
	Volume       int64
	OpenInterest int64
	UpperCircuit float64
	LowerCircuit float64
}
