package kalshi

import "github.com/shopspring/decimal"

// Market prices are in cents (1-99).
type Market struct {
	Ticker       string `json:"ticker"`
	EventTicker  string `json:"event_ticker"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle,omitempty"`
	Status       string `json:"status"`
	YesBid       int    `json:"yes_bid"`
	YesAsk       int    `json:"yes_ask"`
	NoBid        int    `json:"no_bid"`
	NoAsk        int    `json:"no_ask"`
	LastPrice    int    `json:"last_price"`
	Volume       int64  `json:"volume"`
	Volume24h    int64  `json:"volume_24h"`
	OpenInterest int64  `json:"open_interest"`
	CloseTime    string `json:"close_time,omitempty"`
}

type MarketsQuery struct {
	SeriesTicker string
	EventTicker  string
	Status       string
	Cursor       string
	Limit        int
}

type MarketsPage struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

// Balance is reported in cents.
type Balance struct {
	Balance int64 `json:"balance"`
}

func (b Balance) Dollars() decimal.Decimal {
	return decimal.New(b.Balance, -2)
}

type MarketPosition struct {
	Ticker             string `json:"ticker"`
	Position           int    `json:"position"`
	MarketExposure     int64  `json:"market_exposure"`
	RealizedPnl        int64  `json:"realized_pnl"`
	TotalTraded        int64  `json:"total_traded"`
	RestingOrdersCount int    `json:"resting_orders_count"`
}

type EventPosition struct {
	EventTicker   string `json:"event_ticker"`
	EventExposure int64  `json:"event_exposure"`
	RealizedPnl   int64  `json:"realized_pnl"`
	TotalCost     int64  `json:"total_cost"`
}

type Positions struct {
	MarketPositions []MarketPosition `json:"market_positions"`
	EventPositions  []EventPosition  `json:"event_positions"`
	Cursor          string           `json:"cursor"`
}

type Order struct {
	OrderID        string `json:"order_id"`
	ClientOrderID  string `json:"client_order_id,omitempty"`
	Ticker         string `json:"ticker"`
	Side           string `json:"side"`
	Action         string `json:"action"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	YesPrice       int    `json:"yes_price"`
	NoPrice        int    `json:"no_price"`
	RemainingCount int    `json:"remaining_count"`
	CreatedTime    string `json:"created_time,omitempty"`
}

type Orders struct {
	Orders []Order `json:"orders"`
	Cursor string  `json:"cursor"`
}

type OrderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Type          string `json:"type"`
	Count         int    `json:"count"`
	YesPrice      *int   `json:"yes_price,omitempty"`
	NoPrice       *int   `json:"no_price,omitempty"`
	ExpirationTS  *int64 `json:"expiration_ts,omitempty"`
}

type OrderResponse struct {
	Order Order `json:"order"`
}

type CancelResponse struct {
	Order     Order `json:"order"`
	ReducedBy int   `json:"reduced_by"`
}
