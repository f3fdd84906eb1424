package kalshi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

func (c *Client) Markets(ctx context.Context, q MarketsQuery) (*MarketsPage, error) {
	v := url.Values{}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	v.Set("limit", strconv.Itoa(limit))
	if q.SeriesTicker != "" {
		v.Set("series_ticker", q.SeriesTicker)
	}
	if q.EventTicker != "" {
		v.Set("event_ticker", q.EventTicker)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Cursor != "" {
		v.Set("cursor", q.Cursor)
	}

	var page MarketsPage
	if err := c.do(ctx, http.MethodGet, "/markets", v, nil, &page, false); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Market(ctx context.Context, ticker string) (*Market, error) {
	var out struct {
		Market Market `json:"market"`
	}
	if err := c.do(ctx, http.MethodGet, "/markets/"+url.PathEscape(ticker), nil, nil, &out, false); err != nil {
		return nil, err
	}
	return &out.Market, nil
}

func (c *Client) Balance(ctx context.Context) (*Balance, error) {
	var b Balance
	if err := c.do(ctx, http.MethodGet, "/portfolio/balance", nil, nil, &b, true); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) Positions(ctx context.Context, cursor string) (*Positions, error) {
	v := url.Values{"limit": {"100"}}
	if cursor != "" {
		v.Set("cursor", cursor)
	}
	var p Positions
	if err := c.do(ctx, http.MethodGet, "/portfolio/positions", v, nil, &p, true); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Orders(ctx context.Context, status, cursor string) (*Orders, error) {
	v := url.Values{"limit": {"100"}}
	if status != "" {
		v.Set("status", status)
	}
	if cursor != "" {
		v.Set("cursor", cursor)
	}
	var o Orders
	if err := c.do(ctx, http.MethodGet, "/portfolio/orders", v, nil, &o, true); err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder submits req, filling in a client order id when none is set.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}
	var out OrderResponse
	if err := c.do(ctx, http.MethodPost, "/portfolio/orders", nil, req, &out, true); err != nil {
		return nil, err
	}
	c.Log.WithField("ticker", req.Ticker).WithField("client_order_id", req.ClientOrderID).Info("order placed")
	return &out, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) (*CancelResponse, error) {
	var out CancelResponse
	if err := c.do(ctx, http.MethodDelete, "/portfolio/orders/"+url.PathEscape(orderID), nil, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}
