package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/sirupsen/logrus"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return k
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func verify(t *testing.T, pub *rsa.PublicKey, r *http.Request) {
	t.Helper()
	ts := r.Header.Get("KALSHI-ACCESS-TIMESTAMP")
	sig, err := base64.StdEncoding.DecodeString(r.Header.Get("KALSHI-ACCESS-SIGNATURE"))
	if err != nil {
		t.Errorf("signature not base64: %v", err)
		return
	}
	digest := sha256.Sum256([]byte(ts + r.Method + r.URL.Path))
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}); err != nil {
		t.Errorf("bad signature for %s %s: %v", r.Method, r.URL.Path, err)
	}
	if r.Header.Get("KALSHI-ACCESS-KEY") != "key-id" {
		t.Errorf("KALSHI-ACCESS-KEY = %q", r.Header.Get("KALSHI-ACCESS-KEY"))
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc, key *rsa.PrivateKey) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "key-id", key, quietLog())
	c.Now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func TestSign_StripsQuery(t *testing.T) {
	key := testKey(t)
	c := NewClient("", "key-id", key, quietLog())

	sig, err := c.Sign("1700000000000", "GET", "/trade-api/v2/portfolio/positions?limit=100")
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(sig)
	digest := sha256.Sum256([]byte("1700000000000GET/trade-api/v2/portfolio/positions"))
	if err := rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, digest[:], raw, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}); err != nil {
		t.Errorf("VerifyPSS: %v", err)
	}
}

func TestParsePrivateKey(t *testing.T) {
	key := testKey(t)

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if _, err := ParsePrivateKey(pkcs1); err != nil {
		t.Errorf("PKCS1: %v", err)
	}
	der, _ := x509.MarshalPKCS8PrivateKey(key)
	pkcs8 := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if _, err := ParsePrivateKey(pkcs8); err != nil {
		t.Errorf("PKCS8: %v", err)
	}
	if _, err := ParsePrivateKey([]byte("not a key")); err == nil {
		t.Error("garbage parsed as key")
	}
}

func TestBalance_SignedRequest(t *testing.T) {
	key := testKey(t)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trade-api/v2/portfolio/balance" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("KALSHI-ACCESS-TIMESTAMP") != "1700000000000" {
			t.Errorf("timestamp = %q", r.Header.Get("KALSHI-ACCESS-TIMESTAMP"))
		}
		verify(t, &key.PublicKey, r)
		io.WriteString(w, `{"balance": 12345}`)
	}, key)

	b, err := c.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance error: %v", err)
	}
	if b.Balance != 12345 {
		t.Errorf("Balance = %d, want 12345", b.Balance)
	}
	if got := b.Dollars().StringFixed(2); got != "123.45" {
		t.Errorf("Dollars = %s, want 123.45", got)
	}
}

func TestAuthenticated_NoCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	}, nil)

	if _, err := c.Positions(context.Background(), ""); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("err = %v, want ErrNoCredentials", err)
	}
}

func TestMarkets_QueryAndPublic(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("series_ticker") != "KXSB" || q.Get("limit") != "100" {
			t.Errorf("query = %v", q)
		}
		if r.Header.Get("KALSHI-ACCESS-KEY") != "" {
			t.Error("public request carried auth headers")
		}
		io.WriteString(w, `{"markets":[{"ticker":"KXSB-26-SEA","status":"active","volume":5}],"cursor":"abc"}`)
	}, nil)

	page, err := c.Markets(context.Background(), MarketsQuery{SeriesTicker: "KXSB"})
	if err != nil {
		t.Fatalf("Markets error: %v", err)
	}
	if len(page.Markets) != 1 || page.Markets[0].Ticker != "KXSB-26-SEA" || page.Cursor != "abc" {
		t.Errorf("page = %+v", page)
	}
}

func TestCreateOrder(t *testing.T) {
	key := testKey(t)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		verify(t, &key.PublicKey, r)
		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.ClientOrderID == "" {
			t.Error("client_order_id not set")
		}
		if req.YesPrice == nil || *req.YesPrice != 68 || req.NoPrice != nil {
			t.Errorf("prices = %v, %v", req.YesPrice, req.NoPrice)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"order":{"order_id":"o-1","ticker":"KXSB-26-SEA","status":"resting"}}`)
	}, key)

	price := 68
	out, err := c.CreateOrder(context.Background(), OrderRequest{
		Ticker: "KXSB-26-SEA", Side: "yes", Action: "buy", Type: "limit", Count: 10, YesPrice: &price,
	})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if out.Order.OrderID != "o-1" {
		t.Errorf("OrderID = %q", out.Order.OrderID)
	}
}

func TestCancelOrder_ErrorStatus(t *testing.T) {
	key := testKey(t)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || !strings.HasSuffix(r.URL.Path, "/portfolio/orders/o-1") {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}, key)

	_, err := c.CancelOrder(context.Background(), "o-1")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %v, want 404 failure", err)
	}
}

func TestActiveByVolume(t *testing.T) {
	got := ActiveByVolume([]Market{
		{Ticker: "a", Status: "active", Volume: 1},
		{Ticker: "b", Status: "closed", Volume: 100},
		{Ticker: "c", Status: "active", Volume: 50},
	})
	if len(got) != 2 || got[0].Ticker != "c" || got[1].Ticker != "a" {
		t.Errorf("ActiveByVolume = %+v", got)
	}
}

func TestNFLProps_FailingSeriesIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("series_ticker") == "KXNFLTOTAL" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"markets":[{"ticker":"x","status":"active","volume":3}]}`)
	}, nil)

	props := c.NFLProps(context.Background())
	if len(props) != len(NFLPropSeries) {
		t.Errorf("categories = %d, want %d", len(props), len(NFLPropSeries))
	}
	if got := props["total"]; got == nil || len(got) != 0 {
		t.Errorf("total = %v, want empty non-nil", got)
	}
	if len(props["spread"]) != 1 {
		t.Errorf("spread = %v", props["spread"])
	}
}

func TestSnapshot_LimitsAndShape(t *testing.T) {
	many := make([]Market, 20)
	for i := range many {
		many[i] = Market{Ticker: "t", Status: "active"}
	}
	s := Snapshot{
		Championship: many[:3],
		Props:        map[string][]Market{"spread": many, "first_td": many},
		Updated:      time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var out map[string]json.RawMessage
	json.Unmarshal(b, &out)

	var spread, firstTD, rushing []Market
	json.Unmarshal(out["spread"], &spread)
	json.Unmarshal(out["first_td"], &firstTD)
	json.Unmarshal(out["rushing_yards"], &rushing)
	if len(spread) != 10 || len(firstTD) != 15 || rushing == nil || len(rushing) != 0 {
		t.Errorf("spread=%d first_td=%d rushing=%v", len(spread), len(firstTD), rushing)
	}
	if !strings.Contains(string(out["updated"]), "2025-10-01T12:00:00.000000Z") {
		t.Errorf("updated = %s", out["updated"])
	}
	if got := s.MarketCount(); got != 3+10+15 {
		t.Errorf("MarketCount = %d, want 28", got)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestDo_TruncatedBody(t *testing.T) {
	c := NewClient("http://kalshi.test", "", nil, quietLog())
	c.HTTP = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		body := io.MultiReader(strings.NewReader(`{"markets":[`), iotest.ErrReader(io.ErrUnexpectedEOF))
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(body), Request: r}, nil
	})}

	_, err := c.Markets(context.Background(), MarketsQuery{SeriesTicker: "KXSB"})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Markets err = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestMarket(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trade-api/v2/markets/KXSB-26-SEA" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{"market":{"ticker":"KXSB-26-SEA","status":"active"}}`)
	}, nil)

	m, err := c.Market(context.Background(), "KXSB-26-SEA")
	if err != nil {
		t.Fatalf("Market error: %v", err)
	}
	if m.Ticker != "KXSB-26-SEA" || m.Status != "active" {
		t.Errorf("market = %+v", m)
	}
}
