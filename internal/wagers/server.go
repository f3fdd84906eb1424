// Package wagers serves the JSON API behind the wagers page: exchange login,
// balance, markets, positions and orders, plus season standings.
package wagers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/warriorpoets/league-stats/internal/datajs"
	"github.com/warriorpoets/league-stats/internal/kalshi"
	"github.com/warriorpoets/league-stats/internal/league"
)

const sessionCookie = "wagers_session"

// Exchange is the part of the exchange client the API needs.
type Exchange interface {
	Balance(ctx context.Context) (*kalshi.Balance, error)
	Positions(ctx context.Context, cursor string) (*kalshi.Positions, error)
	Orders(ctx context.Context, status, cursor string) (*kalshi.Orders, error)
	CreateOrder(ctx context.Context, req kalshi.OrderRequest) (*kalshi.OrderResponse, error)
	CancelOrder(ctx context.Context, orderID string) (*kalshi.CancelResponse, error)
	Market(ctx context.Context, ticker string) (*kalshi.Market, error)
	NFLProps(ctx context.Context) map[string][]kalshi.Market
}

// ExchangeFactory builds a client for one user's credentials.
type ExchangeFactory func(Credentials) (Exchange, error)

// KalshiExchanges returns a factory for clients against baseURL.
func KalshiExchanges(baseURL string, log logrus.FieldLogger) ExchangeFactory {
	return func(c Credentials) (Exchange, error) {
		key, err := kalshi.ParsePrivateKey([]byte(c.PrivateKeyPEM))
		if err != nil {
			return nil, err
		}
		return kalshi.NewClient(baseURL, c.APIKeyID, key, log), nil
	}
}

type Server struct {
	Sessions       Sessions
	NewExchange    ExchangeFactory
	Default        Exchange // used when the request carries no session; may be nil
	DataFile       string
	Scale          league.Scale
	AllowedOrigins []string
	SecureCookies  bool
	Log            logrus.FieldLogger

	router *mux.Router
}

func NewServer(sessions Sessions, newExchange ExchangeFactory, log logrus.FieldLogger) *Server {
	s := &Server{
		Sessions:    sessions,
		NewExchange: newExchange,
		Scale:       league.DefaultScale,
		Log:         log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", s.login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.logout).Methods(http.MethodPost)
	api.HandleFunc("/auth/status", s.status).Methods(http.MethodGet)
	api.HandleFunc("/balance", s.withExchange(s.balance)).Methods(http.MethodGet)
	api.HandleFunc("/markets", s.withExchange(s.markets)).Methods(http.MethodGet)
	api.HandleFunc("/markets/{ticker}", s.withExchange(s.market)).Methods(http.MethodGet)
	api.HandleFunc("/positions", s.withExchange(s.positions)).Methods(http.MethodGet)
	api.HandleFunc("/order", s.withExchange(s.placeOrder)).Methods(http.MethodPost)
	api.HandleFunc("/orders", s.withExchange(s.orders)).Methods(http.MethodGet)
	api.HandleFunc("/order/{id}", s.withExchange(s.cancelOrder)).Methods(http.MethodDelete)
	api.HandleFunc("/standings/{season}", s.standings).Methods(http.MethodGet)
	r.Use(s.logRequests)
	s.router = r
}

// Handler is the full API with CORS applied.
func (s *Server) Handler() http.Handler {
	return s.cors(s.router)
}

// ListenAndServe runs until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	return ""
}

// exchange returns the client for the request's session, falling back to
// the server's default credentials. nil means not authenticated.
func (s *Server) exchange(r *http.Request) (Exchange, error) {
	if token := sessionToken(r); token != "" {
		creds, err := s.Sessions.Get(r.Context(), token)
		switch {
		case err == nil:
			return s.NewExchange(creds)
		case !errors.Is(err, ErrNoSession):
			return nil, err
		}
	}
	return s.Default, nil
}

// withExchange resolves the caller's exchange client or answers 401.
func (s *Server) withExchange(fn func(http.ResponseWriter, *http.Request, Exchange)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ex, err := s.exchange(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if ex == nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		fn(w, r, ex)
	}
}

type loginRequest struct {
	APIKey     string `json:"api_key"`
	PrivateKey string `json:"private_key"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.APIKey == "" || req.PrivateKey == "" {
		writeError(w, http.StatusBadRequest, "Missing api_key or private_key")
		return
	}

	creds := Credentials{APIKeyID: req.APIKey, PrivateKeyPEM: req.PrivateKey}
	ex, err := s.NewExchange(creds)
	if err != nil {
		writeError(w, http.StatusUnauthorized, fmt.Sprintf("Authentication failed: %v", err))
		return
	}
	// a balance fetch proves the key works
	bal, err := ex.Balance(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, fmt.Sprintf("Authentication failed: %v", err))
		return
	}

	token, err := s.Sessions.Create(r.Context(), creds)
	if err != nil {
		s.Log.WithError(err).Error("creating session")
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: s.sameSite(),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"balance": bal.Balance,
		"dollars": bal.Dollars().StringFixed(2),
	})
}

// Cross-site pages only send the cookie when it is SameSite=None, which
// browsers accept only on secure cookies.
func (s *Server) sameSite() http.SameSite {
	if s.SecureCookies {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := s.Sessions.Delete(r.Context(), token); err != nil {
			s.Log.WithError(err).Warn("deleting session")
		}
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	ex, err := s.exchange(r)
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": err == nil && ex != nil})
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request, ex Exchange) {
	b, err := ex.Balance(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance": b.Balance,
		"dollars": b.Dollars().StringFixed(2),
	})
}

func (s *Server) markets(w http.ResponseWriter, r *http.Request, ex Exchange) {
	writeJSON(w, http.StatusOK, ex.NFLProps(r.Context()))
}

func (s *Server) market(w http.ResponseWriter, r *http.Request, ex Exchange) {
	m, err := ex.Market(r.Context(), mux.Vars(r)["ticker"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) positions(w http.ResponseWriter, r *http.Request, ex Exchange) {
	p, err := ex.Positions(r.Context(), r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) orders(w http.ResponseWriter, r *http.Request, ex Exchange) {
	q := r.URL.Query()
	o, err := ex.Orders(r.Context(), q.Get("status"), q.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type placeOrderRequest struct {
	Ticker string `json:"ticker"`
	Side   string `json:"side"`
	Count  int    `json:"count"`
	Price  int    `json:"price"` // cents
}

// orderRequest validates a page order. New positions are always limit buys.
func (p placeOrderRequest) orderRequest() (kalshi.OrderRequest, error) {
	if p.Ticker == "" || p.Side == "" || p.Price == 0 {
		return kalshi.OrderRequest{}, errors.New("Missing required fields: ticker, side, price")
	}
	if p.Side != "yes" && p.Side != "no" {
		return kalshi.OrderRequest{}, fmt.Errorf("side must be yes or no, got %q", p.Side)
	}
	if p.Price < 1 || p.Price > 99 {
		return kalshi.OrderRequest{}, fmt.Errorf("price must be 1-99 cents, got %d", p.Price)
	}
	count := p.Count
	if count == 0 {
		count = 1
	}
	if count < 0 {
		return kalshi.OrderRequest{}, fmt.Errorf("count must be positive, got %d", count)
	}

	req := kalshi.OrderRequest{
		Ticker: p.Ticker,
		Side:   p.Side,
		Action: "buy",
		Type:   "limit",
		Count:  count,
	}
	price := p.Price
	if p.Side == "yes" {
		req.YesPrice = &price
	} else {
		req.NoPrice = &price
	}
	return req, nil
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request, ex Exchange) {
	var body placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req, err := body.orderRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := ex.CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request, ex Exchange) {
	out, err := ex.CancelOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// standings recomputes a season's standings from the data file on
// every request.
func (s *Server) standings(w http.ResponseWriter, r *http.Request) {
	season := mux.Vars(r)["season"]
	if s.DataFile == "" {
		writeError(w, http.StatusNotFound, "no data file configured")
		return
	}
	f, err := datajs.Read(s.DataFile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !f.HasSeason(season) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown season %s", season))
		return
	}
	pts, err := f.WeeklyPoints(season)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	table, err := s.Scale.Season(pts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"season":    season,
		"weeks":     league.PlayedWeeks(pts),
		"standings": table,
	})
}
