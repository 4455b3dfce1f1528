package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgate/internal/blackout"
	"riskgate/internal/engine"
	"riskgate/internal/metrics"
	"riskgate/internal/risk"
	"riskgate/internal/session"
	"riskgate/internal/state"
)

var newYork = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

type testServer struct {
	*Server
	store *state.Store
	clock time.Time
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rules := risk.Rules{
		Whitelist:  map[string]bool{"CME_MINI:MES1!": true, "MES": true, "ETHUSDT": true},
		HoursGated: map[string]bool{"MES": true},
		Aliases:    map[string]string{"CME_MINI:MES1!": "MES"},
		Calendar: session.Calendar{
			Location:    newYork,
			Start:       session.TimeOfDay{Hour: 9, Minute: 30},
			End:         session.TimeOfDay{Hour: 15, Minute: 45},
			FlattenLead: time.Minute,
		},
		HeartbeatMax: 10 * time.Minute,
		DailyStop:    -500,
		DailyTake:    250,
	}
	if opts.Blackouts == nil {
		opts.Blackouts = blackout.NewStore()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	store := state.NewStore(5)
	opts.Engine = engine.New(engine.Options{Mode: engine.ModePaper}, risk.NewGate(rules, opts.Blackouts), store, nil, opts.Metrics)

	ts := &testServer{Server: NewServer(opts), store: store, clock: time.Date(2025, 3, 12, 10, 0, 0, 0, newYork)}
	ts.now = func() time.Time {
		ts.clock = ts.clock.Add(time.Second)
		return ts.clock
	}
	return ts
}

func (s *testServer) do(t *testing.T, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestWebhookAcceptsJSON(t *testing.T) {
	s := newTestServer(t, Options{})
	w, out := s.do(t, http.MethodPost, "/webhook/tv", `{"symbol":"CME_MINI:MES1!","signal":"BUY","price":"4512.25","time":"2025-03-12T14:00:00Z"}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, "MES", out["symbol"])
	assert.Equal(t, 4512.25, out["price"])
	st := out["state"].(map[string]any)
	assert.Equal(t, "LONG", st["position"])
	assert.Equal(t, "2025-03-12", st["date"])
	exec := out["exec"].(map[string]any)
	assert.Equal(t, "paper", exec["mode"])

	_, out = s.do(t, http.MethodPost, "/webhook/tv", `{"symbol":"MES","signal":"sell","price":4500,"time":"2025-03-12T14:05:00Z"}`, nil)
	st = out["state"].(map[string]any)
	assert.Equal(t, "SHORT", st["position"])
	assert.InDelta(t, -61.25, st["daily_pnl"], 1e-9)
}

func TestWebhookRejections(t *testing.T) {
	s := newTestServer(t, Options{})

	w, out := s.do(t, http.MethodPost, "/webhook/tv", `{"symbol":"ES","signal":"buy"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, out["ok"])
	assert.Equal(t, "symbol_not_allowed", out["reason"])
	assert.Equal(t, "ES", out["symbol"])

	_, out = s.do(t, http.MethodPost, "/webhook/tv", `{"symbol":"ETHUSDT","signal":"hold","time":"x"}`, nil)
	assert.Equal(t, "invalid_signal", out["reason"])
	assert.Equal(t, "hold", out["got"])

	_, out = s.do(t, http.MethodPost, "/webhook/tv", "buy", nil)
	assert.Equal(t, "symbol_not_allowed", out["reason"], "a bare text body carries no symbol")
	assert.Equal(t, "", out["symbol"])
}

func TestParseAlert(t *testing.T) {
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, newYork)

	sig := parseAlert([]byte(" sell \n"), now)
	assert.Equal(t, "sell", sig.Signal)
	assert.Empty(t, sig.Symbol)

	sig = parseAlert([]byte(`"BUY"`), now)
	assert.Equal(t, "buy", sig.Signal)

	sig = parseAlert([]byte(`{"symbol":"mes","signal":"buy","price":null,"time":1741788000}`), now)
	assert.Equal(t, "MES", sig.Symbol)
	assert.Nil(t, sig.Price)
	assert.Equal(t, "1741788000", sig.BarTime)
	assert.True(t, sig.ReceivedAt.Equal(now))

	sig = parseAlert([]byte(`{"symbol":"MES","signal":"buy","price":"n/a"}`), now)
	assert.Nil(t, sig.Price)
}

func TestAdminSwitch(t *testing.T) {
	s := newTestServer(t, Options{AdminToken: "s3cret"})

	w, out := s.do(t, http.MethodPost, "/disable", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid admin token", out["detail"])

	w, _ = s.do(t, http.MethodPost, "/disable", "", map[string]string{"X-Admin-Token": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, out = s.do(t, http.MethodPost, "/disable", "", map[string]string{"X-Admin-Token": "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, out["enabled"])
	assert.False(t, s.store.Snapshot().Enabled)

	_, out = s.do(t, http.MethodPost, "/webhook/tv", `{"symbol":"MES","signal":"buy","time":"t1"}`, nil)
	assert.Equal(t, "disabled", out["reason"])

	_, out = s.do(t, http.MethodPost, "/enable", "", map[string]string{"X-Admin-Token": "s3cret"})
	assert.Equal(t, true, out["enabled"])
	assert.True(t, s.store.Snapshot().Enabled)
}

func TestAdminWithoutTokenIsOpen(t *testing.T) {
	s := newTestServer(t, Options{})
	w, out := s.do(t, http.MethodPost, "/disable", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, out["enabled"])
}

func TestHealthHomeMetrics(t *testing.T) {
	blackouts := blackout.NewStore()
	blackouts.Refresh([]blackout.Window{{
		Start: time.Date(2025, 3, 12, 8, 25, 0, 0, newYork),
		End:   time.Date(2025, 3, 12, 8, 35, 0, 0, newYork),
		Label: "USD CPI y/y",
	}})
	s := newTestServer(t, Options{Blackouts: blackouts})
	s.do(t, http.MethodPost, "/webhook/tv", `{"symbol":"MES","signal":"buy","price":100,"time":"t1"}`, nil)

	w, out := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, true, out["paper_mode"])
	rth := out["rth"].(map[string]any)
	assert.Equal(t, "America/New_York", rth["tz"])
	st := out["state"].(map[string]any)
	books := st["books"].(map[string]any)
	assert.Equal(t, "LONG", books["MES"].(map[string]any)["position"])
	assert.NotNil(t, st["last_hb"])
	assert.Len(t, out["blackouts"], 1)

	_, out = s.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, "riskgate middleware running", out["msg"])

	w, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `riskgate_signals_total{reason="",result="accepted",symbol="MES"} 1`)
}

func TestWebhookRateLimit(t *testing.T) {
	s := newTestServer(t, Options{WebhookRPS: 1})
	w, _ := s.do(t, http.MethodPost, "/webhook/tv", `{"symbol":"ETHUSDT","signal":"buy","time":"a"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, out := s.do(t, http.MethodPost, "/webhook/tv", `{"symbol":"ETHUSDT","signal":"buy","time":"b"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", out["reason"])
}

type failingReader struct{}

func (failingReader) Recent(context.Context, int) ([]engine.Decision, error) {
	return nil, errors.New("db locked")
}

func TestDecisionsEndpoint(t *testing.T) {
	recent := engine.NewRecentDecisions(10)
	recent.Append(engine.Decision{Symbol: "MES", Result: "accepted"})
	recent.Append(engine.Decision{Symbol: "MES", Result: "rejected", Reason: "duplicate"})
	s := newTestServer(t, Options{Decisions: recent})
	w, out := s.do(t, http.MethodGet, "/decisions?limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows := out["decisions"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "duplicate", rows[0].(map[string]any)["reason"])

	s = newTestServer(t, Options{Decisions: failingReader{}})
	w, _ = s.do(t, http.MethodGet, "/decisions", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	s = newTestServer(t, Options{})
	w, _ = s.do(t, http.MethodGet, "/decisions", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
