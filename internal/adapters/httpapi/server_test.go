package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	metrics "github.com/armon/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/numsel/internal/adapters/store/memory"
	"github.com/bnema/numsel/internal/adapters/sync/hub"
	"github.com/bnema/numsel/internal/application"
	"github.com/bnema/numsel/internal/domain"
)

type testAPI struct {
	server  *Server
	handler http.Handler
	service *application.ReservationService
	store   *memory.Store
}

func newTestAPI(t *testing.T, total int, mutate func(*Options)) testAPI {
	t.Helper()

	store := memory.New()
	service, err := application.NewReservationService(store, total)
	require.NoError(t, err)
	_, err = service.Initialize(context.Background())
	require.NoError(t, err)

	h := hub.New(store, store, hub.WithRetryInterval(10*time.Millisecond))
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(h.Close)

	opts := Options{Reservations: service, Channel: h, Heartbeat: 20 * time.Millisecond}
	if mutate != nil {
		mutate(&opts)
	}
	server, err := NewServer(opts)
	require.NoError(t, err)

	return testAPI{server: server, handler: server.Handler(), service: service, store: store}
}

func (a testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:5555"
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestListNumbers(t *testing.T) {
	api := newTestAPI(t, 3, nil)
	_, err := api.service.TryClaim(context.Background(), 2, "Ana")
	require.NoError(t, err)

	rec := api.do(t, http.MethodGet, "/v1/numbers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var summary application.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Available)
	assert.Equal(t, 1, summary.Taken)
	assert.Equal(t, []domain.Slot{{ID: 2, IsTaken: true, TakenBy: "Ana"}}, summary.Participants)
}

func TestClaimStatusCodes(t *testing.T) {
	api := newTestAPI(t, 3, nil)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{name: "commit", path: "/v1/numbers/1/claim", body: `{"name":" Ana "}`, wantStatus: http.StatusOK},
		{name: "already taken", path: "/v1/numbers/1/claim", body: `{"name":"Luis"}`, wantStatus: http.StatusConflict, wantError: "already_taken"},
		{name: "blank name", path: "/v1/numbers/2/claim", body: `{"name":"   "}`, wantStatus: http.StatusBadRequest, wantError: "invalid_name"},
		{name: "unknown number", path: "/v1/numbers/9/claim", body: `{"name":"Ana"}`, wantStatus: http.StatusNotFound, wantError: "not_found"},
		{name: "non numeric id", path: "/v1/numbers/abc/claim", body: `{"name":"Ana"}`, wantStatus: http.StatusBadRequest, wantError: "invalid_id"},
		{name: "malformed body", path: "/v1/numbers/2/claim", body: `{"name":`, wantStatus: http.StatusBadRequest, wantError: "invalid_body"},
	}

	for _, tc := range tests {
		rec := api.do(t, http.MethodPost, tc.path, tc.body)
		require.Equal(t, tc.wantStatus, rec.Code, tc.name)
		if tc.wantError != "" {
			assert.Equal(t, tc.wantError, decodeError(t, rec).Error, tc.name)
			continue
		}

		var slot domain.Slot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slot))
		assert.Equal(t, domain.Slot{ID: 1, IsTaken: true, TakenBy: "Ana"}, slot)
	}
}

type unavailableReservations struct{}

func (unavailableReservations) Snapshot(context.Context) (domain.Snapshot, error) {
	return domain.Snapshot{}, fmt.Errorf("read slots: %w", domain.ErrStoreUnavailable)
}

func (unavailableReservations) TryClaim(context.Context, domain.SlotID, string) (domain.Slot, error) {
	return domain.Slot{}, fmt.Errorf("claim: %w", domain.ErrStoreUnavailable)
}

func TestStoreUnavailableMapsTo503(t *testing.T) {
	api := newTestAPI(t, 3, func(o *Options) { o.Reservations = unavailableReservations{} })

	for _, rec := range []*httptest.ResponseRecorder{
		api.do(t, http.MethodGet, "/v1/numbers", ""),
		api.do(t, http.MethodPost, "/v1/numbers/1/claim", `{"name":"Ana"}`),
	} {
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		assert.Equal(t, "store_unavailable", decodeError(t, rec).Error)
	}
}

func TestConflictMapsTo409(t *testing.T) {
	status, code := classify(fmt.Errorf("claim number 3: %w", domain.ErrConflict))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", code)
}

func TestClaimRateLimited(t *testing.T) {
	api := newTestAPI(t, 5, func(o *Options) { o.Limiter = NewClientLimiter(0.001, 1) })

	first := api.do(t, http.MethodPost, "/v1/numbers/1/claim", `{"name":"Ana"}`)
	require.Equal(t, http.StatusOK, first.Code)

	second := api.do(t, http.MethodPost, "/v1/numbers/2/claim", `{"name":"Ana"}`)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeError(t, second).Error)

	snapshot, err := api.store.Read(context.Background())
	require.NoError(t, err)
	assert.False(t, snapshot.Slots[1].IsTaken)
}

func TestClientKeyHonoursForwardedForWhenTrusted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, "10.0.0.1", (&Server{}).clientKey(req))
	assert.Equal(t, "203.0.113.7", (&Server{trustXFF: true}).clientKey(req))
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, 1, nil)
	rec := api.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	sink := metrics.NewInmemSink(time.Minute, time.Minute)
	cfg := metrics.DefaultConfig("numsel")
	cfg.EnableRuntimeMetrics = false
	cfg.EnableHostname = false
	m, err := metrics.New(cfg, sink)
	require.NoError(t, err)

	api := newTestAPI(t, 1, func(o *Options) {
		o.Metrics = m
		o.MetricsSink = sink
	})
	api.do(t, http.MethodGet, "/healthz", "")

	rec := api.do(t, http.MethodGet, "/v1/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "numsel.http.request")
}

func TestMetricsDisabled(t *testing.T) {
	api := newTestAPI(t, 1, nil)
	rec := api.do(t, http.MethodGet, "/v1/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamPushesSnapshots(t *testing.T) {
	api := newTestAPI(t, 3, nil)
	ts := httptest.NewServer(api.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/numbers/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan application.Summary, 8)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var summary application.Summary
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &summary) == nil {
				events <- summary
			}
		}
	}()

	first := <-events
	assert.Equal(t, 3, first.Available)

	_, err = api.service.TryClaim(context.Background(), 3, "Ana")
	require.NoError(t, err)

	for summary := range events {
		if summary.Taken == 1 {
			assert.Equal(t, "Ana", summary.Numbers[2].TakenBy)
			return
		}
	}
	t.Fatal("stream ended before the claim was delivered")
}

func TestStreamReleasesSubscriptionWhenClientLeaves(t *testing.T) {
	store := memory.New()
	service, err := application.NewReservationService(store, 2)
	require.NoError(t, err)
	_, err = service.Initialize(context.Background())
	require.NoError(t, err)
	h := hub.New(store, store)
	t.Cleanup(h.Close)

	server, err := NewServer(Options{Reservations: service, Channel: h})
	require.NoError(t, err)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/numbers/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	_ = resp.Body.Close()
	require.Eventually(t, func() bool { return h.Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}
