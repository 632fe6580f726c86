package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"event-aggregator/internal/application"
	"event-aggregator/internal/domain"
	"event-aggregator/internal/infrastructure/memstore"

	"github.com/stretchr/testify/require"
)

func Test_mapOutcome(t *testing.T) {
	cases := []struct {
		in  domain.Outcome
		out string
	}{
		{domain.OutcomeStored, "processed"},
		{domain.OutcomeDuplicateRejected, "ignored_duplicate"},
	}
	for _, c := range cases {
		got := mapOutcome(c.in)
		if got != c.out {
			t.Fatalf("mapOutcome(%v)=%v want %v", c.in, got, c.out)
		}
	}
}

func Test_readyz_FailingCheck(t *testing.T) {
	srv := NewServer(application.NewIngestionService(memstore.New()))
	srv.ping = func(ctx context.Context) error { return errors.New("db down") }
	h := NewRouter(srv)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	require.JSONEq(t, `{"code":503,"message":"store not ready"}`, rec.Body.String())
}

func Test_readyz_StorePing(t *testing.T) {
	h := setup()
	rec := do(h, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "READY", rec.Body.String())
}

type downStore struct{ application.EventStore }

func (downStore) InsertIfAbsent(context.Context, domain.Event) (domain.InsertResult, error) {
	return domain.InsertResult{}, application.ErrStoreUnavailable
}

func (downStore) Count(context.Context) (int64, error) {
	return 0, application.ErrStoreUnavailable
}

func Test_storeUnavailable(t *testing.T) {
	h := NewRouter(NewServer(application.NewIngestionService(downStore{})))

	rec := do(h, http.MethodPost, "/publish", event("t", "e"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"code":503,"message":"store unavailable"}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func Test_metricsMounted(t *testing.T) {
	srv := NewServer(application.NewIngestionService(memstore.New()))
	require.Equal(t, http.StatusNotFound, do(NewRouter(srv), http.MethodGet, "/metrics", nil).Code)

	srv.SetMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("events_stored_total 1\n"))
	}))
	rec := do(NewRouter(srv), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "events_stored_total")
}

func Test_correlationHeaders(t *testing.T) {
	h := setup()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "rid-1", rec.Header().Get("X-Request-ID"))
	require.NotEmpty(t, rec.Header().Get("X-Trace-Id"))
}

func Test_cors(t *testing.T) {
	srv := NewServer(application.NewIngestionService(memstore.New()))
	srv.SetCORSOrigins([]string{"https://dash.example.com"})
	h := NewRouter(srv)

	req := httptest.NewRequest(http.MethodOptions, "/stats", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "https://dash.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func Test_errorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeFieldError(rec, "limit", "must be positive")
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, errorResponse{Code: 422, Message: "limit: must be positive", Field: "limit"}, resp)
}

type rejectingStore struct{ application.EventStore }

func (rejectingStore) InsertIfAbsent(context.Context, domain.Event) (domain.InsertResult, error) {
	return domain.InsertResult{}, fmt.Errorf("insert event: %w: %w", domain.ErrInvalidEvent, errors.New("invalid byte sequence for encoding"))
}

func Test_storeRefusesData(t *testing.T) {
	h := NewRouter(NewServer(application.NewIngestionService(rejectingStore{})))

	rec := do(h, http.MethodPost, "/publish", event("t", "e"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.JSONEq(t, `{"code":422,"message":"event rejected by store"}`, rec.Body.String())
}
