package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func httpClientRT(rt http.RoundTripper) *http.Client {
	return &http.Client{Transport: rt, Timeout: 2 * time.Second}
}

func response(r *http.Request, code int, body string) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(body)), Header: make(http.Header), Request: r}
}

type ack struct {
	Status string `json:"status"`
}

func fastClient(hc *http.Client) *Client {
	return &Client{HTTP: hc, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, MaxElapsedTime: time.Second}
}

func TestPostJSON_Retry500Then200(t *testing.T) {
	var calls int
	var bodies []string
	rt := httpClientRT(rtFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if calls == 1 {
			return response(r, 500, "err"), nil
		}
		return response(r, 200, `{"status":"processed"}`), nil
	}))
	var out ack
	err := fastClient(rt).PostJSON(context.Background(), "http://example.com/publish", map[string]string{"event_id": "e1"}, &out)
	require.NoError(t, err)
	require.Equal(t, "processed", out.Status)
	require.Equal(t, 2, calls)
	require.Equal(t, bodies[0], bodies[1])
}

type tempTimeoutErr struct{}

func (tempTimeoutErr) Error() string   { return "timeout" }
func (tempTimeoutErr) Timeout() bool   { return true }
func (tempTimeoutErr) Temporary() bool { return true }

func TestPostJSON_RetryNetTimeoutThen200(t *testing.T) {
	var calls int
	rt := httpClientRT(rtFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			var ne net.Error = tempTimeoutErr{}
			return nil, ne
		}
		return response(r, 200, `{"status":"ignored_duplicate"}`), nil
	}))
	var out ack
	require.NoError(t, fastClient(rt).PostJSON(context.Background(), "http://example.com", struct{}{}, &out))
	require.Equal(t, "ignored_duplicate", out.Status)
}

func TestPostJSON_NoRetryOn422(t *testing.T) {
	var calls int
	rt := httpClientRT(rtFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		return response(r, 422, `{"code":422}`), nil
	}))
	err := fastClient(rt).PostJSON(context.Background(), "http://example.com", struct{}{}, nil)
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, 422, se.Code)
	require.Equal(t, 1, calls)
}

func TestPostJSON_DecodeError_NoRetry(t *testing.T) {
	var calls int
	rt := httpClientRT(rtFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewBufferString("{x")), Header: make(http.Header), Request: r}, nil
	}))
	var out map[string]any
	err := fastClient(rt).PostJSON(context.Background(), "http://example.com", struct{}{}, &out)
	require.ErrorContains(t, err, "decode")
	require.Equal(t, 1, calls)
}

func TestPostJSON_GivesUpAfterMaxElapsed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client(), InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, MaxElapsedTime: 50 * time.Millisecond}
	err := c.PostJSON(context.Background(), srv.URL, struct{}{}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusServiceUnavailable, se.Code)
	require.Greater(t, calls.Load(), int32(1))
}

func TestPostJSON_SendsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(ack{Status: in["event_id"]})
	}))
	defer srv.Close()

	var out ack
	require.NoError(t, (&Client{HTTP: srv.Client()}).PostJSON(context.Background(), srv.URL, map[string]string{"event_id": "abc"}, &out))
	require.Equal(t, "abc", out.Status)
}
