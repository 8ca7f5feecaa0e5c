package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"prism-gw/prism/pkg/config"
	"prism-gw/prism/pkg/dispatch"
	"prism-gw/prism/pkg/keypool"
	"prism-gw/prism/pkg/upstream"
)

// stubDispatcher returns a fixed result or error and records the request
// identifier the handler threaded through.
type stubDispatcher struct {
	result       *upstream.Result
	err          error
	gotRequestID string
}

func (d *stubDispatcher) Dispatch(ctx context.Context, _ *upstream.Request) (*upstream.Result, error) {
	d.gotRequestID = dispatch.RequestIDFrom(ctx)
	return d.result, d.err
}

type stubUsage map[string]int

func (u stubUsage) Usage(key string) int { return u[key] }

func newTestServer(t *testing.T, d Dispatcher, store *keypool.Store, tokens []string) *Server {
	t.Helper()
	srv, err := New(Options{
		Config:       config.ServerConfig{ListenAddress: "127.0.0.1:0"},
		Dispatcher:   d,
		Store:        store,
		Usage:        stubUsage{"key-aaaa-1111": 5},
		AccessTokens: tokens,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func newTestPool(t *testing.T, keys []string) *keypool.Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := keypool.NewStore(context.Background(), keys, 1, nil, logger)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestGenerateSuccess(t *testing.T) {
	store := newTestPool(t, []string{"key-aaaa-1111"})
	d := &stubDispatcher{result: &upstream.Result{
		StatusCode:  200,
		Body:        []byte(`{"candidates":[]}`),
		ContentType: "application/json",
	}}
	srv := newTestServer(t, d, store, nil)

	body := strings.NewReader(`{"model":"gemini-2.0-flash","payload":{"contents":[]}}`)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/generate", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != `{"candidates":[]}` {
		t.Errorf("body = %q", got)
	}
}

func TestGenerateThreadsRequestID(t *testing.T) {
	store := newTestPool(t, []string{"key-aaaa-1111"})
	d := &stubDispatcher{result: &upstream.Result{StatusCode: 200, Body: []byte(`{}`)}}
	srv := newTestServer(t, d, store, nil)

	body := strings.NewReader(`{"model":"gemini-2.0-flash","payload":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", body)
	req.Header.Set("X-Request-ID", "client-supplied-7")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if d.gotRequestID != "client-supplied-7" {
		t.Errorf("request id seen by dispatch = %q, want the client's header", d.gotRequestID)
	}
}

func TestGenerateValidatesBody(t *testing.T) {
	store := newTestPool(t, []string{"key-aaaa-1111"})
	srv := newTestServer(t, &stubDispatcher{}, store, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "nope"},
		{name: "missing model", body: `{"payload":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(tt.body)))
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestGenerateErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{
			name:     "pool exhausted",
			err:      &dispatch.PoolExhaustedError{},
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "retries exhausted",
			err:      &dispatch.RetriesExhaustedError{Attempts: 3, LastErr: &upstream.StatusError{StatusCode: 503}},
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "client error keeps upstream status",
			err:      &upstream.StatusError{StatusCode: 404},
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestPool(t, []string{"key-aaaa-1111"})
			srv := newTestServer(t, &stubDispatcher{err: tt.err}, store, nil)

			body := strings.NewReader(`{"model":"gemini-2.0-flash","payload":{}}`)
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/generate", body))
			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
		})
	}
}

func TestListKeysMasksAndGroups(t *testing.T) {
	store := newTestPool(t, []string{"key-aaaa-1111", "key-bbbb-2222"})
	store.MarkFailed(context.Background(), "key-bbbb-2222")
	srv := newTestServer(t, &stubDispatcher{}, store, nil)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/keys", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp keyListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Total != 2 || len(resp.Valid) != 1 || len(resp.Disabled) != 1 {
		t.Fatalf("grouping = total %d, valid %d, disabled %d", resp.Total, len(resp.Valid), len(resp.Disabled))
	}
	if resp.Valid[0].Key != "****1111" {
		t.Errorf("valid key = %q, want masked", resp.Valid[0].Key)
	}
	if resp.Valid[0].WindowUsage == nil || *resp.Valid[0].WindowUsage != 5 {
		t.Errorf("window usage = %v, want 5", resp.Valid[0].WindowUsage)
	}
	if resp.Valid[0].Position != 0 || resp.Disabled[0].Position != 1 {
		t.Errorf("positions = %d/%d, want configuration order 0/1",
			resp.Valid[0].Position, resp.Disabled[0].Position)
	}
	if strings.Contains(rr.Body.String(), "key-aaaa-1111") {
		t.Error("response leaks an unmasked key")
	}
}

func TestResetKeys(t *testing.T) {
	store := newTestPool(t, []string{"key-aaaa-1111", "key-bbbb-2222"})
	ctx := context.Background()
	store.MarkFailed(ctx, "key-aaaa-1111")
	store.MarkFailed(ctx, "key-bbbb-2222")
	srv := newTestServer(t, &stubDispatcher{}, store, nil)

	// Single key reset names the key in full.
	body := strings.NewReader(`{"key":"key-aaaa-1111"}`)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/keys/reset", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	a, _ := store.Get("key-aaaa-1111")
	if a.Status != keypool.StatusActive {
		t.Error("named key not reactivated")
	}
	b, _ := store.Get("key-bbbb-2222")
	if b.Status != keypool.StatusDisabled {
		t.Error("unrelated key reactivated by single reset")
	}

	// Empty body resets the rest.
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/keys/reset", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	b, _ = store.Get("key-bbbb-2222")
	if b.Status != keypool.StatusActive {
		t.Error("pool reset left a key disabled")
	}
}

func TestResetUnknownKey(t *testing.T) {
	store := newTestPool(t, []string{"key-aaaa-1111"})
	srv := newTestServer(t, &stubDispatcher{}, store, nil)

	body := strings.NewReader(`{"key":"key-zzzz-9999"}`)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/keys/reset", body))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	store := newTestPool(t, []string{"key-aaaa-1111"})
	srv := newTestServer(t, &stubDispatcher{}, store, []string{"token-one", "token-two"})

	request := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/keys", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		return rr.Code
	}

	if got := request(""); got != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", got)
	}
	if got := request("wrong"); got != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", got)
	}
	if got := request("token-two"); got != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", got)
	}

	// Health stays open.
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200 without auth", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	store := newTestPool(t, []string{"key-aaaa-1111", "key-bbbb-2222"})
	srv := newTestServer(t, &stubDispatcher{}, store, nil)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp["status"] != "ok" || resp["keys"] != float64(2) {
		t.Errorf("health = %v", resp)
	}
}
