package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPCallerCall(t *testing.T) {
	var gotPath, gotKey, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get(apiKeyHeader)
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	caller, err := NewHTTPCaller(HTTPCallerOptions{BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewHTTPCaller() error = %v", err)
	}

	result, err := caller.Call(context.Background(), "key-aaaa-1111", &Request{
		Model:   "gemini-2.0-flash",
		Payload: json.RawMessage(`{"contents":[]}`),
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	if gotPath != "/models/gemini-2.0-flash:generateContent" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotKey != "key-aaaa-1111" {
		t.Errorf("key header = %q", gotKey)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %q", gotContentType)
	}
	if string(result.Body) != `{"candidates":[]}` {
		t.Errorf("result body = %q", result.Body)
	}
}

func TestHTTPCallerStatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		sentinel error
	}{
		{name: "auth", code: 401, sentinel: ErrAuth},
		{name: "quota", code: 429, sentinel: ErrQuota},
		{name: "server", code: 500, sentinel: ErrServer},
		{name: "client", code: 400, sentinel: ErrClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.code)
			}))
			defer server.Close()

			caller, err := NewHTTPCaller(HTTPCallerOptions{BaseURL: server.URL, Timeout: 5 * time.Second})
			if err != nil {
				t.Fatalf("NewHTTPCaller() error = %v", err)
			}

			_, err = caller.Call(context.Background(), "key-aaaa-1111", &Request{
				Model:   "gemini-2.0-flash",
				Payload: json.RawMessage(`{}`),
			})
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("Call() error = %v, want %v", err, tt.sentinel)
			}

			var statusErr *StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.code {
				t.Errorf("Call() error = %v, want StatusError with code %d", err, tt.code)
			}
		})
	}
}

func TestHTTPCallerTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can detect the
		// client going away and cancel the request context; with an
		// unread body, net/http never delivers the cancellation and the
		// deferred Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	caller, err := NewHTTPCaller(HTTPCallerOptions{BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewHTTPCaller() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = caller.Call(ctx, "key-aaaa-1111", &Request{
		Model:   "gemini-2.0-flash",
		Payload: json.RawMessage(`{}`),
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Call() error = %v, want ErrTimeout", err)
	}
	if !IsTransient(err) {
		t.Error("timeout must classify as transient")
	}
}

func TestHTTPCallerNetworkError(t *testing.T) {
	// Closed server, connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	caller, err := NewHTTPCaller(HTTPCallerOptions{BaseURL: server.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPCaller() error = %v", err)
	}

	_, err = caller.Call(context.Background(), "key-aaaa-1111", &Request{
		Model:   "gemini-2.0-flash",
		Payload: json.RawMessage(`{}`),
	})
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("Call() error = %v, want ErrNetwork", err)
	}
}

func TestHTTPCallerProbe(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get(apiKeyHeader)
		if gotKey != "key-good-1111" {
			http.Error(w, "bad key", http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	caller, err := NewHTTPCaller(HTTPCallerOptions{BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewHTTPCaller() error = %v", err)
	}

	if err := caller.Probe(context.Background(), "key-good-1111"); err != nil {
		t.Errorf("Probe(valid) error = %v", err)
	}
	if gotPath != "/models" {
		t.Errorf("probe path = %q, want /models", gotPath)
	}

	err = caller.Probe(context.Background(), "key-bad-2222")
	if !errors.Is(err, ErrAuth) {
		t.Errorf("Probe(invalid) error = %v, want ErrAuth", err)
	}
}

func TestNewHTTPCallerValidation(t *testing.T) {
	if _, err := NewHTTPCaller(HTTPCallerOptions{BaseURL: "not a url"}); err == nil {
		t.Error("NewHTTPCaller accepted a bad base url")
	}
	if _, err := NewHTTPCaller(HTTPCallerOptions{BaseURL: "ftp://example.com"}); err == nil {
		t.Error("NewHTTPCaller accepted a non-http scheme")
	}
}

func TestCallRequiresModel(t *testing.T) {
	caller, err := NewHTTPCaller(HTTPCallerOptions{BaseURL: "https://example.com"})
	if err != nil {
		t.Fatalf("NewHTTPCaller() error = %v", err)
	}
	_, err = caller.Call(context.Background(), "key-aaaa-1111", &Request{Payload: json.RawMessage(`{}`)})
	if !errors.Is(err, ErrClient) {
		t.Errorf("Call() without model error = %v, want ErrClient", err)
	}
}
