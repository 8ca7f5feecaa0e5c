package tracing

import (
	"context"
	"testing"
)

func TestNewDisabled(t *testing.T) {
	provider, err := New(context.Background(), Options{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewEnabledRequiresEndpoint(t *testing.T) {
	if _, err := New(context.Background(), Options{Enabled: true}); err == nil {
		t.Error("New() accepted enabled tracing without an endpoint")
	}
}

func TestShutdownNilSafe(t *testing.T) {
	var provider *Provider
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on nil provider error = %v", err)
	}
}
