package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

type stubAdapter struct{ name string }

func (s stubAdapter) Name() string { return s.name }

func (s stubAdapter) FetchPage(context.Context, ports.FetchRequest) (ports.Page, error) {
	return ports.Page{}, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register("google_play", stubAdapter{name: "playstore"})

	resolved, err := registry.Resolve("google_play")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if resolved.Name() != "playstore" {
		t.Fatalf("unexpected adapter %q", resolved.Name())
	}

	_, err = registry.Resolve("unknown")
	if err == nil {
		t.Fatal("expected error for unregistered platform")
	}
	if !errors.Is(err, domain.ErrUnknownPlatform) {
		t.Fatalf("expected ErrUnknownPlatform, got %v", err)
	}
}

func TestRegistryReplace(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register("amazon", stubAdapter{name: "old"})
	registry.Register("amazon", stubAdapter{name: "new"})

	resolved, err := registry.Resolve("amazon")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if resolved.Name() != "new" {
		t.Fatalf("expected replacement adapter, got %q", resolved.Name())
	}
}
