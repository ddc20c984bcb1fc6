package e2e

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/triage/internal/control"
	"github.com/vietddude/triage/internal/core/config"
)

func TestGracefulShutdown(t *testing.T) {
	// Memory backends only: no redis or database URL configured
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Policy.SnapshotPath = filepath.Join(t.TempDir(), "policy_model.json")
	cfg.Pipeline.DrainTimeout = 5 * time.Second

	engine, err := control.NewEngine(cfg)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Let the workers spin up and take a lap
	time.Sleep(500 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	done := make(chan error, 1)
	go func() {
		done <- engine.Stop(stopCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Engine.Stop did not return within 10s")
	}
}
