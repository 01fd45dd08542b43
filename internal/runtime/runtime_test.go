package runtime

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Najmul343/talk2write/internal/config"
)

// The embedded bus must be reachable without a configured server list: the
// runtime connects to whatever address the in-process server actually bound.
func TestEmbeddedBusWiring(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.HTTP.Bind = "127.0.0.1"
	cfg.HTTP.Port = 0
	cfg.Telemetry.PrometheusBind = "127.0.0.1:0"
	cfg.Bus.Embedded = true
	cfg.Bus.Port = -1
	cfg.Bus.Servers = nil
	cfg.Notebook = config.NotebookConfig{RetentionMode: "ephemeral"}

	r := New(cfg, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	deadline := time.After(10 * time.Second)
	for !r.ready.Load() {
		select {
		case err := <-done:
			t.Fatalf("runtime exited early: %v", err)
		case <-deadline:
			t.Fatal("runtime never became ready")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if r.embedded == nil {
		t.Fatal("embedded server not started")
	}
	if !r.busClient.Healthy() {
		t.Fatal("bus client not connected to the embedded server")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runtime did not stop")
	}
}
