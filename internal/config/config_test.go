package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Upload.MaxBytes != 500*1024*1024 {
		t.Fatalf("expected 500 MiB upload cap, got %d", cfg.Upload.MaxBytes)
	}
	if cfg.Capture.Formats[0] != "audio/webm;codecs=opus" {
		t.Fatalf("expected opus-in-webm preferred, got %v", cfg.Capture.Formats)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("T2W_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("T2W_BUS_USERNAME", "alice")
	t.Setenv("T2W_BUS_TLS_INSECURE", "true")
	t.Setenv("T2W_CAPTURE_MODE", "remote")
	t.Setenv("T2W_CAPTURE_SETTLE_DELAY_MS", "300")
	t.Setenv("T2W_LANGUAGE_MODE", "exec")
	t.Setenv("T2W_LANGUAGE_COMMAND", "transcribe-cli --json")
	t.Setenv("T2W_NOTEBOOK_PATH", "./tmp.db")
	t.Setenv("T2W_NOTEBOOK_RETENTION_MODE", "ephemeral")
	t.Setenv("T2W_NOTEBOOK_MAX_SEGMENTS", "123")
	t.Setenv("T2W_UPLOAD_MAX_BYTES", "1048576")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" {
		t.Fatalf("expected username override")
	}
	if !cfg.Bus.TLSInsecure {
		t.Fatal("expected tls insecure override true")
	}
	if cfg.Capture.Mode != "remote" {
		t.Fatalf("expected capture mode override, got %s", cfg.Capture.Mode)
	}
	if cfg.Capture.SettleDelayMS != 300 {
		t.Fatalf("expected settle delay 300, got %d", cfg.Capture.SettleDelayMS)
	}
	if cfg.Language.Mode != "exec" || cfg.Language.Command != "transcribe-cli --json" {
		t.Fatalf("expected language exec override")
	}
	if cfg.Notebook.Path != "./tmp.db" {
		t.Fatalf("expected notebook path override")
	}
	if cfg.Notebook.RetentionMode != "ephemeral" {
		t.Fatalf("expected retention mode override")
	}
	if cfg.Notebook.MaxSegments != 123 {
		t.Fatalf("expected max segments override")
	}
	if cfg.Upload.MaxBytes != 1048576 {
		t.Fatalf("expected upload cap override, got %d", cfg.Upload.MaxBytes)
	}
}

func TestValidateRejectsBadModes(t *testing.T) {
	t.Setenv("T2W_CAPTURE_MODE", "telepathy")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown capture mode")
	}
}

func TestValidateExecNeedsCommand(t *testing.T) {
	t.Setenv("T2W_LANGUAGE_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for exec mode without command")
	}
}
