package language

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Najmul343/talk2write/internal/config"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backend.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestExecClientRoundTrip(t *testing.T) {
	reqFile := filepath.Join(t.TempDir(), "request.json")
	script := writeScript(t,
		"cat > "+reqFile+"\n"+
			`printf '{"text":"نتیجہ"}'`+"\n")

	client, err := NewExecClient("sh " + script)
	if err != nil {
		t.Fatalf("new exec client: %v", err)
	}

	text, err := client.Transcribe(context.Background(), Audio{MIME: "audio/wav", Data: []byte{0x01}})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "نتیجہ" {
		t.Fatalf("text = %q", text)
	}

	raw, err := os.ReadFile(reqFile)
	if err != nil {
		t.Fatalf("read request: %v", err)
	}
	var req execRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.Op != "transcribe" || req.MIME != "audio/wav" {
		t.Fatalf("request = %+v", req)
	}
	if req.AudioBase64 == "" || req.Instruction == "" {
		t.Fatal("audio payload or instruction missing from request")
	}
}

func TestExecClientOpPerOperation(t *testing.T) {
	reqFile := filepath.Join(t.TempDir(), "request.json")
	script := writeScript(t,
		"cat > "+reqFile+"\n"+
			`printf '{"text":"ok"}'`+"\n")

	client, err := NewExecClient("sh " + script)
	if err != nil {
		t.Fatalf("new exec client: %v", err)
	}

	if _, err := client.Summarize(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	var req execRequest
	raw, _ := os.ReadFile(reqFile)
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.Op != "summarize" || len(req.Texts) != 2 {
		t.Fatalf("request = %+v", req)
	}

	if _, err := client.Answer(context.Background(), "سیاق", "سوال؟"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	raw, _ = os.ReadFile(reqFile)
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.Op != "answer" || req.Context != "سیاق" || req.Question != "سوال؟" {
		t.Fatalf("request = %+v", req)
	}
}

func TestExecClientFailureWrapsSentinel(t *testing.T) {
	script := writeScript(t, "exit 1\n")
	client, err := NewExecClient("sh " + script)
	if err != nil {
		t.Fatalf("new exec client: %v", err)
	}

	if _, err := client.Transcribe(context.Background(), Audio{}); !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("got %v, want ErrTranscriptionFailed", err)
	}
	if _, err := client.Summarize(context.Background(), []string{"x"}); !errors.Is(err, ErrSummarizationFailed) {
		t.Fatalf("got %v, want ErrSummarizationFailed", err)
	}
	if _, err := client.Answer(context.Background(), "c", "q"); !errors.Is(err, ErrAnswerFailed) {
		t.Fatalf("got %v, want ErrAnswerFailed", err)
	}
}

func TestExecClientEmptyTextIsError(t *testing.T) {
	script := writeScript(t, `printf '{"text":""}'`+"\n")
	client, err := NewExecClient("sh " + script)
	if err != nil {
		t.Fatalf("new exec client: %v", err)
	}
	if _, err := client.Transcribe(context.Background(), Audio{}); !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("got %v, want ErrTranscriptionFailed", err)
	}
}

func TestNewExecClientRejectsBadCommand(t *testing.T) {
	if _, err := NewExecClient(""); err == nil {
		t.Fatal("expected error for empty command")
	}
	if _, err := NewExecClient(`broken "quote`); err == nil {
		t.Fatal("expected error for unbalanced quotes")
	}
}

func TestFactorySelectsBackend(t *testing.T) {
	if _, err := New(config.LanguageConfig{Mode: "mock"}); err != nil {
		t.Fatalf("mock: %v", err)
	}
	if _, err := New(config.LanguageConfig{
		Mode:     "gemini",
		Endpoint: "https://example.com",
		APIKey:   "k",
		Model:    "m",
	}); err != nil {
		t.Fatalf("gemini: %v", err)
	}
	if _, err := New(config.LanguageConfig{Mode: "exec", Command: "cat"}); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if _, err := New(config.LanguageConfig{Mode: "bogus"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
