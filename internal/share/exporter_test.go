package share

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestComposeWithSummary(t *testing.T) {
	got := Compose("خلاصہ یہاں ہے", []string{"پہلا", "دوسرا"})
	want := "Summary:\nخلاصہ یہاں ہے\n\n1. پہلا\n\n2. دوسرا"
	if got != want {
		t.Fatalf("compose = %q, want %q", got, want)
	}
}

func TestComposeWithoutSummary(t *testing.T) {
	got := Compose("", []string{"صرف ایک نوٹ"})
	if got != "1. صرف ایک نوٹ" {
		t.Fatalf("compose = %q", got)
	}
	if strings.Contains(got, "Summary") {
		t.Fatal("summary header present for empty summary")
	}
}

func TestComposeEmpty(t *testing.T) {
	if got := Compose("  ", nil); got != "" {
		t.Fatalf("compose = %q, want empty", got)
	}
}

func TestShareRunsConfiguredCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "shared.txt")
	s := &Sharer{Command: "tee " + out}

	method, err := s.Share(context.Background(), "برآمد شدہ متن")
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if method != MethodCommand {
		t.Fatalf("method = %s, want command", method)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "برآمد شدہ متن" {
		t.Fatalf("shared text = %q", data)
	}
}

func TestShareCommandWithQuotedArgs(t *testing.T) {
	out := filepath.Join(t.TempDir(), "with space.txt")
	s := &Sharer{Command: `tee "` + out + `"`}

	if _, err := s.Share(context.Background(), "hello"); err != nil {
		t.Fatalf("share: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output file: %v", err)
	}
}

func TestShareFailingCommand(t *testing.T) {
	s := &Sharer{Command: "false"}
	if _, err := s.Share(context.Background(), "text"); err == nil {
		t.Fatal("expected error from failing share command")
	}
}
