package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

// Method reports which path delivered the shared text.
type Method string

const (
	MethodCommand   Method = "command"
	MethodClipboard Method = "clipboard"
)

var ErrShareUnavailable = errors.New("share: no share command or clipboard tool available")

// Compose builds the export blob: the summary section when present, then all
// segments numbered from 1.
func Compose(summary string, texts []string) string {
	var b strings.Builder
	if strings.TrimSpace(summary) != "" {
		b.WriteString("Summary:\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	for i, text := range texts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, text)
	}
	return b.String()
}

// Sharer hands a composed blob to a native share command, falling back to a
// platform clipboard tool when none is configured.
type Sharer struct {
	Command string
	Logger  *slog.Logger

	mu sync.Mutex
}

var clipboardTools = [][]string{
	{"pbcopy"},
	{"wl-copy"},
	{"xclip", "-selection", "clipboard"},
	{"xsel", "--clipboard", "--input"},
}

func (s *Sharer) Share(ctx context.Context, text string) (Method, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Command != "" {
		parser := shellwords.NewParser()
		args, err := parser.Parse(s.Command)
		if err != nil {
			return "", fmt.Errorf("parse share command: %w", err)
		}
		if len(args) == 0 {
			return "", errors.New("share command is empty")
		}
		if err := runWithInput(ctx, text, args); err != nil {
			return "", fmt.Errorf("share command failed: %w", err)
		}
		return MethodCommand, nil
	}

	for _, tool := range clipboardTools {
		if _, err := exec.LookPath(tool[0]); err != nil {
			continue
		}
		if err := runWithInput(ctx, text, tool); err != nil {
			return "", fmt.Errorf("clipboard write failed: %w", err)
		}
		if s.Logger != nil {
			s.Logger.Info("share unavailable, copied to clipboard", slog.String("tool", tool[0]))
		}
		return MethodClipboard, nil
	}

	return "", ErrShareUnavailable
}

func runWithInput(ctx context.Context, input string, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(input)
	return cmd.Run()
}
