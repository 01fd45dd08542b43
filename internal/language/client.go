package language

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Najmul343/talk2write/internal/config"
)

// Audio is a finalized clip submitted for transcription.
type Audio struct {
	MIME string
	Data []byte
}

// Client is the remote language service contract: three idempotent
// request/response operations, one network round trip each, no retries.
type Client interface {
	// Transcribe returns the text of the clip, Urdu script by default with
	// inline English and Arabic handling per the fixed instruction.
	Transcribe(ctx context.Context, audio Audio) (string, error)

	// Summarize condenses the given segment texts. Callers must not invoke
	// it with zero texts.
	Summarize(ctx context.Context, texts []string) (string, error)

	// Answer responds to a question over the supplied transcript context.
	Answer(ctx context.Context, contextText, question string) (string, error)
}

var (
	ErrTranscriptionFailed = errors.New("language: transcription failed")
	ErrSummarizationFailed = errors.New("language: summarization failed")
	ErrAnswerFailed        = errors.New("language: answer failed")
)

// PlaceholderAnswer substitutes for a failed chat answer so the conversation
// log stays well-formed.
const PlaceholderAnswer = "معذرت، میں ابھی اس سوال کا جواب نہیں دے سکا۔ براہ کرم دوبارہ کوشش کریں۔"

// New builds a client for the configured mode.
func New(cfg config.LanguageConfig) (Client, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockClient(), nil
	case "gemini":
		return NewGeminiClient(GeminiOptions{
			Endpoint:        cfg.Endpoint,
			APIKey:          cfg.APIKey,
			Model:           cfg.Model,
			Timeout:         time.Duration(cfg.TimeoutMS) * time.Millisecond,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Temperature:     cfg.Temperature,
		}), nil
	case "exec":
		return NewExecClient(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown language mode %q", cfg.Mode)
	}
}
