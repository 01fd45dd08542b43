package language

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockClient is a deterministic client for tests and development. Zero value
// responses fall back to synthesized placeholders.
type MockClient struct {
	TranscribeText string
	SummarizeText  string
	AnswerText     string

	TranscribeErr error
	SummarizeErr  error
	AnswerErr     error

	mu              sync.Mutex
	transcribeCalls int
	summarizeCalls  int
	answerCalls     int
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Transcribe(_ context.Context, audio Audio) (string, error) {
	m.mu.Lock()
	m.transcribeCalls++
	m.mu.Unlock()
	if m.TranscribeErr != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, m.TranscribeErr)
	}
	if m.TranscribeText != "" {
		return m.TranscribeText, nil
	}
	return fmt.Sprintf("[mock transcript mime=%s bytes=%d]", audio.MIME, len(audio.Data)), nil
}

func (m *MockClient) Summarize(_ context.Context, texts []string) (string, error) {
	m.mu.Lock()
	m.summarizeCalls++
	m.mu.Unlock()
	if m.SummarizeErr != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, m.SummarizeErr)
	}
	if m.SummarizeText != "" {
		return m.SummarizeText, nil
	}
	return fmt.Sprintf("[mock summary of %d segments]", len(texts)), nil
}

func (m *MockClient) Answer(_ context.Context, contextText, question string) (string, error) {
	m.mu.Lock()
	m.answerCalls++
	m.mu.Unlock()
	if m.AnswerErr != nil {
		return "", fmt.Errorf("%w: %v", ErrAnswerFailed, m.AnswerErr)
	}
	if m.AnswerText != "" {
		return m.AnswerText, nil
	}
	return fmt.Sprintf("[mock answer to %q over %d context chars]", strings.TrimSpace(question), len(contextText)), nil
}

// TranscribeCalls reports how many times Transcribe was invoked.
func (m *MockClient) TranscribeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transcribeCalls
}

// SummarizeCalls reports how many times Summarize was invoked.
func (m *MockClient) SummarizeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summarizeCalls
}

// AnswerCalls reports how many times Answer was invoked.
func (m *MockClient) AnswerCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answerCalls
}
