package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Najmul343/talk2write/internal/language"
	"github.com/Najmul343/talk2write/internal/notebook"
	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the append-only conversation log.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrQuestionOutstanding = errors.New("chat: a question is already outstanding")
	ErrEmptyQuestion       = errors.New("chat: question must not be empty")
	ErrSessionReset        = errors.New("chat: session was reset while answering")
)

// Session is the conversation over the notebook. It holds a read-only
// reference to the store: context is recomputed at each ask, so later
// deletions affect future questions but never past answers.
type Session struct {
	store  *notebook.Store
	client language.Client
	logger *slog.Logger
	clock  func() time.Time

	mu          sync.Mutex
	messages    []Message
	outstanding bool
	generation  int
}

func NewSession(store *notebook.Store, client language.Client, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		store:  store,
		client: client,
		logger: logger.With(slog.String("component", "chat")),
		clock:  time.Now,
	}
}

// Ask appends the user message, answers it over a snapshot of the current
// notebook, and appends exactly one assistant message: the answer, or the
// placeholder when the remote call fails. At most one question may be
// outstanding at a time.
func (s *Session) Ask(ctx context.Context, question string) (Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Message{}, ErrEmptyQuestion
	}

	s.mu.Lock()
	if s.outstanding {
		s.mu.Unlock()
		return Message{}, ErrQuestionOutstanding
	}
	s.outstanding = true
	generation := s.generation
	s.messages = append(s.messages, Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Text:      question,
		CreatedAt: s.clock().UTC(),
	})
	s.mu.Unlock()

	contextText, err := s.buildContext(ctx)
	var answer string
	if err != nil {
		s.logger.Warn("failed to build chat context", slog.String("error", err.Error()))
		answer = language.PlaceholderAnswer
	} else {
		answer, err = s.client.Answer(ctx, contextText, question)
		if err != nil || strings.TrimSpace(answer) == "" {
			if err != nil {
				s.logger.Warn("chat answer failed", slog.String("error", err.Error()))
			}
			answer = language.PlaceholderAnswer
		}
	}

	assistant := Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Text:      answer,
		CreatedAt: s.clock().UTC(),
	}

	s.mu.Lock()
	s.outstanding = false
	discarded := s.generation != generation
	if !discarded {
		s.messages = append(s.messages, assistant)
	}
	s.mu.Unlock()
	if discarded {
		// The log no longer contains the question; never hand back an
		// answer the log does not hold.
		return Message{}, ErrSessionReset
	}
	return assistant, nil
}

// buildContext snapshots the notebook: the summary, when present, followed by
// every segment in order.
func (s *Session) buildContext(ctx context.Context) (string, error) {
	var b strings.Builder
	summary, ok, err := s.store.Summary(ctx)
	if err != nil {
		return "", fmt.Errorf("read summary: %w", err)
	}
	if ok {
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	segments, err := s.store.ListSegments(ctx)
	if err != nil {
		return "", fmt.Errorf("list segments: %w", err)
	}
	for i, seg := range segments {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(seg.Text)
	}
	return b.String(), nil
}

// Messages returns a copy of the log in order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Outstanding reports whether an answer is pending.
func (s *Session) Outstanding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outstanding
}

// Reset clears the log. An answer still in flight is discarded rather than
// appended to the fresh log.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.generation++
}
