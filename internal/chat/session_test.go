package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/Najmul343/talk2write/internal/config"
	"github.com/Najmul343/talk2write/internal/language"
	"github.com/Najmul343/talk2write/internal/notebook"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *notebook.Store {
	t.Helper()
	store, err := notebook.Open(context.Background(), config.NotebookConfig{
		RetentionMode: "ephemeral",
	}, testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// blockingClient parks Answer until released, to exercise the outstanding
// guard and reset-during-flight behavior.
type blockingClient struct {
	language.MockClient
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func newBlockingClient() *blockingClient {
	return &blockingClient{
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
}

func (c *blockingClient) Answer(ctx context.Context, contextText, question string) (string, error) {
	c.once.Do(func() { close(c.started) })
	<-c.release
	return c.MockClient.Answer(ctx, contextText, question)
}

func TestAskAppendsQuestionAndAnswer(t *testing.T) {
	store := newTestStore(t)
	client := &language.MockClient{AnswerText: "یہ جواب ہے"}
	s := NewSession(store, client, testLogger())

	msg, err := s.Ask(context.Background(), "سوال کیا ہے؟")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if msg.Role != RoleAssistant || msg.Text != "یہ جواب ہے" {
		t.Fatalf("answer = %+v, want assistant reply", msg)
	}

	log := s.Messages()
	if len(log) != 2 {
		t.Fatalf("got %d messages, want 2", len(log))
	}
	if log[0].Role != RoleUser || log[0].Text != "سوال کیا ہے؟" {
		t.Fatalf("first message = %+v, want the user question", log[0])
	}
	if log[1].ID == log[0].ID {
		t.Fatal("messages share an id")
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	s := NewSession(newTestStore(t), language.NewMockClient(), testLogger())
	if _, err := s.Ask(context.Background(), "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("got %v, want ErrEmptyQuestion", err)
	}
	if len(s.Messages()) != 0 {
		t.Fatal("rejected question still appended")
	}
}

func TestAskUsesNotebookContext(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Append(ctx, notebook.Segment{ID: "a", Text: "پہلا نوٹ"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, notebook.Segment{ID: "b", Text: "دوسرا نوٹ"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.SetSummary(ctx, "خلاصہ"); err != nil {
		t.Fatalf("set summary: %v", err)
	}

	var captured string
	client := &capturingAnswerClient{onAnswer: func(contextText string) { captured = contextText }}
	s := NewSession(store, client, testLogger())

	if _, err := s.Ask(ctx, "کیا ہوا؟"); err != nil {
		t.Fatalf("ask: %v", err)
	}

	want := "خلاصہ\n\nپہلا نوٹ\n\nدوسرا نوٹ"
	if captured != want {
		t.Fatalf("context = %q, want %q", captured, want)
	}
}

type capturingAnswerClient struct {
	language.MockClient
	onAnswer func(contextText string)
}

func (c *capturingAnswerClient) Answer(ctx context.Context, contextText, question string) (string, error) {
	c.onAnswer(contextText)
	return c.MockClient.Answer(ctx, contextText, question)
}

func TestAskFailureAppendsPlaceholder(t *testing.T) {
	client := &language.MockClient{AnswerErr: errors.New("remote down")}
	s := NewSession(newTestStore(t), client, testLogger())

	msg, err := s.Ask(context.Background(), "سوال")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if msg.Text != language.PlaceholderAnswer {
		t.Fatalf("answer = %q, want the placeholder", msg.Text)
	}
	log := s.Messages()
	if len(log) != 2 {
		t.Fatalf("got %d messages, want question plus placeholder", len(log))
	}
}

func TestAskBlankAnswerBecomesPlaceholder(t *testing.T) {
	client := &language.MockClient{AnswerText: "   "}
	s := NewSession(newTestStore(t), client, testLogger())

	msg, err := s.Ask(context.Background(), "سوال")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.Contains(msg.Text, "معذرت") {
		t.Fatalf("answer = %q, want the placeholder", msg.Text)
	}
}

func TestSingleOutstandingQuestion(t *testing.T) {
	client := newBlockingClient()
	s := NewSession(newTestStore(t), client, testLogger())

	errc := make(chan error, 1)
	go func() {
		_, err := s.Ask(context.Background(), "پہلا سوال")
		errc <- err
	}()
	<-client.started

	if _, err := s.Ask(context.Background(), "دوسرا سوال"); !errors.Is(err, ErrQuestionOutstanding) {
		t.Fatalf("got %v, want ErrQuestionOutstanding", err)
	}
	if !s.Outstanding() {
		t.Fatal("outstanding flag not set while answer pending")
	}

	close(client.release)
	if err := <-errc; err != nil {
		t.Fatalf("first ask: %v", err)
	}
	if s.Outstanding() {
		t.Fatal("outstanding flag still set after answer")
	}

	if _, err := s.Ask(context.Background(), "تیسرا سوال"); err != nil {
		t.Fatalf("follow-up ask: %v", err)
	}
}

func TestResetDiscardsInFlightAnswer(t *testing.T) {
	client := newBlockingClient()
	s := NewSession(newTestStore(t), client, testLogger())

	var msg Message
	var askErr error
	done := make(chan struct{})
	go func() {
		msg, askErr = s.Ask(context.Background(), "پرانا سوال")
		close(done)
	}()
	<-client.started

	s.Reset()
	close(client.release)
	<-done

	if !errors.Is(askErr, ErrSessionReset) {
		t.Fatalf("discarded ask returned err %v, want ErrSessionReset", askErr)
	}
	if msg != (Message{}) {
		t.Fatalf("discarded ask returned %+v, want the zero message", msg)
	}
	if got := s.Messages(); len(got) != 0 {
		t.Fatalf("log after reset = %+v, want empty", got)
	}
}

func TestResetClearsLog(t *testing.T) {
	s := NewSession(newTestStore(t), language.NewMockClient(), testLogger())
	if _, err := s.Ask(context.Background(), "سوال"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	s.Reset()
	if len(s.Messages()) != 0 {
		t.Fatal("log not cleared")
	}
}
