package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Najmul343/talk2write/internal/bus"
	"github.com/Najmul343/talk2write/internal/protocol"
	"github.com/nats-io/nats.go"
)

// RemoteDevice receives chunks published on the bus by an external capture
// front end (for example a browser gateway). Pause and Resume are owned by
// the front end; locally they only track ordering.
type RemoteDevice struct {
	Bus           *bus.Client
	SubjectPrefix string
	Preferred     []string
	SampleRate    int
	Channels      int

	mu   sync.Mutex
	busy bool
}

type remoteHandle struct {
	dev      *RemoteDevice
	mu       sync.Mutex
	released bool
	session  *remoteSession
}

type remoteSession struct {
	format Format
	sub    *nats.Subscription
	ch     chan Chunk

	mu      sync.Mutex
	seq     int
	paused  bool
	stopped bool
	finish  sync.Once
}

func (d *RemoteDevice) Acquire(_ context.Context) (Handle, error) {
	if d.Bus == nil || !d.Bus.Healthy() {
		return nil, fmt.Errorf("%w: bus not connected", ErrDeviceUnavailable)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return nil, ErrDeviceBusy
	}
	d.busy = true
	return &remoteHandle{dev: d}, nil
}

func (h *remoteHandle) Start(_ context.Context, sessionID string) (Session, error) {
	preferred := h.dev.Preferred
	if len(preferred) == 0 {
		preferred = []string{"audio/webm;codecs=opus"}
	}
	mime := preferred[0]

	s := &remoteSession{
		format: Format{
			MIME:       mime,
			PCM:        strings.EqualFold(mime, "audio/wav"),
			SampleRate: h.dev.SampleRate,
			Channels:   h.dev.Channels,
		},
		ch: make(chan Chunk, 256),
	}

	prefix := h.dev.SubjectPrefix
	if prefix == "" {
		prefix = protocol.SubjectAudioChunkPrefix
	}
	subject := prefix + "." + sessionID
	sub, err := h.dev.Bus.Conn().Subscribe(subject, s.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe audio chunks: %w", err)
	}
	s.sub = sub

	h.mu.Lock()
	h.session = s
	h.mu.Unlock()
	return s, nil
}

func (h *remoteHandle) Release() {
	h.mu.Lock()
	released := h.released
	h.released = true
	session := h.session
	h.mu.Unlock()
	if released {
		return
	}
	if session != nil {
		session.Stop()
	}
	h.dev.mu.Lock()
	h.dev.busy = false
	h.dev.mu.Unlock()
}

func (s *remoteSession) Format() Format       { return s.format }
func (s *remoteSession) Chunks() <-chan Chunk { return s.ch }

func (s *remoteSession) handle(msg *nats.Msg) {
	var chunk protocol.AudioChunk
	if err := json.Unmarshal(msg.Data, &chunk); err != nil {
		return
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if chunk.Final {
		s.stopped = true
	}
	if len(chunk.Data) > 0 {
		s.ch <- Chunk{Sequence: s.seq, Data: chunk.Data}
		s.seq++
	}
	final := chunk.Final
	s.mu.Unlock()
	if final {
		go s.close()
	}
}

func (s *remoteSession) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSessionStopped
	}
	if s.paused {
		return ErrNotRecording
	}
	s.paused = true
	return nil
}

func (s *remoteSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSessionStopped
	}
	if !s.paused {
		return ErrNotPaused
	}
	s.paused = false
	return nil
}

func (s *remoteSession) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.close()
}

func (s *remoteSession) close() {
	s.finish.Do(func() {
		if s.sub != nil {
			_ = s.sub.Unsubscribe()
		}
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}
