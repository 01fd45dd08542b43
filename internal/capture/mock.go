package capture

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MockDevice is a deterministic capture device for tests and development.
type MockDevice struct {
	Preferred  []string
	Supported  []string
	SampleRate int
	Channels   int

	// AcquireErr, when set, is returned from Acquire to simulate a denied
	// or missing microphone.
	AcquireErr error

	// FinalData, when set, is delivered after Stop and before the chunk
	// channel closes, mirroring a device that flushes a trailing buffer.
	FinalData []byte

	// ChunkInterval enables self-feeding with synthetic chunks. Zero means
	// chunks arrive only through Feed.
	ChunkInterval time.Duration

	mu   sync.Mutex
	busy bool
	last *MockSession
}

type mockHandle struct {
	dev      *MockDevice
	mu       sync.Mutex
	released bool
	session  *MockSession
}

// MockSession implements Session with an externally fed chunk stream.
type MockSession struct {
	format    Format
	ch        chan Chunk
	finalData []byte

	mu      sync.Mutex
	seq     int
	paused  bool
	stopped bool
	ticker  *time.Ticker
	done    chan struct{}
}

func (d *MockDevice) Acquire(_ context.Context) (Handle, error) {
	if d.AcquireErr != nil {
		return nil, d.AcquireErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return nil, ErrDeviceBusy
	}
	d.busy = true
	return &mockHandle{dev: d}, nil
}

// LastSession returns the most recently started session, for tests.
func (d *MockDevice) LastSession() *MockSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func (h *mockHandle) Start(_ context.Context, _ string) (Session, error) {
	supported := h.dev.Supported
	if len(supported) == 0 {
		supported = []string{"audio/webm;codecs=opus", "audio/wav"}
	}
	preferred := h.dev.Preferred
	if len(preferred) == 0 {
		preferred = supported
	}
	mime, err := SelectFormat(preferred, supported)
	if err != nil {
		return nil, err
	}

	s := &MockSession{
		format: Format{
			MIME:       mime,
			PCM:        strings.EqualFold(mime, "audio/wav"),
			SampleRate: h.dev.SampleRate,
			Channels:   h.dev.Channels,
		},
		ch:        make(chan Chunk, 64),
		finalData: h.dev.FinalData,
		done:      make(chan struct{}),
	}
	if h.dev.ChunkInterval > 0 {
		s.ticker = time.NewTicker(h.dev.ChunkInterval)
		go s.selfFeed()
	}

	h.mu.Lock()
	h.session = s
	h.mu.Unlock()
	h.dev.mu.Lock()
	h.dev.last = s
	h.dev.mu.Unlock()
	return s, nil
}

func (h *mockHandle) Release() {
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

func (s *MockSession) Format() Format       { return s.format }
func (s *MockSession) Chunks() <-chan Chunk { return s.ch }

// Feed delivers one chunk as if the device produced it.
func (s *MockSession) Feed(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSessionStopped
	}
	if s.paused {
		return ErrNotRecording
	}
	s.ch <- Chunk{Sequence: s.seq, Data: data}
	s.seq++
	return nil
}

func (s *MockSession) Pause() error {
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

func (s *MockSession) Resume() error {
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

func (s *MockSession) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.done)
	if s.finalData != nil {
		s.ch <- Chunk{Sequence: s.seq, Data: s.finalData}
		s.seq++
	}
	close(s.ch)
	s.mu.Unlock()
}

func (s *MockSession) selfFeed() {
	var counter byte
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			counter++
			_ = s.Feed([]byte{counter, counter})
		}
	}
}
