package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// PortAudioDevice captures PCM from the default input device.
type PortAudioDevice struct {
	Preferred     []string
	SampleRate    int
	Channels      int
	ChunkDuration time.Duration

	mu          sync.Mutex
	busy        bool
	initialized bool
}

type paHandle struct {
	dev      *PortAudioDevice
	mu       sync.Mutex
	released bool
	session  *paSession
}

type paSession struct {
	format Format
	stream *portaudio.Stream
	buf    []int16
	ch     chan Chunk

	mu    sync.Mutex
	state int // 0 recording, 1 paused, 2 stopped
	wg    sync.WaitGroup
}

func (d *PortAudioDevice) Acquire(_ context.Context) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.busy {
		return nil, ErrDeviceBusy
	}
	if !d.initialized {
		if err := portaudio.Initialize(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		d.initialized = true
	}
	input, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if input.MaxInputChannels <= 0 {
		return nil, fmt.Errorf("%w: default device has no input channels", ErrDeviceUnavailable)
	}
	d.busy = true
	return &paHandle{dev: d}, nil
}

func (h *paHandle) Start(_ context.Context, _ string) (Session, error) {
	mime, err := SelectFormat(h.dev.Preferred, []string{"audio/wav"})
	if err != nil {
		return nil, err
	}

	chunkDur := h.dev.ChunkDuration
	if chunkDur <= 0 {
		chunkDur = 200 * time.Millisecond
	}
	frames := h.dev.SampleRate * int(chunkDur.Milliseconds()) / 1000
	if frames <= 0 {
		frames = h.dev.SampleRate / 5
	}

	s := &paSession{
		format: Format{
			MIME:       mime,
			PCM:        true,
			SampleRate: h.dev.SampleRate,
			Channels:   h.dev.Channels,
		},
		buf: make([]int16, frames*h.dev.Channels),
		ch:  make(chan Chunk, 16),
	}

	stream, err := portaudio.OpenDefaultStream(h.dev.Channels, 0, float64(h.dev.SampleRate), frames, s.buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	s.stream = stream
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	s.wg.Add(1)
	go s.pump()

	h.mu.Lock()
	h.session = s
	h.mu.Unlock()
	return s, nil
}

func (h *paHandle) Release() {
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
		session.wg.Wait()
	}
	h.dev.mu.Lock()
	h.dev.busy = false
	h.dev.mu.Unlock()
}

func (s *paSession) Format() Format       { return s.format }
func (s *paSession) Chunks() <-chan Chunk { return s.ch }

func (s *paSession) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case 2:
		return ErrSessionStopped
	case 1:
		return ErrNotRecording
	}
	s.state = 1
	return nil
}

func (s *paSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case 2:
		return ErrSessionStopped
	case 0:
		return ErrNotPaused
	}
	s.state = 0
	return nil
}

func (s *paSession) Stop() {
	s.mu.Lock()
	if s.state == 2 {
		s.mu.Unlock()
		return
	}
	s.state = 2
	s.mu.Unlock()
}

// pump reads fixed-size frames off the stream and forwards them as chunks.
// A read already in flight when Stop is called still delivers its chunk;
// the channel closes only after that, which is the stop-completion signal.
func (s *paSession) pump() {
	defer s.wg.Done()
	seq := 0
	for {
		s.mu.Lock()
		stopped := s.state == 2
		paused := s.state == 1
		s.mu.Unlock()
		if stopped {
			break
		}
		if err := s.stream.Read(); err != nil {
			break
		}
		if paused {
			// Hardware keeps the stream warm; paused frames are discarded.
			continue
		}
		data := make([]byte, len(s.buf)*2)
		for i, v := range s.buf {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
		}
		s.ch <- Chunk{Sequence: seq, Data: data}
		seq++
	}
	_ = s.stream.Stop()
	_ = s.stream.Close()
	close(s.ch)
}
