package capture

import (
	"context"
	"errors"
	"strings"
)

// Format describes the encoding negotiated for one capture session. It is
// selected once at capture start and fixed for the session's lifetime.
type Format struct {
	MIME       string
	PCM        bool // raw little-endian 16-bit samples needing a WAV container
	SampleRate int
	Channels   int
}

// Chunk is one captured audio buffer, delivered in arrival order.
type Chunk struct {
	Sequence int
	Data     []byte
}

// Clip is a finalized audio object ready for transcription.
type Clip struct {
	MIME string
	Data []byte
}

var (
	ErrPermissionDenied  = errors.New("capture: permission denied")
	ErrDeviceUnavailable = errors.New("capture: device unavailable")
	ErrDeviceBusy        = errors.New("capture: device already acquired")
	ErrNotRecording      = errors.New("capture: session is not recording")
	ErrNotPaused         = errors.New("capture: session is not paused")
	ErrSessionStopped    = errors.New("capture: session already stopped")
	ErrNoSupportedFormat = errors.New("capture: no supported format")
)

// Device grants exclusive access to an audio input.
type Device interface {
	// Acquire opens the input. At most one handle is open at a time;
	// a second Acquire before Release fails with ErrDeviceBusy.
	Acquire(ctx context.Context) (Handle, error)
}

// Handle is an open input stream. Release is idempotent.
type Handle interface {
	Start(ctx context.Context, sessionID string) (Session, error)
	Release()
}

// Session produces chunks until stopped. Stop is asynchronous: the Chunks
// channel is closed only after every chunk for the session has been
// delivered, and no chunk follows the close.
type Session interface {
	Format() Format
	Chunks() <-chan Chunk
	Pause() error
	Resume() error
	Stop()
}

// SelectFormat picks the first preferred format the device supports.
func SelectFormat(preferred, supported []string) (string, error) {
	for _, want := range preferred {
		for _, have := range supported {
			if strings.EqualFold(want, have) {
				return have, nil
			}
		}
	}
	return "", ErrNoSupportedFormat
}
