package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Najmul343/talk2write/internal/bus"
	"github.com/Najmul343/talk2write/internal/capture"
	"github.com/Najmul343/talk2write/internal/language"
	"github.com/Najmul343/talk2write/internal/notebook"
	"github.com/google/uuid"
)

// Phase is the discrete state of the recording controller.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRecording  Phase = "recording"
	PhasePaused     Phase = "paused"
	PhaseProcessing Phase = "processing"
	PhaseError      Phase = "error"
)

var (
	ErrInvalidTransition = errors.New("session: invalid transition")
	ErrPayloadTooLarge   = errors.New("session: payload too large")
)

// Options wires a controller.
type Options struct {
	Device         capture.Device
	Client         language.Client
	Store          *notebook.Store
	Bus            *bus.Client
	Logger         *slog.Logger
	SettleDelay    time.Duration
	MaxUploadBytes int64
}

// Controller owns the capture device and the recording lifecycle. One
// instance exists per process; all mutation is serialized by its mutex, and
// a single pump goroutine appends device chunks in arrival order.
type Controller struct {
	device         capture.Device
	client         language.Client
	store          *notebook.Store
	bus            *bus.Client
	logger         *slog.Logger
	settleDelay    time.Duration
	maxUploadBytes int64
	metrics        *controllerMetrics
	clock          func() time.Time

	mu          sync.Mutex
	phase       Phase
	lastError   string
	starting    bool
	handle      capture.Handle
	capSession  capture.Session
	chunks      []capture.Chunk
	format      capture.Format
	recordingID string
	pumpDone    chan struct{}
}

// State is a consistent snapshot for the presentation layer.
type State struct {
	Phase         Phase  `json:"phase"`
	LastError     string `json:"last_error,omitempty"`
	PendingChunks int    `json:"pending_chunks"`
	RecordingID   string `json:"recording_id,omitempty"`
}

func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		device:         opts.Device,
		client:         opts.Client,
		store:          opts.Store,
		bus:            opts.Bus,
		logger:         logger.With(slog.String("component", "session-controller")),
		settleDelay:    opts.SettleDelay,
		maxUploadBytes: opts.MaxUploadBytes,
		clock:          time.Now,
		phase:          PhaseIdle,
	}
	c.metrics = newControllerMetrics(c.logger)
	return c
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Phase:         c.phase,
		LastError:     c.lastError,
		PendingChunks: len(c.chunks),
		RecordingID:   c.recordingID,
	}
}

// Start acquires the device and begins capture. Allowed from Idle and from
// Error, so a failed acquisition can be retried directly.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.starting || (c.phase != PhaseIdle && c.phase != PhaseError) {
		c.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, c.phase)
	}
	c.starting = true
	c.mu.Unlock()

	handle, err := c.device.Acquire(ctx)
	if err != nil {
		c.toError(err)
		return err
	}

	recordingID := uuid.NewString()
	sess, err := handle.Start(ctx, recordingID)
	if err != nil {
		handle.Release()
		c.toError(err)
		return err
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.starting = false
	c.phase = PhaseRecording
	c.lastError = ""
	c.handle = handle
	c.capSession = sess
	c.chunks = nil
	c.format = sess.Format()
	c.recordingID = recordingID
	c.pumpDone = done
	c.mu.Unlock()

	go c.pump(sess, done)

	c.metrics.recordingStarted(ctx)
	c.publishPhase(PhaseRecording, "")
	c.logger.Info("recording started",
		slog.String("recording_id", recordingID),
		slog.String("format", c.format.MIME))
	return nil
}

func (c *Controller) toError(err error) {
	c.mu.Lock()
	c.starting = false
	c.phase = PhaseError
	c.lastError = err.Error()
	c.handle = nil
	c.capSession = nil
	c.chunks = nil
	c.mu.Unlock()
	c.publishPhase(PhaseError, err.Error())
	c.logger.Warn("device acquisition failed", slog.String("error", err.Error()))
}

// pump forwards device chunks into the buffer in arrival order. Chunks that
// arrive after the controller has moved on (Cancel, Restart) are dropped.
func (c *Controller) pump(sess capture.Session, done chan struct{}) {
	for chunk := range sess.Chunks() {
		c.mu.Lock()
		if c.capSession == sess {
			c.chunks = append(c.chunks, chunk)
		}
		c.mu.Unlock()
	}
	close(done)
}

// Pause suspends capture without dropping buffered chunks.
func (c *Controller) Pause(_ context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseRecording {
		c.mu.Unlock()
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, c.phase)
	}
	if err := c.capSession.Pause(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.phase = PhasePaused
	c.mu.Unlock()
	c.publishPhase(PhasePaused, "")
	return nil
}

// Resume continues capture into the same chunk buffer.
func (c *Controller) Resume(_ context.Context) error {
	c.mu.Lock()
	if c.phase != PhasePaused {
		c.mu.Unlock()
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, c.phase)
	}
	if err := c.capSession.Resume(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.phase = PhaseRecording
	c.mu.Unlock()
	c.publishPhase(PhaseRecording, "")
	return nil
}

// Cancel abandons the in-progress recording: capture stops, the buffer and
// device are discarded, and no transcription happens.
func (c *Controller) Cancel(_ context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseRecording && c.phase != PhasePaused {
		c.mu.Unlock()
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, c.phase)
	}
	handle := c.handle
	done := c.pumpDone
	c.phase = PhaseIdle
	c.lastError = ""
	c.handle = nil
	c.capSession = nil
	c.chunks = nil
	c.recordingID = ""
	c.mu.Unlock()

	handle.Release()
	<-done

	c.publishPhase(PhaseIdle, "cancelled")
	c.logger.Info("recording cancelled")
	return nil
}

// Restart discards the current recording and immediately starts a new one,
// after a settle delay that lets the device release before re-acquisition.
func (c *Controller) Restart(ctx context.Context) error {
	if err := c.Cancel(ctx); err != nil {
		return err
	}
	if c.settleDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.settleDelay):
		}
	}
	return c.Start(ctx)
}

// Finalize stops capture, waits for the stop-completion signal, assembles the
// buffered chunks into one clip, and submits it for transcription. The audio
// object is never constructed before the completion signal fires.
func (c *Controller) Finalize(ctx context.Context) (notebook.Segment, error) {
	c.mu.Lock()
	if c.phase != PhaseRecording && c.phase != PhasePaused {
		c.mu.Unlock()
		return notebook.Segment{}, fmt.Errorf("%w: finalize from %s", ErrInvalidTransition, c.phase)
	}
	c.phase = PhaseProcessing
	sess := c.capSession
	handle := c.handle
	format := c.format
	done := c.pumpDone
	recordingID := c.recordingID
	c.mu.Unlock()
	c.publishPhase(PhaseProcessing, "")

	sess.Stop()
	<-done

	c.mu.Lock()
	chunks := c.chunks
	c.chunks = nil
	c.capSession = nil
	c.handle = nil
	c.recordingID = ""
	c.mu.Unlock()
	handle.Release()

	clip, err := capture.BuildClip(format, chunks)
	if err != nil {
		return notebook.Segment{}, c.failProcessing(ctx, fmt.Errorf("assemble clip: %w", err))
	}

	c.logger.Info("recording finalized",
		slog.String("recording_id", recordingID),
		slog.Int("chunks", len(chunks)),
		slog.Int("bytes", len(clip.Data)))

	return c.transcribe(ctx, language.Audio{MIME: clip.MIME, Data: clip.Data}, "recording")
}

// SubmitClip bypasses capture: an externally supplied audio or video object
// goes straight to transcription. Oversized payloads are rejected before any
// state change.
func (c *Controller) SubmitClip(ctx context.Context, mime string, data []byte) (notebook.Segment, error) {
	if c.maxUploadBytes > 0 && int64(len(data)) > c.maxUploadBytes {
		c.metrics.uploadRejected(ctx)
		return notebook.Segment{}, fmt.Errorf("%w: %d bytes exceeds limit of %d",
			ErrPayloadTooLarge, len(data), c.maxUploadBytes)
	}

	c.mu.Lock()
	// The starting guard closes the window where an upload could slip in
	// while Start holds no lock during device acquisition.
	if c.starting || c.phase != PhaseIdle {
		c.mu.Unlock()
		return notebook.Segment{}, fmt.Errorf("%w: upload from %s", ErrInvalidTransition, c.phase)
	}
	c.phase = PhaseProcessing
	c.mu.Unlock()
	c.publishPhase(PhaseProcessing, "upload")

	return c.transcribe(ctx, language.Audio{MIME: mime, Data: data}, "upload")
}

func (c *Controller) transcribe(ctx context.Context, audio language.Audio, source string) (notebook.Segment, error) {
	text, err := c.client.Transcribe(ctx, audio)
	if err != nil {
		return notebook.Segment{}, c.failProcessing(ctx, err)
	}

	seg := notebook.Segment{
		ID:        c.newSegmentID(),
		Text:      text,
		Source:    source,
		CreatedAt: c.clock().UTC(),
	}
	if err := c.store.Append(ctx, seg); err != nil {
		return notebook.Segment{}, c.failProcessing(ctx, err)
	}

	c.mu.Lock()
	// Restore Idle only if this operation still owns the phase; a concurrent
	// transition must not be clobbered.
	restored := c.phase == PhaseProcessing
	if restored {
		c.phase = PhaseIdle
		c.lastError = ""
	}
	c.mu.Unlock()

	c.metrics.segmentCreated(ctx, source)
	if restored {
		c.publishPhase(PhaseIdle, "")
	}
	c.publishSegment(seg)
	return seg, nil
}

// failProcessing routes a processing failure back to Idle so the user can
// retry immediately; prior segments are untouched.
func (c *Controller) failProcessing(ctx context.Context, err error) error {
	c.mu.Lock()
	restored := c.phase == PhaseProcessing
	if restored {
		c.phase = PhaseIdle
	}
	c.lastError = err.Error()
	c.mu.Unlock()
	c.metrics.transcriptionFailed(ctx)
	if restored {
		c.publishPhase(PhaseIdle, err.Error())
	}
	c.logger.Warn("processing failed", slog.String("error", err.Error()))
	return err
}

// Close releases any still-open device handle.
func (c *Controller) Close() {
	c.mu.Lock()
	handle := c.handle
	done := c.pumpDone
	c.handle = nil
	c.capSession = nil
	c.chunks = nil
	c.phase = PhaseIdle
	c.mu.Unlock()
	if handle != nil {
		handle.Release()
		<-done
	}
}

// newSegmentID combines a timestamp with a disambiguator so ids sort by
// creation time and never collide.
func (c *Controller) newSegmentID() string {
	return fmt.Sprintf("%d-%s", c.clock().UnixMilli(), uuid.NewString()[:8])
}
