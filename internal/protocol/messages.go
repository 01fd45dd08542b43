package protocol

import "time"

// AudioChunk carries one captured audio buffer from a capture front end.
type AudioChunk struct {
	SessionID string `json:"session_id"`
	Sequence  int    `json:"sequence"`
	MIME      string `json:"mime"`
	Data      []byte `json:"data"`
	Final     bool   `json:"final"`
}

// PhaseChange announces a recording controller transition.
type PhaseChange struct {
	Phase     string    `json:"phase"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SegmentAdded announces a new finalized transcript segment.
type SegmentAdded struct {
	SegmentID string    `json:"segment_id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"` // recording or upload
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectAudioChunkPrefix = "audio.chunk"
	SubjectPhaseChange      = "note.phase"
	SubjectSegmentAdded     = "note.segment.added"
)
