package session

import (
	"encoding/json"
	"log/slog"

	"github.com/Najmul343/talk2write/internal/notebook"
	"github.com/Najmul343/talk2write/internal/protocol"
)

// Event publication is best effort: the controller works without a bus, and
// a publish failure never affects a transition.

func (c *Controller) publishPhase(phase Phase, reason string) {
	if c.bus == nil || !c.bus.Healthy() {
		return
	}
	msg := protocol.PhaseChange{
		Phase:     string(phase),
		Reason:    reason,
		Timestamp: c.clock().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := c.bus.Conn().Publish(protocol.SubjectPhaseChange, data); err != nil {
		c.logger.Warn("failed to publish phase change", slog.String("error", err.Error()))
	}
}

func (c *Controller) publishSegment(seg notebook.Segment) {
	if c.bus == nil || !c.bus.Healthy() {
		return
	}
	msg := protocol.SegmentAdded{
		SegmentID: seg.ID,
		Text:      seg.Text,
		Source:    seg.Source,
		Timestamp: seg.CreatedAt,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := c.bus.Conn().Publish(protocol.SubjectSegmentAdded, data); err != nil {
		c.logger.Warn("failed to publish segment", slog.String("error", err.Error()))
	}
}
