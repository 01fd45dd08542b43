package session

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type controllerMetrics struct {
	recordingsStarted     metric.Int64Counter
	segmentsCreated       metric.Int64Counter
	transcriptionFailures metric.Int64Counter
	uploadsRejected       metric.Int64Counter
}

func newControllerMetrics(log *slog.Logger) *controllerMetrics {
	meter := otel.Meter("github.com/Najmul343/talk2write/session")
	m := &controllerMetrics{}
	var err error

	m.recordingsStarted, err = meter.Int64Counter("t2w.recordings.started",
		metric.WithDescription("Recordings started"))
	if err != nil {
		log.Warn("failed to create counter", slog.String("error", err.Error()))
	}
	m.segmentsCreated, err = meter.Int64Counter("t2w.segments.created",
		metric.WithDescription("Transcript segments created"))
	if err != nil {
		log.Warn("failed to create counter", slog.String("error", err.Error()))
	}
	m.transcriptionFailures, err = meter.Int64Counter("t2w.transcriptions.failed",
		metric.WithDescription("Failed transcription attempts"))
	if err != nil {
		log.Warn("failed to create counter", slog.String("error", err.Error()))
	}
	m.uploadsRejected, err = meter.Int64Counter("t2w.uploads.rejected",
		metric.WithDescription("Uploads rejected for exceeding the size limit"))
	if err != nil {
		log.Warn("failed to create counter", slog.String("error", err.Error()))
	}
	return m
}

func (m *controllerMetrics) recordingStarted(ctx context.Context) {
	if m.recordingsStarted != nil {
		m.recordingsStarted.Add(ctx, 1)
	}
}

func (m *controllerMetrics) segmentCreated(ctx context.Context, source string) {
	if m.segmentsCreated != nil {
		m.segmentsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	}
}

func (m *controllerMetrics) transcriptionFailed(ctx context.Context) {
	if m.transcriptionFailures != nil {
		m.transcriptionFailures.Add(ctx, 1)
	}
}

func (m *controllerMetrics) uploadRejected(ctx context.Context) {
	if m.uploadsRejected != nil {
		m.uploadsRejected.Add(ctx, 1)
	}
}
