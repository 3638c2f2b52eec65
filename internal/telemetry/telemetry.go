package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/otaflow/ota-agent/api"
)

// Stage is the name of a timed pipeline step.
type Stage string

// Pipeline stages, in execution order.
const (
	StageDownloadManifest Stage = "download_manifest"
	StageParseManifest    Stage = "parse_manifest"
	StageStreamFirmware   Stage = "stream_firmware"
	StageVerifyHash       Stage = "verify_hash"
	StageVerifySignature  Stage = "verify_signature"
	StageFinalize         Stage = "ota_finalize"
)

// Sink receives stage metrics.
type Sink interface {
	Publish(ctx context.Context, metric api.StageMetric) error
}

// Marker is the start of a stage. It is a plain value handed from Start to End.
type Marker struct {
	start time.Time
}

// Recorder times stages and delivers the resulting metrics to its sinks.
type Recorder struct {
	sinks      []Sink
	now        func() time.Time
	freeMemory func() uint64
}

// NewRecorder returns a Recorder delivering to the provided sinks.
func NewRecorder(sinks ...Sink) *Recorder {
	return &Recorder{
		sinks:      sinks,
		now:        time.Now,
		freeMemory: FreeMemory,
	}
}

// Start marks the beginning of a stage.
func (r *Recorder) Start() Marker {
	return Marker{start: r.now()}
}

// End builds the metric for a completed stage and delivers it.
//
// Delivery is best-effort: sink failures are logged and otherwise ignored.
func (r *Recorder) End(ctx context.Context, m Marker, stage Stage) api.StageMetric {
	now := r.now()

	metric := api.StageMetric{
		Stage:     string(stage),
		ElapsedMS: now.Sub(m.start).Milliseconds(),
		FreeHeap:  r.freeMemory(),
		Algorithm: api.SignatureAlgorithm,
		Timestamp: now.Format(time.RFC3339),
	}

	for _, sink := range r.sinks {
		err := sink.Publish(ctx, metric)
		if err != nil {
			slog.WarnContext(ctx, "Failed to deliver stage metric", slog.String("stage", metric.Stage), slog.Any("error", err))
		}
	}

	return metric
}

// LogSink writes stage metrics to the default logger.
type LogSink struct{}

// Publish logs the metric.
func (LogSink) Publish(ctx context.Context, metric api.StageMetric) error {
	slog.InfoContext(ctx, "Stage completed",
		slog.String("stage", metric.Stage),
		slog.Int64("elapsed_ms", metric.ElapsedMS),
		slog.Uint64("free_heap", metric.FreeHeap),
	)

	return nil
}
