package core

import (
	"log/slog"
	"time"
)

// TelemetryHook receives notifications about edit lifecycle events.
//
// # Security Considerations
//
// Events carry operational metadata only. They never include the API key,
// the prompt, image data or the returned image URL (which is a bearer link to
// the result). Keep it that way when adding fields.
type TelemetryHook interface {
	// OnEditStart is called before the payload is built.
	OnEditStart(e EditStartEvent)

	// OnEditEnd is called once the pipeline finished or failed.
	OnEditEnd(e EditEndEvent)
}

// Pipeline stages, reported in EditEndEvent.Stage.
const (
	StageBuild    = "build"
	StageGenerate = "generate"
	StageExtract  = "extract"
	StageDownload = "download"
	StageDone     = "done"
)

// EditStartEvent describes an edit that is about to run.
type EditStartEvent struct {
	OpID     string
	Provider string
	Model    ModelID
	Images   int // number of input image references
	Start    time.Time
}

// EditEndEvent describes a finished edit. Stage is the last stage reached:
// StageDone on success, otherwise the stage that failed.
type EditEndEvent struct {
	OpID      string
	Provider  string
	Model     ModelID
	RequestID string
	Stage     string
	Bytes     int
	Start     time.Time
	End       time.Time
	Err       error
}

// Duration returns the elapsed time for the edit.
func (e EditEndEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// NoopTelemetryHook is a no-op implementation of TelemetryHook.
type NoopTelemetryHook struct{}

// OnEditStart does nothing.
func (NoopTelemetryHook) OnEditStart(EditStartEvent) {}

// OnEditEnd does nothing.
func (NoopTelemetryHook) OnEditEnd(EditEndEvent) {}

// SlogTelemetryHook writes lifecycle events to a slog.Logger.
type SlogTelemetryHook struct {
	Logger *slog.Logger
}

// OnEditStart logs at debug level.
func (h SlogTelemetryHook) OnEditStart(e EditStartEvent) {
	h.logger().Debug("edit start",
		"op_id", e.OpID,
		"provider", e.Provider,
		"model", string(e.Model),
		"images", e.Images,
	)
}

// OnEditEnd logs at debug level on success and at warn level on failure.
func (h SlogTelemetryHook) OnEditEnd(e EditEndEvent) {
	attrs := []any{
		"op_id", e.OpID,
		"provider", e.Provider,
		"model", string(e.Model),
		"stage", e.Stage,
		"duration", e.Duration(),
	}
	if e.RequestID != "" {
		attrs = append(attrs, "request_id", e.RequestID)
	}
	if e.Err != nil {
		h.logger().Warn("edit failed", append(attrs, "error", e.Err)...)
		return
	}
	h.logger().Debug("edit done", append(attrs, "bytes", e.Bytes)...)
}

func (h SlogTelemetryHook) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

var (
	_ TelemetryHook = NoopTelemetryHook{}
	_ TelemetryHook = SlogTelemetryHook{}
)
