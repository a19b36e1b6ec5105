package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider performs the remote multimodal generation call.
// Providers SHOULD be safe for concurrent calls.
type Provider interface {
	// ID returns the provider identifier (e.g. "dashscope").
	ID() string

	// Generate sends one non-streaming generation request.
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error)
}

// Fetcher downloads the bytes behind a result URL.
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// EditRequest is the caller-facing description of one edit.
type EditRequest struct {
	APIKey         Secret
	Model          ModelID // defaults to ModelQwenImageEdit
	Images         []string
	Prompt         string
	NegativePrompt string
	Watermark      bool
}

// EditResult is the outcome of a successful edit.
type EditResult struct {
	OpID      string
	RequestID string
	ImageURL  string
	Data      []byte
	Response  *GenerationResponse
}

// Editor runs the build → generate → extract → download pipeline.
// It holds no per-run state and is safe for concurrent use, but callers are
// expected to run one edit at a time.
type Editor struct {
	provider  Provider
	fetcher   Fetcher
	telemetry TelemetryHook
	logger    *slog.Logger
	observer  func(*GenerationResponse)
	now       func() time.Time
}

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithTelemetry sets the telemetry hook.
func WithTelemetry(h TelemetryHook) EditorOption {
	return func(e *Editor) {
		if h != nil {
			e.telemetry = h
		}
	}
}

// WithLogger sets the logger used for stage-level debug output.
func WithLogger(l *slog.Logger) EditorOption {
	return func(e *Editor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithResponseObserver registers fn to receive the raw generation response
// before the image URL is extracted. The CLI uses it to print the response.
func WithResponseObserver(fn func(*GenerationResponse)) EditorOption {
	return func(e *Editor) {
		e.observer = fn
	}
}

// NewEditor creates an Editor.
func NewEditor(p Provider, f Fetcher, opts ...EditorOption) *Editor {
	e := &Editor{
		provider:  p,
		fetcher:   f,
		telemetry: NoopTelemetryHook{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks the request before any I/O happens.
func (r *EditRequest) Validate() error {
	if len(r.Images) == 0 {
		return &ValidationError{Field: "images", Message: "at least one image is required"}
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return &ValidationError{Field: "prompt", Message: "prompt is required"}
	}
	return nil
}

func (r *EditRequest) model() ModelID {
	if r.Model == "" {
		return ModelQwenImageEdit
	}
	return r.Model
}

// Generate builds the payload and performs the remote call.
func (e *Editor) Generate(ctx context.Context, req *EditRequest) (*GenerationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	messages, err := BuildMessages(req.Images, req.Prompt)
	if err != nil {
		return nil, err
	}

	return e.provider.Generate(ctx, &GenerationRequest{
		APIKey:         req.APIKey,
		Model:          req.model(),
		Messages:       messages,
		NegativePrompt: req.NegativePrompt,
		Watermark:      req.Watermark,
	})
}

// Download extracts the image URL from resp and fetches it.
func (e *Editor) Download(ctx context.Context, resp *GenerationResponse) (*EditResult, error) {
	imageURL, err := ExtractImageURL(resp.Body)
	if err != nil {
		return nil, err
	}

	data, err := e.fetcher.FetchBytes(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	return &EditResult{
		RequestID: resp.RequestID,
		ImageURL:  imageURL,
		Data:      data,
		Response:  resp,
	}, nil
}

// Edit runs the whole pipeline and returns the downloaded image bytes.
// Any failure aborts the run; nothing is retried.
func (e *Editor) Edit(ctx context.Context, req *EditRequest) (*EditResult, error) {
	opID := uuid.NewString()
	start := e.now()
	log := e.logger.With("op_id", opID)

	e.telemetry.OnEditStart(EditStartEvent{
		OpID:     opID,
		Provider: e.provider.ID(),
		Model:    req.model(),
		Images:   len(req.Images),
		Start:    start,
	})

	end := EditEndEvent{
		OpID:     opID,
		Provider: e.provider.ID(),
		Model:    req.model(),
		Start:    start,
	}
	finish := func(stage string, err error) {
		end.Stage = stage
		end.Err = err
		end.End = e.now()
		e.telemetry.OnEditEnd(end)
	}

	log.Debug("calling provider", "provider", e.provider.ID(), "images", len(req.Images))
	resp, err := e.Generate(ctx, req)
	if err != nil {
		finish(stageOf(err), err)
		return nil, err
	}
	end.RequestID = resp.RequestID
	log.Debug("provider responded", "request_id", resp.RequestID, "status", resp.Status)

	if e.observer != nil {
		e.observer(resp)
	}

	result, err := e.Download(ctx, resp)
	if err != nil {
		stage := StageDownload
		if _, ok := err.(*ResponseError); ok {
			stage = StageExtract
		}
		finish(stage, err)
		return nil, err
	}
	result.OpID = opID
	end.Bytes = len(result.Data)
	log.Debug("downloaded result", "bytes", len(result.Data))

	finish(StageDone, nil)
	return result, nil
}

// EditToFile runs Edit and writes the image bytes to dest, replacing any
// existing file.
func (e *Editor) EditToFile(ctx context.Context, req *EditRequest, dest string) (*EditResult, error) {
	result, err := e.Edit(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(dest, result.Data, 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", dest, err)
	}
	return result, nil
}

// stageOf classifies errors returned by Generate.
func stageOf(err error) string {
	switch err.(type) {
	case *ValidationError, *NotFoundError:
		return StageBuild
	}
	return StageGenerate
}
