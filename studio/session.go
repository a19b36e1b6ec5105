package studio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/petal-labs/qwen-edit/core"
)

// MaxSlots is the number of input image slots.
const MaxSlots = 3

// Status lines shown by the front end.
const (
	StatusIdle       = "Idle"
	StatusGenerating = "Generating..."
	StatusDone       = "Done"
)

var (
	// ErrBusy is returned by Generate while a generation is in flight.
	ErrBusy = errors.New("a generation is already running")

	// ErrNothingToSave is returned by Save before any successful generation.
	ErrNothingToSave = errors.New("there is no result to save")
)

// Runner executes one edit. *core.Editor satisfies it.
type Runner interface {
	Edit(ctx context.Context, req *core.EditRequest) (*core.EditResult, error)
}

// Config holds session defaults.
type Config struct {
	Model          core.ModelID
	APIKey         core.Secret
	NegativePrompt string
	Watermark      bool
	PreviewSize    int // bounding box for input thumbnails, in pixels
	OutputSize     int // bounding box for the result thumbnail, in pixels
}

// DefaultConfig returns the defaults used when no config file sets them.
func DefaultConfig() Config {
	return Config{
		Model:       core.ModelQwenImageEdit,
		Watermark:   true,
		PreviewSize: 200,
		OutputSize:  420,
	}
}

// Slot is one input image position.
type Slot struct {
	Path       string
	Included   bool
	Preview    image.Image // nil when no path is set or decoding failed
	PreviewErr error
}

// Result is posted by the worker when a generation ends.
type Result struct {
	Data      []byte
	ImageURL  string
	RequestID string
	Err       error
}

// Session is the state behind the studio front end. All methods except the
// worker started by Generate must be called from one foreground goroutine;
// the worker only communicates through the Events channel.
type Session struct {
	runner Runner
	cfg    Config

	slots          [MaxSlots]Slot
	Prompt         string
	NegativePrompt string
	APIKey         core.Secret
	Watermark      bool

	busy          bool
	status        string
	output        []byte
	outputPreview image.Image
	events        chan Result
}

// NewSession creates a session. Zero-valued preview sizes fall back to
// DefaultConfig.
func NewSession(r Runner, cfg Config) *Session {
	def := DefaultConfig()
	if cfg.PreviewSize <= 0 {
		cfg.PreviewSize = def.PreviewSize
	}
	if cfg.OutputSize <= 0 {
		cfg.OutputSize = def.OutputSize
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}

	s := &Session{
		runner:         r,
		cfg:            cfg,
		NegativePrompt: cfg.NegativePrompt,
		APIKey:         cfg.APIKey,
		Watermark:      cfg.Watermark,
		status:         StatusIdle,
		// One in-flight job at most, so the worker never blocks on send.
		events: make(chan Result, 1),
	}
	s.slots[0].Included = true
	return s
}

func checkSlot(n int) error {
	if n < 1 || n > MaxSlots {
		return fmt.Errorf("slot must be between 1 and %d", MaxSlots)
	}
	return nil
}

// Slot returns a copy of slot n (1-based).
func (s *Session) Slot(n int) (Slot, error) {
	if err := checkSlot(n); err != nil {
		return Slot{}, err
	}
	return s.slots[n-1], nil
}

// SelectImage records path for slot n and decodes a thumbnail. A decode
// failure is returned but the selection is kept; the image may still be
// accepted by the service. Selecting an image for slot 2 or 3 does not
// include it; see SetIncluded.
func (s *Session) SelectImage(n int, path string) error {
	if err := checkSlot(n); err != nil {
		return err
	}
	slot := &s.slots[n-1]
	slot.Path = path
	slot.Preview, slot.PreviewErr = LoadThumbnail(path, s.cfg.PreviewSize)
	if slot.PreviewErr != nil {
		return fmt.Errorf("image preview failed: %w", slot.PreviewErr)
	}
	return nil
}

// SetIncluded toggles whether slot n takes part in the next generation.
// Slot 1 is always included.
func (s *Session) SetIncluded(n int, on bool) error {
	if err := checkSlot(n); err != nil {
		return err
	}
	if n == 1 && !on {
		return errors.New("image 1 is always included")
	}
	s.slots[n-1].Included = on
	return nil
}

// Busy reports whether a generation is in flight.
func (s *Session) Busy() bool { return s.busy }

// Status returns the current status line.
func (s *Session) Status() string { return s.status }

// Events delivers worker results. The front end passes each one to Apply.
func (s *Session) Events() <-chan Result { return s.events }

// OutputPreview returns the thumbnail of the last result, if any.
func (s *Session) OutputPreview() image.Image { return s.outputPreview }

// CanSave reports whether a displayed result is available for saving.
func (s *Session) CanSave() bool {
	return !s.busy && len(s.output) > 0 && s.outputPreview != nil
}

// buildRequest validates the inputs in the order the user sees them and
// returns the request for the worker.
func (s *Session) buildRequest() (*core.EditRequest, error) {
	if s.slots[0].Path == "" {
		return nil, &core.ValidationError{Field: "image1", Message: "select an image"}
	}
	images := []string{s.slots[0].Path}
	for i := 1; i < MaxSlots; i++ {
		slot := s.slots[i]
		if !slot.Included {
			continue
		}
		if slot.Path == "" {
			return nil, &core.ValidationError{
				Field:   fmt.Sprintf("image%d", i+1),
				Message: fmt.Sprintf("select image %d", i+1),
			}
		}
		images = append(images, slot.Path)
	}

	key := strings.TrimSpace(s.APIKey.Expose())
	if key == "" {
		return nil, &core.ValidationError{Field: "api_key", Message: "enter an API key"}
	}

	prompt := strings.TrimSpace(s.Prompt)
	if prompt == "" {
		return nil, &core.ValidationError{Field: "prompt", Message: "enter a prompt"}
	}

	return &core.EditRequest{
		APIKey:         core.NewSecret(key),
		Model:          s.cfg.Model,
		Images:         images,
		Prompt:         prompt,
		NegativePrompt: strings.TrimSpace(s.NegativePrompt),
		Watermark:      s.Watermark,
	}, nil
}

// Generate validates the inputs and, if they are complete, starts the
// pipeline on a worker goroutine. Validation errors are returned without any
// network activity. The outcome arrives on Events.
func (s *Session) Generate(ctx context.Context) error {
	if s.busy {
		return ErrBusy
	}
	req, err := s.buildRequest()
	if err != nil {
		return err
	}

	s.busy = true
	s.status = StatusGenerating

	runner, events := s.runner, s.events
	go func() {
		var res Result
		out, err := runner.Edit(ctx, req)
		if err != nil {
			res.Err = err
		} else {
			res.Data = out.Data
			res.ImageURL = out.ImageURL
			res.RequestID = out.RequestID
		}
		events <- res
	}()
	return nil
}

// Apply folds a worker result into the session and returns the session to
// idle so the next generation may start.
func (s *Session) Apply(res Result) {
	s.busy = false
	if res.Err != nil {
		s.status = "Error: " + res.Err.Error()
		return
	}

	s.output = res.Data
	s.outputPreview = nil
	preview, err := DecodeThumbnail(res.Data, s.cfg.OutputSize)
	if err != nil {
		s.status = "Error: failed to display result image: " + err.Error()
		return
	}
	s.outputPreview = preview
	s.status = StatusDone
}

// Save writes the last result to path, appending ".png" when path has no
// extension. It returns the path actually written.
func (s *Session) Save(path string) (string, error) {
	if len(s.output) == 0 {
		return "", ErrNothingToSave
	}
	if filepath.Ext(path) == "" {
		path += ".png"
	}
	if err := os.WriteFile(path, s.output, 0644); err != nil {
		return "", fmt.Errorf("save failed: %w", err)
	}
	return path, nil
}
