package studio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petal-labs/qwen-edit/core"
)

// fakeRunner blocks each Edit until release is closed, then answers with
// data or err.
type fakeRunner struct {
	release chan struct{}
	data    []byte
	err     error
	reqs    chan *core.EditRequest
}

func newFakeRunner(data []byte, err error) *fakeRunner {
	return &fakeRunner{
		release: make(chan struct{}),
		data:    data,
		err:     err,
		reqs:    make(chan *core.EditRequest, 4),
	}
}

func (f *fakeRunner) Edit(ctx context.Context, req *core.EditRequest) (*core.EditResult, error) {
	f.reqs <- req
	<-f.release
	if f.err != nil {
		return nil, f.err
	}
	return &core.EditResult{Data: f.data, ImageURL: "https://x/y.png", RequestID: "req-1"}, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(y), B: uint8(x), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeImage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pngBytes(t, w, h), 0644))
	return path
}

func awaitResult(t *testing.T, s *Session) Result {
	t.Helper()
	select {
	case res := <-s.Events():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for worker result")
		return Result{}
	}
}

func TestNewSessionDefaults(t *testing.T) {
	s := NewSession(newFakeRunner(nil, nil), Config{Watermark: true})

	assert.Equal(t, StatusIdle, s.Status())
	assert.False(t, s.Busy())
	assert.False(t, s.CanSave())
	assert.True(t, s.Watermark)
	assert.Equal(t, 200, s.cfg.PreviewSize)
	assert.Equal(t, 420, s.cfg.OutputSize)

	slot, err := s.Slot(1)
	require.NoError(t, err)
	assert.True(t, slot.Included)
	for _, n := range []int{2, 3} {
		slot, err := s.Slot(n)
		require.NoError(t, err)
		assert.False(t, slot.Included)
	}
}

func TestSelectImage(t *testing.T) {
	dir := t.TempDir()
	path := writeImage(t, dir, "big.png", 800, 400)

	s := NewSession(newFakeRunner(nil, nil), DefaultConfig())
	require.NoError(t, s.SelectImage(1, path))

	slot, _ := s.Slot(1)
	assert.Equal(t, path, slot.Path)
	require.NotNil(t, slot.Preview)
	assert.Equal(t, 200, slot.Preview.Bounds().Dx())
	assert.Equal(t, 100, slot.Preview.Bounds().Dy())
}

func TestSelectImageKeepsSelectionOnDecodeFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))

	s := NewSession(newFakeRunner(nil, nil), DefaultConfig())
	err := s.SelectImage(2, path)
	require.Error(t, err)

	slot, _ := s.Slot(2)
	assert.Equal(t, path, slot.Path)
	assert.Nil(t, slot.Preview)
	assert.Error(t, slot.PreviewErr)
}

func TestSlotBounds(t *testing.T) {
	s := NewSession(newFakeRunner(nil, nil), DefaultConfig())
	for _, n := range []int{0, 4, -1} {
		_, err := s.Slot(n)
		assert.Error(t, err)
		assert.Error(t, s.SelectImage(n, "x.png"))
		assert.Error(t, s.SetIncluded(n, true))
	}
	assert.Error(t, s.SetIncluded(1, false), "slot 1 cannot be excluded")
}

func TestGenerateValidationOrder(t *testing.T) {
	dir := t.TempDir()
	img := writeImage(t, dir, "a.png", 4, 4)

	tests := []struct {
		name  string
		setup func(s *Session)
		field string
	}{
		{
			name:  "no primary image",
			setup: func(s *Session) {},
			field: "image1",
		},
		{
			name: "slot 2 enabled but empty",
			setup: func(s *Session) {
				s.SelectImage(1, img)
				s.SetIncluded(2, true)
			},
			field: "image2",
		},
		{
			name: "slot 3 enabled but empty",
			setup: func(s *Session) {
				s.SelectImage(1, img)
				s.SetIncluded(3, true)
			},
			field: "image3",
		},
		{
			name: "missing key",
			setup: func(s *Session) {
				s.SelectImage(1, img)
				s.Prompt = "p"
			},
			field: "api_key",
		},
		{
			name: "blank key",
			setup: func(s *Session) {
				s.SelectImage(1, img)
				s.APIKey = core.NewSecret("   ")
				s.Prompt = "p"
			},
			field: "api_key",
		},
		{
			name: "missing prompt",
			setup: func(s *Session) {
				s.SelectImage(1, img)
				s.APIKey = core.NewSecret("k")
				s.Prompt = " \n "
			},
			field: "prompt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner(nil, nil)
			s := NewSession(runner, DefaultConfig())
			tt.setup(s)

			err := s.Generate(context.Background())

			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr), "error = %v", err)
			assert.Equal(t, tt.field, verr.Field)
			assert.False(t, s.Busy())
			assert.Equal(t, StatusIdle, s.Status())
			assert.Empty(t, runner.reqs, "no edit should start")
		})
	}
}

func TestGenerateSuccess(t *testing.T) {
	dir := t.TempDir()
	img1 := writeImage(t, dir, "1.png", 4, 4)
	img2 := writeImage(t, dir, "2.png", 4, 4)
	img3 := writeImage(t, dir, "3.png", 4, 4)

	out := pngBytes(t, 1000, 500)
	runner := newFakeRunner(out, nil)
	s := NewSession(runner, Config{Watermark: false, NegativePrompt: "blurry"})

	require.NoError(t, s.SelectImage(1, img1))
	require.NoError(t, s.SelectImage(2, img2))
	require.NoError(t, s.SelectImage(3, img3))
	require.NoError(t, s.SetIncluded(3, true))
	s.APIKey = core.NewSecret(" k ")
	s.Prompt = "  add a hat  "

	require.NoError(t, s.Generate(context.Background()))
	assert.True(t, s.Busy())
	assert.Equal(t, StatusGenerating, s.Status())
	assert.False(t, s.CanSave())
	assert.ErrorIs(t, s.Generate(context.Background()), ErrBusy)

	req := <-runner.reqs
	assert.Equal(t, []string{img1, img3}, req.Images, "slot 2 is not included")
	assert.Equal(t, "add a hat", req.Prompt)
	assert.Equal(t, "blurry", req.NegativePrompt)
	assert.Equal(t, "k", req.APIKey.Expose())
	assert.False(t, req.Watermark)
	assert.Equal(t, core.ModelQwenImageEdit, req.Model)

	close(runner.release)
	s.Apply(awaitResult(t, s))

	assert.False(t, s.Busy())
	assert.Equal(t, StatusDone, s.Status())
	assert.True(t, s.CanSave())
	require.NotNil(t, s.OutputPreview())
	assert.Equal(t, 420, s.OutputPreview().Bounds().Dx())
	assert.Equal(t, 210, s.OutputPreview().Bounds().Dy())

	dest := filepath.Join(dir, "result")
	written, err := s.Save(dest)
	require.NoError(t, err)
	assert.Equal(t, dest+".png", written)
	got, err := os.ReadFile(written)
	require.NoError(t, err)
	assert.Equal(t, out, got)
}

func TestGenerateFailureReturnsToIdle(t *testing.T) {
	dir := t.TempDir()
	runner := newFakeRunner(nil, &core.ResponseError{Kind: core.ErrNoImageFound})
	s := NewSession(runner, DefaultConfig())
	require.NoError(t, s.SelectImage(1, writeImage(t, dir, "a.png", 2, 2)))
	s.APIKey = core.NewSecret("k")
	s.Prompt = "p"

	require.NoError(t, s.Generate(context.Background()))
	close(runner.release)
	s.Apply(awaitResult(t, s))

	assert.False(t, s.Busy())
	assert.Equal(t, "Error: no image found in qwen-image-edit response", s.Status())
	assert.False(t, s.CanSave())

	_, err := s.Save(filepath.Join(dir, "x.png"))
	assert.ErrorIs(t, err, ErrNothingToSave)

	// A new generation may start right away.
	runner.release = make(chan struct{})
	runner.err = nil
	runner.data = pngBytes(t, 2, 2)
	require.NoError(t, s.Generate(context.Background()))
	close(runner.release)
	s.Apply(awaitResult(t, s))
	assert.Equal(t, StatusDone, s.Status())
}

func TestApplyUndecodableOutput(t *testing.T) {
	s := NewSession(newFakeRunner(nil, nil), DefaultConfig())
	s.Apply(Result{Data: []byte("PNGDATA")})

	assert.Contains(t, s.Status(), "failed to display result image")
	assert.False(t, s.CanSave())
}

func TestSaveKeepsExtension(t *testing.T) {
	s := NewSession(newFakeRunner(nil, nil), DefaultConfig())
	s.Apply(Result{Data: pngBytes(t, 2, 2)})

	dest := filepath.Join(t.TempDir(), "out.jpg")
	written, err := s.Save(dest)
	require.NoError(t, err)
	assert.Equal(t, dest, written)
}
