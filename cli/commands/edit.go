package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/qwen-edit/core"
	"github.com/petal-labs/qwen-edit/providers/dashscope"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitProvider   = 2
	ExitNetwork    = 3
	ExitIO         = 4
)

// DefaultOutput is where edit writes the image when neither --output nor the
// config names a path.
const DefaultOutput = "qwen_edit_output.png"

type editOptions struct {
	apiKey         string
	images         []string
	prompt         string
	output         string
	negativePrompt string
	watermark      bool
	noWatermark    bool
	baseURL        string
	model          string
}

func (a *App) newEditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit images with a text prompt",
		Long: `Send one or more images plus a prompt to Qwen Image Edit and save the result.

Images may be local files or http(s) URLs. Local files are inlined as data URIs.

Examples:
  qwen-edit edit --image photo.png --prompt "Make the sky purple"
  qwen-edit edit --image a.png --image b.png --prompt "Put the cat from image 2 on the sofa in image 1"
  qwen-edit edit --image https://example.com/in.jpg --prompt "Add snow" --output snowy.png --no-watermark`,
		Args: cobra.NoArgs,
		RunE: a.runEdit,
	}

	f := cmd.Flags()
	f.StringVar(&a.edit.apiKey, "api-key", "", "DashScope API key (default $DASHSCOPE_API_KEY, then the keystore)")
	f.StringArrayVar(&a.edit.images, "image", nil, "input image path or URL (repeatable, order is kept)")
	f.StringVar(&a.edit.prompt, "prompt", "", "edit instruction (required)")
	f.StringVar(&a.edit.output, "output", "", "output file (default "+DefaultOutput+")")
	f.StringVar(&a.edit.negativePrompt, "negative-prompt", "", "what the result should avoid")
	f.BoolVar(&a.edit.watermark, "watermark", true, "ask the service to watermark the result")
	f.BoolVar(&a.edit.noWatermark, "no-watermark", false, "disable the service watermark")
	f.StringVar(&a.edit.baseURL, "base-url", "", "API base URL (default "+dashscope.DefaultBaseURL+")")
	f.StringVar(&a.edit.model, "model", "", "model ID (default "+string(core.ModelQwenImageEdit)+")")

	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

// resolveEditRequest merges flags with config defaults. Explicit flags win.
func (a *App) resolveEditRequest(cmd *cobra.Command, key core.Secret) (*core.EditRequest, string) {
	opts := a.edit

	output := firstNonEmpty(opts.output, a.cfg.Output, DefaultOutput)

	watermark := a.cfg.WatermarkEnabled()
	if cmd.Flags().Changed("watermark") {
		watermark = opts.watermark
	}
	if cmd.Flags().Changed("no-watermark") && opts.noWatermark {
		watermark = false
	}

	negative := opts.negativePrompt
	if !cmd.Flags().Changed("negative-prompt") {
		negative = a.cfg.NegativePrompt
	}

	return &core.EditRequest{
		APIKey:         key,
		Model:          core.ModelID(firstNonEmpty(opts.model, a.cfg.Model)),
		Images:         opts.images,
		Prompt:         opts.prompt,
		NegativePrompt: negative,
		Watermark:      watermark,
	}, output
}

func (a *App) runEdit(cmd *cobra.Command, args []string) error {
	key, err := a.resolveAPIKey(a.edit.apiKey)
	if err != nil {
		return a.handleEditError(err)
	}
	if key.IsEmpty() {
		return a.handleEditError(core.ErrAPIKeyRequired)
	}

	req, output := a.resolveEditRequest(cmd, key)

	var observe func(*core.GenerationResponse)
	if !a.jsonOutput {
		observe = func(resp *core.GenerationResponse) {
			writeIndentedJSON(a.stdout, resp.Raw)
		}
	}

	editor, err := a.newEditor(firstNonEmpty(a.edit.baseURL, a.cfg.BaseURL), core.WithResponseObserver(observe))
	if err != nil {
		return a.fail(ExitValidation, err)
	}

	result, err := editor.Edit(cmd.Context(), req)
	if err != nil {
		return a.handleEditError(err)
	}

	if err := os.WriteFile(output, result.Data, 0644); err != nil {
		return a.handleEditError(fmt.Errorf("failed to write %s: %w", output, err))
	}

	if a.jsonOutput {
		return a.outputEditJSON(output, result)
	}
	fmt.Fprintf(a.stdout, "Saved output image to %s\n", output)
	return nil
}

// writeIndentedJSON prints raw with two-space indentation, or verbatim when it
// is not valid JSON.
func writeIndentedJSON(w io.Writer, raw []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Fprintln(w, string(raw))
		return
	}
	buf.WriteByte('\n')
	_, _ = buf.WriteTo(w)
}

func (a *App) outputEditJSON(output string, result *core.EditResult) error {
	out := map[string]interface{}{
		"output":     output,
		"image_url":  result.ImageURL,
		"bytes":      len(result.Data),
		"request_id": result.RequestID,
		"op_id":      result.OpID,
	}
	if result.Response != nil && json.Valid(result.Response.Raw) {
		out["response"] = json.RawMessage(result.Response.Raw)
	}

	return writeJSON(a.stdout, out)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCodeFor maps pipeline errors onto the CLI exit codes.
func exitCodeFor(err error) int {
	var pathErr *os.PathError
	switch {
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrAPIKeyRequired),
		errors.Is(err, core.ErrImageNotFound):
		return ExitValidation
	case errors.Is(err, core.ErrNetwork):
		return ExitNetwork
	case errors.As(err, &pathErr):
		return ExitIO
	default:
		return ExitProvider
	}
}

func (a *App) handleEditError(err error) error {
	code := exitCodeFor(err)

	var provErr *core.ProviderError
	if errors.As(err, &provErr) {
		if a.jsonOutput {
			a.outputErrorJSON(provErr)
		} else {
			fmt.Fprintf(a.stderr, "Error: %s\n", provErr.Message)
			if provErr.RequestID != "" {
				fmt.Fprintf(a.stderr, "  Provider: %s, Request ID: %s\n", provErr.Provider, provErr.RequestID)
			}
		}
		return exitWithCode(code, err)
	}

	if a.jsonOutput {
		a.outputSimpleErrorJSON(errorType(code), err.Error())
	} else {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
	}
	return exitWithCode(code, err)
}

func errorType(code int) string {
	switch code {
	case ExitValidation:
		return "validation_error"
	case ExitNetwork:
		return "network_error"
	case ExitIO:
		return "io_error"
	default:
		return "error"
	}
}

func (a *App) outputErrorJSON(provErr *core.ProviderError) {
	output := map[string]interface{}{
		"error": map[string]interface{}{
			"type":       provErr.Code,
			"message":    provErr.Message,
			"provider":   provErr.Provider,
			"status":     provErr.Status,
			"request_id": provErr.RequestID,
		},
	}

	_ = writeJSON(a.stderr, output)
}

func (a *App) outputSimpleErrorJSON(errType, message string) {
	output := map[string]interface{}{
		"error": map[string]interface{}{
			"type":    errType,
			"message": message,
		},
	}

	_ = writeJSON(a.stderr, output)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// exitError wraps an error with an exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func (e *exitError) ExitCode() int {
	return e.code
}

func exitWithCode(code int, err error) error {
	return &exitError{code: code, err: err}
}
