package studio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/petal-labs/qwen-edit/core"
)

// DefaultSavePath is used by "save" without an argument.
const DefaultSavePath = "qwen_edit_output.png"

const helpText = `Commands:
  image N PATH        select the image for slot N (1-3)
  include N on|off    include slot 2 or 3 in the next generation
  prompt TEXT         set the prompt
  negative [TEXT]     set or clear the negative prompt
  key [VALUE]         set the API key (prompts without echo when VALUE is omitted)
  watermark on|off    toggle the service watermark
  generate            run the edit
  save [PATH]         save the last result (default ` + DefaultSavePath + `)
  show                print the current state
  help                print this text
  quit                leave the studio
`

// Console is a line-oriented terminal front end for a Session.
type Console struct {
	session    *Session
	in         io.Reader
	out        io.Writer
	readSecret func() (string, error)
	cols       int
	savePath   string
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithSecretReader overrides how "key" without an argument reads the key.
func WithSecretReader(fn func() (string, error)) ConsoleOption {
	return func(c *Console) {
		c.readSecret = fn
	}
}

// WithColumns sets the preview width in terminal columns. Zero disables
// previews.
func WithColumns(n int) ConsoleOption {
	return func(c *Console) {
		c.cols = n
	}
}

// WithSavePath sets the default path for "save".
func WithSavePath(path string) ConsoleOption {
	return func(c *Console) {
		if path != "" {
			c.savePath = path
		}
	}
}

// NewConsole creates a console reading commands from in.
func NewConsole(s *Session, in io.Reader, out io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{
		session:    s,
		in:         in,
		out:        out,
		readSecret: terminalSecretReader(in),
		cols:       terminalColumns(out),
		savePath:   DefaultSavePath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func terminalSecretReader(in io.Reader) func() (string, error) {
	return func() (string, error) {
		f, ok := in.(*os.File)
		if !ok || !term.IsTerminal(int(f.Fd())) {
			return "", errors.New("input is not a terminal; use \"key VALUE\"")
		}
		b, err := term.ReadPassword(int(f.Fd()))
		return string(b), err
	}
}

func terminalColumns(out io.Writer) int {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			return min(w/2, 60)
		}
		return 40
	}
	return 0
}

// readLines scans one line each time next fires, so the foreground can read
// the terminal directly (masked key entry) between lines. lines is closed on
// EOF.
func (c *Console) readLines(next <-chan struct{}, done <-chan struct{}, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-next:
		case <-done:
			return
		}
		if !scanner.Scan() {
			return
		}
		select {
		case lines <- scanner.Text():
		case <-done:
			return
		}
	}
}

// Run processes commands until "quit", end of input or ctx is done. Worker
// results are applied on the same loop, between commands. A running
// generation is allowed to finish before Run returns.
func (c *Console) Run(ctx context.Context) error {
	next := make(chan struct{}, 1)
	done := make(chan struct{})
	lines := make(chan string)
	defer close(done)

	go c.readLines(next, done, lines)
	next <- struct{}{}

	c.printf("Qwen Image Edit studio. Type \"help\" for commands.\n")
	c.prompt()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case res := <-c.session.Events():
			c.session.Apply(res)
			c.reportResult()

		case line, ok := <-lines:
			if !ok || c.handle(ctx, line) {
				return c.drain(ctx)
			}
			c.prompt()
			next <- struct{}{}
		}
	}
}

func (c *Console) drain(ctx context.Context) error {
	if !c.session.Busy() {
		return nil
	}
	c.printf("Waiting for the running generation to finish...\n")
	select {
	case res := <-c.session.Events():
		c.session.Apply(res)
		c.reportResult()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handle runs one command and reports whether the console should exit.
func (c *Console) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "image":
		c.cmdImage(rest)
	case "include":
		c.cmdInclude(rest)
	case "prompt":
		if rest == "" {
			c.printf("Prompt: %q\n", c.session.Prompt)
			break
		}
		c.session.Prompt = rest
	case "negative":
		c.session.NegativePrompt = rest
	case "key":
		c.cmdKey(rest)
	case "watermark":
		on, err := parseOnOff(rest)
		if err != nil {
			c.printf("Error: %v\n", err)
			break
		}
		c.session.Watermark = on
	case "generate":
		c.cmdGenerate(ctx)
	case "save":
		c.cmdSave(rest)
	case "show":
		c.cmdShow()
	case "help", "?":
		c.printf("%s", helpText)
	case "quit", "exit":
		return true
	default:
		c.printf("Unknown command %q. Type \"help\" for commands.\n", cmd)
	}
	return false
}

func (c *Console) cmdImage(args string) {
	nStr, path, _ := strings.Cut(args, " ")
	n, err := strconv.Atoi(nStr)
	path = strings.Trim(strings.TrimSpace(path), `"'`)
	if err != nil || path == "" {
		c.printf("Usage: image N PATH\n")
		return
	}
	if !IsSupportedImage(path) {
		c.printf("Note: %s is not a png, jpg, jpeg, webp or bmp file.\n", path)
	}
	if err := c.session.SelectImage(n, path); err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	if slot, err := c.session.Slot(n); err == nil {
		c.render(slot.Preview)
	}
}

func (c *Console) cmdInclude(args string) {
	nStr, state, _ := strings.Cut(args, " ")
	n, err := strconv.Atoi(nStr)
	if err != nil {
		c.printf("Usage: include N on|off\n")
		return
	}
	on, err := parseOnOff(strings.TrimSpace(state))
	if err == nil {
		err = c.session.SetIncluded(n, on)
	}
	if err != nil {
		c.printf("Error: %v\n", err)
	}
}

func (c *Console) cmdKey(value string) {
	if value == "" {
		c.printf("API key: ")
		v, err := c.readSecret()
		c.printf("\n")
		if err != nil {
			c.printf("Error: %v\n", err)
			return
		}
		value = v
	}
	c.session.APIKey = core.NewSecret(strings.TrimSpace(value))
}

func (c *Console) cmdGenerate(ctx context.Context) {
	err := c.session.Generate(ctx)
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		c.printf("Notice: %s\n", verr.Message)
	case err != nil:
		c.printf("Error: %v\n", err)
	default:
		c.printf("%s\n", c.session.Status())
	}
}

func (c *Console) cmdSave(path string) {
	if c.session.Busy() {
		c.printf("Error: %v\n", ErrBusy)
		return
	}
	if path == "" {
		path = c.savePath
	}
	written, err := c.session.Save(path)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Saved image to %s\n", written)
}

func (c *Console) cmdShow() {
	s := c.session
	c.printf("Status:    %s\n", s.Status())
	for n := 1; n <= MaxSlots; n++ {
		slot, _ := s.Slot(n)
		path := slot.Path
		if path == "" {
			path = "(none)"
		}
		mark := " "
		if slot.Included {
			mark = "x"
		}
		c.printf("Image %d:   [%s] %s\n", n, mark, path)
	}
	c.printf("Prompt:    %q\n", s.Prompt)
	c.printf("Negative:  %q\n", s.NegativePrompt)
	keyState := "not set"
	if !s.APIKey.IsEmpty() {
		keyState = "set"
	}
	c.printf("API key:   %s\n", keyState)
	c.printf("Watermark: %s\n", onOff(s.Watermark))
	if s.CanSave() {
		c.render(s.OutputPreview())
	}
}

func (c *Console) reportResult() {
	c.printf("\n%s\n", c.session.Status())
	if c.session.CanSave() {
		c.render(c.session.OutputPreview())
		c.printf("Use \"save [PATH]\" to write the result.\n")
	}
	c.prompt()
}

func (c *Console) render(img image.Image) {
	if img == nil || c.cols <= 0 {
		return
	}
	_ = RenderANSI(c.out, img, c.cols)
}

func (c *Console) prompt() {
	c.printf("> ")
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes", "true", "1":
		return true, nil
	case "off", "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
