package commands

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/petal-labs/qwen-edit/core"
	"github.com/petal-labs/qwen-edit/providers/dashscope"
	"github.com/petal-labs/qwen-edit/studio"
)

type studioOptions struct {
	apiKey   string
	baseURL  string
	model    string
	savePath string
}

func (a *App) newStudioCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "studio",
		Short: "Interactive terminal editing session",
		Long: `Open an interactive session: pick up to three images, write a prompt,
generate, preview the result in the terminal and save it.

The API key is pre-filled from --api-key, $DASHSCOPE_API_KEY or the keystore,
and can be changed in the session with "key".`,
		Args: cobra.NoArgs,
		RunE: a.runStudio,
	}

	f := cmd.Flags()
	f.StringVar(&a.studio.apiKey, "api-key", "", "DashScope API key (default $DASHSCOPE_API_KEY, then the keystore)")
	f.StringVar(&a.studio.baseURL, "base-url", "", "API base URL (default "+dashscope.DefaultBaseURL+")")
	f.StringVar(&a.studio.model, "model", "", "model ID (default "+string(core.ModelQwenImageEdit)+")")
	f.StringVar(&a.studio.savePath, "save-path", "", "default path for \"save\" (default "+studio.DefaultSavePath+")")

	return cmd
}

func (a *App) runStudio(cmd *cobra.Command, args []string) error {
	// A missing key is not fatal here; the session asks for one.
	key, err := a.resolveAPIKey(a.studio.apiKey)
	if err != nil {
		return a.fail(ExitValidation, err)
	}

	editor, err := a.newEditor(firstNonEmpty(a.studio.baseURL, a.cfg.BaseURL))
	if err != nil {
		return a.fail(ExitValidation, err)
	}

	session := studio.NewSession(editor, studio.Config{
		Model:          core.ModelID(firstNonEmpty(a.studio.model, a.cfg.Model)),
		APIKey:         key,
		NegativePrompt: a.cfg.NegativePrompt,
		Watermark:      a.cfg.StudioWatermarkEnabled(),
		PreviewSize:    a.cfg.Studio.PreviewSize,
		OutputSize:     a.cfg.Studio.OutputSize,
	})
	console := studio.NewConsole(session, a.stdin, a.stdout,
		studio.WithSavePath(firstNonEmpty(a.studio.savePath, a.cfg.Output)))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := console.Run(ctx); err != nil && err != context.Canceled {
		return a.fail(ExitIO, err)
	}
	return nil
}
