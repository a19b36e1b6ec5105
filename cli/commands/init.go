package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/petal-labs/qwen-edit/cli/config"
	"github.com/petal-labs/qwen-edit/core"
	"github.com/petal-labs/qwen-edit/providers/dashscope"
)

func (a *App) newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter config file",
		Long: `Write a commented starter config file.

Without a path the file goes to the default location (~/.qwen-edit/config.yaml,
or the --config value). Existing files are left alone unless --force is given.

Example:
  qwen-edit init
  qwen-edit init ./qwen-edit.yaml --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runInit,
	}

	cmd.Flags().BoolVar(&a.initForce, "force", false, "overwrite an existing file")
	return cmd
}

func (a *App) runInit(cmd *cobra.Command, args []string) error {
	path := a.cfgFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !a.initForce {
		return a.fail(ExitValidation, fmt.Errorf("%s already exists (use --force to overwrite)", path))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return a.fail(ExitIO, fmt.Errorf("failed to create directory %s: %w", dir, err))
		}
	}

	if err := generateFile(path, configTemplate, templateData{
		BaseURL: dashscope.DefaultBaseURL,
		Model:   string(core.ModelQwenImageEdit),
		Output:  DefaultOutput,
		KeyName: config.DefaultKeyName,
		EnvVar:  config.APIKeyEnvVar,
	}); err != nil {
		return a.fail(ExitIO, fmt.Errorf("failed to write %s: %w", path, err))
	}

	fmt.Fprintf(a.stdout, "Wrote config to %s\n\n", path)
	fmt.Fprintln(a.stdout, "Next steps:")
	fmt.Fprintf(a.stdout, "  qwen-edit keys set %s    (or export %s=<your-key>)\n", config.DefaultKeyName, config.APIKeyEnvVar)
	fmt.Fprintln(a.stdout, `  qwen-edit edit --image input.png --prompt "..."`)
	return nil
}

type templateData struct {
	BaseURL string
	Model   string
	Output  string
	KeyName string
	EnvVar  string
}

func generateFile(path string, tmplContent string, data templateData) error {
	tmpl, err := template.New("file").Parse(tmplContent)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, data)
}

// Templates

var configTemplate = `# qwen-edit configuration

base_url: {{.BaseURL}}
model: {{.Model}}
output: {{.Output}}
# negative_prompt: "blurry, low quality"
watermark: true

# Keystore entry read when --api-key and {{.EnvVar}} are both unset.
# Store it with: qwen-edit keys set {{.KeyName}}
api_key_ref: {{.KeyName}}

request_timeout: 120s
download_timeout: 60s

studio:
  preview_size: 200
  output_size: 420
  watermark: true
`
