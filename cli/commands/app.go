// Package commands implements the CLI command structure using Cobra.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/qwen-edit/cli/config"
	"github.com/petal-labs/qwen-edit/cli/keystore"
	"github.com/petal-labs/qwen-edit/core"
	"github.com/petal-labs/qwen-edit/providers"
	"github.com/petal-labs/qwen-edit/providers/download"
)

// ConfigLoader loads CLI config from a path.
type ConfigLoader func(path string) (*config.Config, error)

// ProviderFactory creates a provider by registry name.
type ProviderFactory func(providerID string, s providers.Settings) (core.Provider, error)

// KeystoreFactory creates a keystore instance.
type KeystoreFactory func() (keystore.Keystore, error)

// FetcherFactory creates the downloader for result images.
type FetcherFactory func(timeout time.Duration) core.Fetcher

// AppOption customizes App dependencies.
type AppOption func(*App)

// App holds CLI state and runtime dependencies.
type App struct {
	root *cobra.Command

	loadConfig     ConfigLoader
	createProvider ProviderFactory
	newKeystore    KeystoreFactory
	newFetcher     FetcherFactory
	getenv         func(string) string
	stdin          io.Reader
	stdout         io.Writer
	stderr         io.Writer
	logger         *slog.Logger

	cfgFile    string
	envFile    string
	jsonOutput bool
	verbose    bool
	cfg        *config.Config

	edit      editOptions
	studio    studioOptions
	initForce bool
}

// WithConfigLoader injects a config loader dependency.
func WithConfigLoader(loader ConfigLoader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.loadConfig = loader
		}
	}
}

// WithProviderFactory injects a provider factory dependency.
func WithProviderFactory(factory ProviderFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.createProvider = factory
		}
	}
}

// WithKeystoreFactory injects a keystore factory dependency.
func WithKeystoreFactory(factory KeystoreFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.newKeystore = factory
		}
	}
}

// WithFetcherFactory injects the result downloader.
func WithFetcherFactory(factory FetcherFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.newFetcher = factory
		}
	}
}

// WithEnv replaces environment variable lookup.
func WithEnv(getenv func(string) string) AppOption {
	return func(a *App) {
		if getenv != nil {
			a.getenv = getenv
		}
	}
}

// WithIO injects process I/O streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) AppOption {
	return func(a *App) {
		if stdin != nil {
			a.stdin = stdin
		}
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
	}
}

// NewApp creates a new CLI app with default dependencies.
func NewApp(opts ...AppOption) *App {
	a := &App{
		loadConfig:     config.LoadConfig,
		createProvider: defaultProviderFactory,
		newKeystore:    keystore.NewKeystore,
		newFetcher:     defaultFetcherFactory,
		getenv:         os.Getenv,
		stdin:          os.Stdin,
		stdout:         os.Stdout,
		stderr:         os.Stderr,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.root = a.newRootCommand()
	return a
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "qwen-edit",
		Short: "qwen-edit - edit images with Qwen Image Edit",
		Long: `qwen-edit sends one or more images and a text prompt to the DashScope
Qwen Image Edit service and saves the edited image locally.

Use "qwen-edit edit" for one-shot edits and "qwen-edit studio" for an
interactive session.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	// Global flags available to all commands.
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.qwen-edit/config.yaml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "dotenv file loaded before reading the environment")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "emit JSON output")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(a.newEditCommand())
	root.AddCommand(a.newStudioCommand())
	root.AddCommand(a.newKeysCommand())
	root.AddCommand(a.newInitCommand())
	root.AddCommand(a.newVersionCommand())

	return root
}

// Execute runs the root command.
func (a *App) Execute() error {
	err := a.root.Execute()
	if err != nil {
		if _, ok := err.(*exitError); !ok {
			// Usage and flag errors; command failures report themselves.
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
		}
	}
	return err
}

// SetArgs overrides the arguments the root command parses.
func (a *App) SetArgs(args []string) {
	a.root.SetArgs(args)
}

func (a *App) initConfig() error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	if a.envFile != "" {
		if err := config.LoadEnvFile(a.envFile); err != nil {
			return a.fail(ExitValidation, fmt.Errorf("loading %s: %w", a.envFile, err))
		}
	}

	path := a.cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := a.loadConfig(path)
	if err != nil {
		return a.fail(ExitValidation, err)
	}
	a.cfg = cfg
	a.logger.Debug("config loaded", "path", path)

	return nil
}

// fail reports err on stderr and wraps it with an exit code.
func (a *App) fail(code int, err error) error {
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	return exitWithCode(code, err)
}

// resolveAPIKey applies the flag, environment and keystore lookup order.
// A keystore that cannot be opened is skipped.
func (a *App) resolveAPIKey(flag string) (core.Secret, error) {
	var ks keystore.Keystore
	if flag == "" && a.getenv(config.APIKeyEnvVar) == "" {
		var err error
		ks, err = a.newKeystore()
		if err != nil {
			a.logger.Debug("keystore unavailable", "error", err)
			ks = nil
		}
	}

	key, source, err := config.ResolveAPIKey(flag, a.getenv, ks, a.cfg.KeyName())
	if err != nil {
		return core.Secret{}, err
	}
	if source != "" {
		a.logger.Debug("api key resolved", "source", source)
	}
	return key, nil
}

// newEditor wires provider, downloader and logging into a core.Editor.
func (a *App) newEditor(baseURL string, opts ...core.EditorOption) (*core.Editor, error) {
	provider, err := a.createProvider(a.cfg.ProviderID(), providers.Settings{
		BaseURL: baseURL,
		Timeout: a.cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	base := []core.EditorOption{core.WithLogger(a.logger)}
	if a.verbose {
		base = append(base, core.WithTelemetry(core.SlogTelemetryHook{Logger: a.logger}))
	}
	return core.NewEditor(provider, a.newFetcher(a.cfg.DownloadTimeout), append(base, opts...)...), nil
}

func defaultProviderFactory(providerID string, s providers.Settings) (core.Provider, error) {
	if !providers.IsRegistered(providerID) {
		return nil, fmt.Errorf("unsupported provider: %s (available: %v)", providerID, providers.List())
	}
	return providers.Create(providerID, s)
}

func defaultFetcherFactory(timeout time.Duration) core.Fetcher {
	var opts []download.Option
	if timeout > 0 {
		opts = append(opts, download.WithTimeout(timeout))
	}
	return download.New(opts...)
}

var defaultApp = NewApp()

// Execute runs the default app root command.
func Execute() error {
	return defaultApp.Execute()
}
