package app

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/modsweep/internal/config"
	"github.com/blackwell-systems/modsweep/internal/modpath"
	"github.com/blackwell-systems/modsweep/internal/privilege"
	"github.com/blackwell-systems/modsweep/internal/provider"
	"github.com/blackwell-systems/modsweep/internal/pwsh"
	"github.com/blackwell-systems/modsweep/internal/scope"
	"github.com/blackwell-systems/modsweep/internal/store"
)

type providerFactory func(runner pwsh.Runner, logger *log.Logger) *provider.Set

func defaultProviders(runner pwsh.Runner, logger *log.Logger) *provider.Set {
	return provider.NewSet(provider.NewResourceGet(runner, logger), provider.NewPowerShellGet(runner, logger))
}

// Seams replaced by tests.
var (
	appFs        afero.Fs          = afero.NewOsFs()
	stdin        *bufio.Reader     = bufio.NewReader(os.Stdin)
	exitFunc     func(code int)    = os.Exit
	isElevated   privilege.Checker = privilege.Default
	newProviders providerFactory   = defaultProviders
)

// env is everything a command needs, resolved from config and flags.
type env struct {
	cfg        *config.Config
	logger     *log.Logger
	shell      *pwsh.Shell
	providers  *provider.Set
	finder     *modpath.Finder
	classifier scope.Classifier
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "modsweep",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// loadEnv loads config, applies global flag overrides and builds the
// provider set. It never starts pwsh.
func loadEnv() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if pwshPath != "" {
		cfg.Pwsh = pwshPath
	}
	if dbPath != "" {
		cfg.DB = dbPath
	}

	logger := newLogger()
	if cfg.File != "" {
		logger.Debug("loaded config", "file", cfg.File)
	}

	shell := pwsh.NewShell(cfg.Pwsh)

	roots := cfg.ModulePaths
	if len(roots) == 0 {
		roots = modpath.RootsFromEnv()
	}

	var classifier scope.Classifier = scope.NewPathClassifier(cfg.SystemMarkers, cfg.UserMarkers)
	if cfg.UnknownScopeAsSystem {
		classifier = scope.Strict(classifier)
	}

	return &env{
		cfg:        cfg,
		logger:     logger,
		shell:      shell,
		providers:  newProviders(shell, logger),
		finder:     modpath.New(appFs, roots),
		classifier: classifier,
	}, nil
}

// providerFlag returns the --provider value, or the configured default
// when the flag was not set.
func (e *env) providerFlag(cmd *cobra.Command, flagValue string) (provider.Kind, error) {
	raw := e.cfg.Provider
	if cmd.Flags().Changed("provider") {
		raw = flagValue
	}
	return provider.ParseKind(raw)
}

// scopeFlag is providerFlag for --scope.
func (e *env) scopeFlag(cmd *cobra.Command, flagValue string) (scope.Scope, error) {
	raw := e.cfg.Scope
	if cmd.Flags().Changed("scope") {
		raw = flagValue
	}
	return scope.Parse(raw)
}

// openJournal opens and initializes the journal. Callers treat a failure
// as a warning: journaling never blocks an update or cleanup.
func (e *env) openJournal() (*store.Store, error) {
	if dir := filepath.Dir(e.cfg.DB); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	st, err := store.New(e.cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// confirm asks a [y/N] question on stdin.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)

	response, err := stdin.ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
