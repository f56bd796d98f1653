// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for imgexport.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/invowk/imgexport/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	verbose    bool
	configPath string
}

// newRootCommand builds the command tree around app.
func newRootCommand(app *App) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "imgexport",
		Short: "Export installed packages as container images",
		Long: TitleStyle.Render("imgexport") + SubtitleStyle.Render(" - Export installed packages as container images") + `

imgexport turns a populated package root filesystem into a container image:
it stages the root, writes users, groups and a startup script, renders a
Dockerfile, builds it with Docker or Podman, and optionally pushes and
removes the result.

Exports are described by an export manifest in CUE format.

` + SubtitleStyle.Render("Examples:") + `
  imgexport build ./export.cue               Build the image
  imgexport build --push ./export.cue        Build and push every tag
  imgexport render ./export.cue              Print the Dockerfile only
  imgexport config show                      Show current configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is $HOME/.config/imgexport/config.cue)")

	rootCmd.AddCommand(newBuildCommand(app, opts))
	rootCmd.AddCommand(newRenderCommand(app, opts))
	rootCmd.AddCommand(newConfigCommand(app, opts))
	rootCmd.AddCommand(newVersionCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})

	// fang overrides rootCmd.Version, so the version is passed as an option.
	if err := fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// loadConfig loads the configuration selected by the persistent flags and
// installs the logger. ui.verbose in the file enables verbose output too.
func (a *App) loadConfig(ctx context.Context, opts *rootOptions) (*config.Config, string, error) {
	setupLogging(a.stderr, opts.verbose)

	var (
		cfg  *config.Config
		path string
		err  error
	)
	if provider, ok := a.Config.(pathProvider); ok {
		cfg, path, err = provider.LoadWithPath(ctx, config.LoadOptions{ConfigFilePath: opts.configPath})
	} else {
		cfg, err = a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: opts.configPath})
	}
	if err != nil {
		return nil, "", err
	}

	if cfg.UI.Verbose && !opts.verbose {
		opts.verbose = true
		setupLogging(a.stderr, true)
	}
	slog.Debug("configuration loaded", "path", path, "engine", cfg.ContainerEngine)
	return cfg, path, nil
}

// pathProvider is implemented by providers that can report the file they read.
type pathProvider interface {
	LoadWithPath(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
}

// setupLogging routes slog through a charmbracelet logger on w.
func setupLogging(w io.Writer, verbose bool) {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "imgexport",
		Level:           level,
		ReportTimestamp: verbose,
	})
	slog.SetDefault(slog.New(logger))
}
