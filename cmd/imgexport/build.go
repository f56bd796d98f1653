// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/invowk/imgexport/internal/buildctx"
	"github.com/invowk/imgexport/internal/buildroot"
	"github.com/invowk/imgexport/internal/config"
	"github.com/invowk/imgexport/internal/container"
	"github.com/invowk/imgexport/internal/image"
	"github.com/invowk/imgexport/internal/issue"
	"github.com/invowk/imgexport/internal/ui"
)

type (
	// buildFlags are the command-line overrides of the build command.
	buildFlags struct {
		push        bool
		rmImage     bool
		reportDir   string
		memory      string
		registryURL string
		username    string
		password    string
		engine      string
		strategy    string
	}

	// ExportRequest captures all inputs of one export as an immutable value.
	ExportRequest struct {
		// ManifestPath is the export manifest to load.
		ManifestPath string
		// Push uploads every tag after the build.
		Push bool
		// RemoveImage deletes the local image after the build (and push).
		RemoveImage bool
		// Credentials authenticate the push; required when Push is set.
		Credentials *image.Credentials
		// GOOS selects the init strategy when the configuration says auto.
		GOOS string
	}

	// ExportResult describes a successful export.
	ExportResult struct {
		ID         string
		Name       string
		Tags       []string
		ReportPath string
		Pushed     bool
		Removed    bool
	}
)

// ErrCredentialsRequired is returned when a push is requested without credentials.
var ErrCredentialsRequired = errors.New("registry credentials required for push")

func newBuildCommand(app *App, root *rootOptions) *cobra.Command {
	flags := &buildFlags{}

	buildCmd := &cobra.Command{
		Use:   "build <manifest>",
		Short: "Build a container image from an export manifest",
		Long: `Build a container image from an export manifest.

The manifest's root filesystem is copied into a temporary build root, prepared
for the selected init strategy, and built with the configured container engine.
A report with the image id and tags is written to the report directory.

Registry credentials are taken from --username/--password or from the
` + RegistryTokenEnv + ` environment variable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.runBuild(cmd.Context(), root, flags, args[0])
			if err != nil {
				cmd.SilenceErrors = true
				return failCommand(app.stderr, err, root.verbose)
			}
			printExportResult(app, result)
			return nil
		},
	}

	buildCmd.Flags().BoolVar(&flags.push, "push", false, "push every tag to the registry after the build")
	buildCmd.Flags().BoolVar(&flags.rmImage, "rm-image", false, "remove the local image after the build")
	buildCmd.Flags().StringVar(&flags.reportDir, "report-dir", "", "directory for last_docker_export.env (overrides report_dir)")
	buildCmd.Flags().StringVar(&flags.memory, "memory", "", "build memory limit, e.g. 2g (overrides memory)")
	buildCmd.Flags().StringVar(&flags.registryURL, "registry-url", "", "registry to push to (overrides registry_url)")
	buildCmd.Flags().StringVarP(&flags.username, "username", "u", "", "registry username")
	buildCmd.Flags().StringVarP(&flags.password, "password", "p", "", "registry password")
	buildCmd.Flags().StringVar(&flags.engine, "engine", "", "container engine: docker or podman (overrides container_engine)")
	buildCmd.Flags().StringVar(&flags.strategy, "strategy", "", "init strategy: auto, container or native (overrides init_strategy)")
	buildCmd.MarkFlagsRequiredTogether("username", "password")

	return buildCmd
}

// runBuild resolves configuration and flags into an ExportRequest and runs it.
func (a *App) runBuild(ctx context.Context, root *rootOptions, flags *buildFlags, manifestPath string) (ExportResult, error) {
	cfg, _, err := a.loadConfig(ctx, root)
	if err != nil {
		return ExportResult{}, err
	}
	if err := flags.apply(cfg); err != nil {
		return ExportResult{}, err
	}

	req := ExportRequest{
		ManifestPath: manifestPath,
		Push:         flags.push,
		RemoveImage:  flags.rmImage,
		GOOS:         runtime.GOOS,
	}
	if flags.push {
		creds, err := a.credentials(flags)
		if err != nil {
			return ExportResult{}, err
		}
		req.Credentials = &creds
	}

	return a.Export(ctx, cfg, req)
}

// apply overlays the flags that were set onto cfg.
func (f *buildFlags) apply(cfg *config.Config) error {
	if f.reportDir != "" {
		cfg.ReportDir = f.reportDir
	}
	if f.memory != "" {
		if err := config.ValidateMemory(f.memory); err != nil {
			return err
		}
		cfg.Memory = f.memory
	}
	if f.registryURL != "" {
		cfg.RegistryURL = f.registryURL
	}
	if f.engine != "" {
		engineType, err := container.ParseEngineType(f.engine)
		if err != nil {
			return err
		}
		cfg.ContainerEngine = config.ContainerEngine(engineType)
	}
	if f.strategy != "" {
		cfg.InitStrategy = config.InitStrategy(f.strategy)
		if ok, errs := cfg.InitStrategy.IsValid(); !ok {
			return errs[0]
		}
	}
	return nil
}

// credentials prefers an explicit login over the token environment variable.
func (a *App) credentials(flags *buildFlags) (image.Credentials, error) {
	if flags.username != "" {
		return image.CredentialsFromLogin(flags.username, flags.password), nil
	}
	if token := a.getenv(RegistryTokenEnv); token != "" {
		return image.Credentials{Token: token}, nil
	}
	return image.Credentials{}, issue.NewErrorContext().
		WithOperation("push image").
		WithSuggestion("Pass --username and --password").
		WithSuggestion("Or export " + RegistryTokenEnv + " with a base64 user:password token").
		Wrap(ErrCredentialsRequired).
		BuildError()
}

// Export runs the whole pipeline for req: load the manifest, stage and
// prepare a build root, build the image, write the report, then optionally
// push and remove the image. The build root is always destroyed.
func (a *App) Export(ctx context.Context, cfg *config.Config, req ExportRequest) (ExportResult, error) {
	if req.Push && req.Credentials == nil {
		return ExportResult{}, ErrCredentialsRequired
	}

	// Resolve the engine first so a missing CLI fails before the root is copied.
	engine, err := a.Engines(cfg.ContainerEngine)
	if err != nil {
		return ExportResult{}, err
	}
	slog.Debug("using container engine", "engine", engine.Name())

	reporter := ui.NewTerminal(a.stdout)
	prep, err := a.prepare(ctx, cfg, req.ManifestPath, req.GOOS, reporter)
	if err != nil {
		return ExportResult{}, err
	}
	defer func() {
		if destroyErr := prep.Destroy(); destroyErr != nil {
			slog.Warn("failed to remove build root", "path", prep.Root().Workdir(), "error", destroyErr)
		}
	}()

	builder := image.NewBuilder(engine, image.WithReporter(reporter), image.WithOutput(a.stdout, a.stderr))
	img, err := prep.Export(ctx, cfg.NamingPolicy(), cfg.Memory, builder)
	if err != nil {
		return ExportResult{}, err
	}

	result := ExportResult{ID: img.ID(), Name: img.Name(), Tags: img.Tags()}

	if err := img.CreateReport(cfg.ReportDir); err != nil {
		return result, issue.WrapWithContext(err, "write build report", cfg.ReportDir)
	}
	result.ReportPath = filepath.Join(cfg.ReportDir, image.ReportFileName)

	if req.Push {
		if err := img.Push(ctx, *req.Credentials, cfg.RegistryURL); err != nil {
			return result, err
		}
		result.Pushed = true
	}

	if req.RemoveImage {
		if err := img.Rm(ctx); err != nil {
			return result, err
		}
		result.Removed = true
	}

	return result, nil
}

// prepare loads the manifest and returns a prepared build root. The root is
// destroyed again when preparation fails.
func (a *App) prepare(ctx context.Context, cfg *config.Config, manifestPath, goos string, reporter ui.Reporter) (*buildroot.Preparer, error) {
	bctx, err := buildctx.Load(manifestPath)
	if err != nil {
		return nil, err
	}

	strategy, err := buildroot.ResolveStrategy(string(cfg.InitStrategy), goos)
	if err != nil {
		return nil, err
	}

	var stageOpts []buildroot.StageOption
	if cfg.StagingDir != "" {
		stageOpts = append(stageOpts, buildroot.WithParentDir(cfg.StagingDir))
	}
	root, err := buildroot.Stage(bctx, stageOpts...)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("stage build root").
			WithResource(bctx.RootFS()).
			WithSuggestion("Check that the manifest's rootfs exists and is readable").
			WithSuggestion("Set staging_dir to a writable directory").
			Wrap(err).
			BuildError()
	}
	slog.Debug("staged build root", "workdir", root.Workdir(), "strategy", strategy)

	prep, err := buildroot.Prepare(ctx, root, strategy, reporter)
	if err != nil {
		if destroyErr := root.Destroy(); destroyErr != nil {
			slog.Warn("failed to remove build root", "path", root.Workdir(), "error", destroyErr)
		}
		return nil, fmt.Errorf("prepare build root: %w", err)
	}
	return prep, nil
}

func printExportResult(app *App, result ExportResult) {
	fmt.Fprintf(app.stdout, "\n%s Exported %s (%s)\n", SuccessStyle.Render("✓"), CmdStyle.Render(result.Name), result.ID)
	for _, ident := range image.ExpandIdentifiers(result.Name, result.Tags) {
		fmt.Fprintf(app.stdout, "  %s\n", ident)
	}
	if result.ReportPath != "" {
		fmt.Fprintf(app.stdout, "%s %s\n", SubtitleStyle.Render("Report:"), result.ReportPath)
	}
}
