// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/invowk/imgexport/internal/buildroot"
	"github.com/invowk/imgexport/internal/ui"
)

type renderFlags struct {
	strategy   string
	entrypoint bool
}

func newRenderCommand(app *App, root *rootOptions) *cobra.Command {
	flags := &renderFlags{}

	renderCmd := &cobra.Command{
		Use:   "render <manifest>",
		Short: "Print the Dockerfile an export would build",
		Long: `Prepare a temporary build root for the manifest and print the rendered
Dockerfile without invoking a container engine. The build root is removed
afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.runRender(cmd.Context(), root, flags, args[0]); err != nil {
				cmd.SilenceErrors = true
				return failCommand(app.stderr, err, root.verbose)
			}
			return nil
		},
	}

	renderCmd.Flags().StringVar(&flags.strategy, "strategy", "", "init strategy: auto, container or native (overrides init_strategy)")
	renderCmd.Flags().BoolVar(&flags.entrypoint, "entrypoint", false, "also print the generated init.sh")

	return renderCmd
}

func (a *App) runRender(ctx context.Context, root *rootOptions, flags *renderFlags, manifestPath string) error {
	cfg, _, err := a.loadConfig(ctx, root)
	if err != nil {
		return err
	}
	if err := (&buildFlags{strategy: flags.strategy}).apply(cfg); err != nil {
		return err
	}

	prep, err := a.prepare(ctx, cfg, manifestPath, runtime.GOOS, ui.Nop())
	if err != nil {
		return err
	}
	defer func() {
		if destroyErr := prep.Destroy(); destroyErr != nil {
			slog.Warn("failed to remove build root", "path", prep.Root().Workdir(), "error", destroyErr)
		}
	}()

	descriptor, err := os.ReadFile(prep.DescriptorPath())
	if err != nil {
		return fmt.Errorf("read rendered descriptor: %w", err)
	}
	fmt.Fprintln(a.stdout, SubtitleStyle.Render("# "+buildroot.DescriptorFileName))
	fmt.Fprint(a.stdout, string(descriptor))

	if !flags.entrypoint || prep.Strategy() != buildroot.ContainerInit {
		return nil
	}
	entrypoint, err := os.ReadFile(filepath.Join(prep.Root().RootFS(), buildroot.EntrypointFileName))
	if err != nil {
		return fmt.Errorf("read rendered entrypoint: %w", err)
	}
	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, SubtitleStyle.Render("# "+buildroot.EntrypointFileName))
	fmt.Fprint(a.stdout, string(entrypoint))
	return nil
}
