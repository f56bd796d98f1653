// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/invowk/imgexport/internal/config"
)

// newConfigCommand creates the `imgexport config` command tree.
func newConfigCommand(app *App, root *rootOptions) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage imgexport configuration",
		Long: `Manage imgexport configuration.

Configuration is stored in:
  - Linux: ~/.config/imgexport/config.cue
  - macOS: ~/Library/Application Support/imgexport/config.cue
  - Windows: %APPDATA%\imgexport\config.cue

Every key can be overridden with an IMGEXPORT_ environment variable, for
example IMGEXPORT_CONTAINER_ENGINE=podman or IMGEXPORT_NAMING_LATEST_TAG=false.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.showConfig(cmd.Context(), root); err != nil {
				cmd.SilenceErrors = true
				return failCommand(app.stderr, err, root.verbose)
			}
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.initConfig()
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
			fmt.Fprintf(app.stdout, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.loadConfig(cmd.Context(), root)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func (a *App) showConfig(ctx context.Context, root *rootOptions) error {
	cfg, path, err := a.loadConfig(ctx, root)
	if err != nil {
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	kv := func(indent, key, value string) {
		if value == "" {
			value = SubtitleStyle.Render("(unset)")
		} else {
			value = valueStyle.Render(value)
		}
		fmt.Fprintf(a.stdout, "%s%s: %s\n", indent, keyStyle.Render(key), value)
	}

	fmt.Fprintln(a.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(a.stdout)
	if path != "" {
		fmt.Fprintf(a.stdout, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(a.stdout, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(a.stdout)

	kv("", "container_engine", string(cfg.ContainerEngine))
	kv("", "registry_url", cfg.RegistryURL)
	kv("", "memory", cfg.Memory)
	kv("", "report_dir", cfg.ReportDir)
	kv("", "staging_dir", cfg.StagingDir)
	kv("", "init_strategy", string(cfg.InitStrategy))

	fmt.Fprintln(a.stdout)
	fmt.Fprintf(a.stdout, "%s:\n", keyStyle.Render("naming"))
	kv("  ", "image_name", cfg.Naming.ImageName)
	kv("  ", "latest_tag", fmt.Sprintf("%v", cfg.Naming.LatestTag))
	kv("  ", "version_tag", fmt.Sprintf("%v", cfg.Naming.VersionTag))
	kv("  ", "version_release_tag", fmt.Sprintf("%v", cfg.Naming.VersionReleaseTag))
	kv("  ", "custom_tag", cfg.Naming.CustomTag)

	fmt.Fprintln(a.stdout)
	fmt.Fprintf(a.stdout, "%s:\n", keyStyle.Render("ui"))
	kv("  ", "verbose", fmt.Sprintf("%v", cfg.UI.Verbose))

	return nil
}

func (a *App) initConfig() error {
	path, err := config.CreateDefaultConfig()
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	fmt.Fprintf(a.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}
