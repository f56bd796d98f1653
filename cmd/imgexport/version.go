// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(app.stdout, "%s %s\n", TitleStyle.Render("imgexport"), getVersionString())
			fmt.Fprintf(app.stdout, "%s %s/%s\n", SubtitleStyle.Render("platform:"), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
