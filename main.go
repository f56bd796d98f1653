// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/invowk/imgexport/cmd/imgexport"

func main() {
	cmd.Execute()
}
