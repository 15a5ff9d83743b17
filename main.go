// SPDX-License-Identifier: MPL-2.0

// Command kiln resolves the dependencies of kiln.cue builds.
package main

import cmd "github.com/kiln-build/kiln/cmd/kiln"

func main() {
	cmd.Execute()
}
