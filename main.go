// SPDX-License-Identifier: MPL-2.0

package main

import cmd "nifbuild/cmd/nifbuild"

func main() {
	cmd.Execute()
}
