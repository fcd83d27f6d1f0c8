// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/enginedesk/enginedesk/cmd/enginedesk"

func main() {
	cmd.Execute()
}
