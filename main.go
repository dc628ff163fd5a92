// The main package for the licitawatch executable.
package main

import (
	"github.com/licitawatch/licitawatch/cmd"
)

func main() {
	cmd.Execute()
}
