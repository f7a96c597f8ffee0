// Command jtagctl is a small CLI for exercising a JTAG adapter directly:
// resetting the TAP, reading IDCODE, and shifting raw IR/DR values.
package main

import (
	"github.com/jtagbridge/jtagbridge/cmd/jtagctl/cmd"
)

func main() {
	cmd.Execute()
}
