// Command xvcd serves the Xilinx Virtual Cable protocol over TCP, bridging
// it to a JTAG adapter backed by either the built-in simulator, a vendor
// USB bit-bang device, or an FTDI MPSSE channel.
package main

import (
	"github.com/jtagbridge/jtagbridge/cmd/xvcd/cmd"
)

func main() {
	cmd.Execute()
}
