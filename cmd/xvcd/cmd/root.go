package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "xvcd",
	Short: "Xilinx Virtual Cable server",
	Long: `xvcd bridges the Xilinx Virtual Cable TCP protocol to a real or
simulated JTAG adapter, letting tools such as Vivado Hardware Manager or
OpenOCD drive hardware attached to this machine as if it were local.

Examples:
  xvcd serve --adapter simulator --listen :2542
  xvcd serve --adapter mpsse --device 0 --listen :2542`,
	Version: "0.1.0",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
