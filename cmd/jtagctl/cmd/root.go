package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jtagbridge/jtagbridge/pkg/jtag"
	"github.com/jtagbridge/jtagbridge/pkg/mpsse"
)

var (
	verbose     bool
	adapterKind string
	usbDevice   int
	clkSpeedHz  uint64
)

var rootCmd = &cobra.Command{
	Use:   "jtagctl",
	Short: "Direct JTAG adapter control",
	Long: `jtagctl drives a JTAG adapter directly from the command line:
reset the TAP, read IDCODE, or shift raw IR/DR values.

Examples:
  jtagctl idcode --adapter simulator
  jtagctl idcode --adapter mpsse --device 0
  jtagctl reset --adapter usb-bitbang`,
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
	rootCmd.PersistentFlags().StringVarP(&adapterKind, "adapter", "a", "simulator",
		"backend adapter (simulator, usb-bitbang, mpsse)")
	rootCmd.PersistentFlags().IntVar(&usbDevice, "device", 0,
		"MPSSE device index (D2XX enumeration order)")
	rootCmd.PersistentFlags().Uint64Var(&clkSpeedHz, "speed", 1_000_000,
		"TCK speed in Hz")
}

func openAdapter() (*jtag.NativeAdapter, func(), error) {
	shifter, closeFn, err := createChunkShifter()
	if err != nil {
		return nil, nil, err
	}
	if _, err := shifter.SetClkSpeed(clkSpeedHz); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("set clock speed: %w", err)
	}
	return jtag.NewNativeAdapter(shifter), closeFn, nil
}

func createChunkShifter() (jtag.ChunkShifter, func(), error) {
	switch adapterKind {
	case "simulator":
		sim := jtag.NewSimBitbang()
		sim.OnBit = jtag.IDCODEShiftHook(0x0362D093)
		return jtag.NewChunkShifterFromBitbang(sim), func() {}, nil

	case "usb-bitbang":
		bb, err := jtag.OpenUSBBitbang(jtag.USBVendorID, jtag.USBProductID)
		if err != nil {
			return nil, nil, err
		}
		return jtag.NewChunkShifterFromBitbang(bb), func() { bb.Close() }, nil

	case "mpsse":
		drv, err := mpsse.Open(usbDevice)
		if err != nil {
			return nil, nil, err
		}
		return drv, func() { drv.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown adapter %q (want simulator, usb-bitbang, or mpsse)", adapterKind)
	}
}
