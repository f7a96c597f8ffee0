package cmd

import (
	"fmt"
	"log"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/jtagbridge/jtagbridge/pkg/jtag"
	"github.com/jtagbridge/jtagbridge/pkg/mpsse"
	"github.com/jtagbridge/jtagbridge/pkg/xvc"
)

var (
	adapterKind string
	listenAddr  string
	usbDevice   int
	clkSpeedHz  uint64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the XVC server",
	Long: `Open the selected backend adapter and start accepting XVC
connections.

Examples:
  xvcd serve --adapter simulator --listen :2542
  xvcd serve --adapter usb-bitbang --listen :2542 --speed 1000000
  xvcd serve --adapter mpsse --device 0 --listen :2542 --speed 6000000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&adapterKind, "adapter", "a", "simulator",
		"backend adapter (simulator, usb-bitbang, mpsse)")
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", ":2542",
		"TCP address to listen on")
	serveCmd.Flags().IntVar(&usbDevice, "device", 0,
		"MPSSE device index (D2XX enumeration order)")
	serveCmd.Flags().Uint64Var(&clkSpeedHz, "speed", 1_000_000,
		"TCK speed in Hz")
}

func runServe(cmd *cobra.Command, args []string) error {
	shifter, closeFn, err := createChunkShifter()
	if err != nil {
		return fmt.Errorf("create adapter: %w", err)
	}
	defer closeFn()

	if _, err := shifter.SetClkSpeed(clkSpeedHz); err != nil {
		return fmt.Errorf("set clock speed: %w", err)
	}

	adapter := jtag.NewNativeAdapter(shifter)

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddr, err)
	}
	defer ln.Close()

	logger := log.New(os.Stderr, "xvcd: ", log.LstdFlags)
	logger.Printf("serving XVC on %s via %q adapter", listenAddr, adapterKind)

	srv := xvc.NewServer(adapter, logger)
	return srv.Serve(ln)
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
