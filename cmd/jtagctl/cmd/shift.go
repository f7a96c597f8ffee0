package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jtagbridge/jtagbridge/pkg/jtag"
)

var (
	shiftBitLen int
	shiftHex    string
)

var shiftIRCmd = &cobra.Command{
	Use:   "shift-ir",
	Short: "Shift a raw value into the instruction register",
	RunE:  runShiftIR,
}

var shiftDRCmd = &cobra.Command{
	Use:   "shift-dr",
	Short: "Shift a raw value into the data register",
	RunE:  runShiftDR,
}

func init() {
	rootCmd.AddCommand(shiftIRCmd)
	rootCmd.AddCommand(shiftDRCmd)

	for _, c := range []*cobra.Command{shiftIRCmd, shiftDRCmd} {
		c.Flags().IntVarP(&shiftBitLen, "bits", "n", 0, "number of bits to shift (required)")
		c.Flags().StringVarP(&shiftHex, "value", "x", "0", "hex value to shift, LSB-first once unpacked")
		c.MarkFlagRequired("bits")
	}
}

func runShiftIR(cmd *cobra.Command, args []string) error {
	adapter, closeFn, err := openAdapter()
	if err != nil {
		return err
	}
	defer closeFn()

	tdi, err := hexToBits(shiftHex, shiftBitLen)
	if err != nil {
		return err
	}

	out, err := adapter.Do(jtag.ShiftIRAction(tdi, true, false))
	if err != nil {
		return fmt.Errorf("shift-ir: %w", err)
	}
	fmt.Printf("captured: %s\n", bitsToHex(out.CapturedBits))
	return nil
}

func runShiftDR(cmd *cobra.Command, args []string) error {
	adapter, closeFn, err := openAdapter()
	if err != nil {
		return err
	}
	defer closeFn()

	tdi, err := hexToBits(shiftHex, shiftBitLen)
	if err != nil {
		return err
	}

	out, err := adapter.Do(jtag.ShiftDRAction(tdi, true, false))
	if err != nil {
		return fmt.Errorf("shift-dr: %w", err)
	}
	fmt.Printf("captured: %s\n", bitsToHex(out.CapturedBits))
	return nil
}

// hexToBits parses a "0x"-optional hex string into an n-bit jtag.Bits,
// LSB-first (bit 0 is the least significant bit of the parsed value).
func hexToBits(hex string, n int) (jtag.Bits, error) {
	if n <= 0 {
		return jtag.Bits{}, fmt.Errorf("--bits must be positive")
	}
	hex = strings.TrimPrefix(strings.TrimPrefix(hex, "0x"), "0X")
	if hex == "" {
		hex = "0"
	}
	val, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return jtag.Bits{}, fmt.Errorf("parse hex value %q: %w", hex, err)
	}

	bits := jtag.NewBits(n)
	for i := 0; i < n; i++ {
		bits.SetBit(i, val&(1<<uint(i)) != 0)
	}
	return bits, nil
}

func bitsToHex(bits jtag.Bits) string {
	var val uint64
	for i := 0; i < bits.Len() && i < 64; i++ {
		if bits.Bit(i) {
			val |= 1 << uint(i)
		}
	}
	return fmt.Sprintf("0x%X", val)
}
