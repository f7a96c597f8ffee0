package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var idcodeCmd = &cobra.Command{
	Use:   "idcode",
	Short: "Read the IDCODE register",
	Long: `Reset the TAP and shift out the 32-bit IDCODE register, decoding
its JEP106 manufacturer, part number, and version fields.`,
	RunE: runIDCODE,
}

func init() {
	rootCmd.AddCommand(idcodeCmd)
}

func runIDCODE(cmd *cobra.Command, args []string) error {
	adapter, closeFn, err := openAdapter()
	if err != nil {
		return err
	}
	defer closeFn()

	id, err := adapter.ReadIDCODE()
	if err != nil {
		return fmt.Errorf("read idcode: %w", err)
	}

	fmt.Println(id.String())
	if !id.HasIDCode {
		fmt.Println("warning: no IDCODE instruction detected (bit 0 of the capture is 0)")
	}
	return nil
}
