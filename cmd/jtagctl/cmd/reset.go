package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drive the TAP to Test-Logic-Reset",
	RunE:  runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	adapter, closeFn, err := openAdapter()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := adapter.Reset(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	fmt.Printf("TAP state: %v\n", adapter.CurrentState())
	return nil
}
