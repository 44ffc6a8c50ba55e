package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Run authenticatorReset, erasing all credentials and the PIN",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := dispatcher.Reset(); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			fmt.Println("device reset")
			return nil
		},
	}
}
