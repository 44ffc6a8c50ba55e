package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func selectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selection",
		Short: "Run authenticatorSelection, prompting the user to touch the device",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := dispatcher.Selection(); err != nil {
				return fmt.Errorf("selection: %w", err)
			}
			fmt.Println("device selected")
			return nil
		},
	}
}
