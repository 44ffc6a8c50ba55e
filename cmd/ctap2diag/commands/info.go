package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Run authenticatorGetInfo and print the decoded response",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			info, err := dispatcher.GetInfo()
			if err != nil {
				return fmt.Errorf("getInfo: %w", err)
			}

			fmt.Printf("Versions:            %v\n", info.Versions)
			fmt.Printf("Extensions:          %v\n", info.Extensions)
			fmt.Printf("AAGUID:              %x\n", info.AAGUID)
			fmt.Printf("Options:             %v\n", info.Options)
			fmt.Printf("PinUvAuthProtocols:  %v\n", info.PinUvAuthProtocols)
			fmt.Printf("MaxMsgSize:          %d\n", info.MaxMsgSize)
			fmt.Printf("Algorithms:          %v\n", info.Algorithms)
			if info.MinPINLength > 0 {
				fmt.Printf("MinPINLength:        %d\n", info.MinPINLength)
			}

			return nil
		},
	}
}
