package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/goctap/internal/appinfo"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print ctap2diag build information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println(appinfo.Full("ctap2diag"))
			return nil
		},
	}
}
