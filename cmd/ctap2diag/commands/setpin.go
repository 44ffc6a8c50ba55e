package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/goctap/ctap2"
	"github.com/dantte-lp/goctap/pinuv"
)

func setPINCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Manage the simulated device's PIN",
	}

	cmd.AddCommand(pinSetCmd())
	cmd.AddCommand(pinChangeCmd())
	cmd.AddCommand(pinRetriesCmd())

	return cmd
}

func pinSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <pin>",
		Short: "Run clientPIN setPIN, provisioning an initial PIN",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cp := ctap2.NewClientPIN(dispatcher)
			if err := cp.SetPIN(pinuv.Protocol1{}, args[0]); err != nil {
				return fmt.Errorf("setPIN: %w", err)
			}
			fmt.Println("PIN set")
			return nil
		},
	}
}

func pinChangeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "change <current-pin> <new-pin>",
		Short: "Run clientPIN changePIN",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			cp := ctap2.NewClientPIN(dispatcher)
			if err := cp.ChangePIN(pinuv.Protocol1{}, args[0], args[1]); err != nil {
				return fmt.Errorf("changePIN: %w", err)
			}
			fmt.Println("PIN changed")
			return nil
		},
	}
}

func pinRetriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retries",
		Short: "Run clientPIN getRetries",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cp := ctap2.NewClientPIN(dispatcher)
			retries, powerCycle, err := cp.GetPinRetries(pinuv.Protocol1{}.Number())
			if err != nil {
				return fmt.Errorf("getRetries: %w", err)
			}
			fmt.Printf("retries: %d  powerCycleState: %v\n", retries, powerCycle)
			return nil
		},
	}
}
