package commands

import (
	"crypto/sha256"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/goctap/assertion"
	"github.com/dantte-lp/goctap/pinuv"
)

func getAssertionCmd() *cobra.Command {
	var (
		rpID string
		pin  string
	)

	cmd := &cobra.Command{
		Use:   "get-assertion",
		Short: "Run authenticatorGetAssertion (and drain getNextAssertion) against the device",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			clientDataHash := sha256.Sum256([]byte("ctap2diag-" + rpID))

			req := assertion.Request{
				RPID:           rpID,
				ClientDataHash: clientDataHash[:],
			}

			if pin != "" {
				authParam, protocolNumber, err := obtainPinUvAuthParam(pin, pinuv.PermGetAssertion, clientDataHash[:])
				if err != nil {
					return err
				}
				req.PinUvAuthParam = authParam
				req.PinUvAuthProtocol = protocolNumber
			}

			responses, err := assertion.GetAssertion(dispatcher, req)
			if err != nil {
				return fmt.Errorf("getAssertion: %w", err)
			}

			fmt.Printf("%d assertion(s)\n", len(responses))
			for i, r := range responses {
				fmt.Printf("  [%d] credential id: %x  sign count: %d\n", i, r.Credential.ID, r.AuthData.SignCount)
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&rpID, "rp", "example.com", "relying party id")
	flags.StringVar(&pin, "pin", "", "PIN to authorize this call with, if the device has one set")

	return cmd
}
