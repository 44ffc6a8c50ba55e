package commands

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/goctap/credential"
	"github.com/dantte-lp/goctap/ctap2"
	"github.com/dantte-lp/goctap/pinuv"
)

func makeCredentialCmd() *cobra.Command {
	var (
		rpID     string
		userName string
		pin      string
	)

	cmd := &cobra.Command{
		Use:   "make-credential",
		Short: "Run authenticatorMakeCredential against the device",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			clientDataHash := sha256.Sum256([]byte(fmt.Sprintf("ctap2diag-%s-%s", rpID, userName)))

			req := credential.Request{
				ClientDataHash: clientDataHash[:],
				RP:             credential.RelyingParty{ID: rpID, Name: rpID},
				User:           credential.User{ID: randomUserID(), Name: userName, DisplayName: userName},
				PubKeyCredParams: []credential.Algorithm{
					{Type: "public-key", Alg: -7},
				},
			}

			if pin != "" {
				authParam, protocolNumber, err := obtainPinUvAuthParam(pin, pinuv.PermMakeCredential, clientDataHash[:])
				if err != nil {
					return err
				}
				req.PinUvAuthParam = authParam
				req.PinUvAuthProtocol = protocolNumber
			}

			resp, err := credential.MakeCredential(dispatcher, req)
			if err != nil {
				return fmt.Errorf("makeCredential: %w", err)
			}

			fmt.Printf("format:        %s\n", resp.Format)
			fmt.Printf("credential id: %x\n", resp.AttestedCredential.CredentialID)
			fmt.Printf("aaguid:        %x\n", resp.AttestedCredential.AAGUID)
			fmt.Printf("sign count:    %d\n", resp.AuthData.SignCount)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&rpID, "rp", "example.com", "relying party id")
	flags.StringVar(&userName, "user", "diag-user", "user account name")
	flags.StringVar(&pin, "pin", "", "PIN to authorize this call with, if the device has one set")

	return cmd
}

// obtainPinUvAuthParam runs the getPinUvAuthTokenUsingPinWithPermissions
// round trip and signs message, returning the pinUvAuthParam and the
// negotiated protocol number for a single command's request fields.
func obtainPinUvAuthParam(pin string, permission byte, message []byte) ([]byte, int, error) {
	ts := pinuv.NewTokenSource(ctap2.NewClientPIN(dispatcher), pinuv.Protocol1{})
	if _, err := ts.ObtainWithPin(pin, permission, ""); err != nil {
		return nil, 0, fmt.Errorf("obtain pin token: %w", err)
	}
	authParam, err := ts.Sign(message)
	if err != nil {
		return nil, 0, fmt.Errorf("sign pinUvAuthParam: %w", err)
	}
	return authParam, ts.Protocol().Number(), nil
}

func randomUserID() []byte {
	id := make([]byte, 16)
	_, _ = rand.Read(id)
	return id
}
