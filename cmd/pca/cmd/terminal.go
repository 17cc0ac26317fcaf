package cmd

import (
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gematik/pca/pkg/ca"
	"github.com/gematik/pca/pkg/pca"
	"github.com/gematik/pca/pkg/pca/api"
	"github.com/spf13/cobra"
)

var (
	terminalRole   string
	terminalMask   string
	terminalName   string
	terminalOutDir string
)

func init() {
	terminalCmd.Flags().StringVar(&terminalRole, "role", "id-AT", "terminal role: id-IS, id-AT or id-ST")
	terminalCmd.Flags().StringVar(&terminalMask, "mask", "03", "authorization mask, hex")
	terminalCmd.Flags().StringVar(&terminalName, "name", "PCA Test Terminal", "terminal common name")
	terminalCmd.Flags().StringVarP(&terminalOutDir, "out", "o", ".", "output directory")
	rootCmd.AddCommand(terminalCmd)
}

var terminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Create a test CA and a terminal certificate",
	Long: "Creates ca.pem, terminal.pem and terminal-key.pem in the output directory and prints a session request. " +
		"Reference ca.pem as trust_anchors to let the server accept the terminal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := pca.ParseRole(terminalRole)
		if err != nil {
			return err
		}
		mask, err := hex.DecodeString(terminalMask)
		if err != nil {
			return fmt.Errorf("mask: %w", err)
		}

		authority, err := ca.NewRandomMockCA()
		if err != nil {
			return err
		}
		cert, prk, err := ca.IssueTerminalCertificate(authority, terminalName,
			ca.WithTerminalRole(role),
			ca.WithAuthorizationMask(mask),
		)
		if err != nil {
			return err
		}

		caPEM, err := ca.EncodeCertToPEM(authority.IssuerCertificate())
		if err != nil {
			return err
		}
		certPEM, err := ca.EncodeCertToPEM(cert)
		if err != nil {
			return err
		}
		keyDER, err := x509.MarshalECPrivateKey(prk)
		if err != nil {
			return err
		}
		keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

		for name, content := range map[string][]byte{
			"ca.pem":           []byte(caPEM),
			"terminal.pem":     []byte(certPEM),
			"terminal-key.pem": keyPEM,
		} {
			path := filepath.Join(terminalOutDir, name)
			if err := os.WriteFile(path, content, 0o600); err != nil {
				return err
			}
			slog.Info("Wrote file", "path", path)
		}

		return printJSON(api.SessionRequest{
			Certificate:     certPEM,
			Extensions:      []api.ExtensionRequest{{OID: pca.OIDPCAAuthorization.String(), Mask: terminalMask}},
			SecureMessaging: true,
		})
	},
}
