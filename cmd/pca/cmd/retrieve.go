package cmd

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/gematik/pca/pkg/ca"
	"github.com/gematik/pca/pkg/pca"
	"github.com/spf13/cobra"
)

var (
	retrieveCard            string
	retrieveMechanism       string
	retrieveMask            string
	retrieveRole            string
	retrieveSecureMessaging bool
	retrieveDecrypt         bool
)

func init() {
	retrieveCmd.Flags().StringVarP(&retrieveCard, "card", "c", "", "card id, defaults to the first provisioned card")
	retrieveCmd.Flags().StringVarP(&retrieveMechanism, "mechanism", "m", "id-PCA-PIP", "retrieval mechanism name or object identifier")
	retrieveCmd.Flags().StringVar(&retrieveMask, "mask", "03", "authorization mask of the terminal, hex")
	retrieveCmd.Flags().StringVar(&retrieveRole, "role", "id-AT", "terminal role: id-IS, id-AT or id-ST")
	retrieveCmd.Flags().BoolVar(&retrieveSecureMessaging, "secure-messaging", true, "establish secure messaging")
	retrieveCmd.Flags().BoolVarP(&retrieveDecrypt, "decrypt", "d", false, "decrypt the disclosure with the configured private keys")
	rootCmd.AddCommand(retrieveCmd)
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Authenticate a test terminal and retrieve a disclosure in-process",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runRetrieve(cmd.Context()); err != nil {
			slog.Error("Retrieval failed", "error", err)
			os.Exit(1)
		}
	},
}

func runRetrieve(ctx context.Context) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := pca.NewCardStore(config.Store)
	if err != nil {
		return err
	}
	grants, err := pca.NewGrantService(config.Grants)
	if err != nil {
		return err
	}
	if err := pca.ProvisionAll(ctx, config, store); err != nil {
		return err
	}

	authority, err := ca.NewRandomMockCA()
	if err != nil {
		return err
	}
	roots := x509.NewCertPool()
	roots.AddCert(authority.IssuerCertificate())
	service := pca.NewService(store, grants, pca.WithTrustAnchors(roots))

	cardID := retrieveCard
	if cardID == "" {
		ids, err := store.ListCards(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("no cards provisioned")
		}
		cardID = ids[0]
	}

	role, err := pca.ParseRole(retrieveRole)
	if err != nil {
		return err
	}
	mask, err := hex.DecodeString(retrieveMask)
	if err != nil {
		return fmt.Errorf("mask: %w", err)
	}
	cert, _, err := ca.IssueTerminalCertificate(authority, "PCA Test Terminal",
		ca.WithTerminalRole(role),
		ca.WithAuthorizationMask(mask),
	)
	if err != nil {
		return err
	}
	session, err := service.Authenticate(ctx, cardID, pca.AuthenticationRequest{
		Certificate:     cert,
		Asserted:        []pca.AuthorizationExtension{{OID: pca.OIDPCAAuthorization, Mask: mask}},
		SecureMessaging: retrieveSecureMessaging,
	})
	if err != nil {
		return err
	}

	mechanism, err := pca.ParseMechanism(retrieveMechanism)
	if err != nil {
		return err
	}
	out, err := service.Retrieve(ctx, session.ID, mechanism)
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(out))

	d, err := pca.ParseDisclosure(out)
	if err != nil {
		return err
	}
	var keys *pca.KeyMaterial
	if retrieveDecrypt {
		if keys, err = config.Keys.Load(); err != nil {
			return err
		}
	}
	view, err := describeDisclosure(d, keys)
	if err != nil {
		return err
	}
	return printJSON(view)
}
