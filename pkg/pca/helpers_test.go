package pca_test

import (
	"context"
	"crypto/x509"
	"testing"

	"github.com/gematik/pca/pkg/ca"
	"github.com/gematik/pca/pkg/pca"
	"github.com/gematik/pca/pkg/polymorph"
	"github.com/stretchr/testify/require"
)

const testBSN = "123456789"

func testKeys(t *testing.T) *pca.KeyMaterial {
	t.Helper()
	pi, err := polymorph.GenerateKeyPair(nil)
	require.NoError(t, err)
	pp, err := polymorph.GenerateKeyPair(nil)
	require.NoError(t, err)
	sectorKey, err := polymorph.NewSectorKey(nil)
	require.NoError(t, err)
	return &pca.KeyMaterial{PI: pi, PP: pp, SectorKey: sectorKey}
}

func provisionCard(t *testing.T, keys *pca.KeyMaterial, info pca.Info) *pca.Card {
	t.Helper()
	p := &pca.Provisioner{Keys: keys, Info: info, Issuer: pca.DefaultIssuer()}
	card, err := p.Provision(context.Background(), "card-1", polymorph.BSN(testBSN))
	require.NoError(t, err)
	return card
}

func issueTerminal(t *testing.T, authority ca.CertificateAuthority, opts ...ca.SigningOption) *x509.Certificate {
	t.Helper()
	cert, _, err := ca.IssueTerminalCertificate(authority, "Test Terminal", opts...)
	require.NoError(t, err)
	return cert
}

func assertedMask(mask []byte) []pca.AuthorizationExtension {
	return []pca.AuthorizationExtension{{OID: pca.OIDPCAAuthorization, Mask: mask}}
}
