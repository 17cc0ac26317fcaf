package pca_test

import (
	"bytes"
	"context"
	"crypto/x509"
	"testing"
	"time"

	"github.com/gematik/pca/pkg/brainpool"
	"github.com/gematik/pca/pkg/ca"
	"github.com/gematik/pca/pkg/pca"
	"github.com/gematik/pca/pkg/polymorph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	keys      *pca.KeyMaterial
	authority ca.CertificateAuthority
	store     *pca.MemoryCardStore
	service   *pca.Service
}

func newServiceFixture(t *testing.T, info pca.Info) *serviceFixture {
	t.Helper()
	ctx := context.Background()

	keys := testKeys(t)
	store := pca.NewMemoryCardStore()
	require.NoError(t, store.PutCard(ctx, provisionCard(t, keys, info)))

	grants, err := pca.NewMemoryGrantService()
	require.NoError(t, err)
	authority, err := ca.NewRandomMockCA()
	require.NoError(t, err)
	roots := x509.NewCertPool()
	roots.AddCert(authority.IssuerCertificate())

	now := time.Now().Truncate(time.Second)
	svc := pca.NewService(store, grants, pca.WithTrustAnchors(roots), pca.WithClock(func() time.Time { return now }))
	return &serviceFixture{keys: keys, authority: authority, store: store, service: svc}
}

// authenticate opens a session for an authentication terminal holding mask.
func (f *serviceFixture) authenticate(t *testing.T, mask []byte) *pca.Session {
	t.Helper()
	cert := issueTerminal(t, f.authority,
		ca.WithTerminalRole(pca.RoleAuthenticationTerminal),
		ca.WithAuthorizationMask(mask),
	)
	session, err := f.service.Authenticate(context.Background(), "card-1", pca.AuthenticationRequest{
		Certificate:     cert,
		Asserted:        assertedMask(mask),
		SecureMessaging: true,
	})
	require.NoError(t, err)
	return session
}

func (f *serviceFixture) retrieve(t *testing.T, v pca.Variant) *pca.Disclosure {
	t.Helper()
	session := f.authenticate(t, pca.MaskFor(polymorph.KindPIP))
	out, err := f.service.Retrieve(context.Background(), session.ID, v.OID())
	require.NoError(t, err)
	d, err := pca.ParseDisclosure(out)
	require.NoError(t, err)
	return d
}

func decryptChannel(t *testing.T, kp *polymorph.KeyPair, blinding, cipher []byte) brainpool.Point {
	t.Helper()
	curve := brainpool.P320r1()
	b, err := curve.Unmarshal(blinding)
	require.NoError(t, err)
	c, err := curve.Unmarshal(cipher)
	require.NoError(t, err)
	pt, err := kp.Decrypt(b, c)
	require.NoError(t, err)
	return pt
}

func TestRetrievePIP(t *testing.T) {
	f := newServiceFixture(t, pca.DefaultInfo())
	curve := brainpool.P320r1()

	d := f.retrieve(t, pca.Variant{Kind: polymorph.KindPIP})
	assert.Equal(t, pca.DefaultIssuer().Creator, d.Creator)
	assert.Equal(t, pca.DefaultIssuer().Recipient, d.Recipient)
	require.NotNil(t, d.Type)
	assert.Equal(t, byte('B'), *d.Type)
	assert.Equal(t, curve.MarshalUncompressed(f.keys.PI.Q), d.PubKeyPI)
	assert.Equal(t, curve.MarshalUncompressed(f.keys.PP.Q), d.PubKeyPP)

	msg, err := polymorph.Unembed(decryptChannel(t, f.keys.PI, d.Blinding, d.CipherPI))
	require.NoError(t, err)
	id, err := msg.Identifier()
	require.NoError(t, err)
	assert.Equal(t, testBSN, string(id.Value))

	pseudonym, err := polymorph.DerivePseudonym(polymorph.BSN(testBSN), f.keys.SectorKey)
	require.NoError(t, err)
	assert.True(t, pseudonym.Equal(decryptChannel(t, f.keys.PP, d.Blinding, d.CipherPP)))
}

func TestRetrieveReducedCompressedPP(t *testing.T) {
	f := newServiceFixture(t, pca.DefaultInfo())

	d := f.retrieve(t, pca.Variant{Kind: polymorph.KindPP, Encoding: polymorph.Encoding{Reduced: true, Compressed: true}})
	assert.Len(t, d.Blinding, 41)
	assert.Len(t, d.CipherPP, 41)
	assert.Nil(t, d.CipherPI)
	assert.Nil(t, d.PubKeyPI)
	assert.Nil(t, d.PubKeyPP)

	pseudonym, err := polymorph.DerivePseudonym(polymorph.BSN(testBSN), f.keys.SectorKey)
	require.NoError(t, err)
	assert.True(t, pseudonym.Equal(decryptChannel(t, f.keys.PP, d.Blinding, d.CipherPP)))
}

func TestRetrieveIsUnlinkable(t *testing.T) {
	f := newServiceFixture(t, pca.DefaultInfo())
	v := pca.Variant{Kind: polymorph.KindPP}

	first := f.retrieve(t, v)
	second := f.retrieve(t, v)
	assert.NotEqual(t, first.Blinding, second.Blinding)
	assert.NotEqual(t, first.CipherPP, second.CipherPP)
	assert.Equal(t, 1, bytes.Compare(second.Sequence[:], first.Sequence[:]), "sequence must increase")

	assert.True(t, decryptChannel(t, f.keys.PP, first.Blinding, first.CipherPP).
		Equal(decryptChannel(t, f.keys.PP, second.Blinding, second.CipherPP)))
}

func TestRetrieveReplayIsDenied(t *testing.T) {
	f := newServiceFixture(t, pca.DefaultInfo())
	ctx := context.Background()
	mechanism := pca.Variant{Kind: polymorph.KindPI}.OID()

	session := f.authenticate(t, pca.MaskFor(polymorph.KindPIP))
	_, err := f.service.Retrieve(ctx, session.ID, mechanism)
	require.NoError(t, err)

	_, err = f.service.Retrieve(ctx, session.ID, mechanism)
	assert.Equal(t, polymorph.ErrPolicyDenied, err)

	_, err = f.service.Retrieve(ctx, "unknown", mechanism)
	assert.ErrorIs(t, err, pca.ErrSessionNotFound)
}

func TestRetrieveFailuresLeaveCardUnchanged(t *testing.T) {
	info := pca.DefaultInfo()
	info.Flags = pca.FlagRandomizedPP | pca.FlagUncompressed | pca.FlagRegular
	f := newServiceFixture(t, info)
	ctx := context.Background()

	before, err := f.store.GetCard(ctx, "card-1")
	require.NoError(t, err)

	session := f.authenticate(t, pca.MaskFor(polymorph.KindPIP))

	_, err = f.service.Retrieve(ctx, session.ID, pca.OIDPCAInfo)
	assert.ErrorIs(t, err, polymorph.ErrInvalidInput)

	_, err = f.service.Retrieve(ctx, session.ID, pca.Variant{Kind: polymorph.KindPI}.OID())
	assert.Equal(t, polymorph.ErrPolicyDenied, err)

	_, err = f.service.Retrieve(ctx, session.ID, pca.Variant{Kind: polymorph.KindPP, Encoding: polymorph.Encoding{Compressed: true}}.OID())
	assert.Equal(t, polymorph.ErrPolicyDenied, err)

	after, err := f.store.GetCard(ctx, "card-1")
	require.NoError(t, err)
	assert.Equal(t, before.Record.Points(), after.Record.Points())
	assert.Equal(t, before.LastSequence, after.LastSequence)

	// the session was not consumed by the failed attempts
	_, err = f.service.Retrieve(ctx, session.ID, pca.Variant{Kind: polymorph.KindPP}.OID())
	assert.NoError(t, err)
}

func TestRetrieveDeniedByMask(t *testing.T) {
	f := newServiceFixture(t, pca.DefaultInfo())
	ctx := context.Background()

	session := f.authenticate(t, pca.MaskFor(polymorph.KindPP))
	_, err := f.service.Retrieve(ctx, session.ID, pca.Variant{Kind: polymorph.KindPI}.OID())
	assert.Equal(t, polymorph.ErrPolicyDenied, err)

	_, err = f.service.Retrieve(ctx, session.ID, pca.Variant{Kind: polymorph.KindPP}.OID())
	assert.NoError(t, err)
}

func TestAuthenticateRejectsUntrustedTerminal(t *testing.T) {
	f := newServiceFixture(t, pca.DefaultInfo())
	ctx := context.Background()

	other, err := ca.NewRandomMockCA()
	require.NoError(t, err)
	cert := issueTerminal(t, other, ca.WithTerminalRole(pca.RoleAuthenticationTerminal))
	_, err = f.service.Authenticate(ctx, "card-1", pca.AuthenticationRequest{Certificate: cert, SecureMessaging: true})
	assert.Equal(t, polymorph.ErrPolicyDenied, err)

	noRole := issueTerminal(t, f.authority)
	_, err = f.service.Authenticate(ctx, "card-1", pca.AuthenticationRequest{Certificate: noRole, SecureMessaging: true})
	assert.ErrorIs(t, err, polymorph.ErrInvalidInput)

	_, err = f.service.Authenticate(ctx, "card-1", pca.AuthenticationRequest{SecureMessaging: true})
	assert.ErrorIs(t, err, polymorph.ErrInvalidInput)

	_, err = f.service.Authenticate(ctx, "card-2", pca.AuthenticationRequest{Certificate: noRole})
	assert.ErrorIs(t, err, pca.ErrCardNotFound)
}

func TestInspectionSystemIsDenied(t *testing.T) {
	f := newServiceFixture(t, pca.DefaultInfo())
	ctx := context.Background()

	mask := pca.MaskFor(polymorph.KindPIP)
	cert := issueTerminal(t, f.authority, ca.WithTerminalRole(pca.RoleInspectionSystem), ca.WithAuthorizationMask(mask))
	session, err := f.service.Authenticate(ctx, "card-1", pca.AuthenticationRequest{
		Certificate:     cert,
		Asserted:        assertedMask(mask),
		SecureMessaging: true,
	})
	require.NoError(t, err)

	_, err = f.service.Retrieve(ctx, session.ID, pca.Variant{Kind: polymorph.KindPP}.OID())
	assert.Equal(t, polymorph.ErrPolicyDenied, err)
}
