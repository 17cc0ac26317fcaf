package pca_test

import (
	"encoding/asn1"
	"testing"

	"github.com/gematik/pca/pkg/pca"
	"github.com/gematik/pca/pkg/polymorph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantsAreDistinct(t *testing.T) {
	variants := pca.Variants()
	require.Len(t, variants, 12)

	seen := map[string]pca.Variant{}
	for _, v := range variants {
		oid := v.OID().String()
		_, dup := seen[oid]
		assert.False(t, dup, "duplicate OID %s", oid)
		seen[oid] = v

		back, err := pca.VariantForOID(v.OID())
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}
}

func TestVariantNames(t *testing.T) {
	tests := []struct {
		variant pca.Variant
		name    string
		oid     string
	}{
		{pca.Variant{Kind: polymorph.KindPIP}, "id-PCA-PIP", "2.16.528.1.1003.10.9.3.3.1"},
		{pca.Variant{Kind: polymorph.KindPP, Encoding: polymorph.Encoding{Compressed: true}}, "id-PCA-PP-compressed", "2.16.528.1.1003.10.9.3.1.2"},
		{pca.Variant{Kind: polymorph.KindPI, Encoding: polymorph.Encoding{Reduced: true}}, "id-PCA-PI-reduced-uncompressed", "2.16.528.1.1003.10.9.3.2.3"},
		{pca.Variant{Kind: polymorph.KindPIP, Encoding: polymorph.Encoding{Reduced: true, Compressed: true}}, "id-PCA-PIP-reduced-compressed", "2.16.528.1.1003.10.9.3.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.variant.Name())
			assert.Equal(t, tt.oid, tt.variant.OID().String())
		})
	}
}

func TestVariantForOIDRejectsUnknown(t *testing.T) {
	for _, oid := range []asn1.ObjectIdentifier{
		pca.OIDPCAInfo,
		{2, 16, 528, 1, 1003, 10, 9, 3, 4, 1},
		{2, 16, 528, 1, 1003, 10, 9, 3, 3, 5},
		{2, 16, 528, 1, 1003, 10, 9, 3, 3, 1, 1},
		{1, 2, 3, 4, 5, 6, 7, 3, 3, 1},
	} {
		_, err := pca.VariantForOID(oid)
		assert.ErrorIs(t, err, polymorph.ErrInvalidInput, "oid %s", oid)
	}
}

func TestParseOID(t *testing.T) {
	oid, err := pca.ParseOID("2.16.528.1.1003.10.9.3.3.1")
	require.NoError(t, err)
	v, err := pca.VariantForOID(oid)
	require.NoError(t, err)
	assert.Equal(t, polymorph.KindPIP, v.Kind)

	for _, s := range []string{"", "2", "2..1", "2.a", "2.16."} {
		_, err := pca.ParseOID(s)
		assert.ErrorIs(t, err, polymorph.ErrInvalidInput, "input %q", s)
	}
}

func TestParseMechanism(t *testing.T) {
	oid, err := pca.ParseMechanism("id-PCA-PIP-reduced-compressed")
	require.NoError(t, err)
	assert.Equal(t, "2.16.528.1.1003.10.9.3.3.4", oid.String())

	oid, err = pca.ParseMechanism("2.16.528.1.1003.10.9.3.1.2")
	require.NoError(t, err)
	assert.Equal(t, "id-PCA-PP-compressed", mustVariant(t, oid).Name())

	_, err = pca.ParseMechanism("id-PCA-XX")
	assert.ErrorIs(t, err, polymorph.ErrInvalidInput)
}

func mustVariant(t *testing.T, oid asn1.ObjectIdentifier) pca.Variant {
	t.Helper()
	v, err := pca.VariantForOID(oid)
	require.NoError(t, err)
	return v
}
