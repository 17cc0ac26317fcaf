package polymorph

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAEPLayout(t *testing.T) {
	msg, err := NewMessage(BSN("123456789"))
	require.NoError(t, err)

	seed := bytes.Repeat([]byte{0xA5}, SeedSize)
	enc := encodeOAEPWithSeed(msg, seed)
	require.Len(t, enc, 40)
	assert.Equal(t, byte(0x00), enc[0])

	decoded, err := decodeOAEP(enc)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)

	other := encodeOAEPWithSeed(msg, bytes.Repeat([]byte{0x5A}, SeedSize))
	assert.NotEqual(t, enc, other)
}

func TestDecodeOAEPRedundancy(t *testing.T) {
	msg, err := NewMessage(BSN("123456789"))
	require.NoError(t, err)
	enc := encodeOAEPWithSeed(msg, make([]byte, SeedSize))

	for _, pos := range []int{0, 1, 12, 39} {
		tampered := bytes.Clone(enc)
		tampered[pos] ^= 0x01
		_, err := decodeOAEP(tampered)
		assert.ErrorIs(t, err, ErrCryptoIntegrity, "flipped byte %d", pos)
	}

	_, err = decodeOAEP(enc[:39])
	assert.ErrorIs(t, err, ErrCryptoIntegrity)
}
