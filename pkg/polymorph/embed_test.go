package polymorph_test

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"testing"

	"github.com/gematik/pca/pkg/brainpool"
	"github.com/gematik/pca/pkg/polymorph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedStream yields the bytes 00 01 02 ... wrapping at 0xFF.
func seedStream() *bytes.Reader {
	stream := make([]byte, 4096)
	for i := range stream {
		stream[i] = byte(i)
	}
	return bytes.NewReader(stream)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func hexInt(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 16)
	require.True(t, ok, "invalid hex %s", s)
	return v
}

func TestNewMessage(t *testing.T) {
	msg, err := polymorph.NewMessage(polymorph.BSN("123456789"))
	require.NoError(t, err)
	assert.Equal(t, "014209313233343536373839000000000000", hex.EncodeToString(msg[:]))

	id, err := msg.Identifier()
	require.NoError(t, err)
	assert.Equal(t, polymorph.TypeBSN, id.Type)
	assert.Equal(t, []byte("123456789"), id.Value)

	_, err = polymorph.NewMessage(polymorph.BSN("1234567890123456"))
	assert.ErrorIs(t, err, polymorph.ErrInvalidInput)

	_, err = polymorph.NewMessage(polymorph.BSN(""))
	assert.ErrorIs(t, err, polymorph.ErrInvalidInput)

	msg, err = polymorph.NewMessage(polymorph.BSN("123456789012345"))
	require.NoError(t, err, "15 bytes fill the message exactly")
	assert.Equal(t, byte(15), msg[2])
}

func TestMessageIdentifierRejectsGarbage(t *testing.T) {
	msg, err := polymorph.NewMessage(polymorph.BSN("42"))
	require.NoError(t, err)

	padded := msg
	padded[17] = 0x01
	_, err = padded.Identifier()
	assert.ErrorIs(t, err, polymorph.ErrCryptoIntegrity)

	versioned := msg
	versioned[0] = 0x02
	_, err = versioned.Identifier()
	assert.ErrorIs(t, err, polymorph.ErrCryptoIntegrity)
}

func TestEmbedRegressionVectors(t *testing.T) {
	tests := []struct {
		name string
		id   string
		x    string
		y    string
	}{
		{
			name: "first seed succeeds",
			id:   "123456789",
			x:    "00566A1F558D768BAA7C260B63EF3DA24DAD2DF651C159C090212D5C4DB80153D352379E03A51A14",
			y:    "1B4D382B4D50631F6554F817AEB4D5D0896EC61E88B5E90CFE34FC072AC2362014D6D892A760CDAC",
		},
		{
			name: "second seed succeeds",
			id:   "999999990",
			x:    "00D8613E193715227FE2103AD28DAC90F3B1903C722FE58BDA18B56E0CAFAF284773998887C80544",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := polymorph.NewMessage(polymorph.BSN(tt.id))
			require.NoError(t, err)

			pt, err := polymorph.Embed(msg, seedStream())
			require.NoError(t, err)
			assert.Equal(t, 0, pt.X.Cmp(hexInt(t, tt.x)), "x mismatch: %X", pt.X)
			if tt.y != "" {
				assert.Equal(t, 0, pt.Y.Cmp(hexInt(t, tt.y)), "y mismatch: %X", pt.Y)
			}
			assert.True(t, brainpool.P320r1().IsOnCurve(pt))
		})
	}
}

func TestEmbedRoundTrip(t *testing.T) {
	curve := brainpool.P320r1()
	for i := 0; i < 16; i++ {
		id := polymorph.BSN(fmt.Sprintf("%09d", 100000000+i*7919))
		msg, err := polymorph.NewMessage(id)
		require.NoError(t, err)

		pt, err := polymorph.Embed(msg, nil)
		require.NoError(t, err)
		assert.True(t, curve.IsOnCurve(pt))

		back, err := polymorph.Unembed(pt)
		require.NoError(t, err)
		assert.Equal(t, msg, back)

		got, err := back.Identifier()
		require.NoError(t, err)
		assert.Equal(t, id.String(), got.String())
	}
}

func TestEmbedExhausted(t *testing.T) {
	// with an all zero seed this message never lands on the curve
	msg, err := polymorph.NewMessage(polymorph.BSN("000000001"))
	require.NoError(t, err)

	_, err = polymorph.Embed(msg, zeroReader{})
	assert.ErrorIs(t, err, polymorph.ErrEmbeddingExhausted)
}

func TestEmbedFailingRandomness(t *testing.T) {
	msg, err := polymorph.NewMessage(polymorph.BSN("123456789"))
	require.NoError(t, err)

	_, err = polymorph.Embed(msg, bytes.NewReader([]byte{0x01, 0x02}))
	assert.Error(t, err)
}

func TestUnembedRejectsForeignPoints(t *testing.T) {
	curve := brainpool.P320r1()
	_, err := polymorph.Unembed(curve.Generator())
	assert.ErrorIs(t, err, polymorph.ErrCryptoIntegrity)

	_, err = polymorph.Unembed(brainpool.Point{})
	assert.ErrorIs(t, err, polymorph.ErrCryptoIntegrity)
}
