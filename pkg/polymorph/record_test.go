package polymorph_test

import (
	"testing"

	"github.com/gematik/pca/pkg/brainpool"
	"github.com/gematik/pca/pkg/polymorph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	id  polymorph.Identifier
	key polymorph.SectorKey
	pi  *polymorph.KeyPair
	pp  *polymorph.KeyPair
	pid brainpool.Point
	pps brainpool.Point
	rec *polymorph.Record
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{id: polymorph.BSN("123456789"), key: sequentialKey(0x01)}

	var err error
	f.pi, err = polymorph.GenerateKeyPair(nil)
	require.NoError(t, err)
	f.pp, err = polymorph.GenerateKeyPair(nil)
	require.NoError(t, err)

	msg, err := polymorph.NewMessage(f.id)
	require.NoError(t, err)
	f.pid, err = polymorph.Embed(msg, seedStream())
	require.NoError(t, err)
	f.pps, err = polymorph.DerivePseudonym(f.id, f.key)
	require.NoError(t, err)

	f.rec, err = polymorph.Encrypt(f.pid, f.pps, f.pi.Q, f.pp.Q)
	require.NoError(t, err)
	return f
}

func (f *fixture) assertPlaintexts(t *testing.T) {
	t.Helper()
	pts := f.rec.Points()

	pid, err := f.pi.Decrypt(pts.Blinding, pts.CipherPI)
	require.NoError(t, err)
	assert.True(t, pid.Equal(f.pid), "identity channel changed")

	pps, err := f.pp.Decrypt(pts.Blinding, pts.CipherPP)
	require.NoError(t, err)
	assert.True(t, pps.Equal(f.pps), "pseudonym channel changed")
}

func TestEncryptDecrypt(t *testing.T) {
	f := newFixture(t)
	f.assertPlaintexts(t)

	pts := f.rec.Points()
	assert.True(t, pts.PubKeyPI.Equal(f.pi.Q))
	assert.True(t, pts.PubKeyPP.Equal(f.pp.Q))

	wrong, err := f.pp.Decrypt(pts.Blinding, pts.CipherPI)
	require.NoError(t, err)
	assert.False(t, wrong.Equal(f.pid), "the PP key must not open the PI channel")
}

func TestRandomizePreservesPlaintexts(t *testing.T) {
	f := newFixture(t)

	kinds := []polymorph.Kind{polymorph.KindPI, polymorph.KindPP, polymorph.KindPIP}
	for i := 0; i < 9; i++ {
		before := f.rec.Points()
		require.NoError(t, f.rec.Randomize(kinds[i%len(kinds)]))
		after := f.rec.Points()

		assert.False(t, before.Blinding.Equal(after.Blinding))
		assert.False(t, before.CipherPI.Equal(after.CipherPI))
		assert.False(t, before.CipherPP.Equal(after.CipherPP))
		assert.True(t, before.PubKeyPI.Equal(after.PubKeyPI))
		f.assertPlaintexts(t)
	}

	assert.ErrorIs(t, f.rec.Randomize(polymorph.Kind(7)), polymorph.ErrInvalidInput)
}

func TestRenderingsAreUnlinkable(t *testing.T) {
	f := newFixture(t)
	enc := polymorph.Encoding{Compressed: true, Reduced: true}

	require.NoError(t, f.rec.Randomize(polymorph.KindPIP))
	first, err := f.rec.Render(polymorph.KindPIP, enc)
	require.NoError(t, err)

	require.NoError(t, f.rec.Randomize(polymorph.KindPIP))
	second, err := f.rec.Render(polymorph.KindPIP, enc)
	require.NoError(t, err)

	assert.NotEqual(t, first.Blinding, second.Blinding)
	assert.NotEqual(t, first.CipherPI, second.CipherPI)
	assert.NotEqual(t, first.CipherPP, second.CipherPP)
}

func TestRenderSelection(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		kind     polymorph.Kind
		enc      polymorph.Encoding
		pi, pp   bool
		withKeys bool
		width    int
	}{
		{polymorph.KindPI, polymorph.Encoding{}, true, false, true, 81},
		{polymorph.KindPP, polymorph.Encoding{Compressed: true}, false, true, true, 41},
		{polymorph.KindPIP, polymorph.Encoding{Reduced: true}, true, true, false, 81},
		{polymorph.KindPIP, polymorph.Encoding{Reduced: true, Compressed: true}, true, true, false, 41},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+tt.enc.String(), func(t *testing.T) {
			r, err := f.rec.Render(tt.kind, tt.enc)
			require.NoError(t, err)

			assert.Len(t, r.Blinding, tt.width)
			assert.Equal(t, tt.pi, r.CipherPI != nil)
			assert.Equal(t, tt.pp, r.CipherPP != nil)
			assert.Equal(t, tt.pi && tt.withKeys, r.PubKeyPI != nil)
			assert.Equal(t, tt.pp && tt.withKeys, r.PubKeyPP != nil)
			if tt.enc.Reduced {
				assert.Nil(t, r.PubKeyPI)
				assert.Nil(t, r.PubKeyPP)
			}
		})
	}

	_, err := f.rec.Render(polymorph.Kind(0), polymorph.Encoding{})
	assert.ErrorIs(t, err, polymorph.ErrInvalidInput)
}

func TestCompressedRenderingDecompresses(t *testing.T) {
	f := newFixture(t)
	curve := brainpool.P320r1()

	full, err := f.rec.Render(polymorph.KindPIP, polymorph.Encoding{})
	require.NoError(t, err)
	short, err := f.rec.Render(polymorph.KindPIP, polymorph.Encoding{Compressed: true})
	require.NoError(t, err)

	pairs := [][2][]byte{
		{full.Blinding, short.Blinding},
		{full.CipherPI, short.CipherPI},
		{full.CipherPP, short.CipherPP},
		{full.PubKeyPI, short.PubKeyPI},
		{full.PubKeyPP, short.PubKeyPP},
	}
	for _, pair := range pairs {
		want, err := curve.Unmarshal(pair[0])
		require.NoError(t, err)
		got, err := curve.Unmarshal(pair[1])
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
	}
}

func TestRecordBinaryRoundTrip(t *testing.T) {
	f := newFixture(t)

	data, err := f.rec.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, 5*81)

	var restored polymorph.Record
	require.NoError(t, restored.UnmarshalBinary(data))
	f.rec = &restored
	f.assertPlaintexts(t)

	assert.ErrorIs(t, restored.UnmarshalBinary(data[:80]), polymorph.ErrCryptoIntegrity)
}

func TestEncryptRejectsInvalidPoints(t *testing.T) {
	f := newFixture(t)
	_, err := polymorph.Encrypt(f.pid, f.pps, brainpool.Point{}, f.pp.Q)
	assert.ErrorIs(t, err, polymorph.ErrInvalidInput)
}

func TestGenerateAndVerifyRecord(t *testing.T) {
	f := newFixture(t)

	rec, err := polymorph.GenerateRecord(f.id, f.key, f.pi.Q, f.pp.Q)
	require.NoError(t, err)
	require.NoError(t, polymorph.Verify(rec, f.id, f.key, f.pi, f.pp))

	assert.ErrorIs(t, polymorph.Verify(rec, polymorph.BSN("987654321"), f.key, f.pi, f.pp), polymorph.ErrCryptoIntegrity)
	assert.ErrorIs(t, polymorph.Verify(rec, f.id, sequentialKey(0x29), f.pi, f.pp), polymorph.ErrCryptoIntegrity)
	assert.ErrorIs(t, polymorph.Verify(rec, f.id, f.key, f.pp, f.pi), polymorph.ErrCryptoIntegrity)
}

func TestPIPScenario(t *testing.T) {
	f := newFixture(t)
	curve := brainpool.P320r1()

	require.NoError(t, f.rec.Randomize(polymorph.KindPIP))
	r, err := f.rec.Render(polymorph.KindPIP, polymorph.Encoding{})
	require.NoError(t, err)
	require.NotNil(t, r.PubKeyPI)
	require.NotNil(t, r.PubKeyPP)

	blinding, err := curve.Unmarshal(r.Blinding)
	require.NoError(t, err)
	cipherPI, err := curve.Unmarshal(r.CipherPI)
	require.NoError(t, err)
	cipherPP, err := curve.Unmarshal(r.CipherPP)
	require.NoError(t, err)

	pid, err := f.pi.Decrypt(blinding, cipherPI)
	require.NoError(t, err)
	assert.Equal(t, 0, pid.X.Cmp(hexInt(t, "00566A1F558D768BAA7C260B63EF3DA24DAD2DF651C159C090212D5C4DB80153D352379E03A51A14")))

	msg, err := polymorph.Unembed(pid)
	require.NoError(t, err)
	id, err := msg.Identifier()
	require.NoError(t, err)
	assert.Equal(t, "123456789", string(id.Value))

	pps, err := f.pp.Decrypt(blinding, cipherPP)
	require.NoError(t, err)
	assert.True(t, pps.Equal(f.pps))
}
