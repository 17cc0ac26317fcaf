package polymorph

import (
	"bytes"
	"crypto"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/bytemare/hash"
)

const (
	// SeedSize is the OAEP seed length. Two seeds, the separator and the leading
	// zero octet fill the curve width together with a message.
	SeedSize = 10

	// encodedSize is the width of an OAEP encoding, equal to the curve coordinate width.
	encodedSize = 1 + SeedSize + SeedSize + 1 + MessageSize
)

var mgfCounter = []byte{0x00, 0x00, 0x00, 0x00}

func digest(parts ...[]byte) []byte {
	h := hash.FromCrypto(crypto.SHA384).GetHashFunction()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	return h.Sum(nil)
}

// labelHash is the hash of the empty label, truncated to the seed length.
func labelHash() []byte {
	return digest(nil)[:SeedSize]
}

// mgf derives a mask of length l from in. l never exceeds the hash output size here.
func mgf(in []byte, l int) []byte {
	return digest(in, mgfCounter)[:l]
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	subtle.XORBytes(out, a, b)
	return out
}

// encodeOAEP pads msg into 0x00 ‖ maskedSeed ‖ maskedDB using a seed read from rand.
func encodeOAEP(msg Message, rand io.Reader) ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, fmt.Errorf("reading seed: %w", err)
	}
	return encodeOAEPWithSeed(msg, seed), nil
}

func encodeOAEPWithSeed(msg Message, seed []byte) []byte {
	db := make([]byte, 0, SeedSize+1+MessageSize)
	db = append(db, labelHash()...)
	db = append(db, 0x01)
	db = append(db, msg[:]...)

	maskedDB := xorBytes(db, mgf(seed, len(db)))
	maskedSeed := xorBytes(seed, mgf(maskedDB, SeedSize))

	out := make([]byte, 0, encodedSize)
	out = append(out, 0x00)
	out = append(out, maskedSeed...)
	return append(out, maskedDB...)
}

// decodeOAEP reverses encodeOAEP and verifies the redundancy.
func decodeOAEP(enc []byte) (Message, error) {
	var msg Message
	if len(enc) != encodedSize || enc[0] != 0x00 {
		return msg, fmt.Errorf("oaep: malformed encoding: %w", ErrCryptoIntegrity)
	}
	maskedSeed := enc[1 : 1+SeedSize]
	maskedDB := enc[1+SeedSize:]

	seed := xorBytes(maskedSeed, mgf(maskedDB, SeedSize))
	db := xorBytes(maskedDB, mgf(seed, len(maskedDB)))

	if db[SeedSize] != 0x01 {
		return msg, fmt.Errorf("oaep: missing separator: %w", ErrCryptoIntegrity)
	}
	if !bytes.Equal(db[:SeedSize], labelHash()) {
		return msg, fmt.Errorf("oaep: label hash mismatch: %w", ErrCryptoIntegrity)
	}
	copy(msg[:], db[SeedSize+1:])
	return msg, nil
}
