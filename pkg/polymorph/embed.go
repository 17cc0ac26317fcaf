package polymorph

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/gematik/pca/pkg/brainpool"
)

// MaxAttempts bounds the retry loops of embedding and pseudonym derivation.
const MaxAttempts = 256

// Embed maps msg onto a point of brainpoolP320r1. Each attempt draws a fresh
// OAEP seed from r; a nil r reads from crypto/rand.
func Embed(msg Message, r io.Reader) (brainpool.Point, error) {
	if r == nil {
		r = rand.Reader
	}
	curve := brainpool.P320r1()

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		enc, err := encodeOAEP(msg, r)
		if err != nil {
			return brainpool.Point{}, err
		}
		decoded, err := decodeOAEP(enc)
		if err != nil {
			return brainpool.Point{}, err
		}
		if decoded != msg {
			return brainpool.Point{}, fmt.Errorf("oaep self check: %w", ErrCryptoIntegrity)
		}

		pt, ok := pointCandidate(curve, new(big.Int).SetBytes(enc))
		if !ok {
			continue
		}
		if !bytes.Equal(curve.CoordinateBytes(pt.X), enc) {
			continue
		}
		if attempt > 0 {
			slog.Debug("embedded message after retries", "attempts", attempt+1)
		}
		return pt, nil
	}
	return brainpool.Point{}, fmt.Errorf("embedding after %d attempts: %w", MaxAttempts, ErrEmbeddingExhausted)
}

// Unembed recovers the message carried in the x coordinate of pt.
func Unembed(pt brainpool.Point) (Message, error) {
	curve := brainpool.P320r1()
	if pt.IsIdentity() || !curve.IsOnCurve(pt) {
		return Message{}, fmt.Errorf("unembed: %w", ErrCryptoIntegrity)
	}
	return decodeOAEP(curve.CoordinateBytes(pt.X))
}

// pointCandidate returns the point with x coordinate x if one exists.
func pointCandidate(curve *brainpool.Curve, x *big.Int) (brainpool.Point, bool) {
	pt, err := curve.PointFromX(x)
	if err != nil {
		return brainpool.Point{}, false
	}
	return pt, true
}
