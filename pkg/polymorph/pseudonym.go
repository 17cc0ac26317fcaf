package polymorph

import (
	"crypto"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/bytemare/hash"
	"github.com/gematik/pca/pkg/brainpool"
)

const (
	// SectorKeySize is the length of freshly generated sector keys.
	SectorKeySize = 40

	// MinSectorKeySize is the shortest sector key accepted for derivation.
	MinSectorKeySize = 16
)

// SectorKey is the HMAC key of one unlinkability domain.
type SectorKey []byte

// NewSectorKey reads SectorKeySize random bytes from r, or from crypto/rand if r is nil.
func NewSectorKey(r io.Reader) (SectorKey, error) {
	if r == nil {
		r = rand.Reader
	}
	key := make(SectorKey, SectorKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("reading sector key: %w", err)
	}
	return key, nil
}

// DerivePseudonym maps id onto a point that is unlinkable across sector keys.
// The derivation is deterministic: retries increment the candidate instead of
// drawing new randomness.
func DerivePseudonym(id Identifier, key SectorKey) (brainpool.Point, error) {
	if len(key) < MinSectorKeySize {
		return brainpool.Point{}, fmt.Errorf("sector key of %d bytes: %w", len(key), ErrInvalidInput)
	}
	msg, err := NewMessage(id)
	if err != nil {
		return brainpool.Point{}, err
	}

	curve := brainpool.P320r1()
	mac := hash.FromCrypto(crypto.SHA384).GetHashFunction().Hmac(msg[:], key)
	candidate := new(big.Int).Mod(new(big.Int).SetBytes(mac), curve.Order())
	one := big.NewInt(1)

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if pt, ok := pointCandidate(curve, candidate); ok {
			if attempt > 0 {
				slog.Debug("derived pseudonym after retries", "attempts", attempt+1)
			}
			return pt, nil
		}
		candidate.Add(candidate, one)
		candidate.Mod(candidate, curve.Order())
	}
	return brainpool.Point{}, fmt.Errorf("pseudonym after %d attempts: %w", MaxAttempts, ErrEmbeddingExhausted)
}
