package polymorph

import (
	"fmt"
	"io"
	"math/big"

	"github.com/gematik/pca/pkg/brainpool"
)

// KeyPair is a channel key pair with Q = D·G.
type KeyPair struct {
	D *big.Int
	Q brainpool.Point
}

// GenerateKeyPair draws a fresh private scalar from r, or from crypto/rand if r is nil.
func GenerateKeyPair(r io.Reader) (*KeyPair, error) {
	d, err := brainpool.P320r1().RandomScalar(r)
	if err != nil {
		return nil, err
	}
	return NewKeyPair(d)
}

// NewKeyPair derives the public point for the private scalar d.
func NewKeyPair(d *big.Int) (*KeyPair, error) {
	curve := brainpool.P320r1()
	if d == nil || d.Sign() <= 0 || d.Cmp(curve.Order()) >= 0 {
		return nil, fmt.Errorf("private scalar out of range: %w", ErrInvalidInput)
	}
	return &KeyPair{
		D: new(big.Int).Set(d),
		Q: curve.ScalarBaseMult(d),
	}, nil
}

// Decrypt recovers the plaintext point of the channel this key pair belongs to.
func (kp *KeyPair) Decrypt(blinding, cipher brainpool.Point) (brainpool.Point, error) {
	return Decrypt(blinding, cipher, kp.D)
}

// Decrypt computes cipher − d·blinding. It is a verifier side utility.
func Decrypt(blinding, cipher brainpool.Point, d *big.Int) (brainpool.Point, error) {
	curve := brainpool.P320r1()
	if err := checkPoint(curve, blinding); err != nil {
		return brainpool.Point{}, fmt.Errorf("blinding: %w", err)
	}
	if err := checkPoint(curve, cipher); err != nil {
		return brainpool.Point{}, fmt.Errorf("cipher: %w", err)
	}
	if d == nil || d.Sign() <= 0 {
		return brainpool.Point{}, fmt.Errorf("private scalar: %w", ErrInvalidInput)
	}
	pt := curve.Add(cipher, curve.Neg(curve.ScalarMult(blinding, d)))
	if pt.IsIdentity() {
		return brainpool.Point{}, fmt.Errorf("decrypted to identity: %w", ErrCryptoIntegrity)
	}
	return pt, nil
}

func checkPoint(curve *brainpool.Curve, pt brainpool.Point) error {
	if pt.IsIdentity() || !curve.IsOnCurve(pt) {
		return ErrCryptoIntegrity
	}
	return nil
}
