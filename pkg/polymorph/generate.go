package polymorph

import (
	"fmt"
	"log/slog"

	"github.com/gematik/pca/pkg/brainpool"
)

// GenerateRecord runs the provisioning pipeline for one identifier: embed the
// identity, derive the pseudonym under sectorKey and encrypt both points.
func GenerateRecord(id Identifier, sectorKey SectorKey, qPI, qPP brainpool.Point) (*Record, error) {
	msg, err := NewMessage(id)
	if err != nil {
		return nil, err
	}
	pid, err := Embed(msg, nil)
	if err != nil {
		return nil, fmt.Errorf("embedding identity: %w", err)
	}
	pps, err := DerivePseudonym(id, sectorKey)
	if err != nil {
		return nil, fmt.Errorf("deriving pseudonym: %w", err)
	}
	rec, err := Encrypt(pid, pps, qPI, qPP)
	if err != nil {
		return nil, err
	}
	slog.Debug("generated polymorphic record", "type", string(rune(id.Type)))
	return rec, nil
}

// Verify decrypts both channels of rec and compares them against the expected
// identity and pseudonym derived for id. It is run after provisioning.
func Verify(rec *Record, id Identifier, sectorKey SectorKey, pi, pp *KeyPair) error {
	pts := rec.Points()
	if !pts.PubKeyPI.Equal(pi.Q) || !pts.PubKeyPP.Equal(pp.Q) {
		return fmt.Errorf("record keys do not match: %w", ErrCryptoIntegrity)
	}

	pid, err := pi.Decrypt(pts.Blinding, pts.CipherPI)
	if err != nil {
		return err
	}
	msg, err := Unembed(pid)
	if err != nil {
		return err
	}
	got, err := msg.Identifier()
	if err != nil {
		return err
	}
	if got.String() != id.String() {
		return fmt.Errorf("identity channel mismatch: %w", ErrCryptoIntegrity)
	}

	pps, err := pp.Decrypt(pts.Blinding, pts.CipherPP)
	if err != nil {
		return err
	}
	want, err := DerivePseudonym(id, sectorKey)
	if err != nil {
		return err
	}
	if !pps.Equal(want) {
		return fmt.Errorf("pseudonym channel mismatch: %w", ErrCryptoIntegrity)
	}
	return nil
}
