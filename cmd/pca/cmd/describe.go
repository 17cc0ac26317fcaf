package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/gematik/pca/pkg/brainpool"
	"github.com/gematik/pca/pkg/pca"
	"github.com/gematik/pca/pkg/polymorph"
)

type disclosureView struct {
	Mechanism              string            `json:"mechanism"`
	OID                    string            `json:"oid"`
	Sequence               string            `json:"sequence"`
	SchemeVersion          int               `json:"scheme_version"`
	SchemeKeyVersion       int               `json:"scheme_key_version"`
	Creator                string            `json:"creator"`
	Recipient              string            `json:"recipient"`
	RecipientKeySetVersion int               `json:"recipient_key_set_version"`
	Type                   string            `json:"type,omitempty"`
	Points                 map[string]string `json:"points"`
	Identifier             string            `json:"identifier,omitempty"`
	Pseudonym              string            `json:"pseudonym,omitempty"`
}

// describeDisclosure renders d for humans. Channels are decrypted when the
// matching private key is part of keys.
func describeDisclosure(d *pca.Disclosure, keys *pca.KeyMaterial) (*disclosureView, error) {
	v, err := d.Variant()
	if err != nil {
		return nil, err
	}
	view := &disclosureView{
		Mechanism:              v.Name(),
		OID:                    d.OID.String(),
		Sequence:               hex.EncodeToString(d.Sequence[:]),
		SchemeVersion:          int(d.SchemeVersion),
		SchemeKeyVersion:       int(d.SchemeKeyVersion),
		Creator:                d.Creator.String(),
		Recipient:              d.Recipient.String(),
		RecipientKeySetVersion: int(d.RecipientKeySetVersion),
		Points:                 map[string]string{},
	}
	if d.Type != nil {
		view.Type = string(rune(*d.Type))
	}
	for name, value := range map[string][]byte{
		"blinding":  d.Blinding,
		"cipher_pi": d.CipherPI,
		"cipher_pp": d.CipherPP,
		"pubkey_pi": d.PubKeyPI,
		"pubkey_pp": d.PubKeyPP,
	} {
		if value != nil {
			view.Points[name] = hex.EncodeToString(value)
		}
	}
	if keys == nil {
		return view, nil
	}

	curve := brainpool.P320r1()
	blinding, err := curve.Unmarshal(d.Blinding)
	if err != nil {
		return nil, fmt.Errorf("blinding: %w", err)
	}
	if d.CipherPI != nil && keys.PI != nil && keys.PI.D != nil {
		pid, err := decryptPoint(keys.PI, blinding, d.CipherPI)
		if err != nil {
			return nil, fmt.Errorf("identity channel: %w", err)
		}
		msg, err := polymorph.Unembed(pid)
		if err != nil {
			return nil, err
		}
		id, err := msg.Identifier()
		if err != nil {
			return nil, err
		}
		view.Identifier = id.String()
	}
	if d.CipherPP != nil && keys.PP != nil && keys.PP.D != nil {
		pps, err := decryptPoint(keys.PP, blinding, d.CipherPP)
		if err != nil {
			return nil, fmt.Errorf("pseudonym channel: %w", err)
		}
		view.Pseudonym = hex.EncodeToString(curve.MarshalCompressed(pps))
	}
	return view, nil
}

func decryptPoint(kp *polymorph.KeyPair, blinding brainpool.Point, cipher []byte) (brainpool.Point, error) {
	c, err := brainpool.P320r1().Unmarshal(cipher)
	if err != nil {
		return brainpool.Point{}, err
	}
	return kp.Decrypt(blinding, c)
}
