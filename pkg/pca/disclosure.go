package pca

import (
	"encoding/asn1"
	"encoding/hex"
	"fmt"

	"github.com/gematik/pca/pkg/polymorph"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// OINSize is the width of a BCD encoded organisation identification number.
const OINSize = 10

// OIN is a BCD encoded organisation identification number.
type OIN [OINSize]byte

// ParseOIN parses the hex form of an OIN, e.g. 00000004003214345001.
func ParseOIN(s string) (OIN, error) {
	var oin OIN
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != OINSize {
		return oin, fmt.Errorf("malformed OIN %q: %w", s, polymorph.ErrInvalidInput)
	}
	copy(oin[:], raw)
	return oin, nil
}

func (o OIN) String() string {
	return hex.EncodeToString(o[:])
}

// Issuer holds the scheme metadata written into every disclosure.
type Issuer struct {
	Creator                OIN                      `cbor:"creator"`
	Recipient              OIN                      `cbor:"recipient"`
	RecipientKeySetVersion byte                     `cbor:"recipient_ksv"`
	IdentifierType         polymorph.IdentifierType `cbor:"id_type"`
}

// DefaultIssuer returns the metadata of the reference scheme instance.
func DefaultIssuer() Issuer {
	return Issuer{
		Creator:                OIN{0x00, 0x00, 0x00, 0x04, 0x00, 0x32, 0x14, 0x34, 0x50, 0x01},
		Recipient:              OIN{0x00, 0x00, 0x00, 0x01, 0x80, 0x47, 0x70, 0x69, 0x40, 0x00},
		RecipientKeySetVersion: 1,
		IdentifierType:         polymorph.TypeBSN,
	}
}

// context specific tags inside the dynamic authentication data
const (
	tagAuthenticationData = cbasn1.Tag(0x7C)
	tagPolymorphicData    = cbasn1.Tag(0xA0)
	tagBlinding           = cbasn1.Tag(0x80)
	tagCipherPI           = cbasn1.Tag(0x81)
	tagCipherPP           = cbasn1.Tag(0x82)
	tagPubKeyPI           = cbasn1.Tag(0x83)
	tagPubKeyPP           = cbasn1.Tag(0x84)
	tagSchemeVersion      = cbasn1.Tag(0x85)
	tagSchemeKeyVersion   = cbasn1.Tag(0x86)
	tagCreator            = cbasn1.Tag(0x87)
	tagRecipient          = cbasn1.Tag(0x88)
	tagRecipientKSV       = cbasn1.Tag(0x89)
	tagType               = cbasn1.Tag(0x8A)
	tagSequence           = cbasn1.Tag(0x8B)
)

// Disclosure is the dynamic authentication data returned by a retrieval.
type Disclosure struct {
	OID                    asn1.ObjectIdentifier
	Blinding               []byte
	CipherPI               []byte
	CipherPP               []byte
	PubKeyPI               []byte
	PubKeyPP               []byte
	SchemeVersion          byte
	SchemeKeyVersion       byte
	Creator                OIN
	Recipient              OIN
	RecipientKeySetVersion byte
	// Type is absent in PI disclosures.
	Type     *byte
	Sequence Sequence
}

func newDisclosure(v Variant, r *polymorph.Rendering, info Info, issuer Issuer, seq Sequence) *Disclosure {
	d := &Disclosure{
		OID:                    v.OID(),
		Blinding:               r.Blinding,
		CipherPI:               r.CipherPI,
		CipherPP:               r.CipherPP,
		PubKeyPI:               r.PubKeyPI,
		PubKeyPP:               r.PubKeyPP,
		SchemeVersion:          byte(info.SchemeVersion),
		SchemeKeyVersion:       byte(info.SchemeKeyVersion),
		Creator:                issuer.Creator,
		Recipient:              issuer.Recipient,
		RecipientKeySetVersion: issuer.RecipientKeySetVersion,
		Sequence:               seq,
	}
	if v.Kind != polymorph.KindPI {
		t := byte(issuer.IdentifierType)
		d.Type = &t
	}
	return d
}

func addTagged(b *cryptobyte.Builder, tag cbasn1.Tag, value []byte) {
	if value == nil {
		return
	}
	b.AddASN1(tag, func(b *cryptobyte.Builder) {
		b.AddBytes(value)
	})
}

// Marshal encodes
//
//	7C { 06 oid, A0 { 80 blinding, [81 cipherPI], [82 cipherPP], [83 pubKeyPI], [84 pubKeyPP],
//	     85 schemeVersion, 86 schemeKeyVersion, 87 creator, 88 recipient,
//	     89 recipientKeySetVersion, [8A type], 8B sequence } }
func (d *Disclosure) Marshal() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(tagAuthenticationData, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(d.OID)
		b.AddASN1(tagPolymorphicData, func(b *cryptobyte.Builder) {
			addTagged(b, tagBlinding, d.Blinding)
			addTagged(b, tagCipherPI, d.CipherPI)
			addTagged(b, tagCipherPP, d.CipherPP)
			addTagged(b, tagPubKeyPI, d.PubKeyPI)
			addTagged(b, tagPubKeyPP, d.PubKeyPP)
			addTagged(b, tagSchemeVersion, []byte{d.SchemeVersion})
			addTagged(b, tagSchemeKeyVersion, []byte{d.SchemeKeyVersion})
			addTagged(b, tagCreator, d.Creator[:])
			addTagged(b, tagRecipient, d.Recipient[:])
			addTagged(b, tagRecipientKSV, []byte{d.RecipientKeySetVersion})
			if d.Type != nil {
				addTagged(b, tagType, []byte{*d.Type})
			}
			addTagged(b, tagSequence, d.Sequence[:])
		})
	})
	return b.Bytes()
}

func readFixed(s *cryptobyte.String, tag cbasn1.Tag, out []byte) bool {
	var v cryptobyte.String
	if !s.ReadASN1(&v, tag) || len(v) != len(out) {
		return false
	}
	copy(out, v)
	return true
}

func readOptional(s *cryptobyte.String, tag cbasn1.Tag) ([]byte, bool) {
	var (
		v       cryptobyte.String
		present bool
	)
	if !s.ReadOptionalASN1(&v, &present, tag) {
		return nil, false
	}
	if !present {
		return nil, true
	}
	return []byte(v), true
}

// ParseDisclosure decodes the output of Disclosure.Marshal. Points are not validated.
func ParseDisclosure(data []byte) (*Disclosure, error) {
	var (
		d          Disclosure
		outer, pcd cryptobyte.String
		ok         bool
	)
	malformed := func(what string) error {
		return fmt.Errorf("malformed disclosure %s: %w", what, polymorph.ErrCryptoIntegrity)
	}

	input := cryptobyte.String(data)
	if !input.ReadASN1(&outer, tagAuthenticationData) || !input.Empty() {
		return nil, malformed("envelope")
	}
	if !outer.ReadASN1ObjectIdentifier(&d.OID) || !outer.ReadASN1(&pcd, tagPolymorphicData) || !outer.Empty() {
		return nil, malformed("object")
	}

	var blinding cryptobyte.String
	if !pcd.ReadASN1(&blinding, tagBlinding) {
		return nil, malformed("blinding")
	}
	d.Blinding = []byte(blinding)
	for _, field := range []struct {
		tag cbasn1.Tag
		out *[]byte
	}{
		{tagCipherPI, &d.CipherPI},
		{tagCipherPP, &d.CipherPP},
		{tagPubKeyPI, &d.PubKeyPI},
		{tagPubKeyPP, &d.PubKeyPP},
	} {
		if *field.out, ok = readOptional(&pcd, field.tag); !ok {
			return nil, malformed("point")
		}
	}

	var scheme, schemeKey, ksv [1]byte
	if !readFixed(&pcd, tagSchemeVersion, scheme[:]) ||
		!readFixed(&pcd, tagSchemeKeyVersion, schemeKey[:]) ||
		!readFixed(&pcd, tagCreator, d.Creator[:]) ||
		!readFixed(&pcd, tagRecipient, d.Recipient[:]) ||
		!readFixed(&pcd, tagRecipientKSV, ksv[:]) {
		return nil, malformed("scheme metadata")
	}
	d.SchemeVersion, d.SchemeKeyVersion, d.RecipientKeySetVersion = scheme[0], schemeKey[0], ksv[0]

	typ, ok := readOptional(&pcd, tagType)
	if !ok || (typ != nil && len(typ) != 1) {
		return nil, malformed("type")
	}
	if typ != nil {
		d.Type = &typ[0]
	}
	if !readFixed(&pcd, tagSequence, d.Sequence[:]) || !pcd.Empty() {
		return nil, malformed("sequence")
	}
	return &d, nil
}

// Variant resolves the retrieval variant named by the disclosure.
func (d *Disclosure) Variant() (Variant, error) {
	return VariantForOID(d.OID)
}
