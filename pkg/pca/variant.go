package pca

import (
	"encoding/asn1"
	"fmt"
	"slices"

	"github.com/gematik/pca/pkg/polymorph"
)

var (
	OIDPCA              = asn1.ObjectIdentifier{2, 16, 528, 1, 1003, 10, 9}
	OIDPCAInfo          = childOID(OIDPCA, 1)
	OIDPCAAuthorization = childOID(OIDPCA, 2)
	OIDPCARetrieval     = childOID(OIDPCA, 3)
)

// encoding arcs below OIDPCARetrieval.<kind>
const (
	arcRegularUncompressed = 1 + iota
	arcRegularCompressed
	arcReducedUncompressed
	arcReducedCompressed
)

func childOID(base asn1.ObjectIdentifier, arcs ...int) asn1.ObjectIdentifier {
	oid := slices.Clone(base)
	return append(oid, arcs...)
}

// Variant is one of the twelve retrieval variants: kind × point format × width.
type Variant struct {
	Kind     polymorph.Kind
	Encoding polymorph.Encoding
}

func (v Variant) OID() asn1.ObjectIdentifier {
	arc := arcRegularUncompressed
	switch {
	case !v.Encoding.Reduced && v.Encoding.Compressed:
		arc = arcRegularCompressed
	case v.Encoding.Reduced && !v.Encoding.Compressed:
		arc = arcReducedUncompressed
	case v.Encoding.Reduced && v.Encoding.Compressed:
		arc = arcReducedCompressed
	}
	return childOID(OIDPCARetrieval, int(v.Kind), arc)
}

// Name returns the symbolic name, e.g. id-PCA-PIP-reduced-compressed.
func (v Variant) Name() string {
	name := "id-PCA-" + v.Kind.String()
	switch {
	case v.Encoding.Reduced && v.Encoding.Compressed:
		name += "-reduced-compressed"
	case v.Encoding.Reduced:
		name += "-reduced-uncompressed"
	case v.Encoding.Compressed:
		name += "-compressed"
	}
	return name
}

func (v Variant) String() string {
	return fmt.Sprintf("%s (%s)", v.Name(), v.OID())
}

// Variants lists all retrieval variants.
func Variants() []Variant {
	var out []Variant
	for _, kind := range []polymorph.Kind{polymorph.KindPP, polymorph.KindPI, polymorph.KindPIP} {
		for _, reduced := range []bool{false, true} {
			for _, compressed := range []bool{false, true} {
				out = append(out, Variant{Kind: kind, Encoding: polymorph.Encoding{Compressed: compressed, Reduced: reduced}})
			}
		}
	}
	return out
}

// VariantForOID resolves a cryptographic mechanism reference.
func VariantForOID(oid asn1.ObjectIdentifier) (Variant, error) {
	base := len(OIDPCARetrieval)
	if len(oid) != base+2 || !slices.Equal(oid[:base], OIDPCARetrieval) {
		return Variant{}, fmt.Errorf("unknown retrieval mechanism %s: %w", oid, polymorph.ErrInvalidInput)
	}
	kind := polymorph.Kind(oid[base])
	if oid[base] > 0xFF || !kind.Valid() {
		return Variant{}, fmt.Errorf("unknown retrieval kind in %s: %w", oid, polymorph.ErrInvalidInput)
	}
	var enc polymorph.Encoding
	switch oid[base+1] {
	case arcRegularUncompressed:
	case arcRegularCompressed:
		enc.Compressed = true
	case arcReducedUncompressed:
		enc.Reduced = true
	case arcReducedCompressed:
		enc.Reduced, enc.Compressed = true, true
	default:
		return Variant{}, fmt.Errorf("unknown retrieval encoding in %s: %w", oid, polymorph.ErrInvalidInput)
	}
	return Variant{Kind: kind, Encoding: enc}, nil
}

// ParseOID parses a dotted object identifier.
func ParseOID(s string) (asn1.ObjectIdentifier, error) {
	var oid asn1.ObjectIdentifier
	var arc int
	digits := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			if digits == 0 {
				return nil, fmt.Errorf("malformed object identifier %q: %w", s, polymorph.ErrInvalidInput)
			}
			oid = append(oid, arc)
			arc, digits = 0, 0
			continue
		}
		c := s[i]
		if c < '0' || c > '9' || arc > 1<<24 {
			return nil, fmt.Errorf("malformed object identifier %q: %w", s, polymorph.ErrInvalidInput)
		}
		arc = arc*10 + int(c-'0')
		digits++
	}
	if len(oid) < 2 {
		return nil, fmt.Errorf("object identifier %q too short: %w", s, polymorph.ErrInvalidInput)
	}
	return oid, nil
}

// ParseMechanism accepts a dotted object identifier or a symbolic variant name.
func ParseMechanism(s string) (asn1.ObjectIdentifier, error) {
	for _, v := range Variants() {
		if s == v.Name() {
			return v.OID(), nil
		}
	}
	return ParseOID(s)
}
