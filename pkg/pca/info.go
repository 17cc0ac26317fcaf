package pca

import (
	"encoding/asn1"
	"fmt"
	"strings"

	"github.com/gematik/pca/pkg/polymorph"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// ImplementationType names the credential hosting the application.
type ImplementationType byte

const (
	ImplementationDrivingLicence ImplementationType = 'D'
	ImplementationIdentityCard   ImplementationType = 'I'
	ImplementationPassport       ImplementationType = 'P'
)

// Flags is the capability set of a card, fixed at provisioning.
type Flags uint8

const (
	FlagRandomizedPI Flags = 1 << iota
	FlagRandomizedPP
	FlagRandomizedPIP
	FlagUncompressed
	FlagCompressed
	FlagReduced
	FlagRegular

	AllFlags = FlagRandomizedPI | FlagRandomizedPP | FlagRandomizedPIP |
		FlagUncompressed | FlagCompressed | FlagReduced | FlagRegular
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagRandomizedPI, "randomizedPI"},
	{FlagRandomizedPP, "randomizedPP"},
	{FlagRandomizedPIP, "randomizedPIP"},
	{FlagUncompressed, "uncompressedEncoding"},
	{FlagCompressed, "compressedEncoding"},
	{FlagReduced, "reducedEncoding"},
	{FlagRegular, "regularEncoding"},
}

func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// Names lists the set flags.
func (f Flags) Names() []string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return names
}

func (f Flags) String() string {
	return strings.Join(f.Names(), ",")
}

// ParseFlags parses the comma separated names produced by String.
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "all" {
			f |= AllFlags
			continue
		}
		found := false
		for _, fn := range flagNames {
			if strings.EqualFold(fn.name, part) {
				f |= fn.flag
				found = true
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown flag %q", part)
		}
	}
	return f, nil
}

// Info describes the polymorphic card application (PolymorphicInfo).
type Info struct {
	PCAVersion            int64              `cbor:"pca_version" json:"pca_version"`
	ImplementationType    ImplementationType `cbor:"impl_type" json:"implementation_type"`
	ImplementationVersion int64              `cbor:"impl_version" json:"implementation_version"`
	SchemeVersion         int64              `cbor:"scheme_version" json:"scheme_version"`
	SchemeKeyVersion      int64              `cbor:"scheme_key_version" json:"scheme_key_version"`
	Flags                 Flags              `cbor:"flags" json:"flags"`
}

// DefaultInfo returns version 1 metadata of a driving licence supporting every variant.
func DefaultInfo() Info {
	return Info{
		PCAVersion:            1,
		ImplementationType:    ImplementationDrivingLicence,
		ImplementationVersion: 1,
		SchemeVersion:         1,
		SchemeKeyVersion:      1,
		Flags:                 AllFlags,
	}
}

// Supports checks the kind, point format and width of v against the flags.
func (i Info) Supports(v Variant) bool {
	switch v.Kind {
	case polymorph.KindPI:
		if !i.Flags.Has(FlagRandomizedPI) {
			return false
		}
	case polymorph.KindPP:
		if !i.Flags.Has(FlagRandomizedPP) {
			return false
		}
	case polymorph.KindPIP:
		if !i.Flags.Has(FlagRandomizedPIP) {
			return false
		}
	default:
		return false
	}
	if v.Encoding.Compressed && !i.Flags.Has(FlagCompressed) || !v.Encoding.Compressed && !i.Flags.Has(FlagUncompressed) {
		return false
	}
	if v.Encoding.Reduced && !i.Flags.Has(FlagReduced) || !v.Encoding.Reduced && !i.Flags.Has(FlagRegular) {
		return false
	}
	return true
}

/*
MarshalTLV encodes

	PolymorphicInfo ::= SEQUENCE {
	  oid            OBJECT IDENTIFIER, -- id-PCA-info
	  requiredData   SEQUENCE {
	    pcaVersion         INTEGER,
	    implementationInfo SEQUENCE { type UTF8String, version INTEGER },
	    schemeVersion      INTEGER,
	    schemeKeyVersion   INTEGER,
	    flags              BIT STRING
	  }
	}

The flags octet carries randomizedPI in its least significant bit.
*/
func (i Info) MarshalTLV() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(OIDPCAInfo)
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1Int64(i.PCAVersion)
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1(cbasn1.UTF8String, func(b *cryptobyte.Builder) {
					b.AddBytes([]byte{byte(i.ImplementationType)})
				})
				b.AddASN1Int64(i.ImplementationVersion)
			})
			b.AddASN1Int64(i.SchemeVersion)
			b.AddASN1Int64(i.SchemeKeyVersion)
			b.AddASN1BitString([]byte{byte(i.Flags)})
		})
	})
	return b.Bytes()
}

// ParseInfo decodes a PolymorphicInfo structure.
func ParseInfo(der []byte) (Info, error) {
	var (
		info                  Info
		outer, required, impl cryptobyte.String
		oid                   asn1.ObjectIdentifier
		implType              cryptobyte.String
		flags                 asn1.BitString
	)
	input := cryptobyte.String(der)
	if !input.ReadASN1(&outer, cbasn1.SEQUENCE) || !input.Empty() ||
		!outer.ReadASN1ObjectIdentifier(&oid) ||
		!outer.ReadASN1(&required, cbasn1.SEQUENCE) {
		return info, fmt.Errorf("malformed polymorphic info: %w", polymorph.ErrInvalidInput)
	}
	if !oid.Equal(OIDPCAInfo) {
		return info, fmt.Errorf("unexpected info identifier %s: %w", oid, polymorph.ErrInvalidInput)
	}
	if !required.ReadASN1Integer(&info.PCAVersion) ||
		!required.ReadASN1(&impl, cbasn1.SEQUENCE) ||
		!impl.ReadASN1(&implType, cbasn1.UTF8String) || len(implType) != 1 ||
		!impl.ReadASN1Integer(&info.ImplementationVersion) ||
		!required.ReadASN1Integer(&info.SchemeVersion) ||
		!required.ReadASN1Integer(&info.SchemeKeyVersion) ||
		!required.ReadASN1BitString(&flags) || len(flags.Bytes) != 1 {
		return info, fmt.Errorf("malformed polymorphic info data: %w", polymorph.ErrInvalidInput)
	}
	info.ImplementationType = ImplementationType(implType[0])
	info.Flags = Flags(flags.Bytes[0])
	return info, nil
}
