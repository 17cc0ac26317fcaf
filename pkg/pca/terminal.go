package pca

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"slices"

	"github.com/gematik/pca/pkg/polymorph"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	OIDTerminalRoles              = asn1.ObjectIdentifier{0, 4, 0, 127, 0, 7, 3, 1, 2}
	OIDRoleInspectionSystem       = childOID(OIDTerminalRoles, 1)
	OIDRoleAuthenticationTerminal = childOID(OIDTerminalRoles, 2)
	OIDRoleSignatureTerminal      = childOID(OIDTerminalRoles, 3)
	tagDiscretionaryData          = cbasn1.Tag(0x53)
)

// TerminalRole is the role a terminal certificate was issued for.
type TerminalRole int

const (
	RoleUnknown TerminalRole = iota
	RoleInspectionSystem
	RoleAuthenticationTerminal
	RoleSignatureTerminal
)

func (r TerminalRole) String() string {
	switch r {
	case RoleInspectionSystem:
		return "id-IS"
	case RoleAuthenticationTerminal:
		return "id-AT"
	case RoleSignatureTerminal:
		return "id-ST"
	default:
		return "unknown"
	}
}

func (r TerminalRole) OID() asn1.ObjectIdentifier {
	switch r {
	case RoleInspectionSystem:
		return OIDRoleInspectionSystem
	case RoleAuthenticationTerminal:
		return OIDRoleAuthenticationTerminal
	case RoleSignatureTerminal:
		return OIDRoleSignatureTerminal
	default:
		return nil
	}
}

func RoleFromOID(oid asn1.ObjectIdentifier) TerminalRole {
	for _, r := range []TerminalRole{RoleInspectionSystem, RoleAuthenticationTerminal, RoleSignatureTerminal} {
		if oid.Equal(r.OID()) {
			return r
		}
	}
	return RoleUnknown
}

// ParseRole accepts id-IS, id-AT and id-ST.
func ParseRole(s string) (TerminalRole, error) {
	for _, r := range []TerminalRole{RoleInspectionSystem, RoleAuthenticationTerminal, RoleSignatureTerminal} {
		if s == r.String() {
			return r, nil
		}
	}
	return RoleUnknown, fmt.Errorf("unknown terminal role %q", s)
}

// AuthorizationExtension binds an authorization bit mask to an object identifier.
type AuthorizationExtension struct {
	OID  asn1.ObjectIdentifier `json:"oid"`
	Mask []byte                `json:"mask"`
}

// MaskFor returns the single octet authorization mask permitting kinds.
func MaskFor(kinds ...polymorph.Kind) []byte {
	var m byte
	for _, k := range kinds {
		m |= byte(k)
	}
	return []byte{m}
}

// Permits reports whether every bit of kind is set in the mask.
func (e AuthorizationExtension) Permits(kind polymorph.Kind) bool {
	if len(e.Mask) == 0 {
		return false
	}
	k := byte(kind)
	return e.Mask[len(e.Mask)-1]&k == k
}

// MarshalDiscretionaryData encodes the mask as discretionary data 53 len mask.
func MarshalDiscretionaryData(mask []byte) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(tagDiscretionaryData, func(b *cryptobyte.Builder) {
		b.AddBytes(mask)
	})
	return b.Bytes()
}

func parseDiscretionaryData(data []byte) ([]byte, error) {
	var mask cryptobyte.String
	input := cryptobyte.String(data)
	if !input.ReadASN1(&mask, tagDiscretionaryData) || !input.Empty() || len(mask) == 0 {
		return nil, fmt.Errorf("malformed discretionary data")
	}
	return slices.Clone([]byte(mask)), nil
}

// TerminalCertificate is a trusted terminal certificate with its PCA relevant extensions.
type TerminalCertificate struct {
	Certificate *x509.Certificate
	Role        TerminalRole
	Extensions  []AuthorizationExtension
}

// ParseTerminalCertificate extracts the terminal role and the authorization
// extensions from cert. Authorization extensions are recognized below id-PCA.
func ParseTerminalCertificate(cert *x509.Certificate) (*TerminalCertificate, error) {
	tc := &TerminalCertificate{Certificate: cert}
	for _, ext := range cert.Extensions {
		switch {
		case ext.Id.Equal(OIDTerminalRoles):
			var role asn1.ObjectIdentifier
			rest, err := asn1.Unmarshal(ext.Value, &role)
			if err != nil || len(rest) > 0 {
				return nil, fmt.Errorf("failed to unmarshal terminal role: %w", err)
			}
			tc.Role = RoleFromOID(role)
		case len(ext.Id) > len(OIDPCA) && slices.Equal(ext.Id[:len(OIDPCA)], OIDPCA):
			mask, err := parseDiscretionaryData(ext.Value)
			if err != nil {
				return nil, fmt.Errorf("authorization extension %s: %w", ext.Id, err)
			}
			tc.Extensions = append(tc.Extensions, AuthorizationExtension{OID: ext.Id, Mask: mask})
		}
	}
	if tc.Role == RoleUnknown {
		return nil, fmt.Errorf("terminal role extension not found")
	}
	return tc, nil
}

// Extension returns the authorization extension for oid.
func (tc *TerminalCertificate) Extension(oid asn1.ObjectIdentifier) (AuthorizationExtension, bool) {
	return findExtension(tc.Extensions, oid)
}

func findExtension(exts []AuthorizationExtension, oid asn1.ObjectIdentifier) (AuthorizationExtension, bool) {
	for _, e := range exts {
		if e.OID.Equal(oid) {
			return e, true
		}
	}
	return AuthorizationExtension{}, false
}
