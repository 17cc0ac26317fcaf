package ca

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"github.com/gematik/pca/pkg/pca"
)

// WithTerminalRole adds the terminal role extension.
func WithTerminalRole(role pca.TerminalRole) SigningOption {
	return func(crt *x509.Certificate) error {
		oid := role.OID()
		if oid == nil {
			return fmt.Errorf("unknown terminal role %v", role)
		}
		value, err := asn1.Marshal(oid)
		if err != nil {
			return err
		}
		crt.ExtraExtensions = append(crt.ExtraExtensions, pkix.Extension{
			Id:    pca.OIDTerminalRoles,
			Value: value,
		})
		return nil
	}
}

// WithAuthorizationMask binds a retrieval authorization bit mask to the certificate.
func WithAuthorizationMask(mask []byte) SigningOption {
	return WithAuthorizationExtension(pca.OIDPCAAuthorization, mask)
}

// WithAuthorizationExtension adds a discretionary data extension for oid.
func WithAuthorizationExtension(oid asn1.ObjectIdentifier, mask []byte) SigningOption {
	return func(crt *x509.Certificate) error {
		value, err := pca.MarshalDiscretionaryData(mask)
		if err != nil {
			return err
		}
		crt.ExtraExtensions = append(crt.ExtraExtensions, pkix.Extension{
			Id:    oid,
			Value: value,
		})
		return nil
	}
}
