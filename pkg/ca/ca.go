package ca

import (
	"bytes"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
)

// Simple interface for a terminal certificate authority
type CertificateAuthority interface {
	IssuerCertificate() *x509.Certificate
	SignCertificateRequest(csr *x509.CertificateRequest, subject pkix.Name, opts ...SigningOption) (*x509.Certificate, error)
}

// SigningOption modifies the certificate template before it is signed.
type SigningOption func(*x509.Certificate) error

// Encodes a X509 certificate to PEM format
func EncodeCertToPEM(cert *x509.Certificate) (string, error) {
	certPem := new(bytes.Buffer)
	err := pem.Encode(certPem, &pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	})
	if err != nil {
		return "", err
	}
	return certPem.String(), nil
}

// Decodes the first certificate of a PEM bundle
func DecodeCertFromPEM(data []byte) (*x509.Certificate, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("no certificate found in PEM data")
		}
		if block.Type == "CERTIFICATE" {
			return x509.ParseCertificate(block.Bytes)
		}
	}
}
