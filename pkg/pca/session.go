package pca

import (
	"crypto/x509"
	"time"

	"github.com/segmentio/ksuid"
)

// Session is the state left behind by terminal authentication: the trusted
// terminal certificate, the extensions asserted during the key agreement and a
// one-time grant for a single retrieval.
type Session struct {
	ID              string
	CardID          string
	SecureMessaging bool
	Terminal        *TerminalCertificate
	Asserted        []AuthorizationExtension
	Grant           string
	CreatedAt       time.Time
}

// AuthenticationRequest carries what a terminal presents when it authenticates.
type AuthenticationRequest struct {
	Certificate     *x509.Certificate
	Asserted        []AuthorizationExtension
	SecureMessaging bool
}

func newSession(cardID string, tc *TerminalCertificate, req AuthenticationRequest, grant string, now time.Time) *Session {
	return &Session{
		ID:              ksuid.New().String(),
		CardID:          cardID,
		SecureMessaging: req.SecureMessaging,
		Terminal:        tc,
		Asserted:        req.Asserted,
		Grant:           grant,
		CreatedAt:       now,
	}
}

func (s *Session) Role() TerminalRole {
	if s == nil || s.Terminal == nil {
		return RoleUnknown
	}
	return s.Terminal.Role
}

// Authenticated reports whether the session still holds an authorization assertion.
func (s *Session) Authenticated() bool {
	return s != nil && s.Asserted != nil && s.Grant != ""
}

// clear drops the assertion so that the next retrieval requires a new authentication.
func (s *Session) clear() {
	s.Asserted = nil
	s.Grant = ""
}
