package pca

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/gematik/pca/pkg/polymorph"
)

// Authorizer decides whether a session may retrieve a disclosure of the given kind.
// Every denial is reported as polymorph.ErrPolicyDenied without a reason.
type Authorizer interface {
	Authorize(ctx context.Context, s *Session, kind polymorph.Kind) error
}

// AuthorizerFor returns the policy for terminals of the given role.
func AuthorizerFor(role TerminalRole) Authorizer {
	if role == RoleAuthenticationTerminal {
		return authenticationTerminal{}
	}
	return denyAll{role: role}
}

type authenticationTerminal struct{}

func (authenticationTerminal) Authorize(ctx context.Context, s *Session, kind polymorph.Kind) error {
	deny := func(reason string) error {
		slog.DebugContext(ctx, "retrieval denied", "reason", reason, "kind", kind)
		return polymorph.ErrPolicyDenied
	}
	if s == nil || s.Terminal == nil {
		return deny("no authenticated terminal")
	}
	if !s.SecureMessaging {
		return deny("no secure messaging")
	}
	if s.Grant == "" {
		return deny("no retrieval grant")
	}
	asserted, ok := findExtension(s.Asserted, OIDPCAAuthorization)
	if !ok {
		return deny("no authorization extension asserted")
	}
	bound, ok := s.Terminal.Extension(OIDPCAAuthorization)
	if !ok || !bytes.Equal(asserted.Mask, bound.Mask) {
		return deny("asserted mask differs from certificate")
	}
	if !bound.Permits(kind) {
		return deny("kind not permitted by mask")
	}
	return nil
}

// denyAll is the policy of every role other than id-AT.
type denyAll struct {
	role TerminalRole
}

func (d denyAll) Authorize(ctx context.Context, _ *Session, kind polymorph.Kind) error {
	slog.DebugContext(ctx, "retrieval denied", "reason", "role has no access", "role", d.role, "kind", kind)
	return polymorph.ErrPolicyDenied
}
