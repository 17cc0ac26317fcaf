package pca

import (
	"context"
	"encoding/asn1"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gematik/pca/pkg/polymorph"
)

// Card is one credential hosting the polymorphic card application.
type Card struct {
	ID           string            `cbor:"id"`
	Info         Info              `cbor:"info"`
	Issuer       Issuer            `cbor:"issuer"`
	Record       *polymorph.Record `cbor:"record"`
	LastSequence Sequence          `cbor:"last_sequence"`
	CreatedAt    time.Time         `cbor:"created_at"`

	mu sync.Mutex
}

// Retrieval is a single retrieval command.
type Retrieval struct {
	Session   *Session
	Mechanism asn1.ObjectIdentifier
	// Grants redeems the session grant. Required.
	Grants GrantService
	// Now defaults to time.Now.
	Now time.Time
}

// Retrieve performs a polymorphic authentication: it checks the mechanism
// against the card capabilities, authorizes the session, rerandomizes the
// record and returns the encoded disclosure. State changes are committed only
// when the whole operation succeeds; the session assertion is cleared afterwards.
func (c *Card) Retrieve(ctx context.Context, req Retrieval) ([]byte, error) {
	variant, err := VariantForOID(req.Mechanism)
	if err != nil {
		return nil, err
	}
	if !c.Info.Supports(variant) {
		slog.DebugContext(ctx, "retrieval denied", "reason", "variant not supported", "variant", variant.Name())
		return nil, polymorph.ErrPolicyDenied
	}
	if err := AuthorizerFor(req.Session.Role()).Authorize(ctx, req.Session, variant.Kind); err != nil {
		return nil, err
	}
	if req.Grants == nil {
		return nil, errors.New("no grant service")
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Record == nil {
		return nil, fmt.Errorf("card %s has no polymorphic record: %w", c.ID, polymorph.ErrCryptoIntegrity)
	}
	next := c.Record.Clone()
	if err := next.Randomize(variant.Kind); err != nil {
		return nil, fmt.Errorf("randomize: %w", err)
	}
	rendering, err := next.Render(variant.Kind, variant.Encoding)
	if err != nil {
		return nil, err
	}
	seq := Next(c.LastSequence, now)
	out, err := newDisclosure(variant, rendering, c.Info, c.Issuer, seq).Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode disclosure: %w", err)
	}

	if err := req.Grants.Redeem(ctx, req.Session.Grant); err != nil {
		slog.DebugContext(ctx, "retrieval denied", "reason", "grant redemption failed", "error", err)
		return nil, polymorph.ErrPolicyDenied
	}
	c.Record = next
	c.LastSequence = seq
	req.Session.clear()

	slog.InfoContext(ctx, "polymorphic retrieval", "card", c.ID, "variant", variant.Name(), "session", req.Session.ID)
	return out, nil
}
