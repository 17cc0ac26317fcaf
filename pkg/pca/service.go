package pca

import (
	"context"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gematik/pca/pkg/polymorph"
)

var ErrSessionNotFound = errors.New("session not found")

// Service simulates the card side of terminal authentication and retrieval
// for the cards in a store.
type Service struct {
	cards     CardStore
	grants    GrantService
	roots     *x509.CertPool
	now       func() time.Time
	mu        sync.Mutex
	sessions  map[string]*Session
	cardLocks map[string]*sync.Mutex
}

type ServiceOption func(*Service)

// WithTrustAnchors verifies terminal certificates against roots.
func WithTrustAnchors(roots *x509.CertPool) ServiceOption {
	return func(s *Service) {
		s.roots = roots
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(cards CardStore, grants GrantService, opts ...ServiceOption) *Service {
	s := &Service{
		cards:     cards,
		grants:    grants,
		now:       time.Now,
		sessions:  make(map[string]*Session),
		cardLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Cards() CardStore {
	return s.cards
}

func (s *Service) Info(ctx context.Context, cardID string) (Info, error) {
	card, err := s.cards.GetCard(ctx, cardID)
	if err != nil {
		return Info{}, err
	}
	return card.Info, nil
}

// Authenticate stands in for terminal authentication and key agreement. It
// verifies the terminal certificate and opens a session holding the asserted
// extensions and a fresh retrieval grant.
func (s *Service) Authenticate(ctx context.Context, cardID string, req AuthenticationRequest) (*Session, error) {
	if _, err := s.cards.GetCard(ctx, cardID); err != nil {
		return nil, err
	}
	if req.Certificate == nil {
		return nil, fmt.Errorf("terminal certificate missing: %w", polymorph.ErrInvalidInput)
	}
	if s.roots != nil {
		_, err := req.Certificate.Verify(x509.VerifyOptions{
			Roots:       s.roots,
			CurrentTime: s.now(),
			KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		})
		if err != nil {
			slog.DebugContext(ctx, "terminal certificate rejected", "error", err)
			return nil, polymorph.ErrPolicyDenied
		}
	}
	tc, err := ParseTerminalCertificate(req.Certificate)
	if err != nil {
		return nil, fmt.Errorf("terminal certificate: %w: %w", polymorph.ErrInvalidInput, err)
	}
	grant, err := s.grants.Issue(ctx)
	if err != nil {
		return nil, fmt.Errorf("issue grant: %w", err)
	}

	session := newSession(cardID, tc, req, grant, s.now())
	s.mu.Lock()
	s.pruneSessions(session.CreatedAt)
	s.sessions[session.ID] = session
	s.mu.Unlock()

	slog.InfoContext(ctx, "terminal authenticated", "card", cardID, "session", session.ID, "role", tc.Role, "subject", req.Certificate.Subject.CommonName)
	return session, nil
}

// SessionLifetime bounds how long a session is kept after authentication.
const SessionLifetime = 5 * time.Minute

// pruneSessions removes expired sessions. Callers hold s.mu.
func (s *Service) pruneSessions(now time.Time) {
	for id, session := range s.sessions {
		if now.Sub(session.CreatedAt) > SessionLifetime {
			delete(s.sessions, id)
		}
	}
}

func (s *Service) Session(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *Service) cardLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.cardLocks[id]
	if !ok {
		l = new(sync.Mutex)
		s.cardLocks[id] = l
	}
	return l
}

// Retrieve runs one retrieval for the session. The updated card is stored
// before the disclosure is returned. The session stays known but cleared, so
// replays are denied by the authorization policy.
func (s *Service) Retrieve(ctx context.Context, sessionID string, mechanism asn1.ObjectIdentifier) ([]byte, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}

	lock := s.cardLock(session.CardID)
	lock.Lock()
	defer lock.Unlock()

	card, err := s.cards.GetCard(ctx, session.CardID)
	if err != nil {
		return nil, err
	}
	out, err := card.Retrieve(ctx, Retrieval{
		Session:   session,
		Mechanism: mechanism,
		Grants:    s.grants,
		Now:       s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.cards.PutCard(ctx, card); err != nil {
		return nil, err
	}
	return out, nil
}
