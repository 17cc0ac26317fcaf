package pca

import (
	"context"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gematik/pca/pkg/polymorph"
	"github.com/segmentio/ksuid"
	"github.com/valkey-io/valkey-go"
)

// Provisioner personalizes cards with a polymorphic record.
type Provisioner struct {
	Keys   *KeyMaterial
	Info   Info
	Issuer Issuer
}

// Provision creates a card for id. When the private keys are known the record
// is decrypted once and compared against the inputs.
func (p *Provisioner) Provision(ctx context.Context, cardID string, id polymorph.Identifier) (*Card, error) {
	rec, err := polymorph.GenerateRecord(id, p.Keys.SectorKey, p.Keys.PI.Q, p.Keys.PP.Q)
	if err != nil {
		return nil, err
	}
	if p.Keys.PI.D != nil && p.Keys.PP.D != nil {
		if err := polymorph.Verify(rec, id, p.Keys.SectorKey, p.Keys.PI, p.Keys.PP); err != nil {
			return nil, fmt.Errorf("verify record: %w", err)
		}
	}
	if cardID == "" {
		cardID = ksuid.New().String()
	}
	issuer := p.Issuer
	issuer.IdentifierType = id.Type

	slog.InfoContext(ctx, "provisioned card", "card", cardID, "flags", p.Info.Flags.String())
	return &Card{
		ID:        cardID,
		Info:      p.Info,
		Issuer:    issuer,
		Record:    rec,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewProvisioner decodes the key, info and issuer sections of cfg.
func NewProvisioner(cfg *Config) (*Provisioner, error) {
	keys, err := cfg.Keys.Load()
	if err != nil {
		return nil, err
	}
	info, err := cfg.Info.Load()
	if err != nil {
		return nil, fmt.Errorf("info: %w", err)
	}
	issuer, err := cfg.Issuer.Load()
	if err != nil {
		return nil, fmt.Errorf("issuer: %w", err)
	}
	return &Provisioner{Keys: keys, Info: info, Issuer: issuer}, nil
}

// ProvisionAll stores a card for every configured card that is not yet in store.
func ProvisionAll(ctx context.Context, cfg *Config, store CardStore) error {
	p, err := NewProvisioner(cfg)
	if err != nil {
		return err
	}
	for _, cc := range cfg.Cards {
		if cc.ID != "" {
			if _, err := store.GetCard(ctx, cc.ID); err == nil {
				slog.DebugContext(ctx, "card already provisioned", "card", cc.ID)
				continue
			}
		}
		card, err := p.Provision(ctx, cc.ID, polymorph.BSN(cc.BSN))
		if err != nil {
			return fmt.Errorf("provision card %q: %w", cc.ID, err)
		}
		if err := store.PutCard(ctx, card); err != nil {
			return err
		}
	}
	return nil
}

func newValkeyClient(cfg BackendConfig) (valkey.Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: cfg.ValkeyAddress})
	if err != nil {
		return nil, fmt.Errorf("creating Valkey client: %w", err)
	}
	return client, nil
}

// NewCardStore creates the configured card store backend.
func NewCardStore(cfg BackendConfig) (CardStore, error) {
	if cfg.Backend != "valkey" {
		return NewMemoryCardStore(), nil
	}
	client, err := newValkeyClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewValkeyCardStore(client), nil
}

// NewGrantService creates the configured grant backend.
func NewGrantService(cfg BackendConfig) (GrantService, error) {
	if cfg.Backend != "valkey" {
		return NewMemoryGrantService()
	}
	client, err := newValkeyClient(cfg)
	if err != nil {
		return nil, err
	}
	expiry := time.Duration(cfg.ExpirySeconds) * time.Second
	if expiry == 0 {
		expiry = time.Minute
	}
	return NewValkeyGrantService(client, expiry), nil
}

// NewServiceFromConfig wires stores, grants and trust anchors and provisions the configured cards.
func NewServiceFromConfig(ctx context.Context, cfg *Config) (*Service, error) {
	store, err := NewCardStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	grants, err := NewGrantService(cfg.Grants)
	if err != nil {
		return nil, err
	}
	var opts []ServiceOption
	if cfg.TrustAnchors != "" {
		pemData, err := os.ReadFile(cfg.TrustAnchors)
		if err != nil {
			return nil, fmt.Errorf("read trust anchors: %w", err)
		}
		roots := x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pemData) {
			return nil, fmt.Errorf("no certificates in %s", cfg.TrustAnchors)
		}
		opts = append(opts, WithTrustAnchors(roots))
	}
	if err := ProvisionAll(ctx, cfg, store); err != nil {
		return nil, err
	}
	return NewService(store, grants, opts...), nil
}
