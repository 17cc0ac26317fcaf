package pca

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-secure-stdlib/nonceutil"
	"github.com/valkey-io/valkey-go"
)

var ErrGrantNotFound = errors.New("grant not found")

// GrantService issues one-time retrieval grants.
type GrantService interface {
	Issue(ctx context.Context) (string, error)
	Redeem(ctx context.Context, grant string) error
}

type MemoryGrantService struct {
	nonceService nonceutil.NonceService
}

func NewMemoryGrantService() (*MemoryGrantService, error) {
	nonceService := nonceutil.NewNonceService()
	if err := nonceService.Initialize(); err != nil {
		return nil, fmt.Errorf("could not initialize nonce service: %w", err)
	}
	return &MemoryGrantService{nonceService}, nil
}

func (s *MemoryGrantService) Issue(_ context.Context) (string, error) {
	grant, _, err := s.nonceService.Get()
	if err != nil {
		return "", err
	}
	return grant, nil
}

func (s *MemoryGrantService) Redeem(_ context.Context, grant string) error {
	if !s.nonceService.Redeem(grant) {
		return ErrGrantNotFound
	}
	return nil
}

const grantBits = 256

type ValkeyGrantService struct {
	client valkey.Client
	expiry time.Duration
}

func NewValkeyGrantService(client valkey.Client, expiry time.Duration) *ValkeyGrantService {
	return &ValkeyGrantService{client: client, expiry: expiry}
}

func (v *ValkeyGrantService) Issue(ctx context.Context) (string, error) {
	randomBytes := make([]byte, grantBits/8)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	grant := base64.RawURLEncoding.EncodeToString(randomBytes)

	cmd := v.client.B().Set().Key("pca:grant:" + grant).Value("").Ex(v.expiry).Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return "", fmt.Errorf("storing grant in Valkey: %w", err)
	}
	return grant, nil
}

// Redeem deletes the grant. DEL reports the number of removed keys, so
// concurrent redemptions of one grant succeed at most once.
func (v *ValkeyGrantService) Redeem(ctx context.Context, grant string) error {
	cmd := v.client.B().Del().Key("pca:grant:" + grant).Build()
	removed, err := v.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return fmt.Errorf("deleting grant from Valkey: %w", err)
	}
	if removed == 0 {
		return ErrGrantNotFound
	}
	return nil
}
