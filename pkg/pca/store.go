package pca

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/valkey-io/valkey-go"
)

var ErrCardNotFound = errors.New("card not found")

// CardStore persists card state between retrievals.
type CardStore interface {
	GetCard(ctx context.Context, id string) (*Card, error)
	PutCard(ctx context.Context, card *Card) error
	ListCards(ctx context.Context) ([]string, error)
}

var cardEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

func encodeCard(card *Card) ([]byte, error) {
	card.mu.Lock()
	defer card.mu.Unlock()
	data, err := cardEncMode.Marshal(card)
	if err != nil {
		return nil, fmt.Errorf("encode card %s: %w", card.ID, err)
	}
	return data, nil
}

func decodeCard(data []byte) (*Card, error) {
	card := new(Card)
	if err := cbor.Unmarshal(data, card); err != nil {
		return nil, fmt.Errorf("decode card: %w", err)
	}
	return card, nil
}

// MemoryCardStore keeps encoded cards in memory. Every GetCard returns a fresh copy.
type MemoryCardStore struct {
	mu    sync.RWMutex
	cards map[string][]byte
}

func NewMemoryCardStore() *MemoryCardStore {
	return &MemoryCardStore{cards: make(map[string][]byte)}
}

func (s *MemoryCardStore) GetCard(_ context.Context, id string) (*Card, error) {
	s.mu.RLock()
	data, ok := s.cards[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrCardNotFound)
	}
	return decodeCard(data)
}

func (s *MemoryCardStore) PutCard(_ context.Context, card *Card) error {
	data, err := encodeCard(card)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[card.ID] = data
	return nil
}

func (s *MemoryCardStore) ListCards(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.cards))
	for id := range s.cards {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

const valkeyCardPrefix = "pca:card:"

// ValkeyCardStore shares card state between simulator instances.
type ValkeyCardStore struct {
	client valkey.Client
}

func NewValkeyCardStore(client valkey.Client) *ValkeyCardStore {
	return &ValkeyCardStore{client: client}
}

func (s *ValkeyCardStore) GetCard(ctx context.Context, id string) (*Card, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(valkeyCardPrefix+id).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, fmt.Errorf("%s: %w", id, ErrCardNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading card from Valkey: %w", err)
	}
	return decodeCard(data)
}

func (s *ValkeyCardStore) PutCard(ctx context.Context, card *Card) error {
	data, err := encodeCard(card)
	if err != nil {
		return err
	}
	cmd := s.client.B().Set().Key(valkeyCardPrefix + card.ID).Value(valkey.BinaryString(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("storing card in Valkey: %w", err)
	}
	return nil
}

func (s *ValkeyCardStore) ListCards(ctx context.Context) ([]string, error) {
	var ids []string
	var cursor uint64
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(valkeyCardPrefix + "*").Count(100).Build()
		entry, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("listing cards in Valkey: %w", err)
		}
		for _, key := range entry.Elements {
			ids = append(ids, strings.TrimPrefix(key, valkeyCardPrefix))
		}
		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}
	slices.Sort(ids)
	return ids, nil
}
