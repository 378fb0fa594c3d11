package draft

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
)

const keyPrefix = "checkout_"

// Store saves checkout drafts as JSON. Failures never reach the caller as
// errors: they are logged and reported as false so checkout can carry on
// without a durable draft.
type Store struct {
	backend   Backend
	namespace string
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Scope returns a store whose keys live under namespace, one per user.
func (s *Store) Scope(namespace string) *Store {
	return &Store{backend: s.backend, namespace: namespace}
}

func (s *Store) Key(productID string) string {
	if s.namespace == "" {
		return keyPrefix + productID
	}
	return s.namespace + ":" + keyPrefix + productID
}

func (s *Store) Load(ctx context.Context, productID string) (checkout.DraftOrder, bool) {
	key := s.Key(productID)

	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("draft: failed to read draft")
		}
		return checkout.DraftOrder{}, false
	}

	var d checkout.DraftOrder
	if err := json.Unmarshal(raw, &d); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("draft: ignoring unreadable draft")
		return checkout.DraftOrder{}, false
	}

	return d, true
}

func (s *Store) Save(ctx context.Context, productID string, d checkout.DraftOrder) bool {
	key := s.Key(productID)

	raw, err := json.Marshal(d)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("draft: failed to encode draft")
		return false
	}

	if err := s.backend.Set(ctx, key, raw); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("draft: failed to write draft")
		return false
	}

	return true
}

func (s *Store) Clear(ctx context.Context, productID string) bool {
	key := s.Key(productID)

	if err := s.backend.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("draft: failed to clear draft")
		return false
	}

	return true
}

func (s *Store) Close() error {
	return s.backend.Close()
}

var _ checkout.DraftStore = (*Store)(nil)
