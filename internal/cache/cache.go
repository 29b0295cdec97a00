package cache

import (
	"context"
	"time"

	"combopos/backend/internal/domain"
)

// SuggestionCache stores detector output keyed by a digest of the cart and rules.
type SuggestionCache interface {
	Get(ctx context.Context, key string) ([]domain.ComboSuggestion, bool, error)
	Set(ctx context.Context, key string, value []domain.ComboSuggestion, ttl time.Duration) error
}

type NoopSuggestionCache struct{}

func (NoopSuggestionCache) Get(_ context.Context, _ string) ([]domain.ComboSuggestion, bool, error) {
	return nil, false, nil
}

func (NoopSuggestionCache) Set(_ context.Context, _ string, _ []domain.ComboSuggestion, _ time.Duration) error {
	return nil
}
