// Package recommendation serves combo suggestions for a cart, caching the
// detector output per cart and rule set.
package recommendation

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"combopos/backend/internal/cache"
	"combopos/backend/internal/combo"
	"combopos/backend/internal/domain"
	"combopos/backend/internal/logging"
)

const cacheKeyPrefix = "pos:combo-suggestions:"

type Engine struct {
	cache    cache.SuggestionCache
	cacheTTL time.Duration
	group    singleflight.Group
	logger   *zap.Logger
}

func NewEngine(cacheStore cache.SuggestionCache, cacheTTL time.Duration, logger *zap.Logger) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopSuggestionCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 20 * time.Second
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		logger:   logging.OrNop(logger),
	}
}

// Suggest returns one suggestion per rule for cart. Cache failures are logged
// and fall back to running the detector.
func (e *Engine) Suggest(
	ctx context.Context,
	storeID string,
	cart []domain.CartLineItem,
	rules []domain.PromotionRule,
	catalog domain.Catalog,
) []domain.ComboSuggestion {
	if len(rules) == 0 {
		return []domain.ComboSuggestion{}
	}

	key := buildCacheKey(storeID, cart, rules, catalog)
	v, _, _ := e.group.Do(key, func() (interface{}, error) {
		cached, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.Warn("suggestion cache read failed", zap.String("key", key), zap.Error(err))
		}
		if ok && len(cached) == len(rules) {
			return cached, nil
		}

		suggestions := combo.DetectSuggestions(cart, rules, catalog)
		if err := e.cache.Set(ctx, key, suggestions, e.cacheTTL); err != nil {
			e.logger.Warn("suggestion cache write failed", zap.String("key", key), zap.Error(err))
		}
		return suggestions, nil
	})

	shared := v.([]domain.ComboSuggestion)
	out := make([]domain.ComboSuggestion, len(shared))
	copy(out, shared)
	return out
}

type plainCount struct {
	id       string
	category string
	qty      int
}

func normalizeCart(cart []domain.CartLineItem, catalog domain.Catalog) []plainCount {
	aggregated := make(map[string]int, len(cart))
	for _, line := range cart {
		if line.IsCombo || line.ID == "" || line.Quantity < 1 {
			continue
		}
		aggregated[line.ID] += line.Quantity
	}

	result := make([]plainCount, 0, len(aggregated))
	for id, qty := range aggregated {
		result = append(result, plainCount{id: id, category: catalog[id].Category, qty: qty})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].id < result[j].id })
	return result
}

func buildCacheKey(storeID string, cart []domain.CartLineItem, rules []domain.PromotionRule, catalog domain.Catalog) string {
	parts := make([]string, 0, len(cart)+len(rules)+1)
	parts = append(parts, storeID)
	for _, item := range normalizeCart(cart, catalog) {
		parts = append(parts, fmt.Sprintf("%s:%s:%d", item.id, item.category, item.qty))
	}
	for _, rule := range rules {
		reqs := make([]string, 0, len(rule.RequiredItems))
		for _, req := range rule.RequiredItems {
			reqs = append(reqs, fmt.Sprintf("%s/%s/%d", req.Category, req.ItemID, req.MinQuantity))
		}
		parts = append(parts, fmt.Sprintf("r:%s:%s:%s:%s", rule.ID, rule.Name, rule.Description, strings.Join(reqs, ",")))
	}

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return cacheKeyPrefix + hex.EncodeToString(hash[:])
}
