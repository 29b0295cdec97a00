package store

import (
	"context"
	"errors"
	"time"

	"combopos/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrConflict reports a write against a stale order version or a duplicate id.
	ErrConflict = errors.New("conflict")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetCatalog(ctx context.Context) (domain.Catalog, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreatePromotion(ctx context.Context, rule domain.PromotionRule) (*domain.PromotionRule, error)
	ListPromotions(ctx context.Context, activeOnly bool) ([]domain.PromotionRule, error)
	GetPromotion(ctx context.Context, id string) (*domain.PromotionRule, error)
	UpdatePromotionActive(ctx context.Context, id string, active bool) (*domain.PromotionRule, error)
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	// SaveOrder replaces items, dismissals and status of an order when its
	// stored version still equals order.Version, then bumps the version.
	SaveOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	ListStaleOrders(ctx context.Context, idleBefore time.Time, limit int) ([]domain.Order, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
}

// CloneOrder deep-copies order so callers never share cart slices with a store.
func CloneOrder(order domain.Order) domain.Order {
	if order.Items != nil {
		items := make([]domain.CartLineItem, len(order.Items))
		for i, line := range order.Items {
			if line.ComboItems != nil {
				line.ComboItems = append([]domain.CartLineItem(nil), line.ComboItems...)
			}
			items[i] = line
		}
		order.Items = items
	}
	if order.DismissedCombos != nil {
		order.DismissedCombos = append([]string(nil), order.DismissedCombos...)
	}
	if order.ClosedAt != nil {
		closedAt := *order.ClosedAt
		order.ClosedAt = &closedAt
	}
	return order
}

func ClonePromotion(rule domain.PromotionRule) domain.PromotionRule {
	if rule.RequiredItems != nil {
		rule.RequiredItems = append([]domain.RequiredItem(nil), rule.RequiredItems...)
	}
	return rule
}
