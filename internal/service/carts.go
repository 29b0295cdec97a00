package service

import (
	"context"
	"time"

	"combopos/backend/internal/combo"
	"combopos/backend/internal/domain"
	"combopos/backend/internal/store"
)

// CartAccessor reads the latest cart of an order and replaces it as a whole.
// UpdateCurrentCart must fail with store.ErrConflict when the order changed
// after snapshot was read.
type CartAccessor interface {
	GetCurrentCart(ctx context.Context, orderID string) (domain.Order, error)
	UpdateCurrentCart(ctx context.Context, snapshot domain.Order, items []domain.CartLineItem, dismissed combo.DismissalSet) (domain.Order, error)
}

type repositoryCarts struct {
	repo store.Repository
	now  func() time.Time
}

func NewRepositoryCarts(repo store.Repository, now func() time.Time) CartAccessor {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &repositoryCarts{repo: repo, now: now}
}

func (c *repositoryCarts) GetCurrentCart(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := c.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (c *repositoryCarts) UpdateCurrentCart(ctx context.Context, snapshot domain.Order, items []domain.CartLineItem, dismissed combo.DismissalSet) (domain.Order, error) {
	next := snapshot
	next.Items = combo.Compact(items)
	next.DismissedCombos = dismissed.IDs()
	next.TotalPrice = combo.CartTotal(next.Items)
	next.UpdatedAt = c.now()

	saved, err := c.repo.SaveOrder(ctx, next)
	if err != nil {
		return domain.Order{}, err
	}
	return *saved, nil
}
