package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"combopos/backend/internal/combo"
	"combopos/backend/internal/domain"
	"combopos/backend/internal/store"
)

type cartChange func(order domain.Order, catalog domain.Catalog) ([]domain.CartLineItem, error)

// editCart re-reads the order, applies change to a copy of its cart and writes
// the whole cart back. Quantity edits reset the order's dismissals.
func (s *Service) editCart(ctx context.Context, orderID string, resetDismissals bool, change cartChange) (domain.Order, error) {
	order, err := s.openOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	catalog, err := s.repo.GetCatalog(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	items, err := change(order, catalog)
	if err != nil {
		return domain.Order{}, err
	}

	dismissed := combo.NewDismissalSet(order.DismissedCombos...)
	if resetDismissals {
		dismissed.Clear()
	}
	return s.carts.UpdateCurrentCart(ctx, order, items, dismissed)
}

func (s *Service) openOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, store.ErrInvalidTransaction
	}
	order, err := s.carts.GetCurrentCart(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusOpen {
		return domain.Order{}, fmt.Errorf("%w: %s is %s", ErrOrderClosed, order.ID, order.Status)
	}
	return order, nil
}

func (s *Service) OpenOrder(ctx context.Context, req domain.OrderOpenRequest) (domain.Order, error) {
	if err := s.authorize(ctx, PermEditOrder); err != nil {
		return domain.Order{}, err
	}
	if req.StoreID == "" {
		req.StoreID = s.defaultStoreID
	}
	actor, _ := ActorFromContext(ctx)
	now := s.now()

	order, err := s.repo.CreateOrder(ctx, domain.Order{
		StoreID:    strings.TrimSpace(req.StoreID),
		TerminalID: strings.TrimSpace(req.TerminalID),
		Status:     domain.OrderStatusOpen,
		OpenedBy:   actor.Username,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, order.StoreID, "order_open", "order", order.ID, fmt.Sprintf("terminal=%s", order.TerminalID))
	return *order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.carts.GetCurrentCart(ctx, strings.TrimSpace(orderID))
}

func (s *Service) AddItem(ctx context.Context, orderID string, req domain.AddItemRequest) (domain.Order, error) {
	if err := s.authorize(ctx, PermEditOrder); err != nil {
		return domain.Order{}, err
	}
	productID := strings.TrimSpace(req.ProductID)
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if productID == "" || req.Quantity < 1 {
		return domain.Order{}, store.ErrInvalidTransaction
	}

	order, err := s.editCart(ctx, orderID, true, func(order domain.Order, catalog domain.Catalog) ([]domain.CartLineItem, error) {
		product, ok := catalog[productID]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
		}
		if !product.Active {
			return nil, fmt.Errorf("%w: product %s is inactive", store.ErrInvalidTransaction, productID)
		}

		items := combo.CloneCart(order.Items)
		if idx := combo.PlainIndex(items, productID); idx >= 0 {
			items[idx].Quantity += req.Quantity
			return items, nil
		}
		return append(items, domain.CartLineItem{
			ID:       product.ID,
			Name:     product.Name,
			Price:    product.Price,
			Quantity: req.Quantity,
			Status:   domain.LineStatusPending,
		}), nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, order.StoreID, "order_item_add", "order", order.ID, fmt.Sprintf("product=%s,qty=%d", productID, req.Quantity))
	return order, nil
}

// SetItemQuantity sets the quantity of a plain line. Zero removes it.
func (s *Service) SetItemQuantity(ctx context.Context, orderID string, lineID string, quantity int) (domain.Order, error) {
	if err := s.authorize(ctx, PermEditOrder); err != nil {
		return domain.Order{}, err
	}
	if quantity < 0 {
		return domain.Order{}, store.ErrInvalidTransaction
	}

	order, err := s.editCart(ctx, orderID, true, func(order domain.Order, _ domain.Catalog) ([]domain.CartLineItem, error) {
		items := combo.CloneCart(order.Items)
		idx := combo.PlainIndex(items, lineID)
		if idx < 0 {
			if isComboLine(items, lineID) {
				return nil, fmt.Errorf("%w: combo lines have a fixed quantity", store.ErrInvalidTransaction)
			}
			return nil, fmt.Errorf("line %s: %w", lineID, store.ErrNotFound)
		}
		items[idx].Quantity = quantity
		return items, nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, order.StoreID, "order_item_set_qty", "order", order.ID, fmt.Sprintf("line=%s,qty=%d", lineID, quantity))
	return order, nil
}

// RemoveItem drops a line. Removing a combo line drops its constituents with it.
func (s *Service) RemoveItem(ctx context.Context, orderID string, lineID string) (domain.Order, error) {
	if err := s.authorize(ctx, PermEditOrder); err != nil {
		return domain.Order{}, err
	}

	order, err := s.editCart(ctx, orderID, true, func(order domain.Order, _ domain.Catalog) ([]domain.CartLineItem, error) {
		items := make([]domain.CartLineItem, 0, len(order.Items))
		found := false
		for _, line := range order.Items {
			if line.ID == lineID && !found {
				found = true
				continue
			}
			items = append(items, line)
		}
		if !found {
			return nil, fmt.Errorf("line %s: %w", lineID, store.ErrNotFound)
		}
		return combo.CloneCart(items), nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, order.StoreID, "order_item_remove", "order", order.ID, fmt.Sprintf("line=%s", lineID))
	return order, nil
}

func (s *Service) ClearOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if err := s.authorize(ctx, PermEditOrder); err != nil {
		return domain.Order{}, err
	}

	order, err := s.editCart(ctx, orderID, true, func(domain.Order, domain.Catalog) ([]domain.CartLineItem, error) {
		return []domain.CartLineItem{}, nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, order.StoreID, "order_clear", "order", order.ID, "")
	return order, nil
}

// FinalizeOrder consumes every combo in the cart and closes the session.
func (s *Service) FinalizeOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if err := s.authorize(ctx, PermEditOrder); err != nil {
		return domain.Order{}, err
	}
	order, err := s.openOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if len(order.Items) == 0 {
		return domain.Order{}, fmt.Errorf("%w: cannot finalize an empty order", store.ErrInvalidTransaction)
	}

	closed, err := s.closeOrder(ctx, order, domain.OrderStatusFinalized)
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, closed.StoreID, "order_finalize", "order", closed.ID, fmt.Sprintf("total=%d,lines=%d", closed.TotalPrice, len(closed.Items)))
	return closed, nil
}

func (s *Service) AbandonOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if err := s.authorize(ctx, PermEditOrder); err != nil {
		return domain.Order{}, err
	}
	order, err := s.openOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	closed, err := s.closeOrder(ctx, order, domain.OrderStatusAbandoned)
	if err != nil {
		return domain.Order{}, err
	}

	s.logAudit(ctx, closed.StoreID, "order_abandon", "order", closed.ID, "")
	return closed, nil
}

// AbandonStaleOrders closes open orders untouched for longer than idleFor.
// Orders that change while being swept are skipped.
func (s *Service) AbandonStaleOrders(ctx context.Context, idleFor time.Duration) (int, error) {
	if err := s.authorize(ctx, PermSweepOrders); err != nil {
		return 0, err
	}
	if idleFor <= 0 {
		return 0, store.ErrInvalidTransaction
	}

	stale, err := s.repo.ListStaleOrders(ctx, s.now().Add(-idleFor), 200)
	if err != nil {
		return 0, err
	}

	abandoned := 0
	for _, order := range stale {
		closed, err := s.closeOrder(ctx, order, domain.OrderStatusAbandoned)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return abandoned, err
		}
		abandoned++
		s.logAudit(ctx, closed.StoreID, "order_abandon_stale", "order", closed.ID, fmt.Sprintf("idle_since=%s", order.UpdatedAt.Format(time.RFC3339)))
	}
	if abandoned > 0 {
		s.logger.Info("abandoned stale orders", zap.Int("count", abandoned), zap.Duration("idle_for", idleFor))
	}
	return abandoned, nil
}

func (s *Service) closeOrder(ctx context.Context, order domain.Order, status string) (domain.Order, error) {
	closedAt := s.now()
	order.Status = status
	order.ClosedAt = &closedAt
	return s.carts.UpdateCurrentCart(ctx, order, order.Items, combo.NewDismissalSet())
}

func isComboLine(cart []domain.CartLineItem, lineID string) bool {
	for _, line := range cart {
		if line.ID == lineID && line.IsCombo {
			return true
		}
	}
	return false
}
