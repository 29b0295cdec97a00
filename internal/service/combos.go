package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"combopos/backend/internal/combo"
	"combopos/backend/internal/domain"
	"combopos/backend/internal/notify"
	"combopos/backend/internal/store"
)

// DetectComboSuggestions evaluates the active promotions against the order's
// cart. Visible holds the eligible suggestions the cashier has not dismissed.
func (s *Service) DetectComboSuggestions(ctx context.Context, orderID string) (domain.ComboSuggestionResponse, error) {
	order, err := s.carts.GetCurrentCart(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.ComboSuggestionResponse{}, err
	}
	if order.Status != domain.OrderStatusOpen {
		return domain.ComboSuggestionResponse{
			OrderID:     order.ID,
			Suggestions: []domain.ComboSuggestion{},
			Visible:     []domain.ComboSuggestion{},
		}, nil
	}

	rules, err := s.repo.ListPromotions(ctx, true)
	if err != nil {
		return domain.ComboSuggestionResponse{}, err
	}
	catalog, err := s.repo.GetCatalog(ctx)
	if err != nil {
		return domain.ComboSuggestionResponse{}, err
	}

	suggestions := s.recommender.Suggest(ctx, order.StoreID, order.Items, rules, catalog)
	return domain.ComboSuggestionResponse{
		OrderID:     order.ID,
		Suggestions: suggestions,
		Visible:     combo.VisibleSuggestions(suggestions, combo.NewDismissalSet(order.DismissedCombos...)),
	}, nil
}

// ApplyCombo bundles the units promotion comboID needs into one combo line.
// An unknown or inactive promotion yields combo.ErrRuleNotFound and no
// notification. A cart that no longer satisfies the promotion yields
// combo.ErrAllocationShortfall and leaves the stored cart untouched.
func (s *Service) ApplyCombo(ctx context.Context, orderID string, comboID string) (domain.ApplyComboResponse, error) {
	if err := s.authorize(ctx, PermApplyCombo); err != nil {
		return domain.ApplyComboResponse{}, err
	}
	order, err := s.openOrder(ctx, orderID)
	if err != nil {
		return domain.ApplyComboResponse{}, err
	}
	rule, err := s.lookupRule(ctx, comboID)
	if err != nil {
		return domain.ApplyComboResponse{}, err
	}
	if !rule.Active {
		return domain.ApplyComboResponse{}, combo.ErrRuleNotFound
	}
	catalog, err := s.repo.GetCatalog(ctx)
	if err != nil {
		return domain.ApplyComboResponse{}, err
	}

	app, err := combo.Apply(order.Items, rule, catalog, combo.Options{NewSuffix: s.newSuffix})
	if err != nil {
		if errors.Is(err, combo.ErrAllocationShortfall) || errors.Is(err, combo.ErrInvalidRule) {
			s.logger.Warn("combo apply rejected",
				zap.String("order_id", order.ID),
				zap.String("combo_id", rule.ID),
				zap.Error(err))
			s.notify(ctx, order, notify.KindComboApplyFailed, rule, domain.CartLineItem{}, 0)
		}
		return domain.ApplyComboResponse{}, err
	}

	saved, err := s.carts.UpdateCurrentCart(ctx, order, app.Cart, combo.NewDismissalSet())
	if err != nil {
		return domain.ApplyComboResponse{}, err
	}

	s.notify(ctx, saved, notify.KindComboApplied, rule, app.Combo, app.OriginalPrice)
	s.logAudit(ctx, saved.StoreID, "combo_apply", "order", saved.ID, fmt.Sprintf("combo=%s,line=%s,original=%d,final=%d", rule.ID, app.Combo.ID, app.OriginalPrice, app.FinalPrice))
	return domain.ApplyComboResponse{
		Order:         saved,
		Combo:         app.Combo,
		OriginalPrice: app.OriginalPrice,
		FinalPrice:    app.FinalPrice,
	}, nil
}

// DismissComboSuggestion hides comboID from the order's visible suggestions
// until the next quantity change.
func (s *Service) DismissComboSuggestion(ctx context.Context, orderID string, comboID string) (domain.Order, error) {
	if err := s.authorize(ctx, PermApplyCombo); err != nil {
		return domain.Order{}, err
	}
	order, err := s.openOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	rule, err := s.lookupRule(ctx, comboID)
	if err != nil {
		return domain.Order{}, err
	}

	dismissed := combo.NewDismissalSet(order.DismissedCombos...)
	if dismissed.Has(rule.ID) {
		return order, nil
	}
	dismissed.Add(rule.ID)

	saved, err := s.carts.UpdateCurrentCart(ctx, order, order.Items, dismissed)
	if err != nil {
		return domain.Order{}, err
	}

	s.notify(ctx, saved, notify.KindComboDismissed, rule, domain.CartLineItem{}, 0)
	s.logAudit(ctx, saved.StoreID, "combo_dismiss", "order", saved.ID, fmt.Sprintf("combo=%s", rule.ID))
	return saved, nil
}

// CustomizeComboItem lists what may replace constituent index of combo line lineID.
func (s *Service) CustomizeComboItem(ctx context.Context, orderID string, lineID string, index int) (domain.ComboCustomizationOptions, error) {
	if err := s.authorize(ctx, PermCustomizeCombo); err != nil {
		return domain.ComboCustomizationOptions{}, err
	}
	order, err := s.openOrder(ctx, orderID)
	if err != nil {
		return domain.ComboCustomizationOptions{}, err
	}
	catalog, err := s.repo.GetCatalog(ctx)
	if err != nil {
		return domain.ComboCustomizationOptions{}, err
	}
	return combo.CustomizationOptions(order.Items, lineID, index, catalog)
}

// UpdateComboItemCustomization swaps constituent index of lineID for productID
// and reprices the bundle with the discount its promotion carries now.
func (s *Service) UpdateComboItemCustomization(ctx context.Context, orderID string, lineID string, index int, productID string) (domain.Order, error) {
	if err := s.authorize(ctx, PermCustomizeCombo); err != nil {
		return domain.Order{}, err
	}
	order, err := s.openOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	line, ok := findLine(order.Items, lineID)
	if !ok || !line.IsCombo {
		return domain.Order{}, combo.ErrComboNotFound
	}
	rule, err := s.lookupRule(ctx, line.ComboID)
	if err != nil {
		return domain.Order{}, err
	}

	productID = strings.TrimSpace(productID)
	products, err := s.repo.GetProductsByIDs(ctx, []string{productID})
	if err != nil {
		return domain.Order{}, err
	}
	replacement, ok := products[productID]
	if !ok {
		return domain.Order{}, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}
	if !replacement.Active {
		return domain.Order{}, fmt.Errorf("%w: product %s is inactive", store.ErrInvalidTransaction, productID)
	}

	items, err := combo.Customize(order.Items, lineID, index, replacement, rule)
	if err != nil {
		return domain.Order{}, err
	}

	saved, err := s.carts.UpdateCurrentCart(ctx, order, items, combo.NewDismissalSet(order.DismissedCombos...))
	if err != nil {
		return domain.Order{}, err
	}

	updated, _ := findLine(saved.Items, lineID)
	s.notify(ctx, saved, notify.KindComboCustomized, rule, updated, line.Price)
	s.logAudit(ctx, saved.StoreID, "combo_customize", "order", saved.ID, fmt.Sprintf("line=%s,index=%d,product=%s,price=%d->%d", lineID, index, productID, line.Price, updated.Price))
	return saved, nil
}

// RevertCombo ungroups lineID back into plain lines.
func (s *Service) RevertCombo(ctx context.Context, orderID string, lineID string) (domain.Order, error) {
	if err := s.authorize(ctx, PermApplyCombo); err != nil {
		return domain.Order{}, err
	}
	order, err := s.openOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	line, _ := findLine(order.Items, lineID)

	items, err := combo.Revert(order.Items, lineID)
	if err != nil {
		return domain.Order{}, err
	}

	saved, err := s.carts.UpdateCurrentCart(ctx, order, items, combo.NewDismissalSet())
	if err != nil {
		return domain.Order{}, err
	}

	rule := domain.PromotionRule{ID: line.ComboID, Name: line.Name}
	s.notify(ctx, saved, notify.KindComboReverted, rule, line, 0)
	s.logAudit(ctx, saved.StoreID, "combo_revert", "order", saved.ID, fmt.Sprintf("combo=%s,line=%s", line.ComboID, lineID))
	return saved, nil
}

func (s *Service) ToggleComboExpanded(ctx context.Context, orderID string, lineID string) (domain.Order, error) {
	if err := s.authorize(ctx, PermEditOrder); err != nil {
		return domain.Order{}, err
	}
	order, err := s.openOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	items, err := combo.ToggleExpanded(order.Items, lineID)
	if err != nil {
		return domain.Order{}, err
	}
	return s.carts.UpdateCurrentCart(ctx, order, items, combo.NewDismissalSet(order.DismissedCombos...))
}

func (s *Service) lookupRule(ctx context.Context, comboID string) (domain.PromotionRule, error) {
	comboID = strings.TrimSpace(comboID)
	if comboID == "" {
		return domain.PromotionRule{}, combo.ErrRuleNotFound
	}
	rule, err := s.repo.GetPromotion(ctx, comboID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.PromotionRule{}, combo.ErrRuleNotFound
	}
	if err != nil {
		return domain.PromotionRule{}, err
	}
	return *rule, nil
}

func findLine(cart []domain.CartLineItem, lineID string) (domain.CartLineItem, bool) {
	for _, line := range cart {
		if line.ID == lineID {
			return line, true
		}
	}
	return domain.CartLineItem{}, false
}
