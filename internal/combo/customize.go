package combo

import (
	"sort"

	"combopos/backend/internal/domain"
)

// CustomizationOptions returns the constituent at index inside combo line
// lineID and the active catalog products in its category that may replace it.
func CustomizationOptions(cart []domain.CartLineItem, lineID string, index int, catalog domain.Catalog) (domain.ComboCustomizationOptions, error) {
	pos, err := comboIndex(cart, lineID)
	if err != nil {
		return domain.ComboCustomizationOptions{}, err
	}
	items := cart[pos].ComboItems
	if index < 0 || index >= len(items) {
		return domain.ComboCustomizationOptions{}, ErrConstituentNotFound
	}
	current := items[index]

	substitutes := make([]domain.Product, 0)
	if product, ok := catalog[current.ID]; ok {
		for _, candidate := range catalog {
			if !candidate.Active || candidate.ID == current.ID || candidate.Category != product.Category {
				continue
			}
			substitutes = append(substitutes, candidate)
		}
	}
	sort.Slice(substitutes, func(i, j int) bool { return substitutes[i].ID < substitutes[j].ID })

	return domain.ComboCustomizationOptions{
		LineID:      lineID,
		Index:       index,
		Current:     current,
		Substitutes: substitutes,
	}, nil
}

// Customize swaps the constituent at index for replacement and reprices the
// bundle from its current constituents with rule's discount. rule must be the
// rule the combo line was built from.
func Customize(cart []domain.CartLineItem, lineID string, index int, replacement domain.Product, rule domain.PromotionRule) ([]domain.CartLineItem, error) {
	pos, err := comboIndex(cart, lineID)
	if err != nil {
		return nil, err
	}
	if cart[pos].ComboID != rule.ID {
		return nil, ErrRuleNotFound
	}
	if index < 0 || index >= len(cart[pos].ComboItems) {
		return nil, ErrConstituentNotFound
	}

	working := CloneCart(cart)
	line := &working[pos]
	unit := &line.ComboItems[index]
	unit.ID = replacement.ID
	unit.Name = replacement.Name
	unit.Price = replacement.Price
	unit.Quantity = 1

	line.Price = Reprice(*line, rule)
	return working, nil
}

// Reprice computes the bundle price of line from its current constituents.
func Reprice(line domain.CartLineItem, rule domain.PromotionRule) int64 {
	return PriceBundle(constituentTotal(line.ComboItems), rule.Discount)
}
