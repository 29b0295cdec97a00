package combo

import "combopos/backend/internal/domain"

// Revert ungroups combo line lineID: the bundle is removed and every
// constituent goes back into the cart as a plain unit, merged into the
// existing line for that product when there is one.
func Revert(cart []domain.CartLineItem, lineID string) ([]domain.CartLineItem, error) {
	pos, err := comboIndex(cart, lineID)
	if err != nil {
		return nil, err
	}
	bundle := cart[pos]

	working := make([]domain.CartLineItem, 0, len(cart)+len(bundle.ComboItems))
	for i, line := range cart {
		if i == pos {
			continue
		}
		working = append(working, cloneLine(line))
	}

	for _, unit := range bundle.ComboItems {
		qty := unit.Quantity
		if qty < 1 {
			qty = 1
		}
		if idx := PlainIndex(working, unit.ID); idx >= 0 {
			working[idx].Quantity += qty
			continue
		}
		working = append(working, domain.CartLineItem{
			ID:       unit.ID,
			Name:     unit.Name,
			Price:    unit.Price,
			Quantity: qty,
			Status:   domain.LineStatusPending,
		})
	}
	return working, nil
}

// ToggleExpanded flips whether the constituents of lineID are shown.
func ToggleExpanded(cart []domain.CartLineItem, lineID string) ([]domain.CartLineItem, error) {
	pos, err := comboIndex(cart, lineID)
	if err != nil {
		return nil, err
	}
	working := CloneCart(cart)
	working[pos].ComboExpanded = !working[pos].ComboExpanded
	return working, nil
}
