package combo

import "combopos/backend/internal/domain"

// CloneCart deep-copies cart, including combo constituents.
func CloneCart(cart []domain.CartLineItem) []domain.CartLineItem {
	if cart == nil {
		return nil
	}
	cloned := make([]domain.CartLineItem, len(cart))
	for i, line := range cart {
		cloned[i] = cloneLine(line)
	}
	return cloned
}

func cloneLine(line domain.CartLineItem) domain.CartLineItem {
	if line.ComboItems != nil {
		items := make([]domain.CartLineItem, len(line.ComboItems))
		copy(items, line.ComboItems)
		line.ComboItems = items
	}
	return line
}

func LineTotal(line domain.CartLineItem) int64 {
	return line.Price * int64(line.Quantity)
}

func CartTotal(cart []domain.CartLineItem) int64 {
	var total int64
	for _, line := range cart {
		total += LineTotal(line)
	}
	return total
}

// Compact drops lines whose quantity reached zero.
func Compact(cart []domain.CartLineItem) []domain.CartLineItem {
	kept := make([]domain.CartLineItem, 0, len(cart))
	for _, line := range cart {
		if line.Quantity <= 0 {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

// PlainIndex returns the position of the non-combo line for productID, or -1.
func PlainIndex(cart []domain.CartLineItem, productID string) int {
	for i, line := range cart {
		if !line.IsCombo && line.ID == productID {
			return i
		}
	}
	return -1
}

func comboIndex(cart []domain.CartLineItem, lineID string) (int, error) {
	for i, line := range cart {
		if line.ID != lineID {
			continue
		}
		if !line.IsCombo || len(line.ComboItems) == 0 {
			return -1, ErrComboNotFound
		}
		return i, nil
	}
	return -1, ErrComboNotFound
}

func constituentTotal(items []domain.CartLineItem) int64 {
	var total int64
	for _, item := range items {
		total += LineTotal(item)
	}
	return total
}
