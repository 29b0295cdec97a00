package combo

import (
	"fmt"
	"sort"

	"combopos/backend/internal/domain"
	"combopos/backend/internal/xid"
)

const comboLinePrefix = "combo-auto-"

// Options tunes Apply. The zero value is ready to use.
type Options struct {
	// NewSuffix makes combo line ids unique within an order. Defaults to xid.Suffix.
	NewSuffix func() string
}

type Application struct {
	Cart          []domain.CartLineItem
	Combo         domain.CartLineItem
	OriginalPrice int64
	FinalPrice    int64
}

// ComboLineID builds the id of an automatically applied combo line.
func ComboLineID(ruleID string, suffix string) string {
	return fmt.Sprintf("%s%s-%s", comboLinePrefix, ruleID, suffix)
}

// Apply bundles the units rule requires into one combo line appended to the
// end of the cart. Allocation runs on a copy: on any error the input cart is
// returned untouched and nothing is committed.
//
// Item requirements are allocated before category requirements so that a
// category never consumes a unit a named item needs. Within a category,
// lines are consumed in ascending product id order.
func Apply(cart []domain.CartLineItem, rule domain.PromotionRule, catalog domain.Catalog, opts Options) (Application, error) {
	if err := ValidateRule(rule); err != nil {
		return Application{}, err
	}

	working := CloneCart(cart)
	allocated := make([][]domain.CartLineItem, len(rule.RequiredItems))

	for i, req := range rule.RequiredItems {
		if req.Kind() != domain.RequirementItem {
			continue
		}
		units, ok := takeUnits(working, itemCandidates(working, req.ItemID), req.MinQuantity)
		if !ok {
			return Application{}, fmt.Errorf("%w %q: item %s needs %d", ErrAllocationShortfall, rule.Name, req.ItemID, req.MinQuantity)
		}
		allocated[i] = units
	}
	for i, req := range rule.RequiredItems {
		if req.Kind() != domain.RequirementCategory {
			continue
		}
		units, ok := takeUnits(working, categoryCandidates(working, req.Category, catalog), req.MinQuantity)
		if !ok {
			return Application{}, fmt.Errorf("%w %q: category %s needs %d", ErrAllocationShortfall, rule.Name, req.Category, req.MinQuantity)
		}
		allocated[i] = units
	}

	constituents := make([]domain.CartLineItem, 0)
	for _, units := range allocated {
		constituents = append(constituents, units...)
	}

	newSuffix := opts.NewSuffix
	if newSuffix == nil {
		newSuffix = xid.Suffix
	}

	originalPrice := constituentTotal(constituents)
	finalPrice := PriceBundle(originalPrice, rule.Discount)
	line := domain.CartLineItem{
		ID:            ComboLineID(rule.ID, newSuffix()),
		Name:          rule.Name,
		Price:         finalPrice,
		Quantity:      1,
		Status:        domain.LineStatusPending,
		IsCombo:       true,
		ComboID:       rule.ID,
		ComboExpanded: false,
		ComboItems:    constituents,
	}

	committed := append(Compact(working), line)
	return Application{
		Cart:          committed,
		Combo:         line,
		OriginalPrice: originalPrice,
		FinalPrice:    finalPrice,
	}, nil
}

func itemCandidates(cart []domain.CartLineItem, productID string) []int {
	indices := make([]int, 0, 1)
	for i, line := range cart {
		if !line.IsCombo && line.Quantity > 0 && line.ID == productID {
			indices = append(indices, i)
		}
	}
	return indices
}

func categoryCandidates(cart []domain.CartLineItem, category string, catalog domain.Catalog) []int {
	indices := make([]int, 0, len(cart))
	for i, line := range cart {
		if line.IsCombo || line.Quantity <= 0 {
			continue
		}
		if product, ok := catalog[line.ID]; ok && product.Category == category {
			indices = append(indices, i)
		}
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return cart[indices[a]].ID < cart[indices[b]].ID
	})
	return indices
}

// takeUnits moves need units out of the candidate lines, one constituent per
// unit. It checks availability first, so a shortfall never mutates cart.
func takeUnits(cart []domain.CartLineItem, candidates []int, need int) ([]domain.CartLineItem, bool) {
	available := 0
	for _, idx := range candidates {
		available += cart[idx].Quantity
	}
	if available < need {
		return nil, false
	}

	units := make([]domain.CartLineItem, 0, need)
	for _, idx := range candidates {
		source := &cart[idx]
		for source.Quantity > 0 && len(units) < need {
			units = append(units, domain.CartLineItem{
				ID:       source.ID,
				Name:     source.Name,
				Price:    source.Price,
				Quantity: 1,
				Status:   domain.LineStatusPending,
			})
			source.Quantity--
		}
		if len(units) == need {
			break
		}
	}
	return units, true
}
