// Package combo implements automatic combo promotions over a cart snapshot:
// detecting which rules the cart satisfies, bundling the matching units into a
// discounted combo line, and customizing or ungrouping bundles afterwards.
//
// Every function here is pure. Callers read the latest cart, pass it in, and
// write back the returned cart as a whole.
package combo

import (
	"errors"
	"fmt"
	"strings"

	"combopos/backend/internal/domain"
)

var (
	ErrRuleNotFound        = errors.New("combo rule not found")
	ErrInvalidRule         = errors.New("invalid combo rule")
	ErrAllocationShortfall = errors.New("unable to apply promotion")
	ErrComboNotFound       = errors.New("combo line not found")
	ErrConstituentNotFound = errors.New("combo item not found")
)

// ValidateRule reports whether rule can ever be eligible. Discount values that
// would push a bundle below zero are allowed here; PriceBundle clamps them.
func ValidateRule(rule domain.PromotionRule) error {
	if strings.TrimSpace(rule.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	if len(rule.RequiredItems) == 0 {
		return fmt.Errorf("%w: %s has no required items", ErrInvalidRule, rule.ID)
	}
	for i, req := range rule.RequiredItems {
		if req.Kind() == domain.RequirementInvalid {
			return fmt.Errorf("%w: %s requirement %d must set exactly one of category or item_id", ErrInvalidRule, rule.ID, i)
		}
		if req.MinQuantity < 1 {
			return fmt.Errorf("%w: %s requirement %d has min_quantity %d", ErrInvalidRule, rule.ID, i, req.MinQuantity)
		}
	}

	switch rule.Discount.Type {
	case domain.DiscountPercentage, domain.DiscountFixed:
	default:
		return fmt.Errorf("%w: %s has unknown discount type %q", ErrInvalidRule, rule.ID, rule.Discount.Type)
	}
	if rule.Discount.Value < 0 {
		return fmt.Errorf("%w: %s has negative discount", ErrInvalidRule, rule.ID)
	}
	return nil
}

// FindRule returns the rule with the given id.
func FindRule(rules []domain.PromotionRule, id string) (domain.PromotionRule, error) {
	for _, rule := range rules {
		if rule.ID == id {
			return rule, nil
		}
	}
	return domain.PromotionRule{}, ErrRuleNotFound
}

// Describe renders the requirements of rule, e.g. "2x coffee + 1x SP002".
func Describe(rule domain.PromotionRule) string {
	parts := make([]string, 0, len(rule.RequiredItems))
	for _, req := range rule.RequiredItems {
		target := req.ItemID
		if req.Kind() == domain.RequirementCategory {
			target = req.Category
		}
		parts = append(parts, fmt.Sprintf("%dx %s", req.MinQuantity, target))
	}
	return strings.Join(parts, " + ")
}
