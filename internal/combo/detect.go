package combo

import "combopos/backend/internal/domain"

type lineCounts struct {
	byItem     map[string]int
	byCategory map[string]int
}

// DetectSuggestions evaluates every rule against the plain lines of cart and
// returns one suggestion per rule, in rule order, eligible or not. Lines that
// are already combos never count toward any rule.
func DetectSuggestions(cart []domain.CartLineItem, rules []domain.PromotionRule, catalog domain.Catalog) []domain.ComboSuggestion {
	counts := countPlainLines(cart, catalog)

	suggestions := make([]domain.ComboSuggestion, 0, len(rules))
	for _, rule := range rules {
		description := rule.Description
		if description == "" {
			description = Describe(rule)
		}
		suggestions = append(suggestions, domain.ComboSuggestion{
			ComboID:     rule.ID,
			ComboName:   rule.Name,
			Eligible:    isEligible(rule, counts),
			Description: description,
		})
	}
	return suggestions
}

// IsEligible evaluates a single rule.
func IsEligible(cart []domain.CartLineItem, rule domain.PromotionRule, catalog domain.Catalog) bool {
	return isEligible(rule, countPlainLines(cart, catalog))
}

func countPlainLines(cart []domain.CartLineItem, catalog domain.Catalog) lineCounts {
	counts := lineCounts{
		byItem:     make(map[string]int, len(cart)),
		byCategory: make(map[string]int),
	}
	for _, line := range cart {
		if line.IsCombo || line.Quantity <= 0 {
			continue
		}
		counts.byItem[line.ID] += line.Quantity
		if product, ok := catalog[line.ID]; ok && product.Category != "" {
			counts.byCategory[product.Category] += line.Quantity
		}
	}
	return counts
}

func isEligible(rule domain.PromotionRule, counts lineCounts) bool {
	if ValidateRule(rule) != nil {
		return false
	}
	for _, req := range rule.RequiredItems {
		matched := 0
		switch req.Kind() {
		case domain.RequirementCategory:
			matched = counts.byCategory[req.Category]
		case domain.RequirementItem:
			matched = counts.byItem[req.ItemID]
		}
		if matched < req.MinQuantity {
			return false
		}
	}
	return true
}
