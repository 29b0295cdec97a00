package combo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"combopos/backend/internal/domain"
)

func testCatalog() domain.Catalog {
	return domain.NewCatalog([]domain.Product{
		{ID: "SP001", Name: "Cà phê sữa đá", Category: "coffee", Price: 60000, Active: true},
		{ID: "SP002", Name: "Bánh croissant", Category: "bakery", Price: 30000, Active: true},
		{ID: "SP003", Name: "Cà phê đen đá", Category: "coffee", Price: 35000, Active: true},
		{ID: "SP004", Name: "Bạc xỉu", Category: "coffee", Price: 45000, Active: true},
		{ID: "SP005", Name: "Trà đào", Category: "tea", Price: 55000, Active: true},
		{ID: "SP099", Name: "Cà phê muối", Category: "coffee", Price: 50000, Active: false},
	})
}

func plainLine(id string, price int64, qty int) domain.CartLineItem {
	return domain.CartLineItem{ID: id, Name: id, Price: price, Quantity: qty, Status: domain.LineStatusPending}
}

func coffeePairRule() domain.PromotionRule {
	return domain.PromotionRule{
		ID:            "coffee-pair",
		Name:          "Đôi cà phê",
		RequiredItems: []domain.RequiredItem{{Category: "coffee", MinQuantity: 2}},
		Discount:      domain.Discount{Type: domain.DiscountPercentage, Value: 10},
	}
}

func breakfastRule() domain.PromotionRule {
	return domain.PromotionRule{
		ID:   "breakfast",
		Name: "Bữa sáng",
		RequiredItems: []domain.RequiredItem{
			{ItemID: "SP001", MinQuantity: 1},
			{ItemID: "SP002", MinQuantity: 1},
		},
		Discount: domain.Discount{Type: domain.DiscountFixed, Value: 5000},
	}
}

func fixedSuffix(values ...string) Options {
	i := 0
	return Options{NewSuffix: func() string {
		v := values[i%len(values)]
		i++
		return v
	}}
}

func TestDetectSuggestionsCategoryScenario(t *testing.T) {
	cart := []domain.CartLineItem{plainLine("SP001", 60000, 2)}

	suggestions := DetectSuggestions(cart, []domain.PromotionRule{coffeePairRule()}, testCatalog())

	require.Len(t, suggestions, 1)
	assert.Equal(t, "coffee-pair", suggestions[0].ComboID)
	assert.Equal(t, "Đôi cà phê", suggestions[0].ComboName)
	assert.True(t, suggestions[0].Eligible)
	assert.Equal(t, "2x coffee", suggestions[0].Description)
}

func TestDetectSuggestionsSingleCoffeeNotEligible(t *testing.T) {
	cart := []domain.CartLineItem{plainLine("SP001", 60000, 1)}

	suggestions := DetectSuggestions(cart, []domain.PromotionRule{coffeePairRule()}, testCatalog())

	require.Len(t, suggestions, 1)
	assert.False(t, suggestions[0].Eligible)
}

func TestDetectSuggestionsIsConjunctive(t *testing.T) {
	rule := domain.PromotionRule{
		ID: "big-morning",
		RequiredItems: []domain.RequiredItem{
			{Category: "coffee", MinQuantity: 1},
			{ItemID: "SP002", MinQuantity: 3},
			{Category: "tea", MinQuantity: 1},
		},
		Discount: domain.Discount{Type: domain.DiscountFixed, Value: 1000},
	}
	cart := []domain.CartLineItem{
		plainLine("SP001", 60000, 10),
		plainLine("SP002", 30000, 2),
		plainLine("SP005", 55000, 4),
	}

	suggestions := DetectSuggestions(cart, []domain.PromotionRule{rule}, testCatalog())
	assert.False(t, suggestions[0].Eligible)

	cart[1].Quantity = 3
	suggestions = DetectSuggestions(cart, []domain.PromotionRule{rule}, testCatalog())
	assert.True(t, suggestions[0].Eligible)
}

func TestDetectSuggestionsExcludesComboLines(t *testing.T) {
	cart := []domain.CartLineItem{
		plainLine("SP001", 60000, 1),
		{
			ID: "combo-auto-coffee-pair-a", Name: "Đôi cà phê", Price: 108000, Quantity: 1, IsCombo: true, ComboID: "coffee-pair",
			ComboItems: []domain.CartLineItem{plainLine("SP001", 60000, 1), plainLine("SP003", 35000, 1)},
		},
	}

	suggestions := DetectSuggestions(cart, []domain.PromotionRule{coffeePairRule()}, testCatalog())
	assert.False(t, suggestions[0].Eligible)
}

func TestDetectSuggestionsKeepsRuleOrderAndRejectsInvalidRules(t *testing.T) {
	empty := domain.PromotionRule{ID: "empty", Name: "Empty", Discount: domain.Discount{Type: domain.DiscountFixed, Value: 1}}
	zeroMin := domain.PromotionRule{
		ID:            "zero-min",
		RequiredItems: []domain.RequiredItem{{ItemID: "SP001", MinQuantity: 0}},
		Discount:      domain.Discount{Type: domain.DiscountFixed, Value: 1},
	}
	ambiguous := domain.PromotionRule{
		ID:            "ambiguous",
		RequiredItems: []domain.RequiredItem{{ItemID: "SP001", Category: "coffee", MinQuantity: 1}},
		Discount:      domain.Discount{Type: domain.DiscountFixed, Value: 1},
	}
	rules := []domain.PromotionRule{empty, breakfastRule(), zeroMin, ambiguous, coffeePairRule()}
	cart := []domain.CartLineItem{plainLine("SP001", 60000, 2), plainLine("SP002", 30000, 1)}

	suggestions := DetectSuggestions(cart, rules, testCatalog())

	require.Len(t, suggestions, 5)
	ids := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		ids = append(ids, s.ComboID)
	}
	assert.Equal(t, []string{"empty", "breakfast", "zero-min", "ambiguous", "coffee-pair"}, ids)
	assert.False(t, suggestions[0].Eligible)
	assert.True(t, suggestions[1].Eligible)
	assert.False(t, suggestions[2].Eligible)
	assert.False(t, suggestions[3].Eligible)
	assert.True(t, suggestions[4].Eligible)
}

func TestDetectSuggestionsIsIdempotentAndPure(t *testing.T) {
	cart := []domain.CartLineItem{plainLine("SP001", 60000, 2), plainLine("SP002", 30000, 1)}
	snapshot := CloneCart(cart)
	rules := []domain.PromotionRule{coffeePairRule(), breakfastRule()}

	first := DetectSuggestions(cart, rules, testCatalog())
	second := DetectSuggestions(cart, rules, testCatalog())

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, cart)
}

func TestApplyCategoryComboScenario(t *testing.T) {
	cart := []domain.CartLineItem{plainLine("SP001", 60000, 2)}

	app, err := Apply(cart, coffeePairRule(), testCatalog(), fixedSuffix("x1"))
	require.NoError(t, err)

	assert.Equal(t, int64(120000), app.OriginalPrice)
	assert.Equal(t, int64(108000), app.FinalPrice)
	require.Len(t, app.Cart, 1)

	line := app.Cart[0]
	assert.Equal(t, "combo-auto-coffee-pair-x1", line.ID)
	assert.Equal(t, "Đôi cà phê", line.Name)
	assert.Equal(t, int64(108000), line.Price)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, domain.LineStatusPending, line.Status)
	assert.True(t, line.IsCombo)
	assert.Equal(t, "coffee-pair", line.ComboID)
	assert.False(t, line.ComboExpanded)
	require.Len(t, line.ComboItems, 2)
	for _, unit := range line.ComboItems {
		assert.Equal(t, "SP001", unit.ID)
		assert.Equal(t, 1, unit.Quantity)
		assert.Equal(t, int64(60000), unit.Price)
	}

	assert.Equal(t, 2, cart[0].Quantity, "input cart must not be mutated")
}

func TestApplyFixedDiscountScenario(t *testing.T) {
	cart := []domain.CartLineItem{plainLine("SP001", 40000, 1), plainLine("SP002", 30000, 1)}

	app, err := Apply(cart, breakfastRule(), testCatalog(), fixedSuffix("x"))
	require.NoError(t, err)

	assert.Equal(t, int64(70000), app.OriginalPrice)
	assert.Equal(t, int64(65000), app.FinalPrice)
	require.Len(t, app.Cart, 1)
	assert.Equal(t, []string{"SP001", "SP002"}, []string{app.Combo.ComboItems[0].ID, app.Combo.ComboItems[1].ID})
}

func TestApplyTwiceYieldsDistinctCombos(t *testing.T) {
	cart := []domain.CartLineItem{plainLine("SP001", 60000, 4)}
	opts := fixedSuffix("first", "second")

	first, err := Apply(cart, coffeePairRule(), testCatalog(), opts)
	require.NoError(t, err)
	require.Len(t, first.Cart, 2)
	assert.Equal(t, 2, first.Cart[0].Quantity)

	second, err := Apply(first.Cart, coffeePairRule(), testCatalog(), opts)
	require.NoError(t, err)
	require.Len(t, second.Cart, 2)
	assert.True(t, second.Cart[0].IsCombo)
	assert.True(t, second.Cart[1].IsCombo)
	assert.NotEqual(t, second.Cart[0].ID, second.Cart[1].ID)

	customized, err := Customize(second.Cart, second.Cart[1].ID, 0, testCatalog()["SP003"], coffeePairRule())
	require.NoError(t, err)
	assert.Equal(t, int64(108000), customized[0].Price)
	assert.Equal(t, int64(85500), customized[1].Price)
}

func TestApplyConservesValue(t *testing.T) {
	cart := []domain.CartLineItem{
		plainLine("SP001", 60000, 3),
		plainLine("SP002", 30000, 2),
		plainLine("SP005", 55000, 1),
	}
	before := CartTotal(cart)

	app, err := Apply(cart, breakfastRule(), testCatalog(), Options{})
	require.NoError(t, err)

	assert.Equal(t, before-(app.OriginalPrice-app.FinalPrice), CartTotal(app.Cart))
	assert.Equal(t, 2, app.Cart[PlainIndex(app.Cart, "SP001")].Quantity)
	assert.Equal(t, 1, app.Cart[PlainIndex(app.Cart, "SP002")].Quantity)
	assert.Equal(t, int64(60000), app.Cart[PlainIndex(app.Cart, "SP001")].Price)
}

func TestApplyCategoryAllocatesInAscendingIDOrder(t *testing.T) {
	cart := []domain.CartLineItem{
		plainLine("SP004", 45000, 2),
		plainLine("SP003", 35000, 1),
		plainLine("SP001", 60000, 1),
	}
	rule := coffeePairRule()
	rule.RequiredItems[0].MinQuantity = 3

	app, err := Apply(cart, rule, testCatalog(), Options{})
	require.NoError(t, err)

	ids := []string{}
	for _, unit := range app.Combo.ComboItems {
		ids = append(ids, unit.ID)
	}
	assert.Equal(t, []string{"SP001", "SP003", "SP004"}, ids)
	assert.Equal(t, -1, PlainIndex(app.Cart, "SP001"))
	assert.Equal(t, -1, PlainIndex(app.Cart, "SP003"))
	assert.Equal(t, 1, app.Cart[PlainIndex(app.Cart, "SP004")].Quantity)
}

func TestApplyItemRequirementsClaimUnitsBeforeCategories(t *testing.T) {
	rule := domain.PromotionRule{
		ID:   "mixed",
		Name: "Mixed",
		RequiredItems: []domain.RequiredItem{
			{Category: "coffee", MinQuantity: 1},
			{ItemID: "SP001", MinQuantity: 1},
		},
		Discount: domain.Discount{Type: domain.DiscountPercentage, Value: 20},
	}
	cart := []domain.CartLineItem{plainLine("SP001", 60000, 1), plainLine("SP003", 35000, 1)}

	app, err := Apply(cart, rule, testCatalog(), Options{})
	require.NoError(t, err)

	require.Len(t, app.Combo.ComboItems, 2)
	assert.Equal(t, "SP003", app.Combo.ComboItems[0].ID)
	assert.Equal(t, "SP001", app.Combo.ComboItems[1].ID)
	assert.Equal(t, int64(76000), app.FinalPrice)
}

func TestApplyShortfallLeavesCartUntouched(t *testing.T) {
	rule := domain.PromotionRule{
		ID:   "overlap",
		Name: "Overlap",
		RequiredItems: []domain.RequiredItem{
			{ItemID: "SP001", MinQuantity: 1},
			{Category: "coffee", MinQuantity: 1},
		},
		Discount: domain.Discount{Type: domain.DiscountFixed, Value: 1000},
	}
	cart := []domain.CartLineItem{plainLine("SP001", 60000, 1)}
	snapshot := CloneCart(cart)

	assert.True(t, IsEligible(cart, rule, testCatalog()))

	_, err := Apply(cart, rule, testCatalog(), Options{})
	require.ErrorIs(t, err, ErrAllocationShortfall)
	assert.Equal(t, snapshot, cart)
}

func TestApplyInvalidRule(t *testing.T) {
	_, err := Apply([]domain.CartLineItem{plainLine("SP001", 60000, 2)}, domain.PromotionRule{ID: "x"}, testCatalog(), Options{})
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestApplyNeverLeavesNegativeOrZeroQuantities(t *testing.T) {
	cart := []domain.CartLineItem{plainLine("SP001", 60000, 5), plainLine("SP003", 35000, 2)}
	rules := []domain.PromotionRule{coffeePairRule()}

	for i := 0; i < 10; i++ {
		app, err := Apply(cart, rules[0], testCatalog(), Options{})
		if err != nil {
			require.ErrorIs(t, err, ErrAllocationShortfall)
			break
		}
		cart = app.Cart
		for _, line := range cart {
			assert.Greater(t, line.Quantity, 0, fmt.Sprintf("iteration %d line %s", i, line.ID))
		}
	}

	comboCount := 0
	for _, line := range cart {
		if line.IsCombo {
			comboCount++
			continue
		}
		assert.Equal(t, "SP003", line.ID)
		assert.Equal(t, 1, line.Quantity)
	}
	assert.Equal(t, 3, comboCount)
}

func TestPriceBundle(t *testing.T) {
	cases := []struct {
		name     string
		original int64
		discount domain.Discount
		want     int64
	}{
		{"percentage", 120000, domain.Discount{Type: domain.DiscountPercentage, Value: 10}, 108000},
		{"percentage rounds half away from zero", 15, domain.Discount{Type: domain.DiscountPercentage, Value: 10}, 14},
		{"fractional percentage", 99999, domain.Discount{Type: domain.DiscountPercentage, Value: 12.5}, 87499},
		{"fixed", 70000, domain.Discount{Type: domain.DiscountFixed, Value: 5000}, 65000},
		{"fixed clamps to zero", 3000, domain.Discount{Type: domain.DiscountFixed, Value: 5000}, 0},
		{"percentage over hundred clamps", 3000, domain.Discount{Type: domain.DiscountPercentage, Value: 150}, 0},
		{"unknown type keeps price", 3000, domain.Discount{Type: "bogus", Value: 10}, 3000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PriceBundle(tc.original, tc.discount))
		})
	}
}

func TestCustomizeRepricesWithRuleDiscount(t *testing.T) {
	cart := []domain.CartLineItem{plainLine("SP001", 60000, 2), plainLine("SP005", 55000, 1)}
	app, err := Apply(cart, coffeePairRule(), testCatalog(), fixedSuffix("c"))
	require.NoError(t, err)

	rule := coffeePairRule()
	rule.Discount.Value = 20

	updated, err := Customize(app.Cart, app.Combo.ID, 1, testCatalog()["SP004"], rule)
	require.NoError(t, err)

	line := updated[len(updated)-1]
	assert.Equal(t, "SP004", line.ComboItems[1].ID)
	assert.Equal(t, "Bạc xỉu", line.ComboItems[1].Name)
	assert.Equal(t, int64(45000), line.ComboItems[1].Price)
	assert.Equal(t, 1, line.ComboItems[1].Quantity)
	assert.Equal(t, PriceBundle(105000, rule.Discount), line.Price)
	assert.Equal(t, int64(84000), line.Price)

	assert.Equal(t, "SP001", app.Cart[len(app.Cart)-1].ComboItems[1].ID, "input cart must not be mutated")
}

func TestCustomizeErrors(t *testing.T) {
	app, err := Apply([]domain.CartLineItem{plainLine("SP001", 60000, 2), plainLine("SP002", 30000, 1)}, coffeePairRule(), testCatalog(), fixedSuffix("e"))
	require.NoError(t, err)
	replacement := testCatalog()["SP003"]

	_, err = Customize(app.Cart, "missing", 0, replacement, coffeePairRule())
	assert.ErrorIs(t, err, ErrComboNotFound)

	_, err = Customize(app.Cart, "SP002", 0, replacement, coffeePairRule())
	assert.ErrorIs(t, err, ErrComboNotFound)

	_, err = Customize(app.Cart, app.Combo.ID, 5, replacement, coffeePairRule())
	assert.ErrorIs(t, err, ErrConstituentNotFound)

	_, err = Customize(app.Cart, app.Combo.ID, 0, replacement, breakfastRule())
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestCustomizationOptionsListsSameCategoryProducts(t *testing.T) {
	app, err := Apply([]domain.CartLineItem{plainLine("SP001", 60000, 2)}, coffeePairRule(), testCatalog(), fixedSuffix("o"))
	require.NoError(t, err)

	opts, err := CustomizationOptions(app.Cart, app.Combo.ID, 0, testCatalog())
	require.NoError(t, err)

	assert.Equal(t, "SP001", opts.Current.ID)
	ids := []string{}
	for _, p := range opts.Substitutes {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"SP003", "SP004"}, ids)
}

func TestRevertRestoresConstituents(t *testing.T) {
	cart := []domain.CartLineItem{plainLine("SP001", 60000, 3), plainLine("SP002", 30000, 1)}
	before := CartTotal(cart)

	app, err := Apply(cart, breakfastRule(), testCatalog(), fixedSuffix("r"))
	require.NoError(t, err)

	reverted, err := Revert(app.Cart, app.Combo.ID)
	require.NoError(t, err)

	assert.Equal(t, before, CartTotal(reverted))
	assert.Equal(t, 3, reverted[PlainIndex(reverted, "SP001")].Quantity)
	assert.Equal(t, 1, reverted[PlainIndex(reverted, "SP002")].Quantity)
	for _, line := range reverted {
		assert.False(t, line.IsCombo)
	}

	_, err = Revert(reverted, app.Combo.ID)
	assert.ErrorIs(t, err, ErrComboNotFound)
}

func TestToggleExpanded(t *testing.T) {
	app, err := Apply([]domain.CartLineItem{plainLine("SP001", 60000, 2)}, coffeePairRule(), testCatalog(), fixedSuffix("t"))
	require.NoError(t, err)

	toggled, err := ToggleExpanded(app.Cart, app.Combo.ID)
	require.NoError(t, err)
	assert.True(t, toggled[0].ComboExpanded)
	assert.False(t, app.Cart[0].ComboExpanded)
}

func TestDismissalSetFiltersSuggestions(t *testing.T) {
	suggestions := []domain.ComboSuggestion{
		{ComboID: "a", Eligible: true},
		{ComboID: "b", Eligible: true},
		{ComboID: "c", Eligible: false},
	}
	dismissed := NewDismissalSet("b")

	visible := VisibleSuggestions(suggestions, dismissed)
	require.Len(t, visible, 1)
	assert.Equal(t, "a", visible[0].ComboID)

	dismissed.Add("a")
	assert.Empty(t, VisibleSuggestions(suggestions, dismissed))
	assert.Equal(t, []string{"a", "b"}, dismissed.IDs())

	dismissed.Clear()
	assert.Len(t, VisibleSuggestions(suggestions, dismissed), 2)
	assert.Len(t, VisibleSuggestions(suggestions, nil), 2)
}

func TestValidateRule(t *testing.T) {
	assert.NoError(t, ValidateRule(coffeePairRule()))

	bad := coffeePairRule()
	bad.Discount.Value = -1
	assert.ErrorIs(t, ValidateRule(bad), ErrInvalidRule)

	bad = coffeePairRule()
	bad.Discount.Type = "bogo"
	assert.ErrorIs(t, ValidateRule(bad), ErrInvalidRule)

	_, err := FindRule([]domain.PromotionRule{coffeePairRule()}, "nope")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}
