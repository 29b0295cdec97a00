package combo

import (
	"sort"

	"combopos/backend/internal/domain"
)

// DismissalSet holds the combo ids declined during one order session.
type DismissalSet map[string]struct{}

func NewDismissalSet(ids ...string) DismissalSet {
	set := make(DismissalSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

func (d DismissalSet) Add(comboID string) {
	if comboID == "" {
		return
	}
	d[comboID] = struct{}{}
}

func (d DismissalSet) Has(comboID string) bool {
	_, ok := d[comboID]
	return ok
}

func (d DismissalSet) Clear() {
	for id := range d {
		delete(d, id)
	}
}

// IDs returns the dismissed ids in sorted order.
func (d DismissalSet) IDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// VisibleSuggestions keeps the eligible suggestions that were not dismissed.
func VisibleSuggestions(suggestions []domain.ComboSuggestion, dismissed DismissalSet) []domain.ComboSuggestion {
	visible := make([]domain.ComboSuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if !s.Eligible || dismissed.Has(s.ComboID) {
			continue
		}
		visible = append(visible, s)
	}
	return visible
}
