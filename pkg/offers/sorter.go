package offers

import "sort"

// Purchase is an entitling purchase held by the user, as reported by the
// platform purchase API.
type Purchase struct {
	ProductID     string
	PurchaseToken string
}

// ProductPriority ranks product ids; lower ranks sort first. Ids absent from
// the table sort after every ranked id.
type ProductPriority map[string]int

func (p ProductPriority) rank(productID string) int {
	if r, ok := p[productID]; ok {
		return r
	}
	return len(p)
}

// SortByPriority returns the purchases stably sorted ascending by priority.
// Used to pick a single canonical purchase when a user holds more than one
// simultaneously valid entitlement. The input slice is not modified.
func SortByPriority(purchases []Purchase, priority ProductPriority) []Purchase {
	sorted := make([]Purchase, len(purchases))
	copy(sorted, purchases)

	sort.SliceStable(sorted, func(i, j int) bool {
		return priority.rank(sorted[i].ProductID) < priority.rank(sorted[j].ProductID)
	})

	return sorted
}
