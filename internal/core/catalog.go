package core

import "strings"

const (
	CategoryOther = "Other"
	SourceOthers  = "Others"
)

// CatalogEntry is a static, non-persisted name + icon pair.
type CatalogEntry struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

var categories = []CatalogEntry{
	{Name: "Food", Icon: "restaurant-outline"},
	{Name: "Transport", Icon: "bus-outline"},
	{Name: "Medicine", Icon: "medical-outline"},
	{Name: "Groceries", Icon: "cart-outline"},
	{Name: "Rent", Icon: "home-outline"},
	{Name: "Gifts", Icon: "gift-outline"},
	{Name: "Savings", Icon: "wallet-outline"},
	{Name: "Entertainment", Icon: "game-controller-outline"},
	{Name: "Shopping", Icon: "bag-handle-outline"},
	{Name: "Education", Icon: "school-outline"},
	{Name: "Bills", Icon: "receipt-outline"},
	{Name: "Travel", Icon: "airplane-outline"},
	{Name: "Fitness", Icon: "barbell-outline"},
	{Name: CategoryOther, Icon: "add-outline"},
}

var incomeSources = []CatalogEntry{
	{Name: "Salary", Icon: "briefcase-outline"},
	{Name: "Business", Icon: "storefront-outline"},
	{Name: "Investments", Icon: "trending-up-outline"},
	{Name: "Freelance", Icon: "laptop-outline"},
	{Name: "Gifts", Icon: "gift-outline"},
	{Name: "Savings", Icon: "wallet-outline"},
	{Name: "Allowance", Icon: "cash-outline"},
	{Name: SourceOthers, Icon: "ellipsis-horizontal-outline"},
}

// Categories returns the expense category catalog in display order.
func Categories() []CatalogEntry {
	return append([]CatalogEntry(nil), categories...)
}

// IncomeSources returns the income source catalog in display order.
func IncomeSources() []CatalogEntry {
	return append([]CatalogEntry(nil), incomeSources...)
}

// LookupCategory matches name case-insensitively. "More" is accepted as an
// alias of Other.
func LookupCategory(name string) (CatalogEntry, bool) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "More") {
		name = CategoryOther
	}
	return lookup(categories, name)
}

// LookupIncomeSource matches name case-insensitively.
func LookupIncomeSource(name string) (CatalogEntry, bool) {
	return lookup(incomeSources, strings.TrimSpace(name))
}

// CategoryIcon returns the icon for a category; free-form names get the
// Other icon.
func CategoryIcon(name string) string {
	if c, ok := LookupCategory(name); ok {
		return c.Icon
	}
	other, _ := lookup(categories, CategoryOther)
	return other.Icon
}

func lookup(entries []CatalogEntry, name string) (CatalogEntry, bool) {
	for _, e := range entries {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return CatalogEntry{}, false
}
