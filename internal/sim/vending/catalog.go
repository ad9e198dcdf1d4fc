package vending

import "strings"

// Product is one supplier catalog entry. BaseDemand is the expected
// units sold per day when priced at suggested retail.
type Product struct {
	Name       string  `json:"name"`
	Wholesale  float64 `json:"wholesale"`
	Retail     float64 `json:"retail"`
	Size       string  `json:"size"`
	BaseDemand float64 `json:"base_demand"`
}

// The supplier catalog is fixed for reproducibility; runs differ only in
// seed, not in what can be bought.
var catalog = []Product{
	{Name: "COLA", Wholesale: 0.45, Retail: 1.50, Size: SizeSmall, BaseDemand: 6},
	{Name: "DIET_COLA", Wholesale: 0.45, Retail: 1.50, Size: SizeSmall, BaseDemand: 4},
	{Name: "WATER", Wholesale: 0.20, Retail: 1.00, Size: SizeSmall, BaseDemand: 7},
	{Name: "JUICE", Wholesale: 0.70, Retail: 2.00, Size: SizeSmall, BaseDemand: 3},
	{Name: "ENERGY_DRINK", Wholesale: 1.10, Retail: 3.00, Size: SizeSmall, BaseDemand: 4},
	{Name: "CHIPS", Wholesale: 0.50, Retail: 1.75, Size: SizeMedium, BaseDemand: 5},
	{Name: "PRETZELS", Wholesale: 0.55, Retail: 1.75, Size: SizeMedium, BaseDemand: 3},
	{Name: "CANDY_BAR", Wholesale: 0.60, Retail: 1.85, Size: SizeMedium, BaseDemand: 5},
	{Name: "COOKIES", Wholesale: 0.65, Retail: 2.00, Size: SizeMedium, BaseDemand: 4},
	{Name: "TRAIL_MIX", Wholesale: 0.90, Retail: 2.50, Size: SizeMedium, BaseDemand: 2},
	{Name: "PROTEIN_BAR", Wholesale: 1.20, Retail: 3.25, Size: SizeLarge, BaseDemand: 3},
	{Name: "SANDWICH", Wholesale: 2.10, Retail: 5.00, Size: SizeLarge, BaseDemand: 2},
}

func productByName(name string) *Product {
	for i := range catalog {
		if catalog[i].Name == name {
			return &catalog[i]
		}
	}
	return nil
}

func searchCatalog(query string) []Product {
	if query == "" {
		out := make([]Product, len(catalog))
		copy(out, catalog)
		return out
	}
	q := strings.ToUpper(query)
	var out []Product
	for _, p := range catalog {
		if strings.Contains(p.Name, q) || strings.EqualFold(p.Size, query) {
			out = append(out, p)
		}
	}
	return out
}
