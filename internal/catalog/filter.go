package catalog

import (
	"sort"
	"strings"

	"storefront-service/internal/models"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Sort orders understood by Filter
const (
	SortDefault   = ""
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNameAsc   = "name_asc"
	SortNameDesc  = "name_desc"
	SortPopular   = "popular"
	SortNew       = "new"
	SortRating    = "rating"
)

// Virtual categories backed by product flags
const (
	CategoryAll     = "all"
	CategorySale    = "sale"
	CategoryNew     = "new"
	CategoryPopular = "popular"
)

// Query is a catalog search as issued by the product grid
type Query struct {
	Search   string `form:"q"`
	Category string `form:"category"`
	Sort     string `form:"sort"`
}

// Filter returns the matching products in the requested order. The input is not modified.
func Filter(products []models.Product, q Query) []models.Product {
	term := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if matchesSearch(p, term) && matchesCategory(p, q.Category) {
			out = append(out, p)
		}
	}

	sortProducts(out, q.Sort)
	return out
}

func matchesSearch(p models.Product, term string) bool {
	if term == "" {
		return true
	}
	fields := []string{p.Name, p.Volume, p.Description, strings.Join(p.Tags, " ")}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func matchesCategory(p models.Product, category string) bool {
	switch category {
	case "", CategoryAll:
		return true
	case p.Category:
		return true
	case CategorySale:
		return p.IsSale
	case CategoryNew:
		return p.IsNew
	case CategoryPopular:
		return p.IsPopular
	}
	return false
}

func sortProducts(products []models.Product, order string) {
	var less func(a, b models.Product) bool

	switch order {
	case SortPriceAsc:
		less = func(a, b models.Product) bool { return a.Price < b.Price }
	case SortPriceDesc:
		less = func(a, b models.Product) bool { return a.Price > b.Price }
	case SortNameAsc, SortNameDesc:
		col := collate.New(language.Russian, collate.IgnoreCase)
		desc := order == SortNameDesc
		less = func(a, b models.Product) bool {
			cmp := col.CompareString(a.Name, b.Name)
			if desc {
				return cmp > 0
			}
			return cmp < 0
		}
	case SortPopular:
		less = func(a, b models.Product) bool { return a.IsPopular && !b.IsPopular }
	case SortNew:
		less = func(a, b models.Product) bool { return a.IsNew && !b.IsNew }
	case SortRating:
		less = func(a, b models.Product) bool { return a.Rating > b.Rating }
	default:
		return
	}

	sort.SliceStable(products, func(i, j int) bool {
		return less(products[i], products[j])
	})
}
