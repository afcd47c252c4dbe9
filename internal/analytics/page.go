package analytics

import (
	"sort"
	"strings"
)

// Page size bounds.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// DefaultOrdering ranks breakeven trend rows by profit, highest first.
const DefaultOrdering = "-profit"

// Pagination contains metadata for a paginated in-memory result.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Count      int `json:"count"`
	TotalPages int `json:"total_pages"`
}

// Paginate normalises page and size. Page is at least 1 and size is clamped
// to 1..MaxPageSize with DefaultPageSize for unset values.
func Paginate(total, page, size int) Pagination {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if page <= 0 {
		page = 1
	}
	return Pagination{Page: page, PageSize: size, Count: total, TotalPages: (total + size - 1) / size}
}

// Window returns the [start, end) slice bounds of the page. Pages past the
// end yield an empty window.
func (p Pagination) Window() (int, int) {
	start := (p.Page - 1) * p.PageSize
	if start >= p.Count {
		return p.Count, p.Count
	}
	end := start + p.PageSize
	if end > p.Count {
		end = p.Count
	}
	return start, end
}

// PageOf slices items to the page described by p.
func PageOf[T any](items []T, p Pagination) []T {
	start, end := p.Window()
	if start >= len(items) {
		return []T{}
	}
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

var trendFields = map[string]func(a, b TrendRow) int{
	"period":       func(a, b TrendRow) int { return a.Period.Compare(b.Period) },
	"revenue":      func(a, b TrendRow) int { return a.Revenue.Cmp(b.Revenue) },
	"cost":         func(a, b TrendRow) int { return a.Cost.Cmp(b.Cost) },
	"profit":       func(a, b TrendRow) int { return a.Profit.Cmp(b.Profit) },
	"margin_ratio": func(a, b TrendRow) int { return a.MarginRatio.Cmp(b.MarginRatio) },
	"units":        func(a, b TrendRow) int { return compareInt(a.Units, b.Units) },
	"variance":     func(a, b TrendRow) int { return compareOptional(a.Variance, b.Variance) },
}

// OrderingFields lists the accepted trend ordering fields.
func OrderingFields() []string {
	fields := make([]string, 0, len(trendFields))
	for name := range trendFields {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// ValidOrdering reports whether ordering names a known field, optionally
// prefixed with '-' for descending order.
func ValidOrdering(ordering string) bool {
	_, ok := trendFields[strings.TrimPrefix(ordering, "-")]
	return ok
}

// SortTrend returns a stably sorted copy of rows. Unknown fields leave the
// chronological order untouched.
func SortTrend(rows []TrendRow, ordering string) []TrendRow {
	sorted := append([]TrendRow(nil), rows...)
	desc := strings.HasPrefix(ordering, "-")
	cmp, ok := trendFields[strings.TrimPrefix(ordering, "-")]
	if !ok {
		return sorted
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if desc {
			return cmp(sorted[i], sorted[j]) > 0
		}
		return cmp(sorted[i], sorted[j]) < 0
	})
	return sorted
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareOptional orders nil before any value.
func compareOptional(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return compareInt(*a, *b)
}
