package application

import (
	"strings"

	"github.com/tmorling/credvault/internal/domain/model"
)

// PageSizeOptions is the fixed set of page sizes the UI offers.
var PageSizeOptions = []int{25, 50, 100}

// DefaultPageSize is used when no page size, or an unsupported one, is
// requested.
const DefaultPageSize = 25

// Query is the filter input for the credential pipeline. Zero-valued fields
// match everything; all active constraints are AND-composed.
type Query struct {
	Search   string
	Category string
	Range    string
	Branch   string
}

// Page is one contiguous window of a filtered credential sequence plus the
// pagination metadata needed to render controls.
type Page struct {
	Items      []model.Credential
	Page       int
	PageSize   int
	TotalPages int
	TotalItems int
}

// Filter reduces the collection to records matching the query. The filter is
// stable: result order equals input order.
func Filter(creds []model.Credential, q Query) []model.Credential {
	out := []model.Credential{}
	for _, c := range creds {
		if matches(c, q) {
			out = append(out, c)
		}
	}
	return out
}

func matches(c model.Credential, q Query) bool {
	if q.Category != "" && c.Category != q.Category {
		return false
	}
	if q.Range != "" && !contains(c.Ranges, q.Range) {
		return false
	}
	if q.Branch != "" && !contains(c.Branch, q.Branch) {
		return false
	}
	return matchesSearch(c, q.Search)
}

// matchesSearch reports whether the search text is a case-insensitive
// substring of any searchable field. Empty search text matches everything.
func matchesSearch(c model.Credential, search string) bool {
	if search == "" {
		return true
	}

	needle := strings.ToLower(search)
	fields := []string{
		c.Category,
		c.Name,
		c.Designation,
		c.LoginID,
		c.Mobile,
		c.EmailURL,
		c.Remarks,
	}
	fields = append(fields, c.Ranges...)
	fields = append(fields, c.Branch...)

	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func contains(set []string, value string) bool {
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}

// Paginate slices a contiguous page window out of the filtered sequence.
// An unsupported page size falls back to the default. When the requested
// page exceeds the total page count (the filtered set shrank under the
// current position), the effective page resets to 1; that overflow guard is
// the only automatic page reset.
func Paginate(items []model.Credential, page, pageSize int) Page {
	if !validPageSize(pageSize) {
		pageSize = DefaultPageSize
	}

	total := len(items)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	if page < 1 || page > totalPages {
		page = 1
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page{
		Items:      items[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		TotalItems: total,
	}
}

func validPageSize(size int) bool {
	for _, s := range PageSizeOptions {
		if s == size {
			return true
		}
	}
	return false
}
