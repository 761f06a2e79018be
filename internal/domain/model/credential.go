package model

// Credential is a single login-credential record. The JSON field names form
// the persisted slot payload contract and must not change without moving the
// collection to a new slot key.
//
// Password is stored in clear text. The original system never encrypted the
// collection at rest; that gap is preserved deliberately rather than papered
// over, and is documented in DESIGN.md.
type Credential struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Designation string   `json:"designation"`
	Ranges      []string `json:"ranges"`
	Branch      []string `json:"branch"`
	LoginID     string   `json:"loginId"`
	Password    string   `json:"password"`
	Mobile      string   `json:"mobile"`
	EmailURL    string   `json:"emailUrl"`
	Remarks     string   `json:"remarks"`
	CreatedAt   int64    `json:"createdAt"` // epoch milliseconds, set once at creation
	UpdatedAt   int64    `json:"updatedAt"` // epoch milliseconds, refreshed on every mutation
}

// CredentialForm carries the editable fields of a credential as submitted by
// a caller. ID and timestamps are owned by the repository and never accepted
// from callers.
type CredentialForm struct {
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Designation string   `json:"designation"`
	Ranges      []string `json:"ranges"`
	Branch      []string `json:"branch"`
	LoginID     string   `json:"loginId"`
	Password    string   `json:"password"`
	Mobile      string   `json:"mobile"`
	EmailURL    string   `json:"emailUrl"`
	Remarks     string   `json:"remarks"`
}

// CategoryOptions is the fixed category list offered by the form layer.
var CategoryOptions = []string{
	"Banking",
	"Email",
	"Portal",
	"Software",
	"Other",
}

// RangesOptions is the fixed multi-select option list for the Ranges field.
var RangesOptions = []string{
	"Range I",
	"Range II",
	"Range III",
	"Range IV",
	"Range V",
}

// BranchOptions is the fixed multi-select option list for the Branch field.
var BranchOptions = []string{
	"Head Office",
	"Regional Office",
	"Branch Office",
	"Sub Office",
}

// Theme is the UI theme flag persisted alongside the credential slot.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme maps a stored or submitted value to a Theme, falling back to
// light for anything unrecognized (the same fallback the UI applies on load).
func ParseTheme(s string) Theme {
	if s == string(ThemeDark) {
		return ThemeDark
	}
	return ThemeLight
}
