package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/tmorling/credvault/internal/application"
	"github.com/tmorling/credvault/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// CredentialResponse is the JSON representation of a credential record. The
// field names match the persisted payload contract.
type CredentialResponse struct {
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
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
}

// PageResponse is one window of the filtered collection plus pagination
// metadata.
type PageResponse struct {
	Items      []CredentialResponse `json:"items"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
	TotalPages int                  `json:"totalPages"`
	TotalItems int                  `json:"totalItems"`
}

// OptionsResponse lists the fixed option sets the form layer renders.
type OptionsResponse struct {
	Categories []string `json:"categories"`
	Ranges     []string `json:"ranges"`
	Branches   []string `json:"branches"`
	PageSizes  []int    `json:"pageSizes"`
}

// ThemeResponse is the JSON representation of the theme flag. It doubles as
// the request body for PUT.
type ThemeResponse struct {
	Theme string `json:"theme"`
}

// AvailabilityResponse is the JSON representation of an availability probe
// result. Size and contentType are present only for states that carry them.
type AvailabilityResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Size        *int64 `json:"size,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// IntegrityResponse is the JSON representation of the metadata probe.
type IntegrityResponse struct {
	Size         *int64 `json:"size,omitempty"`
	ContentType  string `json:"contentType,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ChecksumResponse carries the SHA-256 digest of the downloaded package.
type ChecksumResponse struct {
	SHA256 string `json:"sha256,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// toCredentialResponse converts a domain Credential to its JSON response
// representation.
func toCredentialResponse(c model.Credential) CredentialResponse {
	ranges := c.Ranges
	if ranges == nil {
		ranges = []string{}
	}
	branch := c.Branch
	if branch == nil {
		branch = []string{}
	}

	return CredentialResponse{
		ID:          c.ID,
		Category:    c.Category,
		Name:        c.Name,
		Designation: c.Designation,
		Ranges:      ranges,
		Branch:      branch,
		LoginID:     c.LoginID,
		Password:    c.Password,
		Mobile:      c.Mobile,
		EmailURL:    c.EmailURL,
		Remarks:     c.Remarks,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// toPageResponse converts a query pipeline page to its JSON representation.
func toPageResponse(p application.Page) PageResponse {
	items := make([]CredentialResponse, 0, len(p.Items))
	for _, c := range p.Items {
		items = append(items, toCredentialResponse(c))
	}

	return PageResponse{
		Items:      items,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
		TotalItems: p.TotalItems,
	}
}

// toAvailabilityResponse flattens the tagged availability variant for the
// wire, keeping state-specific fields optional.
func toAvailabilityResponse(a model.Availability) AvailabilityResponse {
	resp := AvailabilityResponse{
		Status:  string(a.Status()),
		Message: a.Message(),
	}

	switch v := a.(type) {
	case model.PackageAvailable:
		if v.SizeKnown {
			size := v.Size
			resp.Size = &size
		}
		resp.ContentType = v.ContentType
	case model.PackageInvalid:
		if v.SizeKnown {
			size := v.Size
			resp.Size = &size
		}
		resp.ContentType = v.ContentType
	}

	return resp
}

// toIntegrityResponse converts package metadata to its JSON representation.
func toIntegrityResponse(m *model.PackageMetadata) IntegrityResponse {
	resp := IntegrityResponse{
		ContentType:  m.ContentType,
		LastModified: m.LastModified,
		Error:        m.Advisory,
	}
	if m.SizeKnown {
		size := m.Size
		resp.Size = &size
	}
	return resp
}
