package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate caches struct metadata across calls; it is safe for concurrent use.
var validate = validator.New()

// Link is a listed property URL as served by the link-management API.
type Link struct {
	// ID is the server-assigned row id.
	ID int64 `json:"id"`

	// Number is the display position (newest link has the highest number).
	Number int `json:"number"`

	// URL of the listing. Links are identified by it on the management page.
	URL string `json:"url"`

	// Platform the listing was found on (e.g. zigbang).
	Platform string `json:"platform"`

	// AddedBy is the contributor who registered the link.
	AddedBy string `json:"added_by"`

	// DateAdded is the server-side creation date, formatted YYYY-MM-DD.
	DateAdded string `json:"date_added"`

	Rating   int  `json:"rating"`
	Liked    bool `json:"liked"`
	Disliked bool `json:"disliked"`

	Memo string `json:"memo"`

	// GuaranteeInsurance marks listings eligible for deposit guarantee insurance.
	GuaranteeInsurance bool `json:"guarantee_insurance"`

	// ResidenceExtra is only present on records that carry it.
	ResidenceExtra string `json:"residence_extra,omitempty"`
}

// Default values used when the session carries no platform or user.
const (
	DefaultPlatform = "zigbang"
	DefaultAddedBy  = "중개사"
)

// CreateLinkRequest is the JSON body of POST /api/links.
type CreateLinkRequest struct {
	URL                string `json:"url" validate:"required"`
	Platform           string `json:"platform" validate:"required"`
	AddedBy            string `json:"added_by" validate:"required"`
	Memo               string `json:"memo"`
	GuaranteeInsurance bool   `json:"guarantee_insurance"`
	ResidenceExtra     string `json:"residence_extra"`
}

// NewCreateLinkRequest builds a creation payload, falling back to the default
// platform and contributor when they are empty. ResidenceExtra is always empty.
func NewCreateLinkRequest(url, platform, addedBy, memo string, insurance bool) CreateLinkRequest {
	if platform == "" {
		platform = DefaultPlatform
	}
	if addedBy == "" {
		addedBy = DefaultAddedBy
	}
	return CreateLinkRequest{
		URL:                url,
		Platform:           platform,
		AddedBy:            addedBy,
		Memo:               memo,
		GuaranteeInsurance: insurance,
		ResidenceExtra:     "",
	}
}

// Validate checks the required fields declared in the struct tags.
func (r CreateLinkRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid link payload: %w", err)
	}
	return nil
}

// Result is the envelope returned by the write endpoints.
type Result struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}
