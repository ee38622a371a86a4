package domain

import "strings"

// ReviewStatus is the provider's moderation verdict for a product.
type ReviewStatus string

const (
	ReviewApproved ReviewStatus = "approved"
	ReviewPending  ReviewStatus = "pending"
	ReviewRejected ReviewStatus = "rejected"
)

// ParseReviewStatus normalizes a provider value. Absent or unrecognized
// values are treated as pending.
func ParseReviewStatus(s string) ReviewStatus {
	switch ReviewStatus(strings.ToLower(strings.TrimSpace(s))) {
	case ReviewApproved:
		return ReviewApproved
	case ReviewRejected:
		return ReviewRejected
	default:
		return ReviewPending
	}
}

// Availability is the provider's stock flag, derived from inventory.
type Availability string

const (
	InStock    Availability = "in stock"
	OutOfStock Availability = "out of stock"
)

// AvailabilityFor returns InStock iff inventory is positive.
func AvailabilityFor(inventory int) Availability {
	if inventory > 0 {
		return InStock
	}
	return OutOfStock
}

// Product is a catalog item as seen by callers. Prices are in major units.
type Product struct {
	ID                  string       `json:"id"`
	RetailerID          string       `json:"retailer_id"`
	Name                string       `json:"name"`
	Description         string       `json:"description"`
	Brand               string       `json:"brand,omitempty"`
	Link                string       `json:"link,omitempty"`
	Currency            string       `json:"currency"`
	Price               float64      `json:"price"`
	SalePrice           *float64     `json:"sale_price,omitempty"`
	Inventory           int          `json:"inventory"`
	Availability        Availability `json:"availability"`
	ImageURL            string       `json:"image_url,omitempty"`
	AdditionalImageURLs []string     `json:"additional_image_urls,omitempty"`
	VideoURL            string       `json:"video_url,omitempty"`
	ReviewStatus        ReviewStatus `json:"review_status"`
	RejectionReasons    []string     `json:"rejection_reasons"`
}

// NewProduct is the caller's input for creating a product. The SKU is
// generated by the client, never supplied.
type NewProduct struct {
	Name                string   `json:"name" validate:"required,max=150"`
	Description         string   `json:"description" validate:"required,max=5000"`
	Brand               string   `json:"brand" validate:"max=100"`
	Link                string   `json:"link" validate:"required,url"`
	Currency            string   `json:"currency" validate:"required,len=3"`
	Price               float64  `json:"price" validate:"gt=0"`
	SalePrice           *float64 `json:"sale_price,omitempty" validate:"omitempty,gt=0"`
	Inventory           int      `json:"inventory" validate:"gte=0"`
	ImageURL            string   `json:"image_url" validate:"required,url"`
	AdditionalImageURLs []string `json:"additional_image_urls,omitempty" validate:"max=20,dive,url"`
	VideoURL            string   `json:"video_url,omitempty" validate:"omitempty,url"`
}

// ProductUpdate is a sparse update: nil fields are left untouched.
type ProductUpdate struct {
	Name                *string   `json:"name,omitempty" validate:"omitempty,min=1,max=150"`
	Description         *string   `json:"description,omitempty" validate:"omitempty,max=5000"`
	Brand               *string   `json:"brand,omitempty" validate:"omitempty,max=100"`
	Link                *string   `json:"link,omitempty" validate:"omitempty,url"`
	Currency            *string   `json:"currency,omitempty" validate:"omitempty,len=3"`
	Price               *float64  `json:"price,omitempty" validate:"omitempty,gt=0"`
	SalePrice           *float64  `json:"sale_price,omitempty" validate:"omitempty,gt=0"`
	Inventory           *int      `json:"inventory,omitempty" validate:"omitempty,gte=0"`
	ImageURL            *string   `json:"image_url,omitempty" validate:"omitempty,url"`
	AdditionalImageURLs *[]string `json:"additional_image_urls,omitempty"`
	VideoURL            *string   `json:"video_url,omitempty" validate:"omitempty,url"`
}

// IsEmpty reports whether the update carries no fields.
func (u ProductUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Brand == nil && u.Link == nil &&
		u.Currency == nil && u.Price == nil && u.SalePrice == nil && u.Inventory == nil &&
		u.ImageURL == nil && u.AdditionalImageURLs == nil && u.VideoURL == nil
}

// ModerationStatus is one product's entry in a status refresh.
type ModerationStatus struct {
	ReviewStatus     ReviewStatus `json:"review_status"`
	RejectionReasons []string     `json:"rejection_reasons"`
}

// StatusSnapshot maps product ID to moderation status. Products whose
// lookup failed are absent.
type StatusSnapshot map[string]ModerationStatus
