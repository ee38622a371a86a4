package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/utafrali/catalog-sync/internal/domain"
)

const (
	productFields = "id,retailer_id,name,description,brand,url,currency,price,sale_price," +
		"inventory,image_url,additional_image_urls,video,review_status,review_rejection_reasons"
	statusFields = "id,review_status,review_rejection_reasons"
	setFields    = "id,name,filter"
	memberFields = "id"
)

// minorUnits decodes a provider price given either as a number or a
// numeric string.
type minorUnits int64

func (m *minorUnits) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*m = 0
		return nil
	}

	s := string(data)
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
		if s == "" {
			*m = 0
			return nil
		}
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("price %s is not in minor units: %w", string(data), err)
	}
	*m = minorUnits(v)
	return nil
}

// videoList accepts a bare array of {url} or a {"data": [...]} edge.
type videoList []struct {
	URL string `json:"url"`
}

func (v *videoList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*v = nil
		return nil
	}
	if data[0] == '{' {
		var edge struct {
			Data []struct {
				URL string `json:"url"`
			} `json:"data"`
		}
		if err := json.Unmarshal(data, &edge); err != nil {
			return err
		}
		*v = edge.Data
		return nil
	}
	var list []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*v = list
	return nil
}

func (v videoList) first() string {
	for _, item := range v {
		if item.URL != "" {
			return item.URL
		}
	}
	return ""
}

type remoteProduct struct {
	ID                  string      `json:"id"`
	RetailerID          string      `json:"retailer_id"`
	Name                string      `json:"name"`
	Description         string      `json:"description"`
	Brand               string      `json:"brand"`
	URL                 string      `json:"url"`
	Currency            string      `json:"currency"`
	Price               minorUnits  `json:"price"`
	SalePrice           *minorUnits `json:"sale_price"`
	Inventory           *int        `json:"inventory"`
	ImageURL            string      `json:"image_url"`
	AdditionalImageURLs []string    `json:"additional_image_urls"`
	Video               videoList   `json:"video"`
	ReviewStatus        string      `json:"review_status"`
	RejectionReasons    []string    `json:"review_rejection_reasons"`
}

func (r remoteProduct) toDomain() domain.Product {
	inventory := 0
	if r.Inventory != nil {
		inventory = *r.Inventory
	}

	p := domain.Product{
		ID:                  r.ID,
		RetailerID:          r.RetailerID,
		Name:                r.Name,
		Description:         r.Description,
		Brand:               r.Brand,
		Link:                r.URL,
		Currency:            r.Currency,
		Price:               domain.FromMinorUnits(int64(r.Price)),
		Inventory:           inventory,
		Availability:        domain.AvailabilityFor(inventory),
		ImageURL:            r.ImageURL,
		AdditionalImageURLs: r.AdditionalImageURLs,
		VideoURL:            r.Video.first(),
		ReviewStatus:        domain.ParseReviewStatus(r.ReviewStatus),
		RejectionReasons:    nonNil(r.RejectionReasons),
	}
	if r.SalePrice != nil && *r.SalePrice > 0 {
		sale := domain.FromMinorUnits(int64(*r.SalePrice))
		p.SalePrice = &sale
	}
	return p
}

func (r remoteProduct) moderation() domain.ModerationStatus {
	return domain.ModerationStatus{
		ReviewStatus:     domain.ParseReviewStatus(r.ReviewStatus),
		RejectionReasons: nonNil(r.RejectionReasons),
	}
}

// createPayload is the provider body for a new product.
func createPayload(sku string, p domain.NewProduct) map[string]any {
	payload := map[string]any{
		"retailer_id":  sku,
		"name":         p.Name,
		"description":  p.Description,
		"url":          p.Link,
		"currency":     p.Currency,
		"price":        domain.ToMinorUnits(p.Price),
		"inventory":    p.Inventory,
		"availability": string(domain.AvailabilityFor(p.Inventory)),
		"condition":    "new",
		"image_url":    p.ImageURL,
	}
	if p.Brand != "" {
		payload["brand"] = p.Brand
	}
	if p.SalePrice != nil {
		payload["sale_price"] = domain.ToMinorUnits(*p.SalePrice)
	}
	if len(p.AdditionalImageURLs) > 0 {
		payload["additional_image_urls"] = p.AdditionalImageURLs
	}
	if p.VideoURL != "" {
		payload["video"] = []map[string]string{{"url": p.VideoURL}}
	}
	return payload
}

// updatePayload holds only the fields present in u. A new inventory always
// travels with its derived availability.
func updatePayload(u domain.ProductUpdate) map[string]any {
	payload := make(map[string]any)
	setString := func(key string, v *string) {
		if v != nil {
			payload[key] = *v
		}
	}

	setString("name", u.Name)
	setString("description", u.Description)
	setString("brand", u.Brand)
	setString("url", u.Link)
	setString("currency", u.Currency)
	setString("image_url", u.ImageURL)

	if u.Price != nil {
		payload["price"] = domain.ToMinorUnits(*u.Price)
	}
	if u.SalePrice != nil {
		payload["sale_price"] = domain.ToMinorUnits(*u.SalePrice)
	}
	if u.Inventory != nil {
		payload["inventory"] = *u.Inventory
		payload["availability"] = string(domain.AvailabilityFor(*u.Inventory))
	}
	if u.AdditionalImageURLs != nil {
		payload["additional_image_urls"] = nonNil(*u.AdditionalImageURLs)
	}
	if u.VideoURL != nil {
		if *u.VideoURL == "" {
			payload["video"] = []map[string]string{}
		} else {
			payload["video"] = []map[string]string{{"url": *u.VideoURL}}
		}
	}
	return payload
}

// productFromInput is what the caller gets back for a freshly created product.
func productFromInput(id, sku string, p domain.NewProduct) domain.Product {
	return domain.Product{
		ID:                  id,
		RetailerID:          sku,
		Name:                p.Name,
		Description:         p.Description,
		Brand:               p.Brand,
		Link:                p.Link,
		Currency:            p.Currency,
		Price:               storedPrice(p.Price),
		SalePrice:           storedSalePrice(p.SalePrice),
		Inventory:           p.Inventory,
		Availability:        domain.AvailabilityFor(p.Inventory),
		ImageURL:            p.ImageURL,
		AdditionalImageURLs: p.AdditionalImageURLs,
		VideoURL:            p.VideoURL,
		ReviewStatus:        domain.ReviewPending,
		RejectionReasons:    []string{},
	}
}

// storedPrice is v as the provider keeps it, in whole minor units.
func storedPrice(v float64) float64 {
	return domain.FromMinorUnits(domain.ToMinorUnits(v))
}

func storedSalePrice(v *float64) *float64 {
	if v == nil {
		return nil
	}
	p := storedPrice(*v)
	return &p
}

type remoteSet struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Filter json.RawMessage `json:"filter"`
}

type idBody struct {
	ID string `json:"id"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
