package domain

import "time"

// Session binds a browser session to the bearer credential and catalog it
// operates on.
type Session struct {
	ID          string    `json:"id"`
	AccessToken string    `json:"access_token"`
	CatalogID   string    `json:"catalog_id"`
	CreatedAt   time.Time `json:"created_at"`
}
