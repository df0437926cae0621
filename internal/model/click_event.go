// Package model defines domain entities for the application.
package model

import "time"

// UnknownLocation marks a geolocation field the provider omitted.
// It differs from nil, which means no lookup was attempted.
const UnknownLocation = "unknown"

// ClickEvent represents a single recorded visit of a short link.
type ClickEvent struct {
	ID     string  `json:"id"`      // ULID (time-sortable)
	LinkID string  `json:"link_id"` // FK to links.id, immutable
	UserID *string `json:"user_id,omitempty"`

	// Request metadata
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`

	// Enrichment
	Country *string `json:"country"`
	City    *string `json:"city"`
	Device  string  `json:"device"`
	Browser string  `json:"browser"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClickDetail is a click together with its link and, when attributed, the
// user who made it.
type ClickDetail struct {
	*ClickEvent
	Link *Link        `json:"link,omitempty"`
	User *UserSummary `json:"user,omitempty"`
}

// Location is the result of a geolocation lookup.
type Location struct {
	Country *string `json:"country"`
	City    *string `json:"city"`
}

// NewLocation builds a resolved location, mapping empty fields to UnknownLocation.
func NewLocation(country, city string) Location {
	if country == "" {
		country = UnknownLocation
	}
	if city == "" {
		city = UnknownLocation
	}
	return Location{Country: &country, City: &city}
}

// IsResolved reports whether a lookup produced a value.
func (l Location) IsResolved() bool {
	return l.Country != nil || l.City != nil
}

// MaxUserAgentLength bounds the stored user agent, in bytes.
const MaxUserAgentLength = 1024

// ClickCapture holds the raw request facts of a click before enrichment.
// Its ID becomes the stored event ID, so replaying a capture is idempotent.
type ClickCapture struct {
	ID        string
	LinkID    string
	UserID    *string
	IPAddress string
	UserAgent string
	ClickedAt time.Time
}
