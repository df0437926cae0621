// Package model defines domain entities for the application.
package model

import (
	"strconv"
	"time"
)

// Link is a shortened URL. It is owned by the link management service and
// read-only here.
type Link struct {
	ID          string    `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	Title       string    `json:"title,omitempty"`
	UserID      *string   `json:"user_id,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LinkWithClicks is a link together with its recorded clicks and owner.
type LinkWithClicks struct {
	Link
	Owner  *UserSummary  `json:"user,omitempty"`
	Clicks []*ClickEvent `json:"clicks"`
}

// CachedLink represents link data stored in Redis cache.
// Uses string types for Redis hash compatibility.
type CachedLink struct {
	ID          string `redis:"id"`
	OriginalURL string `redis:"original_url"`
	IsActive    string `redis:"is_active"`  // "1" or "0"
	UpdatedAt   string `redis:"updated_at"` // Unix timestamp
}

// ToLink converts CachedLink to Link domain model.
func (c *CachedLink) ToLink(shortCode string) *Link {
	link := &Link{
		ID:          c.ID,
		ShortCode:   shortCode,
		OriginalURL: c.OriginalURL,
		IsActive:    c.IsActive == "1",
	}

	if c.UpdatedAt != "" {
		if ts, err := strconv.ParseInt(c.UpdatedAt, 10, 64); err == nil {
			link.UpdatedAt = time.Unix(ts, 0)
		}
	}

	return link
}

// ToCachedLink converts Link domain model to CachedLink.
func (l *Link) ToCachedLink() *CachedLink {
	return &CachedLink{
		ID:          l.ID,
		OriginalURL: l.OriginalURL,
		IsActive:    boolToString(l.IsActive),
		UpdatedAt:   strconv.FormatInt(l.UpdatedAt.Unix(), 10),
	}
}

// boolToString converts boolean to "1" or "0".
func boolToString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
