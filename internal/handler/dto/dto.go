// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/penshort/linkpulse/internal/model"
)

// RecordClickRequest is the body of POST /api/v1/links/{linkID}/clicks.
// An absent or empty user_id records an anonymous click.
type RecordClickRequest struct {
	UserID *string `json:"user_id,omitempty"`
}

// ClickResponse represents a stored click in API responses.
type ClickResponse struct {
	ID        string    `json:"id"`
	LinkID    string    `json:"link_id"`
	UserID    *string   `json:"user_id,omitempty"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Country   *string   `json:"country"`
	City      *string   `json:"city"`
	Device    string    `json:"device"`
	Browser   string    `json:"browser"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToClickResponse converts a ClickEvent model to ClickResponse DTO.
func ToClickResponse(e *model.ClickEvent) *ClickResponse {
	return &ClickResponse{
		ID:        e.ID,
		LinkID:    e.LinkID,
		UserID:    e.UserID,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
		Country:   e.Country,
		City:      e.City,
		Device:    e.Device,
		Browser:   e.Browser,
		CreatedAt: e.CreatedAt,
	}
}
