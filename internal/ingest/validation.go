package ingest

import (
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/penshort/linkpulse/internal/model"
)

// ValidatePayload validates stream payload fields.
func ValidatePayload(payload ClickPayload) error {
	if payload.ID == "" {
		return fmt.Errorf("id is required")
	}
	if _, err := ulid.ParseStrict(payload.ID); err != nil {
		return fmt.Errorf("id must be a ULID: %w", err)
	}
	if payload.LinkID == "" {
		return fmt.Errorf("link_id is required")
	}
	if payload.UserID != nil && *payload.UserID == "" {
		return fmt.Errorf("user_id must not be empty when set")
	}
	if payload.IPAddress == "" {
		return fmt.Errorf("ip is required")
	}
	if payload.UserAgent == "" {
		return fmt.Errorf("user_agent is required")
	}
	if len(payload.UserAgent) > model.MaxUserAgentLength {
		return fmt.Errorf("user_agent too long")
	}
	if payload.ClickedAt <= 0 {
		return fmt.Errorf("clicked_at must be set")
	}
	return nil
}
