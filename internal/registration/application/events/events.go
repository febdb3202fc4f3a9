package events

import "time"

// DraftCreated is published when a registration session starts.
type DraftCreated struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	Flow       string    `json:"flow"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ProfileSaved is published after the customer profile was persisted
// upstream during the profile step.
type ProfileSaved struct {
	SessionID  string    `json:"session_id"`
	CustomerID string    `json:"customer_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FacilityRegistered is published after a successful final submission.
type FacilityRegistered struct {
	SessionID  string    `json:"session_id"`
	FacilityID string    `json:"facility_id"`
	XRGIID     string    `json:"xrgi_id"`
	Updated    bool      `json:"updated"`
	OccurredAt time.Time `json:"occurred_at"`
}
