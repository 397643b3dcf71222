package models

import "time"

// WebhookEvent is an append-only audit row for every processor
// notification handed to the ingestion pipeline, including duplicates
// and dropped events. Idempotency is enforced on the payments table,
// not here.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	WorkspaceID     uint       `gorm:"index" json:"workspace_id"` // 0 when the event carried no tenant correlation
	Source          string     `gorm:"not null;index" json:"source"`
	ExternalID      string     `gorm:"not null;index" json:"external_id"`
	Kind            string     `gorm:"not null" json:"kind"`
	Amount          float64    `json:"amount"`
	Currency        string     `json:"currency"`
	OccurredAt      time.Time  `json:"occurred_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	ProcessingError string     `json:"processing_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
