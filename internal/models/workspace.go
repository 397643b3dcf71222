package models

import "time"

// Workspace is the tenant boundary. Every ledger entity belongs to
// exactly one workspace.
type Workspace struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"not null" json:"name"`
	BaseCurrency string `gorm:"not null;default:'USD'" json:"base_currency"`
	// Payment processor credentials, resolved per workspace by the
	// processor client factory.
	ProcessorAccountID string    `json:"processor_account_id"`
	ProcessorAPIKey    string    `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
