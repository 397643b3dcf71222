package models

import "time"

// Match methods.
const (
	MatchMethodAuto   = "auto"
	MatchMethodManual = "manual"
)

// Match links exactly one payment to one invoice. The unique index on
// PaymentID enforces at most one active match per payment, so two
// concurrent match attempts against the same payment cannot both
// succeed.
type Match struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"not null;index" json:"workspace_id"`
	InvoiceID   uint      `gorm:"not null;index" json:"invoice_id"`
	PaymentID   uint      `gorm:"not null;uniqueIndex:ux_matches_payment" json:"payment_id"`
	Score       float64   `gorm:"not null" json:"score"`  // 0.0 - 1.0 confidence
	Method      string    `gorm:"not null" json:"method"` // auto, manual
	Reason      string    `json:"reason"`
	Payment     Payment   `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
