package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment sources.
const (
	PaymentSourceProcessor = "processor"
	PaymentSourceManual    = "manual"
)

// Payment statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusRefunded  = "refunded"
	PaymentStatusDisputed  = "disputed"
)

// Payment directions.
const (
	PaymentDirectionReceived = "received"
	PaymentDirectionPaid     = "paid"
)

// Payment is a recorded movement of money. ExternalID is the
// processor's idempotency key; the composite unique index collapses
// retried webhook deliveries into a single row per workspace+source.
type Payment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"not null;index;uniqueIndex:ux_payments_ws_source_ext,priority:1" json:"workspace_id"`
	Source      string    `gorm:"not null;uniqueIndex:ux_payments_ws_source_ext,priority:2" json:"source"`
	ExternalID  *string   `gorm:"uniqueIndex:ux_payments_ws_source_ext,priority:3" json:"external_id,omitempty"`
	Amount      float64   `gorm:"not null" json:"amount"` // gross
	Fee         float64   `json:"fee"`
	Net         float64   `json:"net"`
	Currency    string    `gorm:"not null" json:"currency"`
	Direction   string    `gorm:"not null;default:'received'" json:"direction"`
	Status      string    `gorm:"not null;default:'pending'" json:"status"`
	ReceivedAt  time.Time `json:"received_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeSave recomputes Net from Amount and Fee. Callers never get to
// store a net that disagrees with the gross/fee breakdown.
func (p *Payment) BeforeSave(_ *gorm.DB) error {
	p.Net = p.Amount - p.Fee
	return nil
}
