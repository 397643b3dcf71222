package models

import "time"

// Invoice types.
const (
	InvoiceTypeReceivable = "receivable" // money owed to the workspace
	InvoiceTypePayable    = "payable"    // money owed by the workspace
)

// Invoice statuses. paid/partially_paid are derived from matched
// payments and written only by the reconciliation orchestrator.
const (
	InvoiceStatusDraft         = "draft"
	InvoiceStatusApproved      = "approved"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusPartiallyPaid = "partially_paid"
)

type Invoice struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"not null;index" json:"workspace_id"`
	Type        string    `gorm:"not null" json:"type"` // receivable, payable
	Status      string    `gorm:"not null;default:'draft'" json:"status"`
	Total       float64   `gorm:"not null" json:"total"`
	Currency    string    `gorm:"not null" json:"currency"`
	IssueDate   time.Time `json:"issue_date"`
	DueDate     time.Time `json:"due_date"`
	Matches     []Match   `gorm:"foreignKey:InvoiceID" json:"matches,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Overdue is derived at read time, never stored: an invoice past its
// due date that still awaits payment activity.
func (i *Invoice) Overdue(now time.Time) bool {
	if i.Status != InvoiceStatusApproved && i.Status != InvoiceStatusPartiallyPaid {
		return false
	}
	return i.DueDate.Before(now)
}

// UnpaidStatus is the status an invoice reverts to when its last match
// is removed. "Unpaid" means different defaults for the two types.
func (i *Invoice) UnpaidStatus() string {
	if i.Type == InvoiceTypePayable {
		return InvoiceStatusApproved
	}
	return InvoiceStatusDraft
}
