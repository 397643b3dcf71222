package models

import "time"

// InvoiceExtraction is the output of the upstream AI document
// extractor. It is stored as-is and can later be promoted into a draft
// invoice; extraction accuracy is the extractor's problem, not ours.
type InvoiceExtraction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"not null;index" json:"workspace_id"`
	VendorName  string    `json:"vendor_name"`
	Type        string    `gorm:"not null;default:'payable'" json:"type"`
	Total       float64   `json:"total"`
	Currency    string    `json:"currency"`
	IssueDate   time.Time `json:"issue_date"`
	DueDate     time.Time `json:"due_date"`
	Confidence  float64   `json:"confidence"`
	RawJSON     string    `gorm:"type:text" json:"-"`
	// InvoiceID is set once the extraction has been promoted.
	InvoiceID *uint     `json:"invoice_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
