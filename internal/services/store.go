package services

import (
	"context"

	"github.com/ledgerkit/paytrack/internal/models"
)

// AmountRange bounds the invoice totals considered by the suggestion
// candidate query.
type AmountRange struct {
	Min float64
	Max float64
}

// Store is the persistence boundary of the reconciliation core. All
// lookups are workspace-scoped; a row from another workspace is
// indistinguishable from a missing one (ErrNotFound).
//
// Implementations translate their duplicate-key failures into
// ErrPaymentAlreadyMatched (matches.payment_id) and
// ErrDuplicateExternalID (payments workspace+source+external_id) so
// the core can rely on the constraints instead of read-then-write
// checks.
type Store interface {
	// InTransaction runs fn against a Store bound to a single storage
	// transaction. Any error rolls back every write made inside fn.
	InTransaction(ctx context.Context, fn func(Store) error) error

	GetWorkspace(ctx context.Context, id uint) (*models.Workspace, error)

	GetInvoice(ctx context.Context, workspaceID, id uint) (*models.Invoice, error)
	InsertInvoice(ctx context.Context, inv *models.Invoice) error
	ListInvoices(ctx context.Context, workspaceID uint) ([]models.Invoice, error)
	ListInvoicesForMatching(ctx context.Context, workspaceID uint, currency string, statusIn []string, amounts AmountRange) ([]models.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, workspaceID, id uint, status string) error

	GetPayment(ctx context.Context, workspaceID, id uint) (*models.Payment, error)
	InsertPayment(ctx context.Context, p *models.Payment) error
	ListPayments(ctx context.Context, workspaceID uint) ([]models.Payment, error)
	FindPaymentByExternalID(ctx context.Context, workspaceID uint, source, externalID string) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, workspaceID, id uint, status string) error
	DeletePayment(ctx context.Context, workspaceID, id uint) error

	GetMatch(ctx context.Context, workspaceID, id uint) (*models.Match, error)
	InsertMatch(ctx context.Context, m *models.Match) error
	UpdateMatch(ctx context.Context, m *models.Match) error
	DeleteMatch(ctx context.Context, workspaceID, id uint) error
	// FindMatchByPayment returns nil without error when the payment has
	// no active match.
	FindMatchByPayment(ctx context.Context, workspaceID, paymentID uint) (*models.Match, error)
	// ListMatchesForInvoice preloads each match's payment so balances
	// can be derived without further lookups.
	ListMatchesForInvoice(ctx context.Context, workspaceID, invoiceID uint) ([]models.Match, error)
	ListMatchesForPayment(ctx context.Context, workspaceID, paymentID uint) ([]models.Match, error)

	InsertWebhookEvent(ctx context.Context, ev *models.WebhookEvent) error
	GetExtraction(ctx context.Context, workspaceID, id uint) (*models.InvoiceExtraction, error)
	InsertExtraction(ctx context.Context, ex *models.InvoiceExtraction) error
	UpdateExtraction(ctx context.Context, ex *models.InvoiceExtraction) error
}
