// Package repository implements the reconciliation core's Store
// interface on top of GORM. Domain sentinels are produced here: record
// misses become services.ErrNotFound and duplicate-key violations on
// the two reconciliation constraints become their typed counterparts,
// so the core never sees driver-specific errors.
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ledgerkit/paytrack/internal/models"
	"github.com/ledgerkit/paytrack/internal/services"
)

type GormStore struct {
	db *gorm.DB
}

var _ services.Store = (*GormStore)(nil)

// NewGormStore wraps a GORM handle. Open the handle with
// TranslateError enabled so duplicate-key violations arrive as
// gorm.ErrDuplicatedKey regardless of driver.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// InTransaction binds fn to a single storage transaction. Errors roll
// back every write made inside fn, including invoice status updates
// that follow match mutations.
func (s *GormStore) InTransaction(ctx context.Context, fn func(services.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) GetWorkspace(ctx context.Context, id uint) (*models.Workspace, error) {
	var ws models.Workspace
	if err := s.db.WithContext(ctx).First(&ws, id).Error; err != nil {
		return nil, translate(err)
	}
	return &ws, nil
}

func (s *GormStore) GetInvoice(ctx context.Context, workspaceID, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).First(&inv, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (s *GormStore) InsertInvoice(ctx context.Context, inv *models.Invoice) error {
	return translate(s.db.WithContext(ctx).Create(inv).Error)
}

func (s *GormStore) ListInvoices(ctx context.Context, workspaceID uint) ([]models.Invoice, error) {
	var invs []models.Invoice
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Preload("Matches.Payment").
		Order("id").
		Find(&invs).Error
	if err != nil {
		return nil, translate(err)
	}
	return invs, nil
}

func (s *GormStore) ListInvoicesForMatching(ctx context.Context, workspaceID uint, currency string, statusIn []string, amounts services.AmountRange) ([]models.Invoice, error) {
	var invs []models.Invoice
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND currency = ? AND status IN ? AND total BETWEEN ? AND ?",
			workspaceID, currency, statusIn, amounts.Min, amounts.Max).
		Order("due_date, id").
		Find(&invs).Error
	if err != nil {
		return nil, translate(err)
	}
	return invs, nil
}

func (s *GormStore) UpdateInvoiceStatus(ctx context.Context, workspaceID, id uint, status string) error {
	res := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("workspace_id = ? AND id = ?", workspaceID, id).
		Update("status", status)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *GormStore) GetPayment(ctx context.Context, workspaceID, id uint) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).First(&p, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) InsertPayment(ctx context.Context, p *models.Payment) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return services.ErrDuplicateExternalID
		}
		return err
	}
	return nil
}

func (s *GormStore) ListPayments(ctx context.Context, workspaceID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).Order("id").Find(&payments).Error
	if err != nil {
		return nil, translate(err)
	}
	return payments, nil
}

func (s *GormStore) FindPaymentByExternalID(ctx context.Context, workspaceID uint, source, externalID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND source = ? AND external_id = ?", workspaceID, source, externalID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) UpdatePaymentStatus(ctx context.Context, workspaceID, id uint, status string) error {
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("workspace_id = ? AND id = ?", workspaceID, id).
		Update("status", status)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *GormStore) DeletePayment(ctx context.Context, workspaceID, id uint) error {
	res := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).Delete(&models.Payment{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *GormStore) GetMatch(ctx context.Context, workspaceID, id uint) (*models.Match, error) {
	var m models.Match
	err := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).First(&m, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *GormStore) InsertMatch(ctx context.Context, m *models.Match) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// The unique index on payment_id is the serialized form of the
			// "no other active match" precondition.
			return services.ErrPaymentAlreadyMatched
		}
		return err
	}
	return nil
}

func (s *GormStore) UpdateMatch(ctx context.Context, m *models.Match) error {
	err := s.db.WithContext(ctx).Model(&models.Match{}).
		Where("workspace_id = ? AND id = ?", m.WorkspaceID, m.ID).
		Updates(map[string]any{"invoice_id": m.InvoiceID, "score": m.Score, "reason": m.Reason}).Error
	return translate(err)
}

func (s *GormStore) DeleteMatch(ctx context.Context, workspaceID, id uint) error {
	res := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).Delete(&models.Match{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *GormStore) FindMatchByPayment(ctx context.Context, workspaceID, paymentID uint) (*models.Match, error) {
	var m models.Match
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND payment_id = ?", workspaceID, paymentID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *GormStore) ListMatchesForInvoice(ctx context.Context, workspaceID, invoiceID uint) ([]models.Match, error) {
	var matches []models.Match
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND invoice_id = ?", workspaceID, invoiceID).
		Preload("Payment").
		Find(&matches).Error
	if err != nil {
		return nil, translate(err)
	}
	return matches, nil
}

func (s *GormStore) ListMatchesForPayment(ctx context.Context, workspaceID, paymentID uint) ([]models.Match, error) {
	var matches []models.Match
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND payment_id = ?", workspaceID, paymentID).
		Find(&matches).Error
	if err != nil {
		return nil, translate(err)
	}
	return matches, nil
}

func (s *GormStore) InsertWebhookEvent(ctx context.Context, ev *models.WebhookEvent) error {
	return translate(s.db.WithContext(ctx).Create(ev).Error)
}

func (s *GormStore) GetExtraction(ctx context.Context, workspaceID, id uint) (*models.InvoiceExtraction, error) {
	var ex models.InvoiceExtraction
	err := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).First(&ex, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ex, nil
}

func (s *GormStore) InsertExtraction(ctx context.Context, ex *models.InvoiceExtraction) error {
	return translate(s.db.WithContext(ctx).Create(ex).Error)
}

func (s *GormStore) UpdateExtraction(ctx context.Context, ex *models.InvoiceExtraction) error {
	return translate(s.db.WithContext(ctx).Save(ex).Error)
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrNotFound
	}
	return err
}
