package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ledgerkit/paytrack/internal/models"
)

// Reconciler is the transactional core of the payment ledger. It is
// the single writer of payment-derived invoice status transitions:
// every match mutation and the matching status update commit or roll
// back together, so a stored status can never disagree with the
// balance derivable from the match set.
type Reconciler struct {
	store Store
	log   zerolog.Logger
}

func NewReconciler(store Store, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, log: log}
}

// UpdateMatchParams carries the optional fields of UpdateMatch. Nil
// means leave unchanged.
type UpdateMatchParams struct {
	NewInvoiceID *uint
	NewScore     *float64
	NewReason    *string
}

// CreateMatch links a payment to an invoice and updates the invoice
// status from the recomputed balance.
//
// Preconditions: invoice and payment exist in the workspace, share a
// currency, the score is within [0,1], and the payment has no other
// active match. The already-matched check is backed by the unique
// index on matches.payment_id, so a concurrent create racing past the
// precondition read still fails with ErrPaymentAlreadyMatched instead
// of writing a second match.
func (r *Reconciler) CreateMatch(ctx context.Context, workspaceID, invoiceID, paymentID uint, score float64, method, reason string) (*models.Match, error) {
	if score < 0 || score > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}
	var match *models.Match
	err := r.store.InTransaction(ctx, func(tx Store) error {
		inv, err := tx.GetInvoice(ctx, workspaceID, invoiceID)
		if err != nil {
			return err
		}
		payment, err := tx.GetPayment(ctx, workspaceID, paymentID)
		if err != nil {
			return err
		}
		if payment.Currency != inv.Currency {
			return fmt.Errorf("%w: invoice %s, payment %s", ErrCurrencyMismatch, inv.Currency, payment.Currency)
		}
		if existing, err := tx.FindMatchByPayment(ctx, workspaceID, paymentID); err != nil {
			return err
		} else if existing != nil {
			return ErrPaymentAlreadyMatched
		}
		m := &models.Match{
			WorkspaceID: workspaceID,
			InvoiceID:   invoiceID,
			PaymentID:   paymentID,
			Score:       score,
			Method:      method,
			Reason:      reason,
		}
		if err := tx.InsertMatch(ctx, m); err != nil {
			return err
		}
		if err := r.refreshInvoiceStatus(ctx, tx, inv); err != nil {
			return err
		}
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// UpdateMatch re-points a match to a different invoice and/or adjusts
// its score and reason. When the invoice changes, both the old and the
// new invoice get their balances and statuses recomputed in the same
// transaction.
func (r *Reconciler) UpdateMatch(ctx context.Context, workspaceID, matchID uint, params UpdateMatchParams) (*models.Match, error) {
	if params.NewScore != nil && (*params.NewScore < 0 || *params.NewScore > 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScore, *params.NewScore)
	}
	var match *models.Match
	err := r.store.InTransaction(ctx, func(tx Store) error {
		m, err := tx.GetMatch(ctx, workspaceID, matchID)
		if err != nil {
			return err
		}
		oldInvoiceID := m.InvoiceID
		if params.NewInvoiceID != nil && *params.NewInvoiceID != oldInvoiceID {
			newInv, err := tx.GetInvoice(ctx, workspaceID, *params.NewInvoiceID)
			if err != nil {
				return err
			}
			payment, err := tx.GetPayment(ctx, workspaceID, m.PaymentID)
			if err != nil {
				return err
			}
			if payment.Currency != newInv.Currency {
				return fmt.Errorf("%w: invoice %s, payment %s", ErrCurrencyMismatch, newInv.Currency, payment.Currency)
			}
			m.InvoiceID = *params.NewInvoiceID
		}
		if params.NewScore != nil {
			m.Score = *params.NewScore
		}
		if params.NewReason != nil {
			m.Reason = *params.NewReason
		}
		if err := tx.UpdateMatch(ctx, m); err != nil {
			return err
		}
		// Recompute the invoice the match left first: it may revert to
		// its unpaid status if this was its only match.
		if m.InvoiceID != oldInvoiceID {
			oldInv, err := tx.GetInvoice(ctx, workspaceID, oldInvoiceID)
			if err != nil {
				return err
			}
			if err := r.refreshInvoiceStatus(ctx, tx, oldInv); err != nil {
				return err
			}
		}
		inv, err := tx.GetInvoice(ctx, workspaceID, m.InvoiceID)
		if err != nil {
			return err
		}
		if err := r.refreshInvoiceStatus(ctx, tx, inv); err != nil {
			return err
		}
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// DeleteMatch removes a match ("unmatch") and recomputes the affected
// invoice. An invoice left with no completed payments reverts to its
// unpaid status: approved for payables, draft for receivables.
func (r *Reconciler) DeleteMatch(ctx context.Context, workspaceID, matchID uint) error {
	return r.store.InTransaction(ctx, func(tx Store) error {
		m, err := tx.GetMatch(ctx, workspaceID, matchID)
		if err != nil {
			return err
		}
		if err := tx.DeleteMatch(ctx, workspaceID, m.ID); err != nil {
			return err
		}
		inv, err := tx.GetInvoice(ctx, workspaceID, m.InvoiceID)
		if err != nil {
			return err
		}
		return r.refreshInvoiceStatus(ctx, tx, inv)
	})
}

// DeletePayment cascades: all matches referencing the payment are
// removed and every touched invoice recomputed before the payment row
// itself goes away. The data model normally holds at most one match
// per payment, but the cascade handles N invoices regardless.
func (r *Reconciler) DeletePayment(ctx context.Context, workspaceID, paymentID uint) error {
	return r.store.InTransaction(ctx, func(tx Store) error {
		if _, err := tx.GetPayment(ctx, workspaceID, paymentID); err != nil {
			return err
		}
		matches, err := tx.ListMatchesForPayment(ctx, workspaceID, paymentID)
		if err != nil {
			return err
		}
		touched := make(map[uint]struct{}, len(matches))
		for _, m := range matches {
			if err := tx.DeleteMatch(ctx, workspaceID, m.ID); err != nil {
				return err
			}
			touched[m.InvoiceID] = struct{}{}
		}
		for invoiceID := range touched {
			inv, err := tx.GetInvoice(ctx, workspaceID, invoiceID)
			if err != nil {
				return err
			}
			if err := r.refreshInvoiceStatus(ctx, tx, inv); err != nil {
				return err
			}
		}
		return tx.DeletePayment(ctx, workspaceID, paymentID)
	})
}

// ApplyPaymentStatus records an externally reported payment status.
// When the payment is matched, the invoice is refreshed in the same
// transaction: a matched payment flipping to completed must surface on
// the invoice, and one flipping away from completed must stop counting.
func (r *Reconciler) ApplyPaymentStatus(ctx context.Context, workspaceID, paymentID uint, status string) error {
	return r.store.InTransaction(ctx, func(tx Store) error {
		p, err := tx.GetPayment(ctx, workspaceID, paymentID)
		if err != nil {
			return err
		}
		if p.Status == status {
			return nil
		}
		if err := tx.UpdatePaymentStatus(ctx, workspaceID, paymentID, status); err != nil {
			return err
		}
		m, err := tx.FindMatchByPayment(ctx, workspaceID, paymentID)
		if err != nil {
			return err
		}
		if m == nil {
			return nil
		}
		inv, err := tx.GetInvoice(ctx, workspaceID, m.InvoiceID)
		if err != nil {
			return err
		}
		return r.refreshInvoiceStatus(ctx, tx, inv)
	})
}

// BalanceForInvoice derives the current paid/remaining amounts of an
// invoice from its stored matches.
func (r *Reconciler) BalanceForInvoice(ctx context.Context, workspaceID, invoiceID uint) (Balance, error) {
	inv, err := r.store.GetInvoice(ctx, workspaceID, invoiceID)
	if err != nil {
		return Balance{}, err
	}
	matches, err := r.store.ListMatchesForInvoice(ctx, workspaceID, invoiceID)
	if err != nil {
		return Balance{}, err
	}
	return ComputeBalance(inv, matches), nil
}

// refreshInvoiceStatus recomputes the invoice balance and applies the
// derived status transition:
//
//	remaining == 0 and paid > 0  -> paid
//	0 < paid < total             -> partially_paid
//	paid == 0                    -> revert, but only out of a
//	                                payment-derived status; draft and
//	                                approved are owned by other rules.
func (r *Reconciler) refreshInvoiceStatus(ctx context.Context, tx Store, inv *models.Invoice) error {
	matches, err := tx.ListMatchesForInvoice(ctx, inv.WorkspaceID, inv.ID)
	if err != nil {
		return err
	}
	bal := ComputeBalance(inv, matches)

	next := inv.Status
	switch {
	case bal.Paid > 0 && bal.Remaining == 0:
		next = models.InvoiceStatusPaid
	case bal.Paid > 0:
		next = models.InvoiceStatusPartiallyPaid
	default:
		if inv.Status == models.InvoiceStatusPaid || inv.Status == models.InvoiceStatusPartiallyPaid {
			next = inv.UnpaidStatus()
		}
	}
	if next == inv.Status {
		return nil
	}
	r.log.Debug().
		Uint("invoice_id", inv.ID).
		Str("from", inv.Status).
		Str("to", next).
		Float64("paid", bal.Paid).
		Float64("remaining", bal.Remaining).
		Msg("invoice status transition")
	inv.Status = next
	return tx.UpdateInvoiceStatus(ctx, inv.WorkspaceID, inv.ID, next)
}
