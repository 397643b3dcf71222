package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerkit/paytrack/internal/models"
)

// Payment event kinds as normalized by the webhook boundary.
const (
	EventKindSucceeded = "succeeded"
	EventKindFailed    = "failed"
	EventKindRefunded  = "refunded"
)

// PaymentEvent is the well-typed shape the ingestion pipeline accepts.
// Signature verification and payload parsing happen upstream; by the
// time an event reaches Ingest it is authentic but possibly a
// duplicate, out of order, or missing correlation metadata.
type PaymentEvent struct {
	ExternalID  string    `json:"external_id"`
	Kind        string    `json:"kind"`
	Amount      float64   `json:"amount"`
	Fee         float64   `json:"fee"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurred_at"`
	WorkspaceID *uint     `json:"workspace_id,omitempty"`
	InvoiceID   *uint     `json:"invoice_id,omitempty"`
}

// Ingestor translates processor notifications into ledger mutations.
// Ingest is safe to call any number of times with the same event: the
// unique index on (workspace, source, external_id) collapses duplicate
// deliveries into an update of the existing payment row.
type Ingestor struct {
	store      Store
	reconciler *Reconciler
	log        zerolog.Logger
	// dropped is invoked whenever an event is discarded, so callers can
	// feed an observability counter. Never nil.
	dropped func(reason string)
}

type IngestorOption func(*Ingestor)

// WithDroppedHook registers a callback fired once per dropped event.
func WithDroppedHook(fn func(reason string)) IngestorOption {
	return func(in *Ingestor) { in.dropped = fn }
}

func NewIngestor(store Store, reconciler *Reconciler, log zerolog.Logger, opts ...IngestorOption) *Ingestor {
	in := &Ingestor{store: store, reconciler: reconciler, log: log, dropped: func(string) {}}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest applies one processor event to the ledger. A returned
// *IngestionError means the event was logged and dropped; the caller
// must not fail the surrounding pipeline for it, since one bad event
// must not block the rest of the delivery batch.
func (in *Ingestor) Ingest(ctx context.Context, ev PaymentEvent) error {
	traceID := uuid.NewString()
	log := in.log.With().
		Str("trace_id", traceID).
		Str("external_id", ev.ExternalID).
		Str("kind", ev.Kind).
		Logger()

	audit := &models.WebhookEvent{
		Source:     models.PaymentSourceProcessor,
		ExternalID: ev.ExternalID,
		Kind:       ev.Kind,
		Amount:     ev.Amount,
		Currency:   ev.Currency,
		OccurredAt: ev.OccurredAt,
	}
	if ev.WorkspaceID != nil {
		audit.WorkspaceID = *ev.WorkspaceID
	}

	err := in.apply(ctx, ev, log)
	now := time.Now().UTC()
	audit.ProcessedAt = &now
	if err != nil {
		audit.ProcessingError = err.Error()
	}
	// Audit writes are best-effort; losing one must not undo or mask
	// the ledger outcome.
	if auditErr := in.store.InsertWebhookEvent(ctx, audit); auditErr != nil {
		log.Warn().Err(auditErr).Msg("webhook audit write failed")
	}

	var ingErr *IngestionError
	if errors.As(err, &ingErr) {
		log.Error().Err(err).Msg("event dropped")
		in.dropped(ingErr.Reason)
	}
	return err
}

func (in *Ingestor) apply(ctx context.Context, ev PaymentEvent, log zerolog.Logger) error {
	if ev.ExternalID == "" {
		return &IngestionError{Reason: "missing external id"}
	}
	if ev.Kind != EventKindSucceeded && ev.Kind != EventKindFailed && ev.Kind != EventKindRefunded {
		return &IngestionError{Reason: "unknown event kind " + ev.Kind}
	}
	if ev.WorkspaceID == nil {
		// No tenant to attribute the money to. Fatal for this event only.
		return &IngestionError{Reason: "no workspace correlation"}
	}
	workspaceID := *ev.WorkspaceID
	if _, err := in.store.GetWorkspace(ctx, workspaceID); err != nil {
		return &IngestionError{Reason: "unknown workspace", Err: err}
	}

	switch ev.Kind {
	case EventKindSucceeded:
		payment, err := in.upsertPayment(ctx, workspaceID, ev, models.PaymentStatusCompleted)
		if err != nil {
			return err
		}
		in.autoMatch(ctx, workspaceID, payment, ev, log)
		return nil
	case EventKindFailed:
		_, err := in.upsertPayment(ctx, workspaceID, ev, models.PaymentStatusPending)
		return err
	case EventKindRefunded:
		existing, err := in.store.FindPaymentByExternalID(ctx, workspaceID, models.PaymentSourceProcessor, ev.ExternalID)
		if err != nil {
			return err
		}
		if existing == nil {
			// Nothing to refund; creating a refunded payment from thin air
			// would fabricate ledger history.
			return &IngestionError{Reason: "refund for unknown external id"}
		}
		if existing.Status == models.PaymentStatusRefunded {
			return nil
		}
		// Matches are deliberately left in place: reconciling refunds
		// against existing matches is manual review territory. The
		// refunded payment simply stops counting toward paid balances.
		return in.store.UpdatePaymentStatus(ctx, workspaceID, existing.ID, models.PaymentStatusRefunded)
	}
	return nil
}

// upsertPayment creates the payment for a first delivery and updates
// the status in place for any retry. The check-then-insert is
// race-safe: losing the insert race surfaces ErrDuplicateExternalID,
// which is folded back into the update path.
func (in *Ingestor) upsertPayment(ctx context.Context, workspaceID uint, ev PaymentEvent, status string) (*models.Payment, error) {
	existing, err := in.store.FindPaymentByExternalID(ctx, workspaceID, models.PaymentSourceProcessor, ev.ExternalID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		externalID := ev.ExternalID
		p := &models.Payment{
			WorkspaceID: workspaceID,
			Source:      models.PaymentSourceProcessor,
			ExternalID:  &externalID,
			Amount:      ev.Amount,
			Fee:         ev.Fee,
			Currency:    ev.Currency,
			Direction:   models.PaymentDirectionReceived,
			Status:      status,
			ReceivedAt:  ev.OccurredAt,
		}
		err := in.store.InsertPayment(ctx, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrDuplicateExternalID) {
			return nil, err
		}
		// Lost the race against a concurrent delivery of the same event.
		existing, err = in.store.FindPaymentByExternalID(ctx, workspaceID, models.PaymentSourceProcessor, ev.ExternalID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("payment vanished after duplicate insert of %s", ev.ExternalID)
		}
	}
	if existing.Status != status {
		if err := in.store.UpdatePaymentStatus(ctx, workspaceID, existing.ID, status); err != nil {
			return nil, err
		}
		existing.Status = status
	}
	return existing, nil
}

// autoMatch links a succeeded payment to its correlated invoice. A
// failed auto-match never fails the ingestion: the payment record is
// already persisted and the match can be made manually later.
func (in *Ingestor) autoMatch(ctx context.Context, workspaceID uint, payment *models.Payment, ev PaymentEvent, log zerolog.Logger) {
	if ev.InvoiceID == nil {
		return
	}
	existing, err := in.store.FindMatchByPayment(ctx, workspaceID, payment.ID)
	if err != nil {
		log.Warn().Err(err).Msg("auto-match lookup failed")
		return
	}
	if existing != nil {
		// Retry of an event we already matched.
		return
	}
	_, err = in.reconciler.CreateMatch(ctx, workspaceID, *ev.InvoiceID, payment.ID, 1.0, models.MatchMethodAuto,
		"auto-matched from processor event "+ev.ExternalID)
	if err != nil {
		log.Warn().Err(err).Uint("invoice_id", *ev.InvoiceID).Msg("auto-match skipped")
	}
}
