package services

import "errors"

// Error taxonomy of the reconciliation core. Callers branch with
// errors.Is; handlers map these to HTTP statuses.
var (
	// ErrNotFound: referenced invoice/payment/match does not exist or
	// belongs to a different workspace.
	ErrNotFound = errors.New("not found")

	// ErrPaymentAlreadyMatched: the payment already has an active match.
	// Resolvable by the caller via UpdateMatch instead of CreateMatch.
	ErrPaymentAlreadyMatched = errors.New("payment already matched")

	// ErrInvalidScore: match confidence outside [0, 1].
	ErrInvalidScore = errors.New("score must be between 0 and 1")

	// ErrCurrencyMismatch: matching across currencies is rejected before
	// any write.
	ErrCurrencyMismatch = errors.New("invoice and payment currencies differ")

	// ErrDuplicateExternalID: a payment with the same
	// (workspace, source, external_id) already exists. The ingestion
	// pipeline treats this as the normal already-processed path.
	ErrDuplicateExternalID = errors.New("duplicate external id")
)

// IngestionError marks a processor event that cannot be attributed or
// applied. It is logged and dropped by the webhook pipeline; there is
// no synchronous caller to surface it to.
type IngestionError struct {
	Reason string
	Err    error
}

func (e *IngestionError) Error() string {
	if e.Err != nil {
		return "ingestion: " + e.Reason + ": " + e.Err.Error()
	}
	return "ingestion: " + e.Reason
}

func (e *IngestionError) Unwrap() error { return e.Err }
