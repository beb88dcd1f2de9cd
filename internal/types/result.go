package types

// =============================================================================
// TURN RESULTS
// =============================================================================
// The workflow engine reduces every turn to a TurnResult; the articulation
// layer renders it, either through the LLM or through the deterministic
// fallback. Results are plain data so the composer stays a pure function.

// ResultKind discriminates the TurnResult payload.
type ResultKind string

const (
	ResultOrderCreated   ResultKind = "order_created"
	ResultOrderDecrypted ResultKind = "order_decrypted"
	ResultOrderList      ResultKind = "order_list"
	ResultDBSnapshot     ResultKind = "db_snapshot"
	ResultHelp           ResultKind = "help"
	ResultFailure        ResultKind = "failure"
)

// FailureKind names the recoverable failure classes of the error taxonomy.
type FailureKind string

const (
	FailExtractionIncomplete FailureKind = "extraction_incomplete"
	FailInvalidOrderID       FailureKind = "invalid_order_id"
	FailUnrecognizedIntent   FailureKind = "unrecognized_intent"
	FailOrderNotFound        FailureKind = "order_not_found"
	FailBundleMissing        FailureKind = "bundle_missing"
	FailCryptoProvider       FailureKind = "crypto_provider"
	FailLanguageModel        FailureKind = "language_model"
)

// TurnFailure carries a typed failure into the composer so each class can
// render its own actionable message.
type TurnFailure struct {
	Kind    FailureKind
	OrderID string   // order_not_found, bundle_missing
	Missing []string // extraction_incomplete
	Detail  string   // provider message, malformed id, ...
}

// TurnResult is the structured outcome of one workflow turn.
type TurnResult struct {
	Kind ResultKind

	// order_created
	OrderID string
	// Masked confirmation detail: the non-sensitive item description.
	Items string

	// order_decrypted
	Fields OrderFields

	// order_list / db_snapshot
	Orders  []Order
	Bundles []string // bundle ids only; material stays opaque

	// help
	HelpText string

	Failure *TurnFailure
}

// Failed reports whether the turn ended in a recoverable failure.
func (r TurnResult) Failed() bool { return r.Kind == ResultFailure }
