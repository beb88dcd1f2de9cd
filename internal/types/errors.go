package types

import (
	"fmt"
	"strings"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================
// Three recoverable tiers below the startup-fatal configuration errors:
//
//	Extraction: ExtractionIncompleteError, InvalidOrderIDError — the user is
//	  asked to clarify, the conversation continues.
//	Lookup: OrderNotFoundError, BundleMissingError — specific diagnostics;
//	  BundleMissing names itself distinctly so the user is told to inspect
//	  persisted state rather than retry.
//	Provider: CryptoProviderError — the turn fails gracefully, the process
//	  keeps accepting turns.
//
// All are matched with errors.As at the workflow layer.

// ExtractionIncompleteError reports which required order fields could not
// be identified in the user's input.
type ExtractionIncompleteError struct {
	Missing []string
}

func (e *ExtractionIncompleteError) Error() string {
	return fmt.Sprintf("extraction incomplete: missing %s", strings.Join(e.Missing, ", "))
}

// InvalidOrderIDError reports an order identifier that does not match the
// ORD-<digits> pattern. Malformed ids never reach the stores.
type InvalidOrderIDError struct {
	Raw string
}

func (e *InvalidOrderIDError) Error() string {
	return fmt.Sprintf("invalid order id: %q (expected ORD-<digits>)", e.Raw)
}

// OrderNotFoundError reports a lookup for an order id that was never minted.
type OrderNotFoundError struct {
	OrderID string
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.OrderID)
}

// BundleMissingError reports an order whose decryption bundle is gone from
// the bundle store. This is the designed failure mode when the bundles file
// was reset independently of the orders file.
type BundleMissingError struct {
	OrderID  string
	BundleID string
}

func (e *BundleMissingError) Error() string {
	return fmt.Sprintf("bundle %s for order %s missing from bundle store", e.BundleID, e.OrderID)
}

// CryptoProviderError wraps any transport or authentication failure from
// the encryption provider. The adapter never invents plaintext or
// ciphertext on failure; it returns this instead.
type CryptoProviderError struct {
	Op      string // "detect-encrypt" or "decrypt"
	Status  int    // HTTP status, 0 for transport errors
	Message string
	Err     error
}

func (e *CryptoProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("cryptor %s failed: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("cryptor %s failed: %s", e.Op, e.Message)
}

func (e *CryptoProviderError) Unwrap() error { return e.Err }
