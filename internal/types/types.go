// Package types holds the shared domain types for floragent: orders,
// bundles, classified intents, turn results, and the typed error taxonomy.
// It sits at the bottom of the import graph so every layer can speak the
// same vocabulary without cycles.
package types

import (
	"encoding/json"
	"regexp"
	"time"
)

// =============================================================================
// ORDERS
// =============================================================================

// OrderStatus is informational only; it never gates an operation.
type OrderStatus string

const (
	StatusCreated   OrderStatus = "created"
	StatusDecrypted OrderStatus = "decrypted"
)

// Order is a persisted customer request. The payload is stored encrypted;
// decrypting it requires the Bundle referenced by BundleID.
type Order struct {
	// ID has the form ORD-0001. Assigned at creation, never reused.
	ID string `json:"order_id"`

	// Ciphertext is the placeholder-bearing payload returned by the
	// encryption provider's detect-encrypt call. Immutable once set.
	Ciphertext string `json:"ciphertext"`

	// BundleID references the Bundle required to decrypt Ciphertext.
	BundleID string `json:"bundle_id"`

	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// OrderIDPattern matches well-formed order identifiers.
var OrderIDPattern = regexp.MustCompile(`^ORD-\d+$`)

// Bundle pairs a stored order with the opaque decryption material the
// encryption provider returned at encrypt time. Material is kept as raw
// JSON and handed back verbatim on decrypt.
type Bundle struct {
	ID       string          `json:"id"`
	Material json.RawMessage `json:"material"`
}

// OrderFields is the plaintext shape of an order payload. The five fields
// are what the classifier must extract from free text and what a decrypt
// turn hands back to the user.
type OrderFields struct {
	Customer string `json:"customer"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Items    string `json:"items"`
}

// Missing returns the names of required fields that are empty, in a fixed
// order so replies and tests are stable.
func (f OrderFields) Missing() []string {
	var missing []string
	if f.Customer == "" {
		missing = append(missing, "customer")
	}
	if f.Email == "" {
		missing = append(missing, "email")
	}
	if f.Phone == "" {
		missing = append(missing, "phone")
	}
	if f.Address == "" {
		missing = append(missing, "address")
	}
	if f.Items == "" {
		missing = append(missing, "items")
	}
	return missing
}

// =============================================================================
// INTENTS
// =============================================================================

// IntentKind is the classified purpose of a user turn.
type IntentKind string

const (
	IntentCreateOrder  IntentKind = "create_order"
	IntentDecryptOrder IntentKind = "decrypt_order"
	IntentListOrders   IntentKind = "list_orders"
	IntentShowDB       IntentKind = "show_db"
	IntentHelp         IntentKind = "help"
	IntentUnknown      IntentKind = "unknown"
)

// Intent is the classifier's output: a kind plus the fields it extracted.
// Fields is populated for create_order; OrderID for decrypt_order.
type Intent struct {
	Kind    IntentKind
	Fields  OrderFields
	OrderID string
}
