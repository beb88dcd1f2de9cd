// Package articulation turns structured turn results into user-facing
// replies. The Composer asks the language model to phrase the reply; when
// the provider fails, the workflow engine falls back to FallbackText, a
// deterministic rendering of the same result, so the user always gets an
// answer.
package articulation

import (
	"context"
	"fmt"
	"strings"

	"floragent/internal/logging"
	"floragent/internal/perception"
	"floragent/internal/types"
)

// styleDirective keeps the model in the shop-assistant register without
// letting it restate sensitive payloads.
const styleDirective = `You are a friendly customer support agent for a flower shop. Write a concise, warm reply based strictly on the operation result below. Do not invent order details that are not in the result. Plain text only, no markdown.`

// Composer renders turn results through the language model. It performs
// no persistence and no gateway calls; it is a pure function of the
// result plus the style directive.
type Composer struct {
	llm perception.LLMClient
}

// NewComposer creates a response composer.
func NewComposer(llm perception.LLMClient) *Composer {
	return &Composer{llm: llm}
}

// Compose phrases the structured result as natural language. Provider
// failures are returned to the caller; applying the fallback is the
// engine's decision, not the composer's.
func (c *Composer) Compose(ctx context.Context, result types.TurnResult) (string, error) {
	timer := logging.StartTimer(logging.CategoryArticulation, "compose")
	defer timer.Stop()

	prompt := fmt.Sprintf("%s\n\nOperation result:\n%s", styleDirective, describeResult(result))
	reply, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("response composition failed: %w", err)
	}

	logging.Articulation("Composed reply for %s result", result.Kind)
	return strings.TrimSpace(reply), nil
}

// describeResult flattens the result into prompt lines the model can
// phrase from without seeing raw store contents.
func describeResult(result types.TurnResult) string {
	var b strings.Builder

	switch result.Kind {
	case types.ResultOrderCreated:
		fmt.Fprintf(&b, "A new order was created.\nOrder ID: %s\n", result.OrderID)
		if result.Items != "" {
			fmt.Fprintf(&b, "Items: %s\n", result.Items)
		}
		b.WriteString("All personal details were encrypted before storage; confirm the order id to the customer.")

	case types.ResultOrderDecrypted:
		fmt.Fprintf(&b, "Order %s was decrypted successfully. Plaintext fields:\n", result.OrderID)
		fmt.Fprintf(&b, "Customer: %s\nEmail: %s\nPhone: %s\nAddress: %s\nItems: %s\n",
			result.Fields.Customer, result.Fields.Email, result.Fields.Phone,
			result.Fields.Address, result.Fields.Items)

	case types.ResultOrderList:
		fmt.Fprintf(&b, "There are %d stored orders (encrypted view):\n", len(result.Orders))
		for _, o := range result.Orders {
			fmt.Fprintf(&b, "- %s, status %s, created %s\n", o.ID, o.Status, o.CreatedAt.Format("2006-01-02 15:04"))
		}

	case types.ResultDBSnapshot:
		fmt.Fprintf(&b, "Raw store snapshot: %d orders, %d bundles.\n", len(result.Orders), len(result.Bundles))
		for _, o := range result.Orders {
			fmt.Fprintf(&b, "- order %s (bundle %s, status %s)\n", o.ID, o.BundleID, o.Status)
		}

	case types.ResultHelp:
		b.WriteString("The customer asked what this assistant can do. Capabilities:\n")
		b.WriteString(result.HelpText)

	case types.ResultFailure:
		fmt.Fprintf(&b, "The operation failed (%s). Explain this to the customer:\n%s",
			result.Failure.Kind, FallbackText(result))
	}

	return b.String()
}

// =============================================================================
// DETERMINISTIC FALLBACK
// =============================================================================

// FallbackText renders the result without the language model. Every
// failure kind gets its own actionable message; in particular, a missing
// bundle names itself distinctly from a missing order so the user knows
// to inspect persisted state instead of retrying.
func FallbackText(result types.TurnResult) string {
	switch result.Kind {
	case types.ResultOrderCreated:
		return fmt.Sprintf("Order %s has been created. Your personal details were encrypted before storage. Keep the order id to look it up later.", result.OrderID)

	case types.ResultOrderDecrypted:
		f := result.Fields
		return fmt.Sprintf("Order %s (decrypted):\n  customer: %s\n  email: %s\n  phone: %s\n  address: %s\n  items: %s",
			result.OrderID, f.Customer, f.Email, f.Phone, f.Address, f.Items)

	case types.ResultOrderList:
		if len(result.Orders) == 0 {
			return "No orders stored yet."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d stored orders (encrypted view):", len(result.Orders))
		for _, o := range result.Orders {
			fmt.Fprintf(&b, "\n  %s  status=%s  created=%s", o.ID, o.Status, o.CreatedAt.Format("2006-01-02 15:04"))
		}
		return b.String()

	case types.ResultDBSnapshot:
		var b strings.Builder
		fmt.Fprintf(&b, "Stores: %d orders, %d bundles.", len(result.Orders), len(result.Bundles))
		for _, o := range result.Orders {
			fmt.Fprintf(&b, "\n  order %s -> bundle %s (%s)", o.ID, o.BundleID, o.Status)
		}
		if len(result.Bundles) > 0 {
			fmt.Fprintf(&b, "\n  bundles: %s", strings.Join(result.Bundles, ", "))
		}
		return b.String()

	case types.ResultHelp:
		return result.HelpText

	case types.ResultFailure:
		return failureText(result.Failure)
	}

	return "Done."
}

func failureText(f *types.TurnFailure) string {
	if f == nil {
		return "The request could not be completed."
	}

	switch f.Kind {
	case types.FailExtractionIncomplete:
		return fmt.Sprintf("I could not find all the details needed for an order. Missing: %s. Please provide them and try again.",
			strings.Join(f.Missing, ", "))

	case types.FailInvalidOrderID:
		return fmt.Sprintf("%q is not a valid order id. Order ids look like ORD-0001.", f.Detail)

	case types.FailUnrecognizedIntent:
		return "I did not understand that request. I can create orders, decrypt an order by id, or list stored orders. Could you rephrase?"

	case types.FailOrderNotFound:
		return fmt.Sprintf("Order %s was not found. Check the id and try again.", f.OrderID)

	case types.FailBundleMissing:
		return fmt.Sprintf("Order %s exists, but its decryption bundle is missing from the bundle store. The bundles file was likely reset independently of the orders file; inspect the persisted state rather than retrying.", f.OrderID)

	case types.FailCryptoProvider:
		return fmt.Sprintf("The encryption service is unavailable (%s). Nothing was stored; please try again later.", f.Detail)

	case types.FailLanguageModel:
		return fmt.Sprintf("The language service is unavailable (%s). Please try again later.", f.Detail)
	}

	return "The request could not be completed."
}
