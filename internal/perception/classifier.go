package perception

import (
	"context"
	"fmt"
	"strings"

	"floragent/internal/logging"
	"floragent/internal/types"
)

// classifyPrompt instructs the model to answer with a single JSON object.
// The action vocabulary mirrors the intent kinds one to one; anything the
// model invents outside it degrades to unknown rather than failing.
const classifyPrompt = `You are the intent classifier for a flower shop order assistant. Analyze the customer's request below and decide which operation to run.

Request: %s

Rules for create_order:
- Extract the five fields from the request text: customer (recipient name), email, phone, address, items.
- Field "items" must carry the full text description of the requested products.
- Leave a field as an empty string if the request does not contain it. Never invent values.

Return ONLY a JSON object shaped as one of the following:
- Create order: {"action": "create_order", "customer": "...", "email": "...", "phone": "...", "address": "...", "items": "..."}
- Decrypt/show one order: {"action": "decrypt_order", "order_id": "ORD-XXXX"}
- List orders: {"action": "list_orders"}
- Dump stores: {"action": "show_db"}
- Capability question: {"action": "help"}
- Anything else: {"action": "unknown"}`

// classifierOutput is the JSON shape the model is asked for.
type classifierOutput struct {
	Action   string `json:"action"`
	Customer string `json:"customer"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Items    string `json:"items"`
	OrderID  string `json:"order_id"`
}

// Classifier maps raw user input to a typed Intent via the LLM.
type Classifier struct {
	llm LLMClient
}

// NewClassifier creates an intent classifier.
func NewClassifier(llm LLMClient) *Classifier {
	return &Classifier{llm: llm}
}

// Classify determines the intent of one user turn. Validation failures
// come back as the typed extraction errors; only provider trouble is a
// plain error.
func (c *Classifier) Classify(ctx context.Context, rawInput string) (types.Intent, error) {
	timer := logging.StartTimer(logging.CategoryPerception, "classify")
	defer timer.Stop()

	response, err := c.llm.Complete(ctx, fmt.Sprintf(classifyPrompt, rawInput))
	if err != nil {
		return types.Intent{}, fmt.Errorf("intent classification failed: %w", err)
	}

	var out classifierOutput
	if err := ExtractJSON(response, &out); err != nil {
		logging.PerceptionDebug("Unparseable classifier output: %q", truncate(response, 200))
		return types.Intent{Kind: types.IntentUnknown}, nil
	}

	intent := types.Intent{Kind: kindFromAction(out.Action)}
	logging.Perception("Classified intent: %s", intent.Kind)

	switch intent.Kind {
	case types.IntentCreateOrder:
		intent.Fields = types.OrderFields{
			Customer: strings.TrimSpace(out.Customer),
			Email:    strings.TrimSpace(out.Email),
			Phone:    strings.TrimSpace(out.Phone),
			Address:  strings.TrimSpace(out.Address),
			Items:    strings.TrimSpace(out.Items),
		}
		if missing := intent.Fields.Missing(); len(missing) > 0 {
			return types.Intent{}, &types.ExtractionIncompleteError{Missing: missing}
		}

	case types.IntentDecryptOrder:
		id := strings.TrimSpace(out.OrderID)
		if !types.OrderIDPattern.MatchString(id) {
			return types.Intent{}, &types.InvalidOrderIDError{Raw: id}
		}
		intent.OrderID = id
	}

	return intent, nil
}

// kindFromAction maps the model's action vocabulary onto intent kinds.
// Unmapped actions degrade to unknown.
func kindFromAction(action string) types.IntentKind {
	switch strings.TrimSpace(strings.ToLower(action)) {
	case "create_order":
		return types.IntentCreateOrder
	case "decrypt_order", "get_order":
		return types.IntentDecryptOrder
	case "list_orders", "get_all_orders":
		return types.IntentListOrders
	case "show_db":
		return types.IntentShowDB
	case "help":
		return types.IntentHelp
	default:
		return types.IntentUnknown
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
