package perception

import (
	"context"
	"errors"
	"testing"

	"floragent/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM returns canned completions in order, or a fixed error.
type scriptedLLM struct {
	responses []string
	err       error
	calls     int
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

func TestClassifier_CreateOrderAllFields(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"action": "create_order", "customer": "John Smith", "email": "john@example.com",
		  "phone": "+1-212-555-0100", "address": "Boston", "items": "20 roses"}`,
	}}
	c := NewClassifier(llm)

	intent, err := c.Classify(context.Background(),
		"Create an order for John Smith, john@example.com, +1-212-555-0100, Boston, 20 roses")
	require.NoError(t, err)
	assert.Equal(t, types.IntentCreateOrder, intent.Kind)
	assert.Equal(t, "John Smith", intent.Fields.Customer)
	assert.Equal(t, "20 roses", intent.Fields.Items)
	assert.Empty(t, intent.Fields.Missing())
}

func TestClassifier_MissingAddressIsExtractionIncomplete(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"action": "create_order", "customer": "John Smith", "email": "john@example.com",
		  "phone": "+1-212-555-0100", "address": "", "items": "20 roses"}`,
	}}
	c := NewClassifier(llm)

	_, err := c.Classify(context.Background(), "Create an order for John Smith, 20 roses")

	var incomplete *types.ExtractionIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Contains(t, incomplete.Missing, "address")
	assert.Len(t, incomplete.Missing, 1)
}

func TestClassifier_DecryptOrderValidID(t *testing.T) {
	llm := &scriptedLLM{responses: []string{`{"action": "decrypt_order", "order_id": "ORD-0001"}`}}
	c := NewClassifier(llm)

	intent, err := c.Classify(context.Background(), "Show order ORD-0001")
	require.NoError(t, err)
	assert.Equal(t, types.IntentDecryptOrder, intent.Kind)
	assert.Equal(t, "ORD-0001", intent.OrderID)
}

func TestClassifier_MalformedOrderID(t *testing.T) {
	llm := &scriptedLLM{responses: []string{`{"action": "decrypt_order", "order_id": "ORDER_ONE"}`}}
	c := NewClassifier(llm)

	_, err := c.Classify(context.Background(), "Show order ORDER_ONE")

	var invalid *types.InvalidOrderIDError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "ORDER_ONE", invalid.Raw)
}

func TestClassifier_LegacyActionNamesStillRoute(t *testing.T) {
	// Older prompt revisions used get_order / get_all_orders.
	llm := &scriptedLLM{responses: []string{
		`{"action": "get_order", "order_id": "ORD-0002"}`,
		`{"action": "get_all_orders"}`,
	}}
	c := NewClassifier(llm)

	intent, err := c.Classify(context.Background(), "show ORD-0002")
	require.NoError(t, err)
	assert.Equal(t, types.IntentDecryptOrder, intent.Kind)

	intent, err = c.Classify(context.Background(), "list everything")
	require.NoError(t, err)
	assert.Equal(t, types.IntentListOrders, intent.Kind)
}

func TestClassifier_UnknownAndUnparseableDegradeToUnknown(t *testing.T) {
	for name, response := range map[string]string{
		"unknown action":  `{"action": "make_coffee"}`,
		"no json at all":  `I have no idea what they want.`,
		"declared intent": `{"action": "unknown"}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := NewClassifier(&scriptedLLM{responses: []string{response}})
			intent, err := c.Classify(context.Background(), "gibberish")
			require.NoError(t, err)
			assert.Equal(t, types.IntentUnknown, intent.Kind)
		})
	}
}

func TestClassifier_ProviderFailureIsPlainError(t *testing.T) {
	c := NewClassifier(&scriptedLLM{err: errors.New("upstream 500")})

	_, err := c.Classify(context.Background(), "anything")
	require.Error(t, err)

	var incomplete *types.ExtractionIncompleteError
	assert.False(t, errors.As(err, &incomplete), "provider failure must not masquerade as extraction error")
}
