package articulation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"floragent/internal/types"
)

type fixedLLM struct {
	reply string
	err   error
	seen  string
}

func (f *fixedLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.seen = prompt
	return f.reply, f.err
}

func TestComposer_PromptCarriesResult(t *testing.T) {
	llm := &fixedLLM{reply: "Your order ORD-0001 is confirmed!"}
	c := NewComposer(llm)

	reply, err := c.Compose(context.Background(), types.TurnResult{
		Kind:    types.ResultOrderCreated,
		OrderID: "ORD-0001",
		Items:   "20 roses",
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if reply != "Your order ORD-0001 is confirmed!" {
		t.Errorf("reply = %q", reply)
	}
	if !strings.Contains(llm.seen, "ORD-0001") || !strings.Contains(llm.seen, "20 roses") {
		t.Errorf("prompt missing result data:\n%s", llm.seen)
	}
}

func TestComposer_ProviderFailureReturnsError(t *testing.T) {
	c := NewComposer(&fixedLLM{err: errors.New("timeout")})

	_, err := c.Compose(context.Background(), types.TurnResult{Kind: types.ResultHelp, HelpText: "x"})
	if err == nil {
		t.Fatal("expected error; the engine owns the fallback decision")
	}
}

func TestFallbackText_DistinguishesFailures(t *testing.T) {
	tests := []struct {
		name     string
		failure  types.TurnFailure
		contains []string
		excludes []string
	}{
		{
			name:     "extraction incomplete names fields",
			failure:  types.TurnFailure{Kind: types.FailExtractionIncomplete, Missing: []string{"address", "phone"}},
			contains: []string{"address", "phone"},
		},
		{
			name:     "order not found suggests retry",
			failure:  types.TurnFailure{Kind: types.FailOrderNotFound, OrderID: "ORD-9999"},
			contains: []string{"ORD-9999", "not found"},
			excludes: []string{"bundle"},
		},
		{
			name:     "bundle missing names itself distinctly",
			failure:  types.TurnFailure{Kind: types.FailBundleMissing, OrderID: "ORD-0001"},
			contains: []string{"ORD-0001", "bundle", "persisted state"},
			excludes: []string{"not found."},
		},
		{
			name:     "crypto provider states nothing stored",
			failure:  types.TurnFailure{Kind: types.FailCryptoProvider, Detail: "status 503"},
			contains: []string{"status 503", "Nothing was stored"},
		},
		{
			name:     "invalid id shows expected shape",
			failure:  types.TurnFailure{Kind: types.FailInvalidOrderID, Detail: "ORDER_ONE"},
			contains: []string{"ORDER_ONE", "ORD-0001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := FallbackText(types.TurnResult{Kind: types.ResultFailure, Failure: &tt.failure})
			for _, want := range tt.contains {
				if !strings.Contains(text, want) {
					t.Errorf("fallback %q missing %q", text, want)
				}
			}
			for _, avoid := range tt.excludes {
				if strings.Contains(text, avoid) {
					t.Errorf("fallback %q should not contain %q", text, avoid)
				}
			}
		})
	}
}

func TestFallbackText_SuccessKinds(t *testing.T) {
	created := FallbackText(types.TurnResult{Kind: types.ResultOrderCreated, OrderID: "ORD-0002"})
	if !strings.Contains(created, "ORD-0002") {
		t.Errorf("created fallback missing id: %q", created)
	}

	decrypted := FallbackText(types.TurnResult{
		Kind:    types.ResultOrderDecrypted,
		OrderID: "ORD-0002",
		Fields:  types.OrderFields{Customer: "John Smith", Items: "20 roses"},
	})
	if !strings.Contains(decrypted, "John Smith") || !strings.Contains(decrypted, "20 roses") {
		t.Errorf("decrypted fallback missing fields: %q", decrypted)
	}

	empty := FallbackText(types.TurnResult{Kind: types.ResultOrderList})
	if !strings.Contains(empty, "No orders") {
		t.Errorf("empty list fallback = %q", empty)
	}
}
