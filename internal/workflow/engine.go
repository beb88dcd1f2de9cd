package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"floragent/internal/articulation"
	"floragent/internal/cryptor"
	"floragent/internal/logging"
	"floragent/internal/store"
	"floragent/internal/types"
)

// =============================================================================
// TURN ENGINE
// =============================================================================

// HelpText is the canonical capability summary, used both for the help
// intent and for unrecognized input.
const HelpText = `I can help you with flower orders:
  - Create an order: give me customer name, email, phone, delivery address, and the items you want.
  - Decrypt an order: "decrypt order ORD-0001" shows the stored details in plaintext.
  - List orders: "show my orders" lists every stored order id and status.
  - Show the database: "show db" dumps the raw stored orders and bundle ids.`

// IntentClassifier turns raw user text into a structured Intent. The
// production implementation is perception.Classifier.
type IntentClassifier interface {
	Classify(ctx context.Context, rawInput string) (types.Intent, error)
}

// ReplyComposer phrases a TurnResult as user-facing text. The production
// implementation is articulation.Composer.
type ReplyComposer interface {
	Compose(ctx context.Context, result types.TurnResult) (string, error)
}

// Engine drives one conversational turn through the state machine. It owns
// no goroutines; callers serialize turns.
type Engine struct {
	classifier IntentClassifier
	gateway    cryptor.Gateway
	orders     *store.OrderStore
	bundles    *store.BundleStore
	composer   ReplyComposer

	state State
}

// NewEngine wires the engine. All collaborators are required.
func NewEngine(classifier IntentClassifier, gateway cryptor.Gateway, orders *store.OrderStore, bundles *store.BundleStore, composer ReplyComposer) *Engine {
	return &Engine{
		classifier: classifier,
		gateway:    gateway,
		orders:     orders,
		bundles:    bundles,
		composer:   composer,
		state:      StateIdle,
	}
}

// State returns the engine's current state. Outside HandleTurn this is
// always StateIdle.
func (e *Engine) State() State { return e.state }

// advance moves the machine to next, panicking on an undeclared edge.
// Transitions are fixed at compile time, so a bad edge is a programming
// error, not a runtime condition.
func (e *Engine) advance(traceID string, next State) {
	if err := ValidateTransition(e.state, next); err != nil {
		panic(err)
	}
	logging.WorkflowDebug("[%s] %s -> %s", traceID, e.state, next)
	e.state = next
}

// HandleTurn runs one full user turn: classify, dispatch, act, compose.
// It always returns a reply; the error is non-nil only for context
// cancellation, which aborts the turn entirely.
func (e *Engine) HandleTurn(ctx context.Context, rawInput string) (string, error) {
	traceID := uuid.NewString()[:8]
	timer := logging.StartTimer(logging.CategoryWorkflow, fmt.Sprintf("turn %s", traceID))
	defer timer.Stop()

	e.state = StateIdle
	e.advance(traceID, StateClassifying)

	intent, err := e.classifier.Classify(ctx, rawInput)
	if err != nil {
		if ctx.Err() != nil {
			e.state = StateIdle
			return "", ctx.Err()
		}
		// Soft classifier failures carry enough detail to compose a
		// targeted reply; anything else is a language-model fault.
		e.advance(traceID, StateComposing)
		return e.compose(ctx, traceID, classifierFailure(err))
	}

	e.advance(traceID, StateDispatching)
	result, err := e.dispatch(ctx, traceID, intent)
	if err != nil {
		return "", err
	}
	return e.compose(ctx, traceID, result)
}

// HandleIntent runs a turn from an already-resolved intent, skipping both
// the classifier and the composer. Slash commands use this: they are
// deterministic and must not cost an LLM round trip, so the result is
// rendered with the fallback text instead of phrased by the model.
func (e *Engine) HandleIntent(ctx context.Context, intent types.Intent) (string, error) {
	traceID := uuid.NewString()[:8]
	e.state = StateIdle
	e.advance(traceID, StateClassifying)
	e.advance(traceID, StateDispatching)
	result, err := e.dispatch(ctx, traceID, intent)
	if err != nil {
		return "", err
	}
	e.advance(traceID, StateIdle)
	return articulation.FallbackText(result), nil
}

// dispatch acts on the intent and leaves the machine in StateComposing.
func (e *Engine) dispatch(ctx context.Context, traceID string, intent types.Intent) (types.TurnResult, error) {
	logging.Workflow("[%s] intent=%s", traceID, intent.Kind)

	var result types.TurnResult
	switch intent.Kind {
	case types.IntentCreateOrder:
		e.advance(traceID, StateEncrypting)
		result = e.createOrder(ctx, intent.Fields)
	case types.IntentDecryptOrder:
		e.advance(traceID, StateDecrypting)
		result = e.decryptOrder(ctx, intent.OrderID)
	case types.IntentListOrders:
		e.advance(traceID, StateListing)
		result = types.TurnResult{Kind: types.ResultOrderList, Orders: e.orders.List()}
	case types.IntentShowDB:
		e.advance(traceID, StateListing)
		result = e.snapshot(ctx)
	case types.IntentHelp:
		e.advance(traceID, StateHelping)
		result = types.TurnResult{Kind: types.ResultHelp, HelpText: HelpText}
	default:
		result = types.TurnResult{
			Kind:    types.ResultFailure,
			Failure: &types.TurnFailure{Kind: types.FailUnrecognizedIntent},
		}
	}

	if ctx.Err() != nil {
		e.state = StateIdle
		return types.TurnResult{}, ctx.Err()
	}
	e.advance(traceID, StateComposing)
	return result, nil
}

// createOrder encrypts the five extracted fields and persists the bundle
// before the order, so a crash between the two writes leaves at most an
// orphan bundle, never an undecryptable order.
func (e *Engine) createOrder(ctx context.Context, fields types.OrderFields) types.TurnResult {
	payload, err := json.Marshal(fields)
	if err != nil {
		return providerFailure(fmt.Sprintf("encoding order fields: %v", err))
	}

	ciphertext, material, err := e.gateway.DetectEncrypt(ctx, string(payload))
	if err != nil {
		logging.Workflow("encrypt failed, nothing persisted: %v", err)
		return providerFailure(providerDetail(err))
	}

	bundleID := uuid.NewString()
	if err := e.bundles.Put(bundleID, material); err != nil {
		return providerFailure(fmt.Sprintf("storing bundle: %v", err))
	}
	order, err := e.orders.Create(ciphertext, bundleID)
	if err != nil {
		return providerFailure(fmt.Sprintf("storing order: %v", err))
	}

	logging.Workflow("created %s (bundle %s)", order.ID, bundleID)
	return types.TurnResult{
		Kind:    types.ResultOrderCreated,
		OrderID: order.ID,
		Items:   fields.Items,
	}
}

// decryptOrder resolves the order and its bundle locally before touching
// the gateway; missing state never costs a network call. Repeat decrypts
// are allowed and re-decrypt from the stored ciphertext.
func (e *Engine) decryptOrder(ctx context.Context, orderID string) types.TurnResult {
	order, err := e.orders.Get(orderID)
	if err != nil {
		var notFound *types.OrderNotFoundError
		if errors.As(err, &notFound) {
			return types.TurnResult{
				Kind:    types.ResultFailure,
				Failure: &types.TurnFailure{Kind: types.FailOrderNotFound, OrderID: orderID},
			}
		}
		return providerFailure(err.Error())
	}

	material, err := e.bundles.Get(order.BundleID)
	if err != nil {
		logging.Workflow("order %s references missing bundle %s", order.ID, order.BundleID)
		return types.TurnResult{
			Kind: types.ResultFailure,
			Failure: &types.TurnFailure{
				Kind:    types.FailBundleMissing,
				OrderID: order.ID,
			},
		}
	}

	plaintext, err := e.gateway.Decrypt(ctx, order.Ciphertext, material)
	if err != nil {
		return providerFailure(providerDetail(err))
	}

	var fields types.OrderFields
	if err := json.Unmarshal([]byte(plaintext), &fields); err != nil {
		return providerFailure(fmt.Sprintf("decoding decrypted payload: %v", err))
	}

	if err := e.orders.MarkDecrypted(order.ID); err != nil {
		// The user already has their plaintext; a failed status flip is
		// log-worthy but not reply-worthy.
		logging.Workflow("marking %s decrypted: %v", order.ID, err)
	}

	return types.TurnResult{
		Kind:    types.ResultOrderDecrypted,
		OrderID: order.ID,
		Fields:  fields,
	}
}

// snapshot reads both stores concurrently. Store reads are cheap, but the
// dump is the one operation that touches everything, so it gets the
// parallel treatment.
func (e *Engine) snapshot(ctx context.Context) types.TurnResult {
	var (
		orders  []types.Order
		bundles []string
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		orders = e.orders.List()
		return nil
	})
	g.Go(func() error {
		bundles = e.bundles.IDs()
		return nil
	})
	_ = g.Wait() // neither closure can fail

	return types.TurnResult{Kind: types.ResultDBSnapshot, Orders: orders, Bundles: bundles}
}

// compose renders the result. A composer failure degrades to the
// deterministic fallback so the turn still produces a reply.
func (e *Engine) compose(ctx context.Context, traceID string, result types.TurnResult) (string, error) {
	defer e.advance(traceID, StateIdle)

	reply, err := e.composer.Compose(ctx, result)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logging.Articulation("compose failed, using fallback: %v", err)
		reply = articulation.FallbackText(result)
	}
	return reply, nil
}

// classifierFailure maps the classifier's typed soft errors onto failure
// results; unrecognized errors become language-model failures.
func classifierFailure(err error) types.TurnResult {
	var incomplete *types.ExtractionIncompleteError
	if errors.As(err, &incomplete) {
		return types.TurnResult{
			Kind: types.ResultFailure,
			Failure: &types.TurnFailure{
				Kind:    types.FailExtractionIncomplete,
				Missing: incomplete.Missing,
			},
		}
	}
	var badID *types.InvalidOrderIDError
	if errors.As(err, &badID) {
		return types.TurnResult{
			Kind: types.ResultFailure,
			Failure: &types.TurnFailure{
				Kind:   types.FailInvalidOrderID,
				Detail: badID.Raw,
			},
		}
	}
	return types.TurnResult{
		Kind:    types.ResultFailure,
		Failure: &types.TurnFailure{Kind: types.FailLanguageModel, Detail: err.Error()},
	}
}

func providerFailure(detail string) types.TurnResult {
	return types.TurnResult{
		Kind:    types.ResultFailure,
		Failure: &types.TurnFailure{Kind: types.FailCryptoProvider, Detail: detail},
	}
}

// providerDetail prefers the upstream message from a typed provider error.
func providerDetail(err error) string {
	var provider *types.CryptoProviderError
	if errors.As(err, &provider) && provider.Message != "" {
		return provider.Message
	}
	return err.Error()
}
