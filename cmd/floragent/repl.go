package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"floragent/internal/articulation"
	"floragent/internal/config"
	"floragent/internal/cryptor"
	"floragent/internal/logging"
	"floragent/internal/perception"
	"floragent/internal/store"
	"floragent/internal/types"
	"floragent/internal/workflow"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// =============================================================================
// RUNTIME
// =============================================================================

// runtime is the assembled application: stores, providers, engine.
type runtime struct {
	cfg     *config.Config
	orders  *store.OrderStore
	bundles *store.BundleStore
	watcher *store.ResetWatcher
	engine  *workflow.Engine
}

func buildRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	// Missing credentials abort startup; they would otherwise surface as
	// a confusing provider error on the first turn.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	orders, err := store.NewOrderStore(cfg.Storage.OrdersPath)
	if err != nil {
		return nil, fmt.Errorf("opening order store: %w", err)
	}
	bundles, err := store.NewBundleStore(cfg.Storage.BundlesPath)
	if err != nil {
		return nil, fmt.Errorf("opening bundle store: %w", err)
	}

	var watcher *store.ResetWatcher
	if cfg.Storage.WatchResets {
		watcher, err = store.NewResetWatcher(orders, bundles)
		if err != nil {
			return nil, fmt.Errorf("creating reset watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return nil, fmt.Errorf("starting reset watcher: %w", err)
		}
	}

	llmTimeout, err := cfg.LLMTimeout()
	if err != nil {
		return nil, err
	}
	llm, err := perception.NewGeminiClient(ctx, perception.GeminiConfig{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: llmTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	cryptorTimeout, err := cfg.CryptorTimeout()
	if err != nil {
		return nil, err
	}
	gateway := cryptor.NewClient(cryptor.Config{
		BaseURL:   cfg.Cryptor.BaseURL,
		APIKey:    cfg.Cryptor.APIKey,
		Tenant:    cfg.Cryptor.Tenant,
		Threshold: cfg.Cryptor.Threshold,
		Schema:    cfg.Cryptor.Schema,
		Timeout:   cryptorTimeout,
	})

	engine := workflow.NewEngine(
		perception.NewClassifier(llm),
		gateway,
		orders,
		bundles,
		articulation.NewComposer(llm),
	)

	logging.Boot("floragent %s ready (model=%s, orders=%s)", appVersion, cfg.LLM.Model, cfg.Storage.OrdersPath)
	return &runtime{cfg: cfg, orders: orders, bundles: bundles, watcher: watcher, engine: engine}, nil
}

func (rt *runtime) Close() {
	if rt.watcher != nil {
		rt.watcher.Stop()
	}
}

// =============================================================================
// CHAT LOOP
// =============================================================================

type exchange struct {
	input string
	reply string
}

func runChat(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Println(bannerStyle.Render("🌸 floragent — flower-shop order assistant"))
	fmt.Println(hintStyle.Render("Describe an order in plain language, or type /help for commands. /exit quits."))
	fmt.Println()

	var history []exchange
	scanner := bufio.NewScanner(os.Stdin)

	for {
		if ctx.Err() != nil {
			break
		}
		fmt.Print(promptStyle.Render("➤ "))
		if !scanner.Scan() {
			break // EOF or read error
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			done, reply := rt.handleCommand(ctx, input, history)
			if done {
				break
			}
			if reply != "" {
				fmt.Println(replyStyle.Render(reply))
				fmt.Println()
				history = append(history, exchange{input: input, reply: reply})
			}
			continue
		}

		reply, err := rt.engine.HandleTurn(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Println(errorStyle.Render(fmt.Sprintf("error: %v", err)))
			continue
		}
		fmt.Println(replyStyle.Render(reply))
		fmt.Println()
		history = append(history, exchange{input: input, reply: reply})
	}

	fmt.Println(hintStyle.Render("Goodbye! 🌷"))
	return nil
}

// handleCommand dispatches slash commands. These are deterministic and go
// straight to the engine's intent path, never through the classifier.
func (rt *runtime) handleCommand(ctx context.Context, input string, history []exchange) (done bool, reply string) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "/exit", "/quit":
		return true, ""

	case "/help":
		return false, workflow.HelpText + "\n\nCommands: /orders  /decrypt <id>  /db  /history  /exit"

	case "/orders":
		return false, rt.intentReply(ctx, types.Intent{Kind: types.IntentListOrders})

	case "/db":
		return false, rt.intentReply(ctx, types.Intent{Kind: types.IntentShowDB})

	case "/decrypt":
		if len(fields) < 2 {
			return false, "Usage: /decrypt ORD-0001"
		}
		orderID := strings.ToUpper(fields[1])
		if !types.OrderIDPattern.MatchString(orderID) {
			return false, articulation.FallbackText(types.TurnResult{
				Kind:    types.ResultFailure,
				Failure: &types.TurnFailure{Kind: types.FailInvalidOrderID, Detail: fields[1]},
			})
		}
		return false, rt.intentReply(ctx, types.Intent{Kind: types.IntentDecryptOrder, OrderID: orderID})

	case "/history":
		if len(history) == 0 {
			return false, "No conversation yet."
		}
		var b strings.Builder
		for i, ex := range history {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%2d. you: %s\n    bot: %s", i+1, ex.input, firstLine(ex.reply))
		}
		return false, b.String()

	default:
		return false, fmt.Sprintf("Unknown command %s. Try /help.", cmd)
	}
}

func (rt *runtime) intentReply(ctx context.Context, intent types.Intent) string {
	reply, err := rt.engine.HandleIntent(ctx, intent)
	if err != nil {
		return errorStyle.Render(fmt.Sprintf("error: %v", err))
	}
	return reply
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
