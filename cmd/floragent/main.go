// floragent is a conversational order-intake assistant for a flower shop.
// Customer details are detected and encrypted by an external Cryptor
// Service before anything touches disk; orders and decryption bundles
// live in two flat JSON files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"floragent/internal/logging"
)

const appVersion = "1.0.0"

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "floragent",
	Short: "floragent - conversational flower-shop order intake",
	Long: `floragent takes flower orders in natural language.

It classifies each message with an LLM, extracts the order fields,
encrypts all personal data through the Cryptor Service, and stores only
ciphertext. Orders can be decrypted later by id.

Run without arguments to start the interactive chat.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(verbose)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

// askCmd runs a single turn and exits, for scripted use.
var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Process a single message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		reply, err := rt.engine.HandleTurn(cmd.Context(), joinArgs(args))
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the floragent version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("floragent %s\n", appVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
