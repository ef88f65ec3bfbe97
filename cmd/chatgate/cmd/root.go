// Package cmd provides the CLI commands for chatgate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chat-gate/chatgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "chatgate",
	Short: "chatgate - authenticated WebSocket chat gateway",
	Long: `chatgate is a WebSocket chat gateway with bearer-token authentication
and server-side session supervision.

Every connection is authenticated exactly once at upgrade time, then
re-checked against the session store for as long as it stays open: a
revoked or expired session closes the connection within one check
interval, with a close code naming the cause.

Quick start:
  1. Create a config file: chatgate.yaml
  2. Run: chatgate start

Configuration:
  Config is loaded from chatgate.yaml in the current directory,
  $HOME/.chatgate/, or /etc/chatgate/.

  Environment variables can override config values with the CHATGATE_ prefix.
  Example: CHATGATE_SERVER_HTTP_ADDR=:9090

Commands:
  start          Start the gateway server
  hash-password  Hash a password with Argon2id
  issue-token    Mint a bearer token for a subject
  version        Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./chatgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
