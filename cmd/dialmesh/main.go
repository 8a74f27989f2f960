// Command dialmesh is the operator CLI: it runs campaigns against the
// simulated or Twilio bridge, places single test calls and validates
// dialogue scripts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/dialmesh/logging"
)

var (
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "dialmesh",
	Short: "Outbound voice-call campaign orchestrator",
	Long: `dialmesh dials campaign contacts through a telephony bridge and runs a
slot-filling order conversation on every answered call. Campaigns, contacts
and simulated callee behaviors are described in YAML files.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(validateCmd)
}

// newLogger builds the structured logger shared by every component.
func newLogger() logging.Logger {
	level := logging.LogLevelInfo
	switch flagLogLevel {
	case "debug":
		level = logging.LogLevelDebug
	case "warn":
		level = logging.LogLevelWarn
	case "error":
		level = logging.LogLevelError
	}
	return logging.NewSlogLogger(level, flagLogFormat, false).WithComponent("cli")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
