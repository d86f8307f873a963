package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Conversational assistant with a persistent memory",
	Long: `Recall is a web-based conversational assistant backed by an external
memory store. It serves the chat API, Google and guest sign-in, and the
model tools (weather lookups, documents, memory search).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		newLogger().Error("command failed", "err", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.AddCommand(serveCmd)
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "recall",
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
