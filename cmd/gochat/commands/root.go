package commands

import (
	"log/slog"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

var logLevel string

func Execute() error {
	root := &cobra.Command{
		Use:           "gochat",
		Short:         "Real-time presence and messaging relay",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (DEBUG, INFO, WARN, ERROR); overrides LOG_LEVEL")

	root.AddCommand(serveCmd(), connectCmd(), inspectCmd())
	return root.Execute()
}

// newLogger prefers the --log-level flag over the configured level.
func newLogger(configured string) *slog.Logger {
	if logLevel != "" {
		return logs.GetLoggerFromString(logLevel)
	}
	return logs.GetLoggerFromString(configured)
}
