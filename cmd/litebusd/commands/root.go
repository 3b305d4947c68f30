// Package commands holds the litebusd cobra command tree. It is the
// only place in this module that imports cobra or parses flags;
// everything below bootstrap.Application only ever sees a
// *config.Config.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// configFile is an optional YAML config file path.
	configFile string

	// httpBindURL overrides Network.HTTPBindURL when set.
	httpBindURL string

	// tcpBindURL overrides Network.TCPBindURL when set.
	tcpBindURL string

	// threadCount overrides Actor.ThreadCount when non-zero.
	threadCount int

	// debug enables debug-level logging regardless of the loaded config.
	debug bool
)

// rootCmd is the base command for litebusd.
var rootCmd = &cobra.Command{
	Use:   "litebusd",
	Short: "litebusd runs a litebus actor process",
	Long: `litebusd constructs a litebus configuration from flags, an optional
YAML file, and LITEBUS_* environment variables, then runs the actor
system, timer service, and HTTP transport until it receives a shutdown
signal.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configFile, "config", "",
		"path to a litebus YAML config file",
	)
	rootCmd.PersistentFlags().StringVar(
		&httpBindURL, "http-bind-url", "",
		"HTTP transport bind URL, e.g. tcp://0.0.0.0:8080 (overrides config)",
	)
	rootCmd.PersistentFlags().StringVar(
		&tcpBindURL, "tcp-bind-url", "",
		"framed-TCP transport bind URL, e.g. tcp://0.0.0.0:9090 (overrides config)",
	)
	rootCmd.PersistentFlags().IntVar(
		&threadCount, "thread-count", 0,
		"shared actor worker pool size, 0 for runtime.NumCPU() (overrides config)",
	)
	rootCmd.PersistentFlags().BoolVar(
		&debug, "debug", false,
		"enable debug-level logging",
	)

	rootCmd.AddCommand(serveCmd)
}
