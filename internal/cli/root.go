// Package cli implements the cqtrace command line.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// RootOptions holds flags shared by every command.
type RootOptions struct {
	ConfigPath string
	EnvPrefix  string
}

// NewRootCommand creates the cqtrace root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "cqtrace",
		Short:         "Trace context propagation for Go services",
		Long:          "cqtrace carries the x-cloud-trace-context header of inbound requests through goroutines, logs, outbound calls and SQL.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML or JSON config file")
	cmd.PersistentFlags().StringVar(&opts.EnvPrefix, "env-prefix", "CQTRACE", "prefix of configuration environment variables")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
