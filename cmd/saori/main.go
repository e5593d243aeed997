// Command saori serves, runs and queries SAORI/1.0 modules.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "saori",
		Short: "SAORI/1.0 protocol engine",
		Long: `saori runs the SAORI/1.0 request/response engine.

It can serve a module over a socket, answer a single request read from
stdin, or act as the host and send requests to served modules.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to a TOML config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newExecCmd(),
		newRequestCmd(),
		newVersionCmd(),
	)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "saori %s (protocol SAORI/1.0)\n", version)
		},
	}
}
