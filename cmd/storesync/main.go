package main

import (
	"os"

	"github.com/spf13/cobra"

	syncerr "github.com/vango-dev/storesync/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		syncerr.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "storesync",
		Short: "Inspect and serve synchronized storage areas",
		Long: `storesync reads and writes the storage areas that back synchronized
cells, watches a key the way a cell sees it, and serves the areas over
HTTP with a WebSocket hub that relays change notifications between
processes.

The storage backends come from storesync.json (or .yaml/.toml) in the
working directory, overridden by STORESYNC_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file or directory (default: working directory)")
	rootCmd.PersistentFlags().StringVar(&a.bridgeURL, "bridge", "", "Hub URL to announce writes to, e.g. ws://localhost:7070/ws")

	rootCmd.AddCommand(
		getCmd(a),
		setCmd(a),
		rmCmd(a),
		keysCmd(a),
		watchCmd(a),
		serveCmd(a),
		versionCmd(),
	)

	return rootCmd
}
