// Command plugind hosts hot-pluggable plugin packages behind an HTTP
// server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configDir string
	envName   string
	envFiles  []string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "plugind",
		Short:         "Dynamic plugin runtime",
		Long:          "plugind installs plugin archives at runtime, publishes their controllers in a live route table and tears them down again without a restart.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", "./configs", "directory holding plugind.yaml and logger.yaml")
	root.PersistentFlags().StringVar(&envName, "env", "development", "configuration environment subdirectory")
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, ".env files to load; missing files are skipped")

	root.AddCommand(newServeCmd(), newInspectCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "plugind:", err)
		os.Exit(1)
	}
}
