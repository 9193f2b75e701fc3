// Package cli wires configuration, backends and the terminal UI into the
// smartcart command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X smartcart/internal/cli.version=...".
var version = "dev"

type rootOptions struct {
	configPath string
	verbose    bool
}

// NewRootCmd builds the command tree. Running it without a subcommand opens
// the interactive search screen.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "smartcart",
		Short: "SmartCart - multimodal product search",
		Long: `SmartCart searches a product catalog by text, by image, or by both.
Results are ranked by the search API (or by the offline memory backend)
and can be grown with "load more" without losing the current selection.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd, opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML config file (uses ./smartcart.yaml or ~/.config/smartcart/config.yaml if not provided)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newSearchCmd(opts))
	root.AddCommand(newQueryCmd(opts))
	root.AddCommand(newAskCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}
