// Package cli implements sitectl, the offline support tool for checking BOQ
// reconciliation and permission resolution without a running API.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/permission"
)

// Options are the persistent flags shared by every command
type Options struct {
	CatalogPath string
	Output      outputFormat
	Verbose     bool
}

// NewRootCmd creates the top-level "sitectl" command
func NewRootCmd() *cobra.Command {
	opts := &Options{Output: outputText}

	root := &cobra.Command{
		Use:           "sitectl",
		Short:         "Offline BOQ reconciliation and permission tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.CatalogPath, "catalog", "", "Permission catalog YAML (defaults to the built-in catalog)")
	root.PersistentFlags().VarP(&opts.Output, "output", "o", "Output format: text or json")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log diagnostics to stderr")

	root.AddCommand(
		newReconcileCmd(opts),
		newPermissionsCmd(opts),
	)

	return root
}

func (o *Options) logger() *zap.Logger {
	if !o.Verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func (o *Options) resolver() (*permission.Resolver, error) {
	catalog, err := permission.LoadCatalog(o.CatalogPath)
	if err != nil {
		return nil, err
	}
	return permission.NewResolver(catalog), nil
}
