// Command risec compiles a model file into derivative routines and
// writes the bundle as JSON.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	rise "github.com/irisccy/rise"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "risec",
		Short:         "Compile model files into symbolic derivative routines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(compileCmd())
	return root
}

func compileCmd() *cobra.Command {
	var (
		order      int
		configPath string
		output     string
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "compile <model-file>",
		Short: "Parse, compile and differentiate a model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := buildLogger(verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			opts := rise.DefaultOptions()
			if configPath != "" {
				if opts, err = rise.LoadOptions(configPath); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("order") {
				opts.MaxDerivOrder = order
			}

			bundle, err := rise.CompileFile(args[0], opts, logger)
			if err != nil {
				return err
			}
			return writeBundle(bundle, output)
		},
	}
	cmd.Flags().IntVar(&order, "order", 2, "highest derivative order of the dynamic model")
	cmd.Flags().StringVar(&configPath, "config", "", "yaml options file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
