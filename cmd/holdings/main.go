// Command holdings builds the nested newspaper-holdings dataset and serves
// it to the rendering client.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hurttlocker/holdings/internal/config"
)

const version = "0.3.0"

// app carries global flag values and the state PersistentPreRunE derives
// from them.
type app struct {
	opts    config.ResolveOptions
	verbose bool
	from    string

	logger   *zap.Logger
	resolved config.ResolvedConfig
	settings config.Settings
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "holdings",
		Short: "Cluster newspaper titles and order their hard-copy and microfilm holdings",
		Long: `holdings merges title metadata with hard-copy and microfilm holdings series,
repairs gaps in each series, groups titles connected through their
connectivity lists and emits the entries ordered by microfilm total.

Datasets are read from a data directory (titles.json,
timeseries_items_hc.json, timeseries_items_mf.json) or from a SQLite
snapshot created with "holdings import".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logCfg := zap.NewProductionConfig()
			if a.verbose {
				logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			a.logger, err = logCfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			if cmd.Name() == "version" {
				return nil
			}

			a.resolved, err = config.ResolveConfig(a.opts)
			if err != nil {
				return fmt.Errorf("resolving config: %w", err)
			}
			a.settings, err = a.resolved.Settings()
			if err != nil {
				return err
			}
			a.logger.Debug("config resolved",
				zap.String("config", a.resolved.ConfigPath),
				zap.String("titles", a.settings.TitlesPath),
				zap.String("db", a.settings.DBPath),
			)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.opts.ConfigPath, "config", "", "Config file (default: ~/.holdings/config.yaml)")
	pf.StringVar(&a.opts.CLIDataDir, "data", "", "Data directory holding the three dataset files (or set HOLDINGS_DATA)")
	pf.StringVar(&a.opts.CLITitles, "titles", "", "Title metadata file (default: <data>/titles.json)")
	pf.StringVar(&a.opts.CLIHardCopy, "hc", "", "Hard-copy series file (default: <data>/timeseries_items_hc.json)")
	pf.StringVar(&a.opts.CLIMicrofilm, "mf", "", "Microfilm series file (default: <data>/timeseries_items_mf.json)")
	pf.StringVar(&a.opts.CLIDBPath, "db", "", "Snapshot database path (or set HOLDINGS_DB)")
	pf.StringVar(&a.opts.CLIEarliest, "earliest", "", "First year of the global range (default: derived from the data)")
	pf.StringVar(&a.opts.CLILatest, "latest", "", "Last year of the global range (default: derived from the data)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newBuildCmd(a),
		newImportCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "holdings %s\n", version)
		},
	}
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
