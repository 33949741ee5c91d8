package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hurttlocker/holdings/internal/assemble"
	"github.com/hurttlocker/holdings/internal/mcp"
	"github.com/hurttlocker/holdings/internal/pipeline"
	"github.com/hurttlocker/holdings/internal/server"
	"github.com/hurttlocker/holdings/internal/source"
	"github.com/hurttlocker/holdings/internal/store"
	"github.com/hurttlocker/holdings/internal/timeseries"
)

const (
	fromFiles = "files"
	fromDB    = "db"
)

// document is the nested dataset written by "holdings build".
type document struct {
	Build   string           `json:"build"`
	Source  string           `json:"source"`
	Range   timeseries.Range `json:"range"`
	Stats   assemble.Stats   `json:"stats"`
	Dropped []string         `json:"dropped"`
	Entries []assemble.Entry `json:"entries"`
}

// openLoader returns the configured dataset loader, a label for it and a
// close function.
func (a *app) openLoader() (source.Loader, string, func(), error) {
	switch a.from {
	case fromFiles, "":
		return a.settings.FileLoader(), filepath.Dir(a.settings.TitlesPath), func() {}, nil
	case fromDB:
		st, err := store.NewStore(store.StoreConfig{DBPath: a.settings.DBPath})
		if err != nil {
			return nil, "", nil, fmt.Errorf("opening store: %w", err)
		}
		return st, st.Path(), func() { st.Close() }, nil
	default:
		return nil, "", nil, fmt.Errorf("unknown source %q (want %s or %s)", a.from, fromFiles, fromDB)
	}
}

func (a *app) builder(l source.Loader, label string) pipeline.Builder {
	return func(ctx context.Context) (*pipeline.Result, error) {
		return pipeline.Build(ctx, l, pipeline.Options{
			Range:  a.settings.Range(),
			Source: label,
			Logger: a.logger,
		})
	}
}

func newBuildCmd(a *app) *cobra.Command {
	var out string
	var pretty bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the ordered entries and write them as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, label, closeFn, err := a.openLoader()
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := a.builder(l, label)(cmd.Context())
			if err != nil {
				return err
			}

			doc := document{
				Build:   res.ID.String(),
				Source:  res.Source,
				Range:   res.Range,
				Stats:   res.Stats,
				Dropped: res.Dropped,
				Entries: res.Output.Entries,
			}
			var data []byte
			if pretty {
				data, err = json.MarshalIndent(doc, "", "  ")
			} else {
				data, err = json.Marshal(doc)
			}
			if err != nil {
				return fmt.Errorf("encoding output: %w", err)
			}
			data = append(data, '\n')

			if out == "" || out == "-" {
				if _, err := cmd.OutOrStdout().Write(data); err != nil {
					return err
				}
			} else {
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", out, err)
				}
			}

			w := cmd.ErrOrStderr()
			printf(w, "Built %s titles into %s entries (%s clusters, largest %d) over %s in %s\n",
				humanize.Comma(int64(res.Stats.Titles)),
				humanize.Comma(int64(res.Stats.Entries)),
				humanize.Comma(int64(res.Stats.Clusters)),
				res.Stats.LargestCluster,
				res.Range,
				res.Duration.Round(time.Microsecond),
			)
			if n := len(res.Dropped); n > 0 {
				printf(w, "  dropped %s titles without holdings\n", humanize.Comma(int64(n)))
			}
			if res.Stats.Degraded > 0 {
				printf(w, "  %s titles have microfilm likely on acetate\n", humanize.Comma(int64(res.Stats.Degraded)))
			}
			if out != "" && out != "-" {
				printf(w, "  wrote %s (%s)\n", out, humanize.Bytes(uint64(len(data))))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the JSON output")
	cmd.Flags().StringVar(&a.from, "from", fromFiles, "Read datasets from files or db")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Copy the dataset files into the snapshot database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ds, err := source.Load(ctx, a.settings.FileLoader())
			if err != nil {
				return err
			}

			st, err := store.NewStore(store.StoreConfig{DBPath: a.settings.DBPath})
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			label := filepath.Dir(a.settings.TitlesPath)
			res, err := st.Import(ctx, ds, label)
			if err != nil {
				return err
			}
			a.logger.Info("import finished",
				zap.String("db", st.Path()),
				zap.String("hash", res.ContentHash),
				zap.Bool("unchanged", res.Unchanged),
			)

			w := cmd.ErrOrStderr()
			if res.Unchanged {
				when := "earlier"
				if snap, err := st.LastSnapshot(ctx); err == nil && snap != nil {
					when = humanize.Time(snap.ImportedAt)
				}
				printf(w, "Snapshot unchanged: %s already holds this data (imported %s)\n", st.Path(), when)
				return nil
			}
			// replacing a snapshot frees every old row
			if err := st.Vacuum(ctx); err != nil {
				a.logger.Warn("vacuum after import failed", zap.Error(err))
			}
			printf(w, "Imported %s titles, %s hard-copy and %s microfilm series (%s values) into %s\n",
				humanize.Comma(int64(res.Titles)),
				humanize.Comma(int64(res.HardCopy)),
				humanize.Comma(int64(res.Microfilm)),
				humanize.Comma(int64(res.Values)),
				st.Path(),
			)
			if res.SkippedValues > 0 {
				printf(w, "  skipped %s non-numeric values\n", humanize.Comma(int64(res.SkippedValues)))
			}
			return nil
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the latest build over HTTP for the renderer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			l, label, closeFn, err := a.openLoader()
			if err != nil {
				return err
			}
			defer closeFn()

			holder := pipeline.NewHolder(a.builder(l, label), a.logger)
			if _, err := holder.Rebuild(ctx); err != nil {
				return err
			}

			srv := server.New(server.Config{Addr: a.settings.Addr, Holder: holder, Logger: a.logger})
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(gctx) })

			if a.settings.Watch {
				if a.from == fromDB {
					a.logger.Warn("--watch only applies to dataset files; ignoring")
				} else {
					files := []string{a.settings.TitlesPath, a.settings.HardCopyPath, a.settings.MicrofilmPath}
					w, err := server.NewWatcher(files, srv.RebuildOnChange(), 0, a.logger)
					if err != nil {
						return err
					}
					g.Go(func() error { return w.Run(gctx) })
				}
			}

			printf(cmd.ErrOrStderr(), "Serving holdings data API on http://%s\n", a.settings.Addr)
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&a.opts.CLIAddr, "addr", "", "Listen address (default: 127.0.0.1:7777, or HOLDINGS_ADDR)")
	cmd.Flags().BoolVar(&a.opts.CLIWatch, "watch", false, "Rebuild when the dataset files change")
	cmd.Flags().StringVar(&a.from, "from", fromFiles, "Read datasets from files or db")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP tool server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			l, label, closeFn, err := a.openLoader()
			if err != nil {
				return err
			}
			defer closeFn()

			holder := pipeline.NewHolder(a.builder(l, label), a.logger)
			if _, err := holder.Rebuild(ctx); err != nil {
				return err
			}
			s := mcp.NewServer(mcp.ServerConfig{Holder: holder, Version: version})
			return mcp.ServeStdio(ctx, s, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&a.from, "from", fromFiles, "Read datasets from files or db")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show resolved configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(a.resolved, "", "  ")
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", data)
			return nil
		},
	}
}
