// Command ordersync ingests order-confirmation emails into a table store
// and enriches HR-XML order documents from it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/staffingops/ordersync/internal/config"
	"github.com/staffingops/ordersync/internal/enrich"
	"github.com/staffingops/ordersync/internal/extract"
	"github.com/staffingops/ordersync/internal/logging"
	"github.com/staffingops/ordersync/internal/mailbox"
	"github.com/staffingops/ordersync/internal/scanner"
	"github.com/staffingops/ordersync/internal/stats"
	"github.com/staffingops/ordersync/internal/table"
	"github.com/staffingops/ordersync/internal/tracker"
	"github.com/staffingops/ordersync/internal/web"
)

// Version information (set via ldflags)
var (
	version = "v0.1.0"
	gitSHA  = "unknown"
)

type app struct {
	cfgPath     string
	credentials string
	verbose     bool
	cfg         config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "ordersync",
		Short:         "Order-confirmation ingest and XML enrichment",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			if a.verbose {
				cfg.Log.Level = "debug"
			}
			logging.Setup(cfg.Log)

			creds := a.credentials
			if creds == "" {
				creds = cfg.Source.CredentialsFile
			}
			if err := mailbox.SetCredentialsFile(creds); err != nil {
				return err
			}

			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&a.credentials, "credentials", "", "path to cloud credentials file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newScanCmd(a), newEnrichCmd(a), newServeCmd(a), newVersionCmd())
	return root
}

func newScanCmd(a *app) *cobra.Command {
	var (
		forceResync bool
		watch       bool
		interval    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan pass over the source folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			if interval == 0 {
				interval = a.cfg.Source.Interval
			}

			s, closeAll, err := a.buildScanner(ctx, forceResync, stats.New(nil))
			if err != nil {
				return err
			}
			defer closeAll()

			if watch {
				err := s.Watch(ctx, interval)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			res, err := s.Scan(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scan %s: %d seen, %d new, %d appended, %d duplicates, %d failed (%s)\n",
				res.RunID, res.Seen, res.New, res.Appended, res.Duplicates, res.Failed, res.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&forceResync, "force-resync", false, "re-read every item, ignoring the processed-item state for this pass")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep scanning on an interval until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 0, "interval between passes in watch mode (default from config)")
	return cmd
}

func newEnrichCmd(a *app) *cobra.Command {
	var (
		outPath  string
		preserve bool
	)

	cmd := &cobra.Command{
		Use:   "enrich FILE",
		Short: "Enrich one XML order document from the table store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			doc, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			store, err := table.NewStore(ctx, a.tableConfig())
			if err != nil {
				return err
			}
			defer store.Close()

			policy := enrich.OverwriteWithLatest
			if preserve {
				policy = enrich.PreserveExisting
			}
			out, err := enrich.New(policy).Enrich(ctx, doc, store)
			if err != nil {
				return err
			}

			if outPath == "" || outPath == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return os.WriteFile(outPath, out, 0o644)
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "output path (default stdout)")
	cmd.Flags().BoolVar(&preserve, "preserve-existing", false, "keep non-empty values already present in the document")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the enrichment endpoint and the statistics dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			if addr == "" {
				addr = a.cfg.Web.Addr
			}

			agg := stats.New(stats.InitMetrics(""))

			store, err := table.NewStore(ctx, a.tableConfig())
			if err != nil {
				return err
			}
			defer store.Close()

			srv, err := web.New(addr, enrich.New(enrich.OverwriteWithLatest), store, agg)
			if err != nil {
				return err
			}

			if watch {
				s, closeAll, err := a.buildScanner(ctx, false, agg)
				if err != nil {
					return err
				}
				defer closeAll()
				go s.Watch(ctx, a.cfg.Source.Interval)
			}

			err = srv.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "also run the scan loop in this process")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ordersync %s (%s)\n", version, gitSHA)
		},
	}
}

// buildScanner wires the scan collaborators. The returned func closes them.
func (a *app) buildScanner(ctx context.Context, forceResync bool, agg *stats.Aggregator) (*scanner.Scanner, func(), error) {
	if a.cfg.Source.BucketURL == "" {
		return nil, nil, errors.New("no source bucket configured (source.bucket_url or ORDERSYNC_SOURCE_URL)")
	}

	router := extract.NewRouter()
	folder, err := mailbox.OpenFolder(ctx, a.cfg.Source.BucketURL, a.cfg.Source.Prefix, router.Supported)
	if err != nil {
		return nil, nil, err
	}

	trk, err := tracker.New(tracker.Config{Path: a.cfg.Tracker.Path, ForceResync: forceResync})
	if err != nil {
		folder.Close()
		return nil, nil, err
	}

	store, err := table.NewStore(ctx, a.tableConfig())
	if err != nil {
		folder.Close()
		return nil, nil, err
	}

	closeAll := func() {
		store.Close()
		folder.Close()
	}
	return scanner.New(folder, trk, store, agg), closeAll, nil
}

func (a *app) tableConfig() table.Config {
	return table.Config{
		Backend:      a.cfg.Table.Backend,
		CSVBucketURL: a.cfg.Table.CSVBucketURL,
		CSVKey:       a.cfg.Table.CSVKey,
		PostgresDSN:  a.cfg.Table.PostgresDSN,
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
