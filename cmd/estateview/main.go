package main

import (
	"context"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/wesm/estateview/internal/analytics"
	"github.com/wesm/estateview/internal/client"
	"github.com/wesm/estateview/internal/config"
	"github.com/wesm/estateview/internal/db"
	"github.com/wesm/estateview/internal/sync"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "estateview",
		Short: "Property analytics dashboard for a listings API",
		Long: `estateview fetches sales, location, activity and response
datasets from a listings API, keeps the newest snapshot current and
serves chart-ready views, a CSV export and an HTML report.

Data is stored in ~/.estateview/ by default.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	config.RegisterFlags(root.PersistentFlags())
	config.RegisterServeFlags(root.Flags())

	root.AddCommand(
		newServeCmd(),
		newExportCmd(),
		newActivitiesCmd(),
		newSnapshotsCmd(),
		newPruneCmd(),
		newLoginCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig layers config for cmd and makes sure the data dir
// exists.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return cfg, fmt.Errorf("creating data dir: %w", err)
	}
	return cfg, nil
}

func openDB(cfg config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return database, nil
}

func newClient(cfg config.Config) *client.Client {
	return client.New(cfg.APIURL, client.WithToken(cfg.APIToken))
}

// requestFromConfig is the refresh request implied by config
// alone, without feed filters.
func requestFromConfig(cfg config.Config) sync.Request {
	return sync.Request{
		Granularity:   cfg.Granularity,
		ActivityLimit: cfg.ActivityLimit,
	}
}

// addFilterFlags registers the backend feed filters on cmd.
func addFilterFlags(cmd *cobra.Command, f *analytics.Filters) {
	cmd.Flags().StringVar(&f.PropertyType, "property-type", "",
		"Only activities for this property type")
	cmd.Flags().StringVar(&f.Location, "location", "",
		"Only activities in this location")
	cmd.Flags().StringVar(&f.DateRange, "date-range", "",
		"Activity window: 7d, 30d, 90d, 1y or all")
}

// fetchOnce runs a single unpersisted refresh for one-shot
// commands.
func fetchOnce(
	ctx context.Context, cfg config.Config, filters analytics.Filters,
) (*analytics.Snapshot, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	req := requestFromConfig(cfg)
	req.Filters = filters

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	engine := sync.NewEngine(newClient(cfg), nil)
	return engine.Refresh(ctx, req, nil)
}
