package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/estateview/internal/client"
	"github.com/wesm/estateview/internal/config"
	"github.com/wesm/estateview/internal/db"
	"github.com/wesm/estateview/internal/server"
	"github.com/wesm/estateview/internal/sync"
)

const (
	watcherDebounce  = 500 * time.Millisecond
	refreshTimeout   = 2 * time.Minute
	shutdownTimeout  = 10 * time.Second
	versionCheckWait = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default command)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	config.RegisterServeFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var (
		database *db.DB
		store    sync.SnapshotStore
	)
	if !cfg.NoPersist {
		database, err = openDB(cfg)
		if err != nil {
			return err
		}
		defer database.Close()
		log.Printf("Snapshot store: %s", database.Path())
		store = database
	}

	ctx, stop := signal.NotifyContext(
		cmd.Context(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	cl := newClient(cfg)
	engine := sync.NewEngine(cl, store)
	restoreLatest(ctx, database, engine)
	checkAPIVersion(ctx, cl)

	runInitialRefresh(ctx, engine, cfg)

	port := server.FindAvailablePort(cfg.Host, cfg.Port)
	if port != cfg.Port {
		fmt.Printf("Port %d in use, using %d\n", cfg.Port, port)
	}
	cfg.Port = port

	srv := server.New(cfg, engine, database,
		server.WithVersion(server.VersionInfo{
			Version:       version,
			Commit:        commit,
			BuildDate:     buildDate,
			MinAPIVersion: client.MinAPIVersion,
		}),
	)

	stopWatcher := startConfigWatcher(ctx, cmd, cfg, engine, srv)
	defer stopWatcher()

	go startPeriodicRefresh(ctx, engine, cfg.RefreshInterval)

	fmt.Printf("estateview %s listening at http://%s:%d\n",
		version, cfg.Host, cfg.Port)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), shutdownTimeout,
	)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// restoreLatest seeds engine with the newest stored snapshot so
// views are available before the first refresh lands.
func restoreLatest(
	ctx context.Context, database *db.DB, engine *sync.Engine,
) {
	if database == nil {
		return
	}
	snap, err := database.LatestSnapshot(ctx)
	if err != nil {
		log.Printf("warning: loading latest snapshot: %v", err)
		return
	}
	if snap != nil {
		engine.Restore(snap)
		fmt.Printf("Restored snapshot from %s\n",
			snap.FetchedAt.Local().Format(time.DateTime))
	}
}

// checkAPIVersion warns when the API advertises a version this
// build cannot read. An unreachable API is not fatal.
func checkAPIVersion(ctx context.Context, cl *client.Client) {
	ctx, cancel := context.WithTimeout(ctx, versionCheckWait)
	defer cancel()
	v, err := cl.ServerVersion(ctx)
	if err != nil {
		log.Printf("warning: API version unknown: %v", err)
		return
	}
	if err := client.CheckCompatible(v); err != nil {
		log.Printf("warning: %v", err)
	}
}

func runInitialRefresh(
	ctx context.Context, engine *sync.Engine, cfg config.Config,
) {
	fmt.Println("Running initial refresh...")
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	snap, err := engine.Refresh(
		ctx, requestFromConfig(cfg), printRefreshProgress,
	)
	if err != nil {
		fmt.Printf("\nRefresh failed: %v\n", err)
		return
	}
	c := snap.Counts()
	fmt.Printf(
		"\nRefresh complete: %d periods, %d locations, %d activities\n",
		c.Sales, c.Locations, c.Activities,
	)
}

func printRefreshProgress(p sync.Progress) {
	if p.DatasetsTotal > 0 {
		fmt.Printf("\r  %-40s", p)
	}
}

// startConfigWatcher reloads config.json when it changes and
// refreshes with the new granularity and activity limit.
func startConfigWatcher(
	ctx context.Context, cmd *cobra.Command, cfg config.Config,
	engine *sync.Engine, srv *server.Server,
) func() {
	onChange := func(_ []string) {
		next, err := config.Load(cmd.Flags())
		if err != nil {
			log.Printf("config reload: %v", err)
			return
		}
		if next.APIURL != cfg.APIURL || next.APIToken != cfg.APIToken {
			log.Println("config reload: API settings changed, restart to apply")
		}
		srv.SetHeatmapRows(next.HeatmapRows)

		req := engine.LastRequest()
		req.Granularity = next.Granularity
		req.ActivityLimit = next.ActivityLimit
		go refreshInBackground(ctx, engine, req)
	}

	watcher, err := sync.NewWatcher(watcherDebounce, onChange)
	if err != nil {
		log.Printf("warning: config watcher unavailable: %v", err)
		return func() {}
	}
	watcher.Start()
	if err := watcher.WatchFile(cfg.ConfigPath()); err != nil {
		log.Printf("warning: watching %s: %v", cfg.ConfigPath(), err)
		watcher.Stop()
		return func() {}
	}
	return watcher.Stop
}

func startPeriodicRefresh(
	ctx context.Context, engine *sync.Engine, interval time.Duration,
) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Println("Running scheduled refresh...")
			refreshInBackground(ctx, engine, engine.LastRequest())
		}
	}
}

// refreshInBackground runs one refresh and logs its outcome.
// Failures are already published by the engine.
func refreshInBackground(
	ctx context.Context, engine *sync.Engine, req sync.Request,
) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	if _, err := engine.Refresh(ctx, req, nil); err != nil &&
		!errors.Is(err, sync.ErrSuperseded) {
		log.Printf("scheduled refresh: %v", err)
	}
}
