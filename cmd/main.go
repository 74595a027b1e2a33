package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/1F47E/geo-media-map/internal/config"
	"github.com/1F47E/geo-media-map/internal/logger"
	"github.com/1F47E/geo-media-map/internal/metrics"
	"github.com/1F47E/geo-media-map/pkg/dataset"
	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/1F47E/geo-media-map/pkg/postgis"
	"github.com/1F47E/geo-media-map/pkg/selection"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	verbose     bool
	metricsAddr string
	datasetFlag string
)

var rootCmd = &cobra.Command{
	Use:   "mediamap",
	Short: "Interactive map of geotagged media",
	Long: `Shows a media point dataset on a map. The selected point lives in a
shared selection store, so every view of the same session follows it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default mediamap.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().StringVarP(&datasetFlag, "dataset", "d", "", "Dataset source: sample, postgis or a .yaml/.json file")

	rootCmd.AddCommand(viewCmd, snapshotCmd, tableCmd, loadCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds what every command shares
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	rc      *redis.Client
	closers []func()
}

// logTo picks the log destination once the config is known
type logTo func(cfg *config.Config) (io.Writer, error)

func toStderr(*config.Config) (io.Writer, error) { return os.Stderr, nil }

// setup loads config and builds the logger
func setup(out logTo) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logOut, err := out(cfg)
	if err != nil {
		return nil, err
	}
	if datasetFlag != "" {
		cfg.Dataset.Source = datasetFlag
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log := logger.Configure(logOut, level, cfg.Log.Format)
	a := &app{cfg: cfg, log: log}
	if cfg.Source != "" {
		log.Debug("config_loaded", "path", cfg.Source)
	}

	if rc := cfg.RedisClient(); rc != nil {
		a.rc = rc
		a.closers = append(a.closers, func() { rc.Close() })
	}
	if cfg.Metrics.Addr != "" {
		a.serveMetrics(cfg.Metrics.Addr)
	}
	return a, nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics_server_failed", "addr", addr, "error", err)
		}
	}()
	a.log.Info("metrics_listening", "addr", addr)
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// provider returns the configured dataset source, behind the redis cache
// when redis is configured
func (a *app) provider(ctx context.Context) (dataset.Provider, error) {
	source := a.cfg.Dataset.Source
	var p dataset.Provider
	if source == "postgis" {
		store, err := postgis.Open(ctx, a.cfg.PostGIS, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { store.Close() })
		p = store
	} else {
		var err error
		if p, err = dataset.Open(source); err != nil {
			return nil, err
		}
	}

	if a.rc == nil {
		return p, nil
	}
	return &dataset.Cached{
		Source: p,
		Client: a.rc,
		Key:    "mediamap:dataset:" + source,
		TTL:    a.cfg.Dataset.CacheTTL,
		Logger: a.log,
	}, nil
}

// loadPoints loads and validates the configured dataset
func (a *app) loadPoints(ctx context.Context) ([]models.MediaPoint, error) {
	p, err := a.provider(ctx)
	if err != nil {
		return nil, err
	}
	points, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	valid, dropped := dataset.Validate(points, a.log)
	a.log.Info("dataset_loaded", "source", a.cfg.Dataset.Source, "points", len(valid), "dropped", dropped)
	return valid, nil
}

// selectionStore returns the session store from redis, following writes
// from other processes, or an in-process address store starting at address
func (a *app) selectionStore(ctx context.Context, address string) (selection.Store, error) {
	if a.rc == nil {
		s, err := selection.NewAddressStore(address)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	rs, err := a.sessionStore(ctx, address)
	if err != nil {
		return nil, err
	}

	listenCtx, cancel := context.WithCancel(ctx)
	a.closers = append(a.closers, cancel)
	go func() {
		if err := rs.Listen(listenCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("selection_listen_stopped", "error", err)
		}
	}()
	return rs, nil
}

// sessionStore reads the redis session once. Nothing arrives from other
// processes afterwards, so single goroutine callers can use it as is.
func (a *app) sessionStore(ctx context.Context, address string) (*selection.RedisStore, error) {
	rs := selection.NewRedisStore(a.rc, a.cfg.Redis.Session, a.log)
	if err := rs.Load(ctx); err != nil {
		return nil, err
	}
	if t := tokenOf(address); !t.IsNone() {
		rs.Write(t)
	}
	return rs, nil
}

// tokenOf reads the selection parameter of an address
func tokenOf(address string) selection.Token {
	s, err := selection.NewAddressStore(address)
	if err != nil {
		return selection.None
	}
	return s.Read()
}

// addressFor returns the start address selecting id, "/" when id is empty
func addressFor(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "/"
	}
	return selection.Link("/", selection.Token(id))
}
