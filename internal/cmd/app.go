package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fieldparty/internal/blob"
	"fieldparty/internal/codec"
	"fieldparty/internal/config"
	"fieldparty/internal/core"
	"fieldparty/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
)

// app holds the state of one command invocation. Expensive pieces are opened
// on first use so config commands never touch storage.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config

	logger   *logging.Logger
	registry *prometheus.Registry
	metrics  *core.PrometheusRecorder
	svc      *core.Service
	blobs    blob.Store
	closers  []io.Closer
}

func newApp() *app {
	return &app{v: viper.New()}
}

func (a *app) log() (*logging.Logger, error) {
	if a.logger != nil {
		return a.logger, nil
	}
	logger, err := logging.New(a.cfg.Logging.Dir, logging.ParseLevel(a.cfg.Logging.Level))
	if err != nil {
		return nil, fmt.Errorf("open logger: %w", err)
	}
	a.logger = logger
	a.closers = append(a.closers, logger)
	return logger, nil
}

// service opens the configured document store and builds the managers on it.
func (a *app) service(ctx context.Context) (*core.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	logger, err := a.log()
	if err != nil {
		return nil, err
	}
	opts, err := a.coreOptions(logger)
	if err != nil {
		return nil, err
	}
	docs, closer, err := core.OpenDocumentStore(ctx, core.StorageOptions{
		Driver:      core.StorageDriver(a.cfg.Storage.Driver),
		SQLitePath:  a.cfg.Storage.SQLitePath,
		PostgresDSN: a.cfg.Storage.PostgresDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", a.cfg.Storage.Driver, err)
	}
	a.closers = append(a.closers, closer)
	logger.Debug("document store opened", "driver", a.cfg.Storage.Driver, "codec", a.cfg.Storage.Codec)
	a.svc = core.NewService(docs, opts...)
	return a.svc, nil
}

func (a *app) coreOptions(logger *logging.Logger) ([]core.Option, error) {
	c, err := codec.New(codec.Name(a.cfg.Storage.Codec))
	if err != nil {
		return nil, err
	}
	opts := []core.Option{
		core.WithLogger(logger.WithComponent("sessions")),
		core.WithCodec(c),
		core.WithMaxAttempts(a.cfg.Sessions.MaxAttempts),
		core.WithRetryBackoff(a.cfg.Sessions.RetryBackoff),
	}
	if a.cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		recorder, err := core.NewPrometheusRecorder(a.registry)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		a.metrics = recorder
		opts = append(opts, core.WithMetrics(recorder))
	}
	if path := a.cfg.Metrics.TraceFile; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create trace dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.closers = append(a.closers, f)
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}
	return opts, nil
}

// blobStore opens the configured snapshot archive backend.
func (a *app) blobStore(ctx context.Context) (blob.Store, error) {
	if a.blobs != nil {
		return a.blobs, nil
	}
	store, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open %s blob store: %w", a.cfg.Blob.Driver, err)
	}
	a.blobs = store
	return store, nil
}

// conflicts sums the version conflict counter across session kinds.
func (a *app) conflicts() (float64, bool) {
	if a.registry == nil {
		return 0, false
	}
	families, err := a.registry.Gather()
	if err != nil {
		return 0, false
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != "fieldparty_version_conflicts_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total, true
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}
