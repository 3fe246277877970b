package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/OCAP2/awacs/internal/api"
	"github.com/OCAP2/awacs/internal/cache"
	"github.com/OCAP2/awacs/internal/campaign"
	"github.com/OCAP2/awacs/internal/config"
	"github.com/OCAP2/awacs/internal/dispatcher"
	"github.com/OCAP2/awacs/internal/influx"
	"github.com/OCAP2/awacs/internal/logging"
	"github.com/OCAP2/awacs/internal/monitor"
	intOtel "github.com/OCAP2/awacs/internal/otel"
	"github.com/OCAP2/awacs/internal/publish"
	"github.com/OCAP2/awacs/internal/storage"
	"github.com/OCAP2/awacs/internal/terrain"
	"github.com/OCAP2/awacs/internal/worker"
	"github.com/OCAP2/awacs/pkg/hostbridge"
)

const appName = "awacs"

// app holds everything built from one config load.
type app struct {
	start time.Time
	log   *slog.Logger
	zl    zerolog.Logger

	logFile *os.File
	otelLog *os.File
	logs    *logging.SlogManager
	otel    *intOtel.Provider

	coord      *campaign.Coordinator
	backend    storage.Backend
	publisher  *publish.Publisher
	influx     *influx.Manager
	dispatcher *dispatcher.Dispatcher
	worker     *worker.Manager
	monitor    *monitor.Service
	bridge     *hostbridge.Bridge

	drainInterval time.Duration
}

// dbProvider is implemented by the gorm-backed storage backends.
type dbProvider interface {
	DB() *gorm.DB
}

func newApp(ctx context.Context, configDir string) (_ *app, err error) {
	if err := config.Load(configDir); err != nil {
		return nil, err
	}

	a := &app{start: time.Now()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	a.logFile, err = logging.OpenLogFile(logging.LogFilePath(logsDir, appName, a.start))
	if err != nil {
		return nil, err
	}
	level := config.GetString("logLevel")
	a.zl = logging.NewZerolog(a.logFile, level)

	otelCfg := config.GetOTelConfig()
	var otelWriter io.Writer
	if otelCfg.Enabled {
		a.otelLog, err = logging.OpenLogFile(logging.LogFilePath(logsDir, appName+".otel", a.start))
		if err != nil {
			return nil, err
		}
		otelWriter = a.otelLog
	}
	a.otel, err = intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		BatchTimeout:   otelCfg.BatchTimeout,
		LogWriter:      otelWriter,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
		MetricInterval: otelCfg.MetricInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}

	logOpts := logging.Options{
		File:     a.logFile,
		Level:    level,
		Provider: a.otel.LoggerProvider(),
		Context: logging.CampaignContext(
			func() string {
				if a.coord == nil {
					return ""
				}
				return a.coord.CampaignName()
			},
			func() int {
				if a.coord == nil {
					return 0
				}
				return a.coord.Ticks()
			},
		),
	}
	if config.GetBool("graylog.enabled") {
		gw, gerr := logging.NewGelfWriter(config.GetString("graylog.address"))
		if gerr != nil {
			return nil, fmt.Errorf("graylog: %w", gerr)
		}
		logOpts.Gelf = gw
	}
	a.logs = logging.NewSlogManager()
	a.logs.Setup(logOpts)
	a.log = a.logs.Logger()
	a.log.Info("Starting", "version", Version, "buildDate", BuildDate, "configDir", configDir)

	meter := a.otel.Meter(appName)

	terr, err := loadTerrain(config.GetTerrainConfig())
	if err != nil {
		return nil, err
	}

	a.coord, err = campaign.New(campaign.Config{
		Visibility: config.GetVisibilityConfig(),
		Contact:    config.GetContactConfig(),
		Ledger:     config.GetLedgerConfig(),
		FrameLimit: config.GetInt("frameLimit"),
	}, campaign.Dependencies{
		Terrain: terr,
		Units:   cache.NewUnitCache(),
		Meter:   meter,
		Logger:  a.log,
	})
	if err != nil {
		return nil, err
	}

	a.backend, err = createStorageBackend(config.GetStorageConfig(), a.zl, a.log, a.start)
	if err != nil {
		return nil, err
	}
	if err := a.backend.Init(); err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}
	a.coord.AddSink(a.backend)

	if kc := config.GetKafkaConfig(); kc.Enabled {
		a.publisher, err = publish.New(publish.Config{
			Brokers:      kc.Brokers,
			Topic:        kc.Topic,
			WriteTimeout: kc.WriteTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.coord.AddSink(a.publisher)
		a.log.Info("Kafka kill publisher enabled", "brokers", kc.Brokers, "topic", kc.Topic)
	}

	var perfWriters []monitor.PerformanceWriter
	if ic := config.GetInfluxConfig(); ic.Enabled {
		backup := filepath.Join(logsDir, fmt.Sprintf("%s_influx_%s.lp.gz", appName, a.start.Format("20060102_150405")))
		a.influx = influx.NewManager(ic, a.zl, backup)
		if err := a.influx.Connect(ctx); err != nil {
			return nil, fmt.Errorf("influx: %w", err)
		}
		a.coord.AddSink(a.influx)
		perfWriters = append(perfWriters, a.influx)
	}

	a.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(a.zl), meter)
	if err != nil {
		return nil, err
	}
	workerDeps := worker.Dependencies{
		Coordinator: a.coord,
		Logger:      a.log,
		Backend:     a.backend,
	}
	if ac := config.GetAPIConfig(); ac.Enabled {
		client := api.New(ac.ServerURL, ac.APIKey)
		if err := client.Healthcheck(); err != nil {
			a.log.Warn("Stats server not reachable", "url", ac.ServerURL, "error", err)
		}
		workerDeps.Uploader = client
		workerDeps.UploadTag = ac.Tag
	}
	a.worker = worker.NewManager(workerDeps)
	a.worker.RegisterHandlers(a.dispatcher)
	if a.influx != nil {
		a.registerMetricHandler()
	}

	monDeps := monitor.Dependencies{
		Coordinator: a.coord,
		WriteTimer:  a.worker,
		Writers:     perfWriters,
		Logger:      a.log,
		StatusFile:  config.GetString("statusFile"),
		Interval:    config.GetDuration("monitor.interval"),
	}
	if p, ok := a.backend.(dbProvider); ok {
		monDeps.DB = p.DB()
	}
	a.monitor = monitor.NewService(monDeps)
	if monDeps.DB != nil && config.GetBool("db.hypertables") {
		if err := a.monitor.ValidateHypertables(map[string][]string{
			"performances": {"campaign_id"},
		}); err != nil {
			a.log.Warn("Hypertables not created", "error", err)
		}
	}
	if err := a.monitor.Start(); err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}

	a.drainInterval = config.GetDuration("ledger.drainInterval")
	a.bridge = hostbridge.New(a.dispatcher, Version, a.log)
	return a, nil
}

func loadTerrain(cfg config.TerrainConfig) (campaign.Terrain, error) {
	if cfg.File == "" {
		return terrain.Flat{Elevation: cfg.Elevation}, nil
	}
	g, err := terrain.LoadFile(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("load terrain: %w", err)
	}
	return g, nil
}

// registerMetricHandler forwards host-side metrics straight to influx.
func (a *app) registerMetricHandler() {
	a.dispatcher.Register(":METRIC:", func(e dispatcher.Event) (any, error) {
		bucket, point, err := influx.ProcessMetricData(e.Args)
		if err != nil {
			return nil, err
		}
		return nil, a.influx.WritePoint(bucket, point)
	}, dispatcher.Buffered(1000), dispatcher.Logged())
}

// run serves host commands until in is exhausted or ctx is cancelled.
// periodicDrain enables wall-clock ledger drains; replays rely on the
// drains and campaign end recorded in the log.
func (a *app) run(ctx context.Context, in io.Reader, out io.Writer, periodicDrain bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		err := a.bridge.Serve(gctx, in, out)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if periodicDrain && a.drainInterval > 0 {
		g.Go(func() error {
			a.drainLoop(gctx)
			return nil
		})
	}
	return g.Wait()
}

func (a *app) drainLoop(ctx context.Context) {
	ticker := time.NewTicker(a.drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if a.coord.Campaign() == nil {
				continue
			}
			if _, err := a.dispatcher.Dispatch(dispatcher.Event{Command: ":DRAIN:", Timestamp: now}); err != nil {
				a.log.Error("Periodic drain failed", "error", err)
			}
		}
	}
}

// close ends a running campaign so pending kills reach storage, then tears
// everything down in reverse order.
func (a *app) close() error {
	var errs []error

	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.dispatcher != nil {
		if a.coord != nil && a.coord.Campaign() != nil {
			if _, err := a.dispatcher.Dispatch(dispatcher.Event{Command: ":CAMPAIGN:END:", Timestamp: time.Now()}); err != nil {
				errs = append(errs, fmt.Errorf("end campaign: %w", err))
			}
		}
		a.dispatcher.Close()
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
		if e, ok := a.backend.(storage.Exporter); ok && e.ExportedFilePath() != "" {
			a.log.Info("Campaign exported", "path", e.ExportedFilePath())
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("influx close: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.logs != nil {
		if err := a.logs.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log flush: %w", err))
		}
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
		}
	}
	if a.otelLog != nil {
		a.otelLog.Close()
	}
	if a.logFile != nil {
		if a.log != nil {
			a.log.Info("Stopped")
		}
		a.logFile.Close()
	}
	return errors.Join(errs...)
}

// joinClose closes a and folds its error into runErr.
func joinClose(runErr error, a *app) error {
	return errors.Join(runErr, a.close())
}
