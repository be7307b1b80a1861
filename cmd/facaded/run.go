package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-facade/internal/api"
	"github.com/nerrad567/gray-logic-facade/internal/audit"
	"github.com/nerrad567/gray-logic-facade/internal/bridge"
	"github.com/nerrad567/gray-logic-facade/internal/definition"
	"github.com/nerrad567/gray-logic-facade/internal/facade"
	"github.com/nerrad567/gray-logic-facade/internal/history"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-facade/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-facade/internal/telemetry"
	"github.com/nerrad567/gray-logic-facade/internal/watcher"
)

// discoveryWait is how long retained readings are collected before
// wildcard sources are expanded.
const discoveryWait = 2 * time.Second

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Serve the facade device until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return run(ctx, cfg)
		},
	}
}

// run connects the adapters and serves the device until ctx is done.
func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting facade service",
		"version", version,
		"commit", commit,
		"build_date", date,
		"device", cfg.Facade.Device,
		"definition", cfg.Facade.Definition,
	)

	// The definition is checked before any connection is made.
	def, err := definition.Load(cfg.Facade.Definition)
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Error("error shutting down telemetry", "error", err)
		}
	}()

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if err := mqttClient.Close(); err != nil {
			log.Error("error closing MQTT", "error", err)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	qos := mqttClient.DefaultQoS()
	publishers := []facade.Publisher{
		bridge.NewPublisher(mqttClient,
			bridge.WithPublishQoS(qos),
			bridge.WithPublisherLogger(log.Component("publisher"))),
	}

	g, gctx := errgroup.WithContext(ctx)

	var historyDB *database.DB
	if cfg.History.Enabled {
		db, err := openHistory(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if err := db.Close(); err != nil {
				log.Error("error closing database", "error", err)
			}
		}()
		historyDB = db
		recorder := history.NewRecorder(history.NewSQLiteRepository(db.DB), log.Component("history"))
		publishers = append(publishers, recorder)
		g.Go(func() error {
			return recorder.RunPruner(gctx, cfg.GetRetention(), cfg.GetPruneInterval())
		})
		log.Info("history enabled", "path", cfg.Database.Path, "retention", cfg.GetRetention().String())
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if err := influxClient.Close(); err != nil {
				log.Error("error closing InfluxDB", "error", err)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		publishers = append(publishers, influxClient.Archiver())
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	if cfg.Telemetry.Enabled {
		recorder, err := telemetry.NewRecorder(otel.Meter(cfg.Telemetry.Meter))
		if err != nil {
			return err
		}
		publishers = append(publishers, recorder)
		log.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint)
	}

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.Component("websocket"))
		publishers = append(publishers, hub)
	}

	source := bridge.NewSource(mqttClient,
		bridge.WithQoS(qos),
		bridge.WithSourceLogger(log.Component("source")),
		bridge.WithCatalog(def.Catalog...))
	if err := source.Discover(ctx, discoveryWait); err != nil {
		return err
	}

	svc := &service{
		cfg:      cfg,
		log:      log,
		registry: definition.NewRegistry(),
		options: []facade.Option{
			facade.WithSource(source),
			facade.WithPublishers(publishers...),
			facade.WithLogger(log.Component("facade")),
			facade.WithIgnoredReasons(cfg.Facade.IgnoredReasons...),
		},
		reloads: make(chan struct{}, 1),
	}

	if cfg.API.Enabled {
		var (
			historyRepo history.Repository
			auditRepo   audit.Repository
		)
		if historyDB != nil {
			historyRepo = history.NewSQLiteRepository(historyDB.DB)
			auditRepo = audit.NewSQLiteRepository(historyDB.DB)
		}
		apiServer, err := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Devices: svc,
			History: historyRepo,
			Audit:   auditRepo,
			Hub:     hub,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(gctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		log.Info("API enabled", "address", apiServer.Addr().String(), "auth", cfg.API.Auth.Enabled)
		defer func() {
			if err := apiServer.Close(); err != nil {
				log.Error("error closing API server", "error", err)
			}
		}()
	}

	g.Go(func() error { return source.Run(gctx) })
	g.Go(func() error { return svc.serve(gctx, def) })
	if cfg.Facade.Watch {
		w, err := watcher.New(cfg.Facade.Definition, cfg.GetWatchDebounce())
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx, svc.onDefinitionChange) })
		log.Info("watching definition", "path", w.File)
	}

	err = g.Wait()
	log.Info("facade service stopped")
	return err
}
