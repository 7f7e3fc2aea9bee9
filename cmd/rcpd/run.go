package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/rcp-core/internal/api"
	"github.com/nerrad567/rcp-core/internal/device"
	"github.com/nerrad567/rcp-core/internal/engine"
	"github.com/nerrad567/rcp-core/internal/history"
	"github.com/nerrad567/rcp-core/internal/infrastructure/config"
	"github.com/nerrad567/rcp-core/internal/infrastructure/database"
	"github.com/nerrad567/rcp-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/rcp-core/internal/infrastructure/logging"
	"github.com/nerrad567/rcp-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/rcp-core/internal/infrastructure/redis"
	"github.com/nerrad567/rcp-core/internal/rcp"
	"github.com/nerrad567/rcp-core/internal/telemetry"
	"github.com/nerrad567/rcp-core/migrations"
)

// shutdownTimeout bounds the final status flush.
const shutdownTimeout = 10 * time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the device engine until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			path := configPath(cmd)
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return run(ctx, cfg)
		},
	}
}

// run wires the engine from cfg and blocks until ctx is cancelled.
//
// Shutdown runs in reverse order of startup: the API and the engine stop
// taking commands, devices flush their last statuses, sinks drain, and the
// MQTT client goes last so the offline presence is published.
func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting rcpd",
		"version", version,
		"commit", commit,
		"build_date", date,
		"site", cfg.Site.ID,
	)

	topics := rcp.NewTopics(cfg.Protocol.Prefix, cfg.Protocol.ID, cfg.Protocol.Version)
	router, err := rcp.NewRouter(topics)
	if err != nil {
		return fmt.Errorf("building command router: %w", err)
	}
	metrics := telemetry.NewMetrics()

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics.EngineState())
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", mqttClient.ClientID(),
		"namespace", topics.AllCommands(),
	)

	checks := map[string]api.HealthCheck{
		"mqtt": mqttClient.HealthCheck,
	}

	// Optional backends. Each is connected before the devices exist so the
	// sinks see the first status of every device.
	var historyRepo history.Repository
	if cfg.Database.Enabled {
		db, err := openHistory(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		historyRepo = history.NewSQLiteRepository(db.DB)
		checks["database"] = db.HealthCheck
		log.Info("status history enabled", "path", db.Path(), "retention_days", cfg.Database.HistoryRetention)
	} else {
		log.Info("status history disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		checks["influxdb"] = influxClient.HealthCheck
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	var cache *telemetry.StatusCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.Connect(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to Redis: %w", err)
		}
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := redisClient.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
		cache = telemetry.NewStatusCache(redisClient,
			telemetry.WithPrefix(cfg.Redis.Prefix),
			telemetry.WithTTL(time.Duration(cfg.Redis.TTL)*time.Second),
			telemetry.WithCacheLogger(log.Component("cache")),
		)
		checks["redis"] = func(ctx context.Context) error {
			return redis.HealthCheck(ctx, redisClient)
		}
		log.Info("Redis status cache enabled", "address", cfg.Redis.Address)
	} else {
		log.Info("Redis status cache disabled")
	}

	// Devices
	enumStyle, err := rcp.ParseEnumStyle(cfg.Protocol.EnumStyle)
	if err != nil {
		return fmt.Errorf("protocol config: %w", err)
	}
	transport := engine.NewStatusTransport(mqttClient, topics, byte(cfg.MQTT.QoS), cfg.MQTT.Retain)
	transport.SetEnumStyle(enumStyle)
	registry := device.NewRegistry(transport, deviceOptions(cfg.Device))
	registry.SetLogger(log.Component("device"))
	registry.SetObserver(metrics)

	var sinks errgroup.Group
	sinkCtx, stopSinks := context.WithCancel(context.Background())
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("stopping devices")
		if err := registry.Shutdown(shutdownCtx); err != nil {
			log.Error("error stopping devices", "error", err)
		}
		// Shutdown closes every subscription, so the sinks drain and return.
		stopSinks()
		_ = sinks.Wait()
	}()

	subscribe := func(name string, fn func(context.Context, <-chan rcp.Status)) {
		updates, _ := registry.Broadcaster().Subscribe(device.DefaultSubscriberBuffer)
		sinks.Go(func() error {
			fn(sinkCtx, updates)
			log.Debug("sink stopped", "sink", name)
			return nil
		})
	}
	if historyRepo != nil {
		recorder := history.NewRecorder(historyRepo, time.Duration(cfg.Database.HistoryRetention)*24*time.Hour)
		recorder.SetLogger(log.Component("history"))
		subscribe("history", recorder.Run)
	}
	if influxClient != nil {
		subscribe("influxdb", telemetry.NewInfluxSink(influxClient).Run)
	}
	if cache != nil {
		subscribe("redis", cache.Run)
	}

	for _, d := range cfg.Devices {
		class, err := device.ParseClass(d.Class)
		if err != nil {
			return fmt.Errorf("device %s: %w", d.ID, err)
		}
		if _, err := registry.Create(device.Spec{ID: d.ID, Class: class, Slots: d.Slots}); err != nil {
			return fmt.Errorf("creating device %s: %w", d.ID, err)
		}
		log.Info("device created", "device", d.ID, "class", class)
	}
	metrics.SetDevices(registry.Count())

	// Engine
	eng := engine.New(mqttClient, router, registry, byte(cfg.MQTT.QoS))
	eng.SetLogger(log.Component("engine"))
	eng.SetObserver(metrics)
	if err := eng.Start(); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer func() {
		if stopErr := eng.Stop(); stopErr != nil {
			log.Error("error stopping engine", "error", stopErr)
		}
	}()

	// HTTP API
	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.Component("api"),
			Registry: registry,
			Commands: eng,
			History:  historyRepo,
			Metrics:  metrics.Handler(),
			Checks:   checks,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("HTTP API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal", "devices", registry.Count())
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// openHistory opens the SQLite database and applies the embedded migrations.
func openHistory(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// deviceOptions maps the millisecond settings of the device section.
func deviceOptions(d config.DeviceDefaults) device.Options {
	opts := device.DefaultOptions()
	opts.Timing = device.Timing{
		PauseDelay:  config.Millis(d.PauseDelay),
		ResumeDelay: config.Millis(d.ResumeDelay),
		AbortDelay:  config.Millis(d.AbortDelay),
		StopDelay:   config.Millis(d.StopDelay),
		MoveDelay:   config.Millis(d.MoveDelay),
		PickDelay:   config.Millis(d.PickDelay),
		PlaceDelay:  config.Millis(d.PlaceDelay),
		InitDelay:   config.Millis(d.InitDelay),
		JobDuration: config.Millis(d.JobDuration),
	}
	opts.SettlePolicy = device.SettlePolicy(d.SettleOnCancel)
	opts.HeartbeatInterval = config.Millis(d.HeartbeatInterval)
	opts.HeartbeatDebounce = config.Millis(d.HeartbeatDebounce)
	opts.PublishRetries = d.PublishRetries
	opts.RetryBackoff = config.Millis(d.RetryBackoff)
	return opts
}
