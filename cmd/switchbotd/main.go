// SwitchBot bridge daemon.
//
// switchbotd keeps SwitchBot bulbs, locks, curtains, humidifiers, hub
// sensors and IR remotes in sync with an MQTT home hub. Every device is
// reconciled over the local BLE radio, the SwitchBot cloud, or both, and
// its state is published on switchbot/state/{device_id}.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-logic-switchbot/migrations"

	"github.com/nerrad567/gray-logic-switchbot/internal/api"
	"github.com/nerrad567/gray-logic-switchbot/internal/bridge"
	"github.com/nerrad567/gray-logic-switchbot/internal/cloud"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-switchbot/internal/metrics"
	"github.com/nerrad567/gray-logic-switchbot/internal/radio"
	"github.com/nerrad567/gray-logic-switchbot/internal/reconcile"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/switchbot.yaml"

// historyPruneInterval is how often expired state history is deleted.
const historyPruneInterval = time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup sequence: one step per subsystem
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting SwitchBot bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database: persisted device contexts and state history
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	if applied, _, statusErr := db.GetMigrationStatus(ctx); statusErr == nil {
		log.Info("database migrations complete", "applied", len(applied))
	}

	registry := device.NewRegistry(device.NewSQLiteContextRepository(db.DB))
	registry.SetLogger(log)
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device contexts: %w", refreshErr)
	}

	history := device.NewSQLiteStateHistoryRepository(db.DB)
	if cfg.Database.HistoryRetention > 0 {
		go pruneHistoryLoop(ctx, history, cfg.Database.HistoryRetention, log)
	}

	// MQTT: hub-facing topics and the BLE gateway
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	mqttAdapter := &mqttBridgeAdapter{client: mqttClient}

	recorders := []reconcile.Recorder{history}
	var telemetryWriters []bridge.TelemetryWriter

	// InfluxDB (optional): state and telemetry time series
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
		recorders = append(recorders, influxClient)
		telemetryWriters = append(telemetryWriters, influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Cloud channel
	var cloudClient bridge.CloudClient
	if cfg.Cloud.Enabled {
		if !cfg.Cloud.HasCredentials() {
			log.Warn("cloud enabled without token/secret; cloud channel unavailable")
		}
		cloudClient = cloud.New(cloud.Config{
			BaseURL: cfg.Cloud.BaseURL,
			Token:   cfg.Cloud.Token,
			Secret:  cfg.Cloud.Secret,
			Timeout: cfg.Cloud.Timeout,
		}, nil)
	} else {
		log.Info("cloud channel disabled")
	}

	// Local BLE channel through the MQTT gateway
	var radioGateway bridge.Radio
	if cfg.Radio.Enabled {
		gw := radio.NewMQTTGateway(mqttAdapter, cfg.Radio.TopicPrefix)
		gw.SetLogger(log)
		if startErr := gw.Start(); startErr != nil {
			return fmt.Errorf("starting BLE gateway: %w", startErr)
		}
		radioGateway = gw
		log.Info("BLE gateway started", "topic_prefix", cfg.Radio.TopicPrefix)
	} else {
		log.Info("local radio disabled")
	}

	collector := metrics.New()
	hub := api.NewHub(cfg.WebSocket, log)

	br, err := bridge.New(bridge.Options{
		Config:           cfg,
		Registry:         registry,
		Version:          version,
		MQTT:             mqttAdapter,
		Cloud:            cloudClient,
		Radio:            radioGateway,
		Recorders:        recorders,
		TelemetryWriters: telemetryWriters,
		Hub:              hub,
		Metrics:          collector,
		Logger:           log,
		DeviceLogger: func(d device.Device) bridge.Logger {
			return log.ForDevice(d)
		},
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if startErr := br.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping bridge")
		br.Stop()
	}()
	managed, offline := br.Stats()
	log.Info("bridge started", "devices", managed, "offline", offline)
	if influxClient != nil {
		influxClient.WritePointWithTime("bridge_health",
			map[string]string{"bridge": cfg.Bridge.ID},
			map[string]interface{}{"devices": float64(managed), "offline": float64(offline)},
			time.Now())
	}

	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Webhook:  cfg.Webhook,
		Logger:   log,
		Bridge:   br,
		History:  history,
		Metrics:  collector,
		Hub:      hub,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	checks := map[string]healthChecker{"database": db, "mqtt": mqttClient}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}
	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, bridge, InfluxDB,
	// MQTT, database.

	log.Info("SwitchBot bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SWITCHBOT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SWITCHBOT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthChecker is implemented by every infrastructure client.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheck runs every named check concurrently and returns the first
// failure, prefixed with the check's name.
func healthCheck(ctx context.Context, checks map[string]healthChecker) error {
	g, gctx := errgroup.WithContext(ctx)
	for name, c := range checks {
		g.Go(func() error {
			if err := c.HealthCheck(gctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// historyPruner deletes expired state history.
type historyPruner interface {
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// pruneHistoryLoop deletes history older than retention once at startup and
// then every historyPruneInterval until ctx is cancelled.
func pruneHistoryLoop(ctx context.Context, p historyPruner, retention time.Duration, log *logging.Logger) {
	prune := func() {
		n, err := p.PruneHistory(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("pruning state history failed", "error", err)
			}
			return
		}
		if n > 0 {
			log.Info("pruned state history", "rows", n, "retention", retention)
		}
	}

	prune()
	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the
// void-handler MQTTClient interfaces of the bridge and the BLE gateway.
// - Infrastructure mqtt: func(topic, payload []byte) error
// - bridge and radio expect: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements bridge.MQTTClient and radio.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bridge.MQTTClient and radio.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
