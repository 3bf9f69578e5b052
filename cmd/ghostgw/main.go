// Ghost Gateway - Battery-Operated Security Gateway
//
// This is the main entry point for the Ghost Gateway application.
// The gateway bridges a local wireless sensor network to a cloud
// backend while keeping the security decision loop fully local:
//   - Offline-first operation (alarm logic never depends on the cloud)
//   - Journalled cloud events that survive outages
//   - Remote control via a realtime channel, mirrored locally
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/ghost-gateway/internal/api"
	"github.com/nerrad567/ghost-gateway/internal/bridge"
	"github.com/nerrad567/ghost-gateway/internal/channel"
	"github.com/nerrad567/ghost-gateway/internal/cloud"
	"github.com/nerrad567/ghost-gateway/internal/commands"
	"github.com/nerrad567/ghost-gateway/internal/controller"
	"github.com/nerrad567/ghost-gateway/internal/event"
	"github.com/nerrad567/ghost-gateway/internal/identity"
	"github.com/nerrad567/ghost-gateway/internal/infrastructure/config"
	"github.com/nerrad567/ghost-gateway/internal/infrastructure/database"
	"github.com/nerrad567/ghost-gateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/ghost-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/ghost-gateway/internal/message"
	"github.com/nerrad567/ghost-gateway/internal/telemetry"
	"github.com/nerrad567/ghost-gateway/internal/transport"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Ghost Gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database
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

	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("preparing database schema: %w", err)
	}
	settings := database.NewSettings(db)

	// Resolve gateway identity (config > persisted > generated)
	ident, err := identity.New(ctx, settings, cfg.Gateway.DeviceID)
	if err != nil {
		return fmt.Errorf("resolving gateway identity: %w", err)
	}
	log.Info("gateway identity resolved",
		"device_id", ident.DeviceID(),
		"provisioned", ident.IsProvisioned(),
	)

	// Connect to InfluxDB (optional telemetry sink)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, ident.DeviceID())
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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Cloud client and event journal (optional; gateway is offline-first)
	var cloudClient *cloud.Client
	var dispatcher *event.Dispatcher
	if cfg.Cloud.Host != "" {
		cloudClient = cloud.New(cfg.Cloud, ident.DeviceID(), log)
		repo := event.NewSQLiteRepository(db.DB)
		dispatcher = event.NewDispatcher(repo, cloudClient, log,
			time.Duration(cfg.Cloud.DispatchInterval)*time.Second)
		go dispatcher.Run(ctx)
		log.Info("cloud event dispatcher started", "host", cfg.Cloud.Host)
	} else {
		log.Info("cloud disabled, events stay local")
	}

	// Connect the radio transport
	link, err := transport.Connect(cfg.Transport, ident.DeviceID(), log)
	if err != nil {
		return fmt.Errorf("connecting radio transport: %w", err)
	}
	defer func() {
		log.Info("closing radio transport")
		if closeErr := link.Close(); closeErr != nil {
			log.Error("error closing transport", "error", closeErr)
		}
	}()

	// Assemble controller collaborators: the state indicator mirrors the
	// security state onto the retained MQTT topic, and notifiers fan out
	// to the cloud journal and the telemetry sink.
	indicator := &linkIndicator{link: link}

	var notifiers []telemetry.Notifier
	if dispatcher != nil {
		notifiers = append(notifiers, &cloudNotifier{dispatcher: dispatcher, log: log})
	}
	if influxClient != nil {
		notifiers = append(notifiers, telemetry.NewRecorder(influxClient))
	}
	notifier := telemetry.Fanout(notifiers...)

	ctrl, err := controller.New(ctx, cfg.Gateway, settings, indicator, notifier, log)
	if err != nil {
		return fmt.Errorf("initialising controller: %w", err)
	}
	go ctrl.Run(ctx)

	// The bridge decodes raw frames into controller messages. When
	// telemetry is enabled every accepted message is also recorded.
	var sink bridge.Sink = ctrl
	if influxClient != nil {
		sink = telemetry.NewTap(ctrl, influxClient)
	}

	brg := bridge.New(sink, log, cfg.Transport.FrameQueueSize)
	go brg.Run(ctx)

	if err := link.OnFrame(brg.OnFrameReceived); err != nil {
		return fmt.Errorf("subscribing to sensor frames: %w", err)
	}

	// Realtime channel for remote commands (optional)
	if cfg.Channel.Host != "" {
		ch := channel.New(cfg.Channel, log)
		router := commands.New(sink, ident.DeviceID(), log)
		if err := router.Start(ctx, ch); err != nil {
			return fmt.Errorf("starting command router: %w", err)
		}
		go ch.Run(ctx)
		log.Info("realtime channel client started", "host", cfg.Channel.Host)
	} else {
		log.Info("realtime channel disabled")
	}

	// Periodic counter telemetry
	if influxClient != nil {
		reporter := telemetry.NewReporter(brg, ctrl, influxClient, log, time.Minute)
		go reporter.Run(ctx)
	}

	// Local HTTP API
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:     cfg.API,
			Logger:     log,
			Controller: ctrl,
			Identity:   ident,
			Frames:     brg,
			Version:    version,
		}
		if cloudClient != nil {
			deps.Cloud = cloudClient
		}
		apiServer, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("local API disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, link, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Radio transport (publishes offline status)
	// 3. InfluxDB (if enabled)
	// 4. Database

	log.Info("Ghost Gateway stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GHOSTGW_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GHOSTGW_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - link: Radio transport to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, link *transport.Link, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := link.HealthCheck(ctx); err != nil {
		return fmt.Errorf("transport: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// linkIndicator mirrors the security state onto the retained MQTT state
// topic. It stands in for the status LED a standalone alarm panel would
// drive; panels and the radio head end subscribe instead of looking at
// a light.
type linkIndicator struct {
	link *transport.Link
}

// SetState implements controller.Indicator.
func (i *linkIndicator) SetState(state message.SystemState) {
	i.link.PublishState(state.Name())
}

// cloudNotifier journals state changes for cloud delivery. The payload
// shape matches the backend's system_events schema so peer gateways can
// mirror arm/disarm from the same feed.
type cloudNotifier struct {
	dispatcher *event.Dispatcher
	log        *logging.Logger
}

// StateChanged implements controller.Notifier.
func (n *cloudNotifier) StateChanged(old, current message.SystemState) {
	err := n.dispatcher.Record(context.Background(), "state_change", map[string]any{
		"previous":      old.Name(),
		"previous_code": int(old),
		"new":           current.Name(),
		"new_code":      int(current),
	})
	if err != nil {
		n.log.Error("failed to journal state change", "error", err)
	}
}
