package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/stalink/internal/accounts/metrics"
	"github.com/nerrad567/stalink/internal/accounts/network"
	"github.com/nerrad567/stalink/internal/accounts/presence"
	"github.com/nerrad567/stalink/internal/accounts/storage"
	"github.com/nerrad567/stalink/internal/accounts/telemetry"
	"github.com/nerrad567/stalink/internal/api"
	"github.com/nerrad567/stalink/internal/console"
	"github.com/nerrad567/stalink/internal/infrastructure/config"
	"github.com/nerrad567/stalink/internal/infrastructure/database"
	"github.com/nerrad567/stalink/internal/infrastructure/influxdb"
	"github.com/nerrad567/stalink/internal/infrastructure/logging"
	"github.com/nerrad567/stalink/internal/infrastructure/mqtt"
	"github.com/nerrad567/stalink/internal/kvstore"
	"github.com/nerrad567/stalink/internal/linklog"
	"github.com/nerrad567/stalink/internal/mediator"
	"github.com/nerrad567/stalink/internal/radio/sim"
	"github.com/nerrad567/stalink/internal/station"
	"github.com/nerrad567/stalink/internal/timer"
	"github.com/nerrad567/stalink/migrations"
)

type runOptions struct {
	configPath string
	console    bool
}

// run wires every component and blocks until ctx is cancelled or the console
// exits. Deferred closes run in reverse order of creation.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Command line options
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts runOptions) error { //nolint:gocognit,gocyclo // Startup wiring is linear
	log := logging.Default()
	log.Info("starting stalink", "version", version, "commit", commit, "build_date", date)

	cfg, cfgPath, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // Best-effort flush of the log file
	log.Info("configuration loaded", "path", cfgPath, "device", cfg.Device.ID)

	// Persistence service
	db, err := database.Open(ctx, database.Config{
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
	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	store := kvstore.New(kvstore.NewSQLite(db), storage.Keys()...)
	store.SetLogger(log)
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("loading storage: %w", err)
	}
	logStoredNetwork(store, log)

	// Mediator and the storage account
	timers := timer.NewRuntime()
	m := mediator.New(timers)
	m.SetLogger(log)
	if _, err := storage.Register(m, store, log); err != nil {
		return fmt.Errorf("registering storage account: %w", err)
	}

	// Optional accounts. They subscribe to the network account before it
	// exists so they see its first publish.
	var mqttClient *mqtt.Client
	var tele *telemetry.Account
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, cfg.Device.ID)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log)
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected", "broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port))

		if tele, err = telemetry.Register(m, mqttClient, cfg.Device.ID, log); err != nil {
			return fmt.Errorf("registering telemetry account: %w", err)
		}
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
			stats := influxClient.Stats()
			log.Info("InfluxDB connection closed",
				"queued", stats.Queued, "dropped", stats.Dropped, "batch_errors", stats.BatchErrors)
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		if _, err := metrics.Register(m, influxClient, cfg.Device.ID, cfg.SampleInterval(), log); err != nil {
			return fmt.Errorf("registering metrics account: %w", err)
		}
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	if cfg.Discovery.Enabled {
		instance := cfg.Device.Name
		if instance == "" {
			instance = cfg.Device.ID
		}
		pres, err := presence.Register(m, presence.NewMDNS(cfg.Discovery, instance, nil), cfg.Device.ID, log)
		if err != nil {
			return fmt.Errorf("registering presence account: %w", err)
		}
		defer pres.Close()
	}

	var journal *linklog.Journal
	if cfg.Journal.Enabled {
		journal, err = linklog.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		journal.SetLogger(log)
		defer func() {
			if closeErr := journal.Close(); closeErr != nil {
				log.Error("error closing journal", "error", closeErr)
			}
		}()
	}

	// Radio, state machine and the network account
	radio, err := sim.FromConfig(cfg.Radio)
	if err != nil {
		return fmt.Errorf("creating radio driver: %w", err)
	}
	radio.SetLogger(log)
	defer radio.Close() //nolint:errcheck // Nothing to do on shutdown failure

	st := station.New(radio, timers, station.WithProvisioningTimeout(cfg.ProvisioningTimeout()))
	st.SetLogger(log)

	var con *console.Console
	if opts.console {
		con, err = console.Register(m, st,
			console.WithJournal(journalPath(cfg)),
			console.WithBuildInfo(console.BuildInfo{Version: version, Commit: commit, Date: date, Device: cfg.Device.ID}),
		)
		if err != nil {
			return fmt.Errorf("registering console account: %w", err)
		}
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log,
			Mediator: m,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
	}

	netOpts := []network.Option{
		network.WithRescanInterval(cfg.RescanInterval()),
		network.WithLogger(log),
	}
	if journal != nil {
		netOpts = append(netOpts, network.WithObserver(journal.Observe))
	}
	if _, err := network.Register(m, st, netOpts...); err != nil {
		return fmt.Errorf("registering network account: %w", err)
	}

	if err := m.Start(); err != nil {
		return fmt.Errorf("starting mediator: %w", err)
	}
	defer m.Stop()
	defer func() {
		if stopErr := st.Stop(); stopErr != nil {
			log.Warn("error stopping radio", "error", stopErr)
		}
	}()

	if tele != nil {
		if err := tele.Start(); err != nil {
			return fmt.Errorf("starting telemetry: %w", err)
		}
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if apiServer != nil {
		if err := apiServer.Start(gctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			return apiServer.Close()
		})
	}
	if con != nil {
		g.Go(func() error {
			defer cancel()
			return con.Run(gctx)
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-gctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("stalink stopped")
	return nil
}

// loadConfig resolves the configuration path from the flag, then
// STALINK_CONFIG, then the default. Only a missing file at the default path
// falls back to built-in defaults.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv("STALINK_CONFIG")
	}
	if path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	cfg, err := config.Load(defaultConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		return cfg, "(defaults)", cfg.Validate()
	}
	return cfg, defaultConfigPath, err
}

func journalPath(cfg *config.Config) string {
	if !cfg.Journal.Enabled {
		return ""
	}
	return cfg.Journal.Path
}

// logStoredNetwork reports the cached credentials at startup. Only the SSID
// is logged.
func logStoredNetwork(store *kvstore.Store, log *logging.Logger) {
	buf := make([]byte, storage.RecordSize)
	if _, err := store.Get(storage.WiFiKey, buf); err != nil {
		log.Warn("reading stored network failed", "error", err)
		return
	}
	var rec storage.WiFiRecord
	if err := rec.UnmarshalBinary(buf); err != nil {
		log.Warn("stored network record is corrupt", "error", err)
		return
	}
	if rec.IsZero() {
		log.Info("no stored network")
		return
	}
	log.Info("stored network loaded", "ssid", string(rec.SSID))
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

