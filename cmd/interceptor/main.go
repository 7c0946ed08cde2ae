package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/hlynr/interceptor/internal/cache"
	"github.com/hlynr/interceptor/internal/config"
	"github.com/hlynr/interceptor/internal/database"
	"github.com/hlynr/interceptor/internal/dispatcher"
	"github.com/hlynr/interceptor/internal/episode"
	"github.com/hlynr/interceptor/internal/handlers"
	"github.com/hlynr/interceptor/internal/influx"
	"github.com/hlynr/interceptor/internal/logging"
	"github.com/hlynr/interceptor/internal/monitor"
	intOtel "github.com/hlynr/interceptor/internal/otel"
	"github.com/hlynr/interceptor/internal/recorder"
	"github.com/hlynr/interceptor/internal/replay"
	"github.com/hlynr/interceptor/internal/storage"
	"github.com/hlynr/interceptor/internal/storage/gormdb"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"

	AppName = "interceptor"
)

var (
	SessionStartTime = time.Now()

	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	OTelProvider *intOtel.Provider
	LogFile      *os.File

	DBManager       *database.Manager
	InfluxManager   *influx.Manager
	Registry        *cache.AgentCache
	EpisodeStore    *episode.Store
	Backend         storage.Backend
	RecorderSvc     *recorder.Recorder
	MonitorSvc      *monitor.Service
	EventDispatcher *dispatcher.Dispatcher
	HandlerSvc      *handlers.Service
)

func main() {
	if err := bootstrap(); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer shutdown()

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		return
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "replay":
		err = runReplay(args[1:])
	case "scan":
		err = runScan(args[1:])
	case "demo":
		err = runDemo(args[1:])
	case "version":
		fmt.Printf("%s %s (built %s)\n", AppName, Version, BuildDate)
	default:
		usage()
	}
	if err != nil {
		Logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Printf(`Usage: %s <command> [args]

Commands:
  replay <file> [-seek N]         play back a recorded episode
  scan [dir]                      list recorded episodes in a directory
  demo [-scene S] [-duration N]   run a live intercept and record it
  version                         print version information
`, AppName)
}

func bootstrap() error {
	// Console-only logging until the file sink is available.
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load("."); err != nil {
		Logger.Warn("Failed to load config, using defaults", "error", err)
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return fmt.Errorf("failed to create logs dir: %w", err)
		}
	}

	logPath := logging.LogFilePath(logsDir, AppName, SessionStartTime)
	var err error
	LogFile, err = os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to open log file", "error", err, "path", logPath)
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    LogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		}
	}

	var logProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		logProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(LogFile, viper.GetString("logLevel"), logProvider)
	Logger = SlogManager.Logger()
	Logger.Info("Session started", "version", Version, "logPath", logPath)

	Registry = cache.NewAgentCache()
	EpisodeStore = episode.NewStore(Logger)

	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()

	storageCfg := config.GetStorageConfig()
	if storageCfg.Type == "database" {
		DBManager = database.NewManager(zl)
		if err := DBManager.Connect(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	Backend, err = storage.NewBackend(storageCfg, DBManager)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := Backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	Logger.Info("Storage backend ready", "type", storageCfg.Type)

	if viper.GetBool("influx.enabled") {
		InfluxManager = influx.NewManager(zl, filepath.Join(logsDir, "influx_backup.gz"))
		if err := InfluxManager.Connect(); err != nil {
			Logger.Warn("InfluxDB unavailable, metrics disabled", "error", err)
			InfluxManager = nil
		}
	}

	RecorderSvc = recorder.New(Backend, Logger)

	var perf *gormdb.Backend
	if gb, ok := Backend.(*gormdb.Backend); ok {
		perf = gb
	}
	MonitorSvc = monitor.NewService(monitor.Dependencies{
		LogManager: SlogManager,
		Influx:     InfluxManager,
		Perf:       perf,
		Recorder:   RecorderSvc,
		StatusDir:  logsDir,
	})

	EventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(zl))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	rc := config.GetReplayConfig()
	HandlerSvc = handlers.NewService(handlers.Dependencies{
		LogManager: SlogManager,
		Store:      EpisodeStore,
		Registry:   Registry,
		Recorder:   RecorderSvc,
	}, replay.Config{
		Speed:       rc.Speed,
		FreezeTicks: rc.FreezeTicks,
		CruiseIn: replay.CruiseInConfig{
			Enabled:    rc.CruiseInEnabled,
			AgentID:    viper.GetString("replay.cruiseInAgent"),
			Duration:   rc.CruiseInDuration,
			Multiplier: rc.CruiseInMultiplier,
			MinSpeed:   rc.CruiseInMinSpeed,
		},
	}, viper.GetFloat64("sim.dt"))
	HandlerSvc.RegisterHandlers(EventDispatcher)

	return nil
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if MonitorSvc != nil {
		MonitorSvc.Stop()
	}
	if RecorderSvc != nil && RecorderSvc.Running() {
		if _, err := dispatchCommand(":RECORD:STOP:", "aborted"); err != nil {
			Logger.Error("Error stopping recorder", "error", err)
		}
	}
	if Backend != nil {
		if err := Backend.Close(); err != nil {
			Logger.Error("Error closing storage backend", "error", err)
		}
	}
	if InfluxManager != nil && InfluxManager.Client != nil {
		InfluxManager.Client.Close()
	}
	if OTelProvider != nil {
		if err := OTelProvider.Flush(ctx); err != nil {
			Logger.Error("Error flushing OTel logs", "error", err)
		}
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Error("Error shutting down OTel provider", "error", err)
		}
	}
	if SlogManager != nil {
		_ = SlogManager.Flush(ctx)
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

// dispatchCommand routes a CLI action through the same dispatcher the
// command surface registers on.
func dispatchCommand(cmd string, args ...string) (any, error) {
	return EventDispatcher.Dispatch(dispatcher.Event{
		Command:   cmd,
		Args:      args,
		Timestamp: time.Now(),
	})
}
