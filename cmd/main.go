package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smart_bartender/internal/bartender"
	"smart_bartender/internal/config"
	"smart_bartender/internal/handlers"
	"smart_bartender/internal/hardware"
	"smart_bartender/internal/logger"
	"smart_bartender/internal/metrics"
	"smart_bartender/internal/notify"
	"smart_bartender/internal/recipes"
	"smart_bartender/internal/repository"
	"smart_bartender/internal/repository/db"
	"smart_bartender/internal/server"
	"smart_bartender/internal/service"

	"github.com/coreos/go-systemd/v22/daemon"
)

const (
	configPathEnv   = "BARTENDER_CONFIG"
	restoreTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	log := logger.Get(logger.InfoLevel)
	if err := run(log); err != nil {
		log.Fatalw("bartender stopped with error", "err", err)
	}
}

func run(log *logger.Logger) error {
	// configs/config.yml unless BARTENDER_CONFIG points elsewhere
	cfg, err := config.Load(os.Getenv(configPathEnv))
	if err != nil {
		return err
	}
	log = setupLogger(log, cfg.Log)

	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()
	repos := repository.NewRepository(conn)

	book, err := recipes.Load(cfg.RecipesPath)
	if err != nil {
		return err
	}

	act, err := hardware.Open(cfg.Hardware.Backend, cfg.Hardware.Chip, cfg.Bar.Wiring(), cfg.Hardware.SimFillTime, log.Named("hardware"))
	if err != nil {
		return fmt.Errorf("open actuator: %w", err)
	}

	pub, err := notify.New(cfg.MQTT, log.Named("mqtt"))
	if err != nil {
		log.Warnw("mqtt_disabled", "broker", cfg.MQTT.Broker, "err", err)
		pub = notify.Nop{}
	}
	defer pub.Close()

	recorder := service.NewRecorder(repos.EventRepo, pub, log.Named("events"))
	prom := metrics.New()

	coord, err := bartender.NewCoordinator(cfg.Bar, book, bartender.Deps{
		Actuator: act,
		Log:      log.Named("bartender"),
		Events:   recorder,
		Metrics:  prom,
		Levels:   repos.LevelRepo,
	})
	if err != nil {
		_ = act.Close()
		return err
	}
	restoreLevels(coord, log)

	services := service.NewService(repos, coord, cfg.Auth)
	apiHandler := handlers.NewHandler(services, log.Named("http"), prom.Handler())

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go coord.Run(ctx, cfg.Monitor.Interval, cfg.Monitor.AutoRefill)

	srv := &server.Server{}
	serveErr := runHTTPServer(srv, cfg.Addr(), apiHandler, log)
	sdNotify(daemon.SdNotifyReady, log)
	log.Infow("bartender_ready", "addr", cfg.Addr(), "backend", cfg.Hardware.Backend, "recipes", len(coord.ListRecipes()))

	return waitForShutdown(cancel, srv, serveErr, coord, recorder, log)
}

func setupLogger(log *logger.Logger, cfg config.LogConfig) *logger.Logger {
	log.SetLevel(cfg.Level)
	if cfg.File == "" {
		return log
	}
	tee, err := log.TeeToFile(cfg.File)
	if err != nil {
		log.Warnw("log_file_unavailable", "path", cfg.File, "err", err)
		return log
	}
	return tee
}

// restoreLevels loads persisted volume estimates. Missing or unreadable
// levels leave reservoirs at capacity.
func restoreLevels(coord *bartender.Coordinator, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()
	if err := coord.RestoreLevels(ctx); err != nil {
		log.Warnw("level_restore_failed", "err", err)
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine. The returned
// channel receives the error if the server stops on its own.
func runHTTPServer(srv *server.Server, addr string, handler *handlers.Handler, log *logger.Logger) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Run(addr, handler.InitRoutes()); err != nil {
			log.Errorw("error starting server", "addr", addr, "err", err)
			errCh <- err
		}
	}()
	return errCh
}

func sdNotify(state string, log *logger.Logger) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warnw("sd_notify_failed", "state", state, "err", err)
		return
	}
	if sent {
		log.Debugw("sd_notify", "state", state)
	}
}

// waitForShutdown blocks until a termination signal or a server failure, then
// stops the API, forces every output off and drains the event journal.
func waitForShutdown(
	cancel context.CancelFunc,
	srv *server.Server,
	serveErr <-chan error,
	coord *bartender.Coordinator,
	recorder *service.Recorder,
	log *logger.Logger,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		log.Infow("shutting down server...", "signal", sig.String())
	case runErr = <-serveErr:
	}
	sdNotify(daemon.SdNotifyStopping, log)

	// stop the level watcher
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := coord.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("bartender shutdown: %w", err))
	}
	if err := recorder.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("event journal: %w", err))
	}
	return errors.Join(append([]error{runErr}, errs...)...)
}
