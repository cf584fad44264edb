package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"wxdata-server/internal/config"
	db "wxdata-server/internal/db"
	httpapi "wxdata-server/internal/httpapi"
	"wxdata-server/internal/migrate"
	weather "wxdata-server/internal/modules/weather"
	"wxdata-server/internal/modules/weather/repository"
	"wxdata-server/internal/modules/weather/service"
	weatherviews "wxdata-server/internal/modules/weather/views"
	"wxdata-server/internal/mqtt"
	"wxdata-server/internal/observability"
)

const mqttConnectTimeout = 5 * time.Second

func logConfig(cfg config.Config) {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbDriver", cfg.Driver,
		"sqlitePath", cfg.Path,
		"dbMaxOpenConns", cfg.MaxOpenConns,
		"dbMaxIdleConns", cfg.MaxIdleConns,
		"dbConnMaxLifetime", cfg.ConnMaxLifetime,
		"dataDir", cfg.DataDir,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
		"pushgateway", cfg.PushgatewayURL,
	)
}

// openDatabase connects and brings the schema up to date.
func openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	dbConn, err := db.Open(cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	if _, err := migrate.Run(ctx, dbConn, slog.Default()); err != nil {
		_ = db.Close(dbConn)
		return nil, err
	}
	return dbConn, nil
}

func closeDatabase(dbConn *sql.DB) {
	if err := db.Close(dbConn); err != nil {
		slog.Error("db close", "error", err)
	}
}

// RunMigrate applies pending migrations and exits.
func RunMigrate(ctx context.Context, cfg config.Config) error {
	logConfig(cfg)
	dbConn, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	closeDatabase(dbConn)
	return nil
}

// RunServe serves the read API until ctx is cancelled.
func RunServe(ctx context.Context, cfg config.Config) error {
	logConfig(cfg)
	dbConn, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(dbConn)

	var ok int
	if err := dbConn.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		return err
	}
	if ok != 1 {
		return errors.New("database connection failed")
	}
	slog.Info("database connection successful")

	if err := weatherviews.LoadTemplates(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	mux := httpapi.NewMux(dbConn, reg)
	weather.RegisterFeature(mux, dbConn)
	srv := httpapi.NewServer(cfg, mux, metrics)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// RunIngest loads the station files of cfg.DataDir. Progress lines go to out.
func RunIngest(ctx context.Context, cfg config.Config, out io.Writer) error {
	return runJob(ctx, cfg, out, service.JobIngest, func(ctx context.Context, svc *service.Service) error {
		_, err := svc.Ingest(ctx, cfg.DataDir)
		return err
	})
}

// RunAnalyze computes the yearly stats. Progress lines go to out.
func RunAnalyze(ctx context.Context, cfg config.Config, out io.Writer) error {
	return runJob(ctx, cfg, out, service.JobAnalyze, func(ctx context.Context, svc *service.Service) error {
		_, err := svc.Analyze(ctx)
		return err
	})
}

func runJob(ctx context.Context, cfg config.Config, out io.Writer, job string, fn func(context.Context, *service.Service) error) error {
	logConfig(cfg)
	dbConn, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(dbConn)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	notifier, disconnect := newNotifier(ctx, cfg)
	defer disconnect()

	svc := service.NewService(repository.NewRepository(dbConn), service.Options{
		Out:      out,
		Logger:   slog.Default(),
		Metrics:  metrics,
		Notifier: notifier,
	})
	jobErr := fn(ctx, svc)

	if cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := observability.Push(pushCtx, cfg.PushgatewayURL, "wxdata_"+job, reg); err != nil {
			slog.Warn("metrics push failed", "error", err)
		}
	}
	return jobErr
}

// newNotifier connects to the broker when one is configured. Jobs still run
// when it is unreachable.
func newNotifier(ctx context.Context, cfg config.Config) (mqtt.Notifier, func()) {
	if cfg.MQTTBroker == "" {
		return mqtt.NoopNotifier{}, func() {}
	}
	publisher := mqtt.NewPublisher(cfg, slog.Default())
	connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
	defer cancel()
	if err := publisher.Connect(connectCtx); err != nil {
		slog.Warn("mqtt connection failed (continuing without notifications)", "error", err)
		publisher.Disconnect()
		return mqtt.NoopNotifier{}, func() {}
	}
	return publisher, publisher.Disconnect
}
