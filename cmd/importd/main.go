package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/Saltoleto/consulta-produtos/internal/application/usecase"
	"github.com/Saltoleto/consulta-produtos/internal/domain/port"
	"github.com/Saltoleto/consulta-produtos/internal/infrastructure/config"
	infraKafka "github.com/Saltoleto/consulta-produtos/internal/infrastructure/kafka"
	infraPostgres "github.com/Saltoleto/consulta-produtos/internal/infrastructure/postgres"
	grpcPresentation "github.com/Saltoleto/consulta-produtos/internal/presentation/grpc"
	"github.com/Saltoleto/consulta-produtos/internal/presentation/rest"
	"github.com/Saltoleto/consulta-produtos/pkg/auth"
	pkgkafka "github.com/Saltoleto/consulta-produtos/pkg/kafka"
	"github.com/Saltoleto/consulta-produtos/pkg/observability"
	pgpkg "github.com/Saltoleto/consulta-produtos/pkg/postgres"
	"github.com/Saltoleto/consulta-produtos/pkg/tlsutil"
	"github.com/Saltoleto/consulta-produtos/pkg/workerpool"
)

func main() {
	certDir := flag.String("gen-dev-certs", "", "write a dev CA with server and client key pairs to `dir` and exit")
	certHosts := flag.String("cert-hosts", "localhost,127.0.0.1", "comma-separated SANs for -gen-dev-certs")
	flag.Parse()

	if *certDir != "" {
		if err := tlsutil.GenerateDevCerts(strings.Split(*certHosts, ","), *certDir); err != nil {
			slog.Error("failed to generate development certificates", "error", err)
			os.Exit(1)
		}
		slog.Info("development certificates written", "dir", *certDir)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: cfg.ServiceName,
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("import service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("import service stopped")
}

func run(cfg config.Config, logger *slog.Logger) error {
	logger.Info("starting import service",
		"emission_mode", cfg.Import.EmissionMode,
		"lot_size", cfg.Import.LotSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry.
	if cfg.Telemetry.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
			ServiceName: cfg.ServiceName,
			Endpoint:    cfg.Telemetry.OTLPEndpoint,
			Insecure:    cfg.Telemetry.Insecure,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer flush(logger, "tracer", shutdownTracer)
	}

	meterProvider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: cfg.ServiceName})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer flush(logger, "meter provider", meterProvider.Shutdown)

	// Database.
	pool, err := pgpkg.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to database", "database", cfg.Database.Database)

	if err := pgpkg.RunMigrations(cfg.Database.DSN(), "file://"+cfg.MigrationsDir); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store := infraPostgres.NewContaStore(pool, cfg.Import.StoreTimeout)

	// Kafka.
	producer, err := pkgkafka.NewProducer(cfg.Kafka)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	publisher := infraKafka.NewPublisher(producer, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close kafka publisher", "error", err)
		}
	}()

	// Use cases.
	metrics, err := usecase.NewMetrics(otel.Meter("github.com/Saltoleto/consulta-produtos"))
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	dispatcher, err := newDispatcher(cfg, metrics, logger)
	if err != nil {
		return err
	}
	// Runs before the producer and the database pool close.
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := dispatcher.Shutdown(drainCtx); err != nil {
			logger.Error("emission queue not drained", "error", err)
		}
	}()

	emitter := usecase.NewEmitter(publisher, cfg.Import.SinkTimeout, metrics, logger)
	lots := usecase.NewLotProcessor(store, dispatcher, emitter, cfg.Import.DiffExisting, metrics, logger)
	revocations := usecase.NewRevocationProcessor(store, dispatcher, emitter, cfg.Import.CaptureRevokedViews, metrics, logger)
	importUC := usecase.NewImportAccountsUseCase(lots, revocations, cfg.Import.LotSize, metrics, logger)

	// gRPC.
	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return fmt.Errorf("init JWT verifier: %w", err)
	}
	logger.Info("JWT verification configured", "rsa", verifier.UsesRSA(), "issuer", cfg.Auth.Issuer)
	creds, err := tlsutil.ServerCredentials(cfg.TLS)
	if err != nil {
		return fmt.Errorf("load gRPC TLS: %w", err)
	}
	if creds == nil {
		logger.Warn("gRPC TLS not configured, serving plaintext")
	}
	grpcServer := grpcPresentation.NewServer(grpcPresentation.NewImportHandler(importUC), cfg.GRPCPort, logger, verifier, creds)

	// HTTP health and metrics.
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           rest.NewRouter(rest.NewHealthHandler(cfg.ServiceName, store, logger), metricsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		if err := grpcServer.Start(); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		logger.Info("HTTP server starting", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case runErr = <-errCh:
	}

	// Graceful shutdown: stop intake; deferred calls then drain pending
	// emissions before the producer and the database pool close.
	logger.Info("shutting down servers")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gRPC server forced to stop", "error", err)
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	return runErr
}

func newDispatcher(cfg config.Config, metrics *usecase.Metrics, logger *slog.Logger) (port.Dispatcher, error) {
	if cfg.Import.EmissionMode != usecase.EmissionAsync {
		return usecase.NewInlineDispatcher(), nil
	}

	pool, err := workerpool.New(workerpool.Config{
		Name:          "conta-emitter",
		Workers:       cfg.Emitter.Workers,
		QueueSize:     cfg.Emitter.QueueSize,
		Policy:        cfg.Emitter.OverflowPolicy,
		SubmitTimeout: cfg.Emitter.SubmitTimeout,
		TaskTimeout:   cfg.Emitter.TaskTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create emitter pool: %w", err)
	}
	logger.Info("emitter pool started",
		"workers", cfg.Emitter.Workers,
		"queue_size", cfg.Emitter.QueueSize,
		"overflow_policy", cfg.Emitter.OverflowPolicy,
	)
	return usecase.NewPooledDispatcher(pool, metrics, logger), nil
}

func flush(logger *slog.Logger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Error("failed to flush "+name, "error", err)
	}
}
