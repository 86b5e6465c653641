// Package classification MQ Manager Service.
//
// Cluster lifecycle service for hosted RabbitMQ clusters
//
// Terms Of Service:
//
// there are no TOS at this moment, use at your own risk we take no responsibility
//
//	Version: 0.1.0
//	License: TODO
//	Contact: <info@dhis2.org> https://github.com/dhis2-sre/mq-manager
//
//	Consumes:
//	  - application/json
//
//	Produces:
//	  - application/json
//
//	SecurityDefinitions:
//	  oauth2:
//	    type: oauth2
//	    tokenUrl: /not-valid--tokens-are-issued-by-the-identity-provider
//	    flow: password
//
// swagger:meta
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhis2-sre/mq-manager/internal/handler"
	"github.com/dhis2-sre/mq-manager/internal/log"
	"github.com/dhis2-sre/mq-manager/internal/middleware"
	"github.com/dhis2-sre/mq-manager/internal/server"
	"github.com/dhis2-sre/mq-manager/pkg/catalog"
	"github.com/dhis2-sre/mq-manager/pkg/cluster"
	"github.com/dhis2-sre/mq-manager/pkg/config"
	"github.com/dhis2-sre/mq-manager/pkg/crypt"
	"github.com/dhis2-sre/mq-manager/pkg/event"
	"github.com/dhis2-sre/mq-manager/pkg/metrics"
	"github.com/dhis2-sre/mq-manager/pkg/openstack"
	"github.com/dhis2-sre/mq-manager/pkg/provisioning"
	"github.com/dhis2-sre/mq-manager/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const sweepLeaseKey = "mq-manager:sweep"

func main() {
	if err := run(); err != nil {
		slog.Error("Failed to run", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		return err
	}

	logger := slog.New(log.New(log.NewPrettyJSONHandler(os.Stdout, &log.PrettyJSONHandlerOptions{
		HandlerOptions: slog.HandlerOptions{Level: cfg.Logging.Level, AddSource: true},
		PrettyPrint:    cfg.Logging.Pretty,
	})))
	slog.SetDefault(logger)

	if cfg.JaegerEndpoint != "" {
		tracerProvider, err := newTracerProvider(cfg.JaegerEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Error("Failed to shutdown tracer provider", "error", err)
			}
		}()
	}

	db, err := storage.NewDatabase(logger, cfg.Postgresql)
	if err != nil {
		return err
	}

	redisClient, err := storage.NewRedis(cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	amqpConnection, amqpChannel, err := storage.NewAMQP(cfg.RabbitMqURL)
	if err != nil {
		return err
	}
	defer amqpConnection.Close()

	publisher, err := event.NewPublisher(amqpChannel)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mqMetrics := metrics.New(registry)

	openStack, err := openstack.NewClient(cfg.OpenStack)
	if err != nil {
		return err
	}

	sealer, err := crypt.NewSealer(cfg.CredentialIdentity)
	if err != nil {
		return err
	}

	resolver := catalog.NewResolver(logger, openStack, cfg.Catalog.RetryAttempts, mqMetrics)

	clusterRepository := cluster.NewRepository(db)
	orchestrator := provisioning.NewOrchestrator(logger, clusterRepository, openStack, sealer, publisher, mqMetrics, cfg.Provisioning.Timeout, cfg.Provisioning.PollInterval)

	validate, err := handler.NewValidator(cfg.Cluster.PasswordPattern)
	if err != nil {
		return err
	}
	clusterService := cluster.NewService(clusterRepository, resolver, sealer, orchestrator, validate, cfg.PageSize, cfg.Cluster.MaxSize)

	if err := handler.RegisterValidation(); err != nil {
		return err
	}

	publicKey, err := middleware.ParsePublicKey(cfg.Authentication.PublicKey)
	if err != nil {
		return err
	}
	authentication := middleware.NewAuthentication(logger, publicKey)
	authorization := middleware.NewAuthorization(logger)

	if err := orchestrator.Resume(ctx); err != nil {
		return fmt.Errorf("failed to resume clusters: %v", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return err
	}
	lease := provisioning.NewLease(redisClient, sweepLeaseKey, hostname, cfg.Provisioning.SweepInterval)
	go orchestrator.RunSweeper(ctx, lease, cfg.Provisioning.SweepInterval)

	gin.SetMode(gin.ReleaseMode)
	r := server.GetEngine(logger, cfg.BasePath, registry)
	router := r.Group(cfg.BasePath)
	catalog.Routes(router, authentication, authorization, catalog.NewHandler(resolver))
	cluster.Routes(router, authentication, authorization, cluster.NewHandler(clusterService))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Listening", "port", cfg.Port)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server", "error", err)
	}

	return orchestrator.Shutdown(shutdownCtx)
}

func newTracerProvider(endpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	if err != nil {
		return nil, fmt.Errorf("failed to create jaeger exporter: %v", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tracerProvider)
	return tracerProvider, nil
}
