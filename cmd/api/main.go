package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/auth"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/config"
	httpserver "github.com/WailSalutem-Health-Care/tenant-service/internal/http"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/logger"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/password"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/store"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Dev     bool             `help:"Enable development logging." env:"DEV"`
		Config  string           `help:"Path to a YAML config file." env:"CONFIG_FILE" type:"path"`
		Listen  string           `help:"Override the listen address."`
		Driver  string           `help:"Override the store driver (postgres, mongo or memory)."`
		Version kong.VersionFlag `help:"Print version and exit."`
	}
)

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("tenant-api"),
		kong.Description("Multitenant organization service"),
		kong.Vars{"version": version},
	)
	logger.Setup(cli.Dev)

	err := run()
	kctx.FatalIfErrorf(err)
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if cli.Listen != "" {
		cfg.ListenAddr = cli.Listen
	}
	if cli.Driver != "" {
		cfg.Store.Driver = cli.Driver
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info().Str("version", version).Str("store", cfg.Store.Driver).Msg("tenant-service starting")

	otelCfg := telemetry.DefaultConfig()
	otelCfg.Enabled = cfg.Telemetry.Enabled
	otelCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	otelCfg.ServiceName = cfg.Telemetry.ServiceName
	otelCfg.ServiceVersion = version
	otelCfg.Environment = cfg.Telemetry.Environment
	provider, err := telemetry.InitProvider(ctx, otelCfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	opened, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer opened.Close(context.Background())

	codec, err := password.NewCodec(cfg.BcryptCost)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(auth.Config{
		Secret:    cfg.JWT.Secret,
		Algorithm: cfg.JWT.Algorithm,
		TTL:       cfg.JWT.Expiration,
	}, nil)
	if err != nil {
		return err
	}

	var publisher messaging.PublisherInterface = messaging.NopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		p, err := messaging.NewPublisher(ctx, messaging.Config{URL: cfg.RabbitMQ.URL, Exchange: cfg.RabbitMQ.Exchange})
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ unavailable, continuing without events")
		} else {
			publisher = p
			defer p.Close()
		}
	} else {
		log.Info().Msg("RABBITMQ_URL not set, lifecycle events disabled")
	}

	svc := organization.NewService(organization.Options{
		Store:     opened.Store,
		Codec:     codec,
		Tokens:    tokens,
		Publisher: publisher,
		Metrics:   metrics,
		Database:  opened.Database,
	})

	router := httpserver.SetupRouter(httpserver.Deps{
		Service:        svc,
		Tokens:         tokens,
		Metrics:        metrics,
		Logger:         log.Logger,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := configureHTTPServer(cfg.ListenAddr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
