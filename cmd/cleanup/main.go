package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/config"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/logger"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/store"
)

var (
	version = "dev"
	cli     struct {
		Dev       bool             `help:"Enable development logging." env:"DEV"`
		Config    string           `help:"Path to a YAML config file." env:"CONFIG_FILE" type:"path"`
		Retention time.Duration    `help:"Keep retained partitions this long (defaults to PARTITION_RETENTION)."`
		DryRun    bool             `help:"Only report how many partitions would be purged."`
		Timeout   time.Duration    `help:"Abort the run after this long." default:"10m"`
		Version   kong.VersionFlag `help:"Print version and exit."`
	}
)

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("tenant-cleanup"),
		kong.Description("Purge partitions retained after organization renames"),
		kong.Vars{"version": version},
	)
	logger.Setup(cli.Dev)

	err := run()
	kctx.FatalIfErrorf(err)
}

func run() error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	retention := cfg.PartitionRetention
	if cli.Retention > 0 {
		retention = cli.Retention
	}

	log.Info().Dur("retention", retention).Bool("dry_run", cli.DryRun).Msg("partition cleanup job starting")

	ctx, cancel := context.WithTimeout(context.Background(), cli.Timeout)
	defer cancel()

	opened, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer opened.Close(context.Background())

	var publisher messaging.PublisherInterface = messaging.NopPublisher{}
	if cfg.RabbitMQ.URL != "" && !cli.DryRun {
		p, err := messaging.NewPublisher(ctx, messaging.Config{URL: cfg.RabbitMQ.URL, Exchange: cfg.RabbitMQ.Exchange})
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ unavailable, purge events will not be published")
		} else {
			publisher = p
			defer p.Close()
		}
	}

	cleanupService := organization.NewCleanupService(opened.Store, publisher, nil, retention)

	count, err := cleanupService.GetExpiredPartitionsCount(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("count", count).Msg("partitions eligible for purge")

	if count == 0 || cli.DryRun {
		return nil
	}

	purged, err := cleanupService.CleanupExpiredPartitions(ctx)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	log.Info().Int("purged", purged).Msg("partition cleanup job finished")
	return nil
}
