package main

import (
	"context"
	"flag"
	"image"
	"os/signal"
	"sync"
	"syscall"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-blur/internal/config"
	"github.com/aliskhannn/image-blur/internal/infra/kafka/consumer"
	"github.com/aliskhannn/image-blur/internal/infra/kafka/producer"
	workmsg "github.com/aliskhannn/image-blur/internal/kafka/handlers/work"
	"github.com/aliskhannn/image-blur/internal/metrics"
	"github.com/aliskhannn/image-blur/internal/notify"
	"github.com/aliskhannn/image-blur/internal/processor"
	"github.com/aliskhannn/image-blur/internal/storage"
	"github.com/aliskhannn/image-blur/internal/storage/file"
	"github.com/aliskhannn/image-blur/internal/storage/object"
	"github.com/aliskhannn/image-blur/internal/worker"
)

// outputWriter persists blurred images and returns their locators.
type outputWriter interface {
	Write(ctx context.Context, img image.Image) (string, error)
}

func main() {
	configPath := flag.String("config", "./config/config.yml", "path to the config file")
	flag.Parse()

	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad(*configPath)

	// Retry strategy for Kafka calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	imageProcessor := processor.New()

	// Local file storage is always available for reading and writing.
	files, err := file.NewStorage(cfg.Storage.BaseDir, imageProcessor)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to initialize file storage")
	}

	resolver := storage.NewMux()
	resolver.Handle("file", files)

	var output outputWriter = files

	// Object storage (MinIO) serves s3:// locators and optionally receives outputs.
	if cfg.Storage.Minio.Enabled || cfg.Storage.Output == config.OutputMinio {
		m := cfg.Storage.Minio
		objects, err := object.NewStorage(ctx, m.Endpoint, m.AccessKey, m.SecretKey, m.BucketName, m.UseSSL, imageProcessor)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
		}

		resolver.Handle(object.Scheme, objects)

		if cfg.Storage.Output == config.OutputMinio {
			output = objects
		}
	}

	// Producers for results and status notifications.
	results := producer.New(cfg.Kafka.Brokers, cfg.Kafka.ResultsTopic, strategy)
	statuses := producer.New(cfg.Kafka.Brokers, cfg.Kafka.StatusTopic, strategy)

	notifier := notify.New(cfg.Worker.Messages.Title, statuses)

	blurWorker := worker.NewBlurWorker(
		worker.Config{
			Delay: cfg.Worker.Delay,
			Messages: worker.Messages{
				BlurringImage:     cfg.Worker.Messages.BlurringImage,
				InvalidInputURI:   cfg.Worker.Messages.InvalidInputURI,
				ErrorApplyingBlur: cfg.Worker.Messages.ErrorApplyingBlur,
				Output:            cfg.Worker.Messages.Output,
			},
		},
		notifier, resolver, imageProcessor, imageProcessor, output,
	)

	// Kafka message handler for work requests. Outputs whose result could not
	// be published are removed through the resolver.
	handler := workmsg.NewHandler(blurWorker, results, resolver)

	c := consumer.New(cfg.Kafka.Brokers, cfg.Kafka.RequestsTopic, cfg.Kafka.GroupID, strategy, handler)

	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	wg.Add(1)
	go func() {
		defer wg.Done()
		metrics.Serve(ctx, cfg.Metrics.Addr)
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Wait for the consumer and the metrics server to finish.
	wg.Wait()

	// Close Kafka producer and consumer clients.
	if err := results.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka results producer client")
	}
	if err := statuses.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka status producer client")
	}
	if err := c.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
	}
}
