package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting fintrack-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	target := cli.InitBackupTarget(logger, cfg)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - relying on the periodic pending sweep only")
	}

	backupWorker := worker.NewBackupWorker(repo, target, cfg.BackupBatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Recover anything missed while the worker was down.
	if err := backupWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup backup check failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeTransactionEvents(gctx, func(event *amqp.TransactionEvent) error {
				return backupWorker.HandleEvent(gctx, event)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.BackupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := backupWorker.ProcessPending(gctx); err != nil {
					logger.Error("Periodic backup sweep failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete")
}
