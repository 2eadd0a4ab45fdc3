// Package main runs the background worker: queued email delivery and invitation expiry.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/saas-onboarding/backend/config"
	"github.com/saas-onboarding/backend/internal/repository"
	"github.com/saas-onboarding/backend/internal/worker"
	"github.com/saas-onboarding/backend/pkg/awsclient"
	"github.com/saas-onboarding/backend/pkg/dynamo"
	"github.com/saas-onboarding/backend/pkg/email"
	"github.com/saas-onboarding/backend/pkg/queue"
	"github.com/saas-onboarding/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	awsCfg, err := awsclient.Load(ctx, awsclient.Options{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		Endpoint:        cfg.AWS.Endpoint,
	}, logger)
	if err != nil {
		logger.Fatal("aws config", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	table := dynamo.NewDynamoTable(dynamodb.NewFromConfig(awsCfg), cfg.Table.Name)
	repos := repository.New(table)

	sender := email.NewSES(ses.NewFromConfig(awsCfg), cfg.Email.Sender, cfg.Email.ConfigSetName, logger)
	processor := worker.NewEmailProcessor(sender, queue.NewQueue(rdb.Client, logger), logger)
	sweeper := worker.NewSweeper(repos.Invitations, cfg.Onboarding.SweepInterval, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Run(workerCtx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Run(workerCtx)
	}()
	logger.Info("worker started",
		zap.String("queue", queue.QueueEmails),
		zap.Duration("sweep_interval", cfg.Onboarding.SweepInterval),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	wg.Wait()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
