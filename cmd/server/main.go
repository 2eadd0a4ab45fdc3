// Package main runs the onboarding HTTP API with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/saas-onboarding/backend/config"
	"github.com/saas-onboarding/backend/internal/auth"
	"github.com/saas-onboarding/backend/internal/invitations"
	"github.com/saas-onboarding/backend/internal/middleware"
	"github.com/saas-onboarding/backend/internal/repository"
	"github.com/saas-onboarding/backend/internal/server"
	"github.com/saas-onboarding/backend/internal/validation"
	"github.com/saas-onboarding/backend/pkg/awsclient"
	"github.com/saas-onboarding/backend/pkg/dynamo"
	"github.com/saas-onboarding/backend/pkg/email"
	"github.com/saas-onboarding/backend/pkg/identity"
	"github.com/saas-onboarding/backend/pkg/queue"
	"github.com/saas-onboarding/backend/pkg/redis"
	"github.com/saas-onboarding/backend/pkg/storage"
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

	table, err := newTable(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Fatal("table", zap.Error(err))
	}
	repos := repository.New(table)

	var idp identity.Provider
	if cfg.Cognito.UserPoolID != "" {
		idp = identity.NewCognito(cip.NewFromConfig(awsCfg), cfg.Cognito.UserPoolID, logger)
	} else {
		logger.Warn("USERPOOL not set, using in-memory identity provider")
		idp = identity.NewMemory()
	}

	var mailer email.Sender
	switch cfg.Email.Delivery {
	case "queue":
		rdb, err := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		mailer = email.NewQueued(queue.NewQueue(rdb.Client, logger))
	default:
		mailer = email.NewSES(ses.NewFromConfig(awsCfg), cfg.Email.Sender, cfg.Email.ConfigSetName, logger)
	}

	var archive storage.Archive
	if cfg.Archive.Bucket != "" {
		archive = storage.NewS3(awsCfg, cfg.Archive.Bucket, logger)
	}

	sessions, err := auth.NewSessionVerifier(cfg.Session.Mode, cfg.Session.Secret, cfg.AWS.Region, cfg.Cognito.UserPoolID)
	if err != nil {
		logger.Fatal("session verifier", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	validation.Register()
	router, _ := server.NewRouter(server.Dependencies{
		Repos:              repos,
		Identity:           idp,
		Mailer:             mailer,
		Archive:            archive,
		Sessions:           sessions,
		Issuer:             invitations.NewIssuer(cfg.Onboarding.Domain, cfg.Tokens.InvitationTTL()),
		ResetTokens:        auth.NewResetTokens(cfg.Tokens.Secret, cfg.Tokens.ResetTTL()),
		Domain:             cfg.Onboarding.Domain,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RateLimit: middleware.RateLimitConfig{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
		},
		Registry: registry,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("store", cfg.Table.Driver),
			zap.String("session_mode", cfg.Session.Mode),
			zap.String("email_delivery", cfg.Email.Delivery),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newTable(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (dynamo.Table, error) {
	if cfg.Table.Driver == "memory" {
		logger.Warn("using in-memory table, data is lost on restart")
		return dynamo.NewMemoryTable(), nil
	}
	client := dynamodb.NewFromConfig(awsCfg)
	if cfg.Table.AutoCreate {
		if err := dynamo.EnsureTable(ctx, client, cfg.Table.Name, logger); err != nil {
			return nil, err
		}
	}
	return dynamo.NewDynamoTable(client, cfg.Table.Name), nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
