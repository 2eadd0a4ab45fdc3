// Package awsclient loads the shared AWS configuration for every service client.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"go.uber.org/zap"
)

// Options selects region, credentials and an optional endpoint override (localstack).
type Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// Load builds an aws.Config. Static credentials are used when both keys are set; otherwise
// the default credential chain applies.
func Load(ctx context.Context, opts Options, logger *zap.Logger) (aws.Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID, opts.SecretAccessKey, "",
		)))
		logger.Info("aws clients using static credentials", zap.String("region", opts.Region))
	} else {
		logger.Warn("aws clients using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	if opts.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(opts.Endpoint))
		logger.Info("aws endpoint override", zap.String("endpoint", opts.Endpoint))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
