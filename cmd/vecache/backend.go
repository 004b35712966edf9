package main

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/hupe1980/vecache/blobstore"
	"github.com/hupe1980/vecache/blobstore/minio"
	"github.com/hupe1980/vecache/blobstore/s3"
	"github.com/hupe1980/vecache/internal/config"
)

// openBlobStore returns the snapshot backend named by cfg.Backend.
func openBlobStore(ctx context.Context, cfg config.Config) (blobstore.BlobStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendS3:
		optFns := []func(*s3.Options){s3.WithPrefix(cfg.Prefix)}
		if cfg.Region != "" {
			optFns = append(optFns, s3.WithRegion(cfg.Region))
		}
		if cfg.Endpoint != "" {
			optFns = append(optFns, s3.WithEndpoint(cfg.Endpoint))
		}
		store, err := s3.New(ctx, cfg.Bucket, optFns...)
		if err != nil {
			return nil, err
		}
		if cfg.DDBTable == "" {
			return store, nil
		}

		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		baseURI := fmt.Sprintf("s3://%s/%s", cfg.Bucket, strings.Trim(cfg.Prefix, "/"))
		return s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(awsCfg), cfg.DDBTable, baseURI), nil

	case config.BackendMinIO:
		return minio.New(minio.Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			Secure:    cfg.Secure,
		}, cfg.Bucket, cfg.Prefix)

	default:
		return blobstore.NewLocalStore(cfg.StoragePath), nil
	}
}
