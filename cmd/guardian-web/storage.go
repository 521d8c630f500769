package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fpang/cctv-guardian/internal/config"
	"github.com/fpang/cctv-guardian/internal/offline"
	"github.com/rs/zerolog/log"
)

// openStorage builds the cache storage named by cfg.Backend.
func openStorage(ctx context.Context, cfg config.CacheConfig) (offline.Storage, error) {
	switch cfg.Backend {
	case config.CacheBackendMemory, "":
		return offline.NewMemoryStorage(), nil
	case config.CacheBackendDisk:
		return offline.NewDiskStorage(cfg.Dir)
	case config.CacheBackendS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		log.Debug().Str("bucket", cfg.Bucket).Str("prefix", cfg.Prefix).Msg("Using S3 offline cache storage")
		return offline.NewS3Storage(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
