package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	tidal "github.com/Tap30/tidal-go"
	"github.com/Tap30/tidal-go/adapters"
)

// storeOptions selects and configures the persistence backend.
type storeOptions struct {
	Kind       string
	Path       string
	RedisAddr  string
	S3Bucket   string
	S3Prefix   string
	S3Region   string
	S3Endpoint string
}

var storeKinds = []string{"file", "sqlite", "redis", "s3", "memory", "none"}

func openStore(ctx context.Context, opts storeOptions) (tidal.StorageAdapter, error) {
	switch strings.ToLower(opts.Kind) {
	case "", "file":
		return adapters.NewFileStorageAdapter(defaultPath(opts.Path, tidal.DefaultStorageDir)), nil
	case "sqlite":
		path := defaultPath(opts.Path, filepath.Join(tidal.DefaultStorageDir, "tidal.db"))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		store, err := adapters.NewSQLiteStorageAdapter(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("redis store needs --redis-addr")
		}
		store, err := adapters.NewRedisStorageAdapter(adapters.DefaultRedisConfig(opts.RedisAddr))
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		return openS3Store(ctx, opts)
	case "memory":
		return adapters.NewMemoryStorageAdapter(), nil
	case "none":
		return adapters.NewNoOpStorageAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown store %q (want one of %s)", opts.Kind, strings.Join(storeKinds, ", "))
	}
}

func openS3Store(ctx context.Context, opts storeOptions) (tidal.StorageAdapter, error) {
	if opts.S3Bucket == "" {
		return nil, fmt.Errorf("s3 store needs --s3-bucket")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.S3Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return adapters.NewS3StorageAdapter(client, opts.S3Bucket, opts.S3Prefix, 10*time.Second), nil
}

func defaultPath(path, fallback string) string {
	if path != "" {
		return path
	}
	return fallback
}
