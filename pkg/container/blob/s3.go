// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/shardstream/pkg/container"
)

// S3Scheme is the URL scheme routed to S3.
const S3Scheme = "s3"

// S3Config configures the S3 client.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// NewS3Client builds an S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

// S3 downloads "s3://bucket/key" shards into temporary files.
type S3 struct {
	client *s3.Client
	tmpDir string
	tracer trace.Tracer
}

var _ Fetcher = (*S3)(nil)

// NewS3 returns an S3 fetcher that downloads into tmpDir (the system default
// when empty).
func NewS3(client *s3.Client, tmpDir string) *S3 {
	return &S3{
		client: client,
		tmpDir: tmpDir,
		tracer: otel.Tracer("github.com/cardinalhq/shardstream/pkg/container/blob"),
	}
}

// ParseS3URL splits "s3://bucket/key" into bucket and key.
func ParseS3URL(path string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(path, S3Scheme+"://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %q", path)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url must name a bucket and key: %q", path)
	}
	return bucket, key, nil
}

// S3ErrorIs404 reports whether err means the object does not exist.
func S3ErrorIs404(err error) bool {
	var noKeyErr *types.NoSuchKey
	if errors.As(err, &noKeyErr) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func (f *S3) Fetch(ctx context.Context, path string) (File, error) {
	bucket, key, err := ParseS3URL(path)
	if err != nil {
		return nil, err
	}

	ctx, span := f.tracer.Start(ctx, "blob.S3.Fetch",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	tmp, err := os.CreateTemp(f.tmpDir, "s3-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	downloader := manager.NewDownloader(f.client)
	_, err = downloader.Download(ctx, tmp, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		span.RecordError(err)
		if S3ErrorIs404(err) {
			return nil, fmt.Errorf("%w: %s", container.ErrNotFound, path)
		}
		return nil, fmt.Errorf("download %s: %w", path, err)
	}

	// bytes are already flushed by the downloader
	_ = tmp.Close()
	return openTemp(path, tmp.Name())
}
