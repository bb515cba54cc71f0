// internal/archive/uploader.go
package archive

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/indigauge/indigauge-go/internal/config"
	"github.com/indigauge/indigauge-go/internal/metrics"
	"github.com/indigauge/indigauge-go/internal/retry"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfgLib "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader 는 완성된 객체 1개를 저장한다. 재시도는 호출자 몫.
type Uploader interface {
	Put(ctx context.Context, key string, body []byte) error
}

// S3Uploader는 S3 PutObject 를 1회 수행하는 Uploader.
type S3Uploader struct {
	cfg    config.Config
	client *s3.Client
}

// NewS3Uploader는 AWS SDK Config 를 읽고 S3 client 를 만든다.
// SDK 자체 재시도는 끄고 UploadWithRetry 의 정책만 사용한다.
func NewS3Uploader(ctx context.Context, cfg config.Config) (*S3Uploader, error) {
	var opts []func(*awsCfgLib.LoadOptions) error
	if cfg.ArchiveRegion != "" {
		opts = append(opts, awsCfgLib.WithRegion(cfg.ArchiveRegion))
	}
	awsCfg, err := awsCfgLib.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.Retryer = aws.NopRetryer{}
	})
	return &S3Uploader{cfg: cfg, client: client}, nil
}

// Put
// ---------
// PutObject 1회. 시도당 ArchiveTimeout 을 적용한다.
func (u *S3Uploader) Put(ctx context.Context, key string, body []byte) error {
	ctx2, cancel := context.WithTimeout(ctx, u.cfg.ArchiveTimeout)
	defer cancel()

	_, err := u.client.PutObject(ctx2, &s3.PutObjectInput{
		Bucket:          aws.String(u.cfg.ArchiveBucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(body),
		ContentLength:   aws.Int64(int64(len(body))),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
	})
	return err
}

// UploadWithRetry
// -----------------------
// retry 정책(지수 backoff, 최대 60초)에 따라 Put 을 반복한다.
//   - 실패 시도마다 ArchivePutErrorsTotal +1
//   - shutdown-safe: ctx.Done() 시 즉시 중단
func UploadWithRetry(ctx context.Context, up Uploader, key string, body []byte, policy retry.Policy, m *metrics.Metrics) error {
	state := retry.State{Policy: policy}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := up.Put(ctx, key, body)
		if err == nil {
			return nil
		}
		atomic.AddInt64(&m.ArchivePutErrorsTotal, 1)

		wait, ok := state.Next()
		if !ok {
			return err
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
