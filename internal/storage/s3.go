// Package storage uploads generated reports to S3-compatible object storage.
package storage

import (
	"context"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AldinMesan/ParcelsScript/internal/config"
)

// S3Uploader puts report files into a bucket.
type S3Uploader struct {
	client *minio.Client
	bucket string
	prefix string
	region string
}

// NewS3Uploader connects to the configured S3-compatible endpoint.
func NewS3Uploader(cfg config.StorageConfig) (*S3Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "storage: create client for %s", cfg.Endpoint)
	}
	return &S3Uploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		region: cfg.Region,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (u *S3Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return eris.Wrapf(err, "storage: check bucket %s", u.bucket)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region}); err != nil {
		return eris.Wrapf(err, "storage: create bucket %s", u.bucket)
	}
	return nil
}

// Upload stores the file at localPath and returns its object key.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	if err := u.EnsureBucket(ctx); err != nil {
		return "", err
	}

	key := ObjectKey(u.prefix, time.Now(), localPath)
	info, err := u.client.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: ContentType(localPath),
	})
	if err != nil {
		return "", eris.Wrapf(err, "storage: upload %s", localPath)
	}

	zap.L().Info("report uploaded",
		zap.String("component", "storage.s3"),
		zap.String("bucket", u.bucket),
		zap.String("key", key),
		zap.Int64("bytes", info.Size),
	)
	return key, nil
}

// ObjectKey builds "<prefix>/<yyyy-mm-dd>/<file name>".
func ObjectKey(prefix string, at time.Time, localPath string) string {
	return path.Join(strings.Trim(prefix, "/"), at.Format("2006-01-02"), filepath.Base(localPath))
}

// ContentType guesses the MIME type from the file extension.
func ContentType(localPath string) string {
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".csv":
		return "text/csv"
	case ".geojson":
		return "application/geo+json"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
