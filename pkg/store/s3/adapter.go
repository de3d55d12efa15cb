// Package s3 implements the blob store adapter for media uploads. Uploads
// are the primary step of the media flow; derived-asset keys (thumbnails)
// are recorded alongside the original so downstream transforms know where to
// publish.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/connecthub/connecthub/pkg/model"
	"github.com/connecthub/connecthub/pkg/observability/logger"
	"github.com/connecthub/connecthub/pkg/store"
	"github.com/connecthub/connecthub/pkg/store/storeerr"
)

const storeName = "s3"

var _ store.Adapter = (*Adapter)(nil)

// Config defines S3 adapter configuration.
type Config struct {
	Bucket           string
	Region           string
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	SessionToken     string
	UsePathStyle     bool
	OperationTimeout time.Duration
	PresignExpiry    time.Duration
}

// UploadOptions tunes a single upload.
type UploadOptions struct {
	// Metadata is attached to the stored object.
	Metadata map[string]string
	// SkipDerived suppresses derived-asset key generation.
	SkipDerived bool
}

type s3API interface {
	HeadBucket(ctx context.Context, params *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Adapter provides blob storage operations backed by the AWS S3 API.
type Adapter struct {
	client  s3API
	presign presignAPI
	logger  logger.Logger
	config  Config

	mu     sync.RWMutex
	closed bool
}

// NewAdapter creates an S3 adapter and verifies bucket accessibility.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, errors.New("aws region is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 10 * time.Second
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	clientOptions := make([]func(*awss3.Options), 0, 2)
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		clientOptions = append(clientOptions, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	client := awss3.NewFromConfig(awsCfg, clientOptions...)
	adapter := &Adapter{
		client:  client,
		presign: awss3.NewPresignClient(client),
		logger:  log,
		config:  cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	defer cancel()
	if err := adapter.Ping(ctx); err != nil {
		return nil, storeerr.NewConnectionError(storeName, err)
	}

	log.Info("S3 adapter initialized", "bucket", cfg.Bucket, "region", cfg.Region)
	return adapter, nil
}

// Ping verifies that the configured bucket is accessible.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	_, err := a.client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(a.config.Bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 ping failed: %w", err)
	}
	return nil
}

// Upload stores a media object under a caller-scoped key and returns its
// location plus derived-asset keys. The object key embeds a UUID so repeated
// uploads of the same file never collide.
func (a *Adapter) Upload(ctx context.Context, userID string, payload []byte, name, contentType string, opts UploadOptions) (model.BlobResult, error) {
	if err := a.ensureOpen(); err != nil {
		return model.BlobResult{}, storeerr.Wrap(storeName, "upload", err)
	}
	if userID == "" {
		return model.BlobResult{}, storeerr.Wrap(storeName, "upload", errors.New("user id is required"))
	}
	if len(payload) == 0 {
		return model.BlobResult{}, storeerr.Wrap(storeName, "upload", errors.New("payload is required"))
	}

	key := objectKey(userID, name)

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	input := &awss3.PutObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(payload),
	}
	if strings.TrimSpace(contentType) != "" {
		input.ContentType = aws.String(contentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	if _, err := a.client.PutObject(opCtx, input); err != nil {
		return model.BlobResult{}, storeerr.Wrap(storeName, "upload", err)
	}

	url, err := a.presignGet(ctx, key)
	if err != nil {
		// The object exists; a presign failure only degrades the returned URL.
		a.logger.Warn("failed to presign uploaded object", "key", key, "error", err)
		url = ""
	}

	result := model.BlobResult{Key: key, URL: url}
	if !opts.SkipDerived {
		result.DerivedAssets = derivedAssetKeys(key, contentType)
	}

	return result, nil
}

// Delete removes an object by key.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	if err := a.ensureOpen(); err != nil {
		return storeerr.Wrap(storeName, "delete", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return storeerr.Wrap(storeName, "delete", errors.New("object key is required"))
	}

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	_, err := a.client.DeleteObject(opCtx, &awss3.DeleteObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(key),
	})
	return storeerr.Wrap(storeName, "delete", err)
}

// PresignGetURL generates a temporary download URL for a stored object.
func (a *Adapter) PresignGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if err := a.ensureOpen(); err != nil {
		return "", storeerr.Wrap(storeName, "presign", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", storeerr.Wrap(storeName, "presign", errors.New("object key is required"))
	}
	if expiry <= 0 {
		expiry = a.config.PresignExpiry
	}

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	resp, err := a.presign.PresignGetObject(opCtx, &awss3.GetObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(key),
	}, func(opts *awss3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", storeerr.Wrap(storeName, "presign", err)
	}
	return resp.URL, nil
}

// HealthCheck verifies the adapter can reach the bucket within a short timeout.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("S3 health check failed", "error", err)
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

// Close marks the adapter as closed. Safe to call twice.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *Adapter) presignGet(ctx context.Context, key string) (string, error) {
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	resp, err := a.presign.PresignGetObject(opCtx, &awss3.GetObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(key),
	}, func(opts *awss3.PresignOptions) {
		opts.Expires = a.config.PresignExpiry
	})
	if err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.OperationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.config.OperationTimeout)
}

func (a *Adapter) ensureOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return errors.New("s3 adapter is closed")
	}
	return nil
}

// objectKey builds a collision-free per-user object key while keeping the
// original extension for content-type sniffing downstream.
func objectKey(userID, name string) string {
	ext := strings.ToLower(path.Ext(name))
	return fmt.Sprintf("media/%s/%s%s", userID, uuid.NewString(), ext)
}

// derivedAssetKeys returns the keys where transformed variants of the object
// will be published. Only image content types have derived variants.
func derivedAssetKeys(key, contentType string) map[string]string {
	if !strings.HasPrefix(contentType, "image/") {
		return nil
	}
	return map[string]string{
		"thumbnail": "thumb/" + key,
		"medium":    "medium/" + key,
	}
}
