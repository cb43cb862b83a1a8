// package archive stores board snapshots in an S3 compatible bucket
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/kbx/internal/formatter"
	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
)

const snapshotExt = ".json"

// ObjectAPI is the part of [s3.Client] the archive uses.
type ObjectAPI interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// NewClient creates an S3 client from config. Setting an endpoint targets MinIO and other
// S3 compatible services. Without static keys the default AWS credential chain is used.
func NewClient(ctx context.Context, cfg shared.S3Config) (*s3.Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3.bucket is required", shared.ErrInvalidConfig)
	}
	if cfg.Endpoint != "" {
		if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
			return nil, fmt.Errorf("%w: invalid s3.endpoint: %v", shared.ErrInvalidConfig, err)
		}
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Archive saves and loads [models.BoardExport] snapshots as JSON objects under a key prefix.
type Archive struct {
	client ObjectAPI
	bucket string
	prefix string
	logger *log.Logger
}

// New creates an archive over client.
func New(client ObjectAPI, cfg shared.S3Config, logger *log.Logger) *Archive {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Archive{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
		logger: shared.WithLogger(logger, "component", "archive", "bucket", cfg.Bucket),
	}
}

// Key returns the object key of a board's snapshot.
func (a *Archive) Key(boardID string) string {
	return a.prefix + boardID + snapshotExt
}

// EnsureBucket checks the bucket exists and is reachable.
func (a *Archive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: bucket %s", shared.ErrNotFound, a.bucket)
		}
		return fmt.Errorf("error checking bucket: %w", err)
	}
	return nil
}

// Save uploads export under the key of its board and returns the key.
func (a *Archive) Save(ctx context.Context, export *models.BoardExport) (string, error) {
	if export.Board.ID == "" {
		return "", fmt.Errorf("%w: snapshot has no board id", shared.ErrMissingArgument)
	}
	data, err := formatter.ExportToJSON(export)
	if err != nil {
		return "", err
	}

	key := a.Key(export.Board.ID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("error saving snapshot to S3: %w", err)
	}

	a.logger.Info("snapshot saved", "key", key, "cards", export.CardCount())
	return key, nil
}

// Load downloads a snapshot. name is either a board id or a full object key.
func (a *Archive) Load(ctx context.Context, name string) (*models.BoardExport, error) {
	key := name
	if !strings.HasSuffix(name, snapshotExt) {
		key = a.Key(name)
	}

	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: snapshot %s", shared.ErrNotFound, key)
		}
		return nil, fmt.Errorf("error loading snapshot from S3: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}
	return formatter.ParseExport(data, formatter.FormatJSON)
}

// List returns the keys of every stored snapshot.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(a.bucket)}
	if a.prefix != "" {
		input.Prefix = aws.String(a.prefix)
	}

	keys := []string{}
	pages := s3.NewListObjectsV2Paginator(a.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing snapshots: %w", err)
		}
		for _, obj := range page.Contents {
			if key := aws.ToString(obj.Key); strings.HasSuffix(key, snapshotExt) {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}
