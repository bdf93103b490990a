// Package r2client stores session-database snapshots in Cloudflare R2 (or
// any S3-compatible bucket). It offers conditional writes, a lease for
// electing the single snapshot writer and zstd helpers for the payload.
package r2client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

var (
	// ErrNotFound is returned when the object does not exist.
	ErrNotFound = errors.New("r2client: object not found")

	// ErrPreconditionFailed is returned when a conditional write loses the race.
	ErrPreconditionFailed = errors.New("r2client: precondition failed")
)

// Config holds the bucket coordinates and credentials.
type Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Endpoint        string // Overrides the account endpoint (tests, MinIO)
}

// endpoint returns the S3 endpoint for the account.
func (c Config) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

// objectAPI is the subset of the S3 client used here.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Client reads and writes objects in one bucket.
type Client struct {
	api    objectAPI
	bucket string
}

// PutOptions controls a single write.
type PutOptions struct {
	ContentType string
	IfAbsent    bool   // Fail with ErrPreconditionFailed when the key exists
	IfMatch     string // Fail with ErrPreconditionFailed unless the ETag matches
}

// New creates a client for cfg.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("r2client: bucket is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("r2client: credentials are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("r2client: load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.endpoint())
		o.UsePathStyle = true
	})
	return newClient(api, cfg.Bucket), nil
}

func newClient(api objectAPI, bucket string) *Client {
	return &Client{api: api, bucket: bucket}
}

// Put writes body under key and returns the new ETag.
func (c *Client) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if opts.IfAbsent {
		in.IfNoneMatch = aws.String("*")
	}
	if opts.IfMatch != "" {
		in.IfMatch = aws.String(opts.IfMatch)
	}

	out, err := c.api.PutObject(ctx, in)
	if err != nil {
		return "", classify(err, "put", key)
	}
	return etag(out.ETag), nil
}

// Get opens the object at key. The caller closes the body.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", classify(err, "get", key)
	}
	return out.Body, etag(out.ETag), nil
}

// Head returns the ETag of the object at key.
func (c *Client) Head(ctx context.Context, key string) (string, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", classify(err, "head", key)
	}
	return etag(out.ETag), nil
}

// Delete removes the object at key. Deleting a missing key succeeds.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if err = classify(err, "delete", key); errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// classify maps provider errors onto the package sentinels.
func classify(err error, op, key string) error {
	switch {
	case isNotFound(err):
		return fmt.Errorf("%s %s: %w", op, key, ErrNotFound)
	case isPreconditionFailed(err):
		return fmt.Errorf("%s %s: %w", op, key, ErrPreconditionFailed)
	default:
		return fmt.Errorf("%s %s: %w", op, key, err)
	}
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return statusCode(err) == http.StatusNotFound
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	switch statusCode(err) {
	case http.StatusPreconditionFailed, http.StatusConflict:
		return true
	}
	return false
}

func statusCode(err error) int {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}

// etag strips the quotes S3 puts around ETags.
func etag(v *string) string {
	return strings.Trim(aws.ToString(v), `"`)
}
