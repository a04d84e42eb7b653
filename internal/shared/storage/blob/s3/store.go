package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"portfolio-api/internal/shared/storage/blob"
)

const (
	originalNameMetaKey = "original-name"
	maxObjectBytes      = 64 << 20
)

// objectAPI is the subset of the S3 client the store uses.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Provider implements blob.Provider on Amazon S3. Named stores map to key
// prefixes; versions are ETags and conditional writes use If-Match /
// If-None-Match.
type Provider struct {
	client   objectAPI
	bucket   string
	prefix   string
	kmsKeyID string
}

// New creates an S3-backed provider.
func New(ctx context.Context, region, bucket, prefix, kmsKeyID string) (*Provider, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newProvider(s3.NewFromConfig(cfg), bucket, prefix, kmsKeyID), nil
}

func newProvider(client objectAPI, bucket, prefix, kmsKeyID string) *Provider {
	return &Provider{
		client:   client,
		bucket:   bucket,
		prefix:   normalizePrefix(prefix),
		kmsKeyID: strings.TrimSpace(kmsKeyID),
	}
}

// Store returns the named store.
func (p *Provider) Store(name string) blob.Store {
	return &Store{p: p, name: name}
}

// Store is one key prefix inside the bucket.
type Store struct {
	p    *Provider
	name string
}

// Get downloads an object with its metadata and ETag.
func (s *Store) Get(ctx context.Context, key string) (blob.Object, error) {
	if err := blob.ValidateKey(key); err != nil {
		return blob.Object{}, err
	}
	objectKey := s.objectKey(key)
	out, err := s.p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.p.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNotFound(err) {
			return blob.Object{}, blob.ErrNotFound
		}
		return blob.Object{}, fmt.Errorf("s3 get object bucket=%s key=%s: %w", s.p.bucket, objectKey, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxObjectBytes+1))
	if err != nil {
		return blob.Object{}, fmt.Errorf("read s3 object key=%s: %w", objectKey, err)
	}
	if len(data) > maxObjectBytes {
		return blob.Object{}, fmt.Errorf("s3 object too large: key=%s", objectKey)
	}
	return blob.Object{
		Data:     data,
		Metadata: toMetadata(out.ContentType, out.Metadata),
		Version:  aws.ToString(out.ETag),
	}, nil
}

// GetMetadata issues a HEAD request for the object.
func (s *Store) GetMetadata(ctx context.Context, key string) (blob.Metadata, error) {
	if err := blob.ValidateKey(key); err != nil {
		return blob.Metadata{}, err
	}
	objectKey := s.objectKey(key)
	out, err := s.p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.p.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNotFound(err) {
			return blob.Metadata{}, blob.ErrNotFound
		}
		return blob.Metadata{}, fmt.Errorf("s3 head object bucket=%s key=%s: %w", s.p.bucket, objectKey, err)
	}
	return toMetadata(out.ContentType, out.Metadata), nil
}

// Set uploads data, translating preconditions into S3 conditional headers.
func (s *Store) Set(ctx context.Context, key string, data []byte, opts blob.SetOptions) (string, error) {
	if err := blob.ValidateKey(key); err != nil {
		return "", err
	}
	objectKey := s.objectKey(key)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.p.bucket),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(data),
	}
	if opts.Metadata.ContentType != "" {
		input.ContentType = aws.String(opts.Metadata.ContentType)
	}
	if opts.Metadata.OriginalName != "" {
		input.Metadata = map[string]string{originalNameMetaKey: url.QueryEscape(opts.Metadata.OriginalName)}
	}
	switch {
	case opts.IfAbsent:
		input.IfNoneMatch = aws.String("*")
	case opts.IfVersion != "":
		input.IfMatch = aws.String(opts.IfVersion)
	}
	if s.p.kmsKeyID != "" {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(s.p.kmsKeyID)
	} else {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}

	out, err := s.p.client.PutObject(ctx, input)
	if err != nil {
		if isPreconditionFailed(err) {
			return "", blob.ErrPreconditionFailed
		}
		return "", fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.p.bucket, objectKey, err)
	}
	return aws.ToString(out.ETag), nil
}

func (s *Store) objectKey(key string) string {
	return applyPrefix(s.p.prefix, s.name+"/"+key)
}

func toMetadata(contentType *string, meta map[string]string) blob.Metadata {
	out := blob.Metadata{ContentType: aws.ToString(contentType)}
	if raw, ok := meta[originalNameMetaKey]; ok {
		if name, err := url.QueryUnescape(raw); err == nil {
			out.OriginalName = name
		} else {
			out.OriginalName = raw
		}
	}
	return out
}

func isNotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *s3types.NotFound
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

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

var _ blob.Provider = (*Provider)(nil)
