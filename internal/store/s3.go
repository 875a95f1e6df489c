package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/filedrift/drift/internal/config"
	"github.com/filedrift/drift/internal/syncer"
)

// S3Remote is a RemoteStore on an S3-compatible bucket, rooted at a key
// prefix so multiple trees can share one bucket. The AWS SDK's default
// retryer handles transient failures; the engine never retries on its own.
type S3Remote struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Remote(client *s3.Client, bucket, prefix string) *S3Remote {
	return &S3Remote{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// NewS3RemoteFromConfig builds the S3 client from drift's own config.
// A custom endpoint switches to path-style addressing for R2/MinIO.
func NewS3RemoteFromConfig(ctx context.Context, cfg config.S3Config, prefix string) (*S3Remote, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   50,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UseAccelerate {
			o.UseAccelerate = true
		}
	})

	return NewS3Remote(client, cfg.Bucket, prefix), nil
}

func (r *S3Remote) key(path string) string {
	if r.prefix == "" {
		return path
	}
	return r.prefix + "/" + path
}

func (r *S3Remote) Put(ctx context.Context, path string, data []byte) error {
	key := r.key(path)
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &r.bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}

func (r *S3Remote) Get(ctx context.Context, path string) ([]byte, error) {
	key := r.key(path)
	resp, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &r.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%s: %w", path, syncer.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (r *S3Remote) GetOrNull(ctx context.Context, path string) ([]byte, error) {
	data, err := r.Get(ctx, path)
	if errors.Is(err, syncer.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (r *S3Remote) Delete(ctx context.Context, path string) error {
	key := r.key(path)
	// DeleteObject succeeds for absent keys, which matches the idempotent
	// contract.
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &r.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Mkdir is a no-op: S3 has no directories, prefixes appear when objects do.
func (r *S3Remote) Mkdir(ctx context.Context, path string) error {
	return nil
}

func (r *S3Remote) ListRecursive(ctx context.Context, path string) ([]syncer.RemoteFileInfo, error) {
	listPrefix := r.prefix
	if path != "" {
		listPrefix = r.key(path)
	}
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}

	var files []syncer.RemoteFileInfo
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: &r.bucket,
		Prefix: aws.String(listPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", path, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(key, listPrefix)
			if rel == "" {
				continue
			}
			files = append(files, syncer.RemoteFileInfo{
				Path:         rel,
				IsFolder:     strings.HasSuffix(rel, "/"),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	return files, nil
}

func (r *S3Remote) Exists(ctx context.Context, path string) (bool, error) {
	key := r.key(path)
	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &r.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("head %s: %w", path, err)
	}
	return true, nil
}

func isNoSuchKey(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}
