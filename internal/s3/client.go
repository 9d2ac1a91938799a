package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/arencloud/courtside/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ObjectInfo is the listing metadata the loader needs.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
	Size         int64
}

type Client struct {
	api *awss3.Client
}

func normalizeEndpoint(endpoint string, useSSL bool) (host string, secure bool) {
	secure = useSSL
	if endpoint == "" {
		return "", secure
	}
	// If endpoint contains scheme, parse and strip it; prefer scheme over useSSL flag
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		if u, err := url.Parse(endpoint); err == nil {
			if u.Scheme == "https" {
				secure = true
			} else if u.Scheme == "http" {
				secure = false
			}
			return u.Host, secure
		}
	}
	return endpoint, secure
}

func forcePathStyle(provider string) bool {
	// Use path-style for non-AWS by default; AWS prefers virtual-hosted
	pt := strings.ToLower(strings.TrimSpace(provider))
	return pt == "minio" || pt == "mcg" || pt == "generic" || pt == "localstack"
}

// NewFromConfig builds a client with static credentials. A custom S3_ENDPOINT
// switches to that base URL, with path-style addressing for non-AWS providers.
func NewFromConfig(cfg *config.Config) *Client {
	opts := awss3.Options{
		Region:      cfg.AWSRegion,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AWSAccessKey, cfg.AWSSecretKey, ""),
	}
	if host, secure := normalizeEndpoint(cfg.S3Endpoint, cfg.S3UseSSL); host != "" {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		opts.BaseEndpoint = aws.String(scheme + "://" + host)
		opts.UsePathStyle = forcePathStyle(cfg.S3Provider)
	}
	return &Client{api: awss3.New(opts)}
}

// ListObjects returns every object under prefix, following continuation tokens.
func (c *Client) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	p := awss3.NewListObjectsV2Paginator(c.api, &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			oi := ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				oi.LastModified = *obj.LastModified
			}
			out = append(out, oi)
		}
	}
	return out, nil
}

func (c *Client) Upload(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := c.api.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	return err
}

func (c *Client) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	res, err := c.api.GetObject(ctx, &awss3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	return io.ReadAll(res.Body)
}

// IsAuthError reports whether err is a credential/permission rejection from the service.
func IsAuthError(err error) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.ErrorCode() {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
		return true
	}
	return false
}
