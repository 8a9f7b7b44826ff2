package presign

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// S3Options configures the S3-backed issuer
type S3Options struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string // optional, for S3-compatible servers
}

// S3Issuer issues presigned GET URLs against an S3 bucket using the AWS SDK
type S3Issuer struct {
	presigner *s3.PresignClient
	bucket    string
}

// NewS3Issuer creates an issuer for the given bucket. Credentials and region
// are passed in explicitly; the issuer never reads ambient SDK configuration.
func NewS3Issuer(opts S3Options) (*S3Issuer, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("access key credentials are required")
	}

	cfg := aws.Config{
		Region:      opts.Region,
		Credentials: credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
	}

	if opts.Endpoint != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               opts.Endpoint,
				HostnameImmutable: true,
				SigningRegion:     region,
			}, nil
		})
		cfg.EndpointResolverWithOptions = customResolver
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.Endpoint != "" // path-style for S3-compatible servers
	})

	logrus.WithFields(logrus.Fields{
		"bucket": opts.Bucket,
		"region": opts.Region,
	}).Info("S3 presign issuer initialized")

	return &S3Issuer{
		presigner: s3.NewPresignClient(client),
		bucket:    opts.Bucket,
	}, nil
}

// Issue presigns a GET for the photo key
func (i *S3Issuer) Issue(ctx context.Context, photoKey string, ttl time.Duration) (string, error) {
	if photoKey == "" {
		return "", fmt.Errorf("photo key is required")
	}

	req, err := i.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(i.bucket),
		Key:    aws.String(photoKey),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign get object: %w", err)
	}

	return req.URL, nil
}
