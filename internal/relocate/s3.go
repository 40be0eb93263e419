package relocate

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/local/scansplit/internal/config"
	"github.com/local/scansplit/internal/metrics"
)

// Uploader is the part of manager.Uploader the S3 relocator uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 uploads PDFs under s3://Bucket/Prefix and removes the local copy once
// the upload succeeded.
type S3 struct {
	Bucket string
	Prefix string
	up     Uploader
}

// LoadAWSConfig loads the SDK config. Static keys in c replace the default
// credential chain; a set region overrides the shared config.
func LoadAWSConfig(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	var opts []func(*awscfg.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awscfg.WithRegion(c.Region))
	}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken),
		))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// NewS3 builds an S3 relocator from an s3://bucket/prefix URL.
func NewS3(ctx context.Context, rawURL string, creds config.AWSConfig) (*S3, error) {
	bucket, prefix, err := ParseS3URL(rawURL)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadAWSConfig(ctx, creds)
	if err != nil {
		return nil, err
	}
	return &S3{Bucket: bucket, Prefix: prefix, up: manager.NewUploader(s3.NewFromConfig(cfg))}, nil
}

// NewS3WithUploader is NewS3 with a caller-provided uploader.
func NewS3WithUploader(up Uploader, rawURL string) (*S3, error) {
	bucket, prefix, err := ParseS3URL(rawURL)
	if err != nil {
		return nil, err
	}
	return &S3{Bucket: bucket, Prefix: prefix, up: up}, nil
}

// ParseS3URL splits s3://bucket/some/prefix into its bucket and key prefix.
func ParseS3URL(rawURL string) (bucket, prefix string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 url %q: %w", rawURL, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 url: %s", rawURL)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// Key returns the object key for a local file name.
func (s *S3) Key(name string) string {
	if s.Prefix == "" {
		return name
	}
	return path.Join(s.Prefix, name)
}

// Relocate uploads each pending PDF in dir and returns their s3:// URLs.
func (s *S3) Relocate(ctx context.Context, dir string) ([]string, error) {
	files, err := Pending(dir)
	if err != nil {
		return nil, err
	}

	uploaded := make([]string, 0, len(files))
	for _, f := range files {
		dst, err := s.upload(ctx, f)
		if err != nil {
			return uploaded, err
		}
		if err := os.Remove(f); err != nil {
			return uploaded, fmt.Errorf("uploaded %s but failed to remove it: %w", f, err)
		}
		metrics.IncRelocated("s3")
		uploaded = append(uploaded, dst)
	}
	return uploaded, nil
}

func (s *S3) upload(ctx context.Context, file string) (string, error) {
	fh, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer fh.Close()

	key := s.Key(filepath.Base(file))
	_, err = s.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        fh,
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to S3: %w", file, err)
	}

	dst := fmt.Sprintf("s3://%s/%s", s.Bucket, key)
	log.Info().Str("from", file).Str("to", dst).Msg("relocated document")
	return dst, nil
}
