package statuscheck

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/local/scansplit/internal/config"
	"github.com/local/scansplit/internal/relocate"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// BucketHeader is the S3 call used to probe the outgoing bucket.
type BucketHeader interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Checker aggregates readiness checks for everything a run touches.
type Checker struct {
	redis       RedisPinger
	s3          BucketHeader
	outgoingURL string
	outputDir   string
	outgoingDir string
	aws         config.AWSConfig
}

// Options configures the Checker.
type Options struct {
	Redis       RedisPinger  // nil when Redis is not configured
	S3          BucketHeader // nil builds a client from AWS on demand
	OutgoingURL string
	OutputDir   string
	OutgoingDir string
	AWS         config.AWSConfig
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	Redis       Status `json:"redis"`
	S3          Status `json:"s3"`
	OutputDir   Status `json:"output_dir"`
	OutgoingDir Status `json:"outgoing_dir"`
}

// OK reports whether every enabled subsystem is ready.
func (s Summary) OK() bool {
	for _, st := range []Status{s.Redis, s.S3, s.OutputDir, s.OutgoingDir} {
		if !st.OK && !st.Disabled {
			return false
		}
	}
	return true
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	return &Checker{
		redis:       opts.Redis,
		s3:          opts.S3,
		outgoingURL: opts.OutgoingURL,
		outputDir:   opts.OutputDir,
		outgoingDir: opts.OutgoingDir,
		aws:         opts.AWS,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	sum := Summary{
		Redis:     c.checkRedis(ctx),
		S3:        c.checkS3(ctx),
		OutputDir: checkWritable(c.outputDir),
	}
	if c.outgoingURL != "" {
		sum.OutgoingDir = Status{Disabled: true, Message: "Relocating to S3"}
	} else {
		sum.OutgoingDir = checkWritable(c.outgoingDir)
	}
	return sum
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{Disabled: true, Message: "Not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
	if c.outgoingURL == "" {
		return Status{Disabled: true, Message: "Bucket not configured"}
	}
	bucket, _, err := relocate.ParseS3URL(c.outgoingURL)
	if err != nil {
		return Status{OK: false, Message: err.Error()}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cli := c.s3
	if cli == nil {
		cfg, err := relocate.LoadAWSConfig(ctx, c.aws)
		if err != nil {
			return Status{OK: false, Message: err.Error()}
		}
		cli = s3.NewFromConfig(cfg)
	}
	if _, err := cli.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

// checkWritable creates and removes a probe file in dir.
func checkWritable(dir string) Status {
	if dir == "" {
		return Status{Disabled: true, Message: "Not configured"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	f, err := os.CreateTemp(dir, ".scansplit-check-*")
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return Status{OK: true, Message: "Writable"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
