// Package archive uploads finished logs to S3 compatible object storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang/glog"
)

// Config locates the archive.
type Config struct {
	Bucket string
	Prefix string
	// Region is optional, the default AWS chain is used if empty.
	Region string
	// Endpoint overrides the AWS endpoint for S3 compatible stores such as
	// MinIO.
	Endpoint string
	// UsePathStyle puts the bucket into the path instead of the host name.
	UsePathStyle bool
}

func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseURL parses s3://bucket[/prefix].
func ParseURL(raw string) (Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid archive URL %q: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return Config{}, fmt.Errorf("archive URL %q must use the s3 scheme", raw)
	}
	c := Config{
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
	}
	return c, c.Validate()
}

// putObjectAPI is the part of the S3 client used for uploads.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads files into one bucket.
type S3 struct {
	config Config
	client putObjectAPI
}

// New creates an uploader using the default AWS credential chain.
func New(ctx context.Context, cfg Config) (*S3, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return &S3{config: cfg, client: s3.NewFromConfig(awsConfig, s3Opts...)}, nil
}

// Key returns the object key of file for run: <prefix>/<run>/<base name>.
func (a *S3) Key(run, file string) string {
	return path.Join(a.config.Prefix, run, filepath.Base(file))
}

// Upload stores the file at file under Key(run, file) and returns its
// s3:// location.
func (a *S3) Upload(ctx context.Context, run, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", err
	}

	key := a.Key(run, file)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.config.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(st.Size()),
		ContentType:   aws.String(contentType(file)),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %q to bucket %q: %w", file, a.config.Bucket, err)
	}
	loc := "s3://" + a.config.Bucket + "/" + key
	glog.Infof("archived %s (%d bytes) to %s", file, st.Size(), loc)
	return loc, nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".msgpack", ".mpk":
		return "application/vnd.msgpack"
	case ".db", ".sqlite":
		return "application/vnd.sqlite3"
	default:
		return "text/tab-separated-values"
	}
}
