package persist

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/TobiSchelling/ArticleDigest/internal/article"
	"github.com/TobiSchelling/ArticleDigest/internal/config"
	"github.com/TobiSchelling/ArticleDigest/internal/render"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// objectPutter is the part of the S3 client the sink needs.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads the rendered artifact to an S3 bucket.
type S3Sink struct {
	client   objectPutter
	bucket   string
	prefix   string
	format   string
	headings config.Headings
	now      func() time.Time
}

// NewS3Sink creates an S3 sink using the default AWS configuration chain,
// with region and profile overrides from cfg.
func NewS3Sink(ctx context.Context, cfg config.Output) (*S3Sink, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.S3.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3.Region))
	}
	if cfg.S3.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.S3.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3.UsePathStyle
	})
	return newS3Sink(client, cfg), nil
}

func newS3Sink(client objectPutter, cfg config.Output) *S3Sink {
	return &S3Sink{
		client:   client,
		bucket:   cfg.S3.Bucket,
		prefix:   cfg.S3.Prefix,
		format:   cfg.Format,
		headings: cfg.Headings,
		now:      time.Now,
	}
}

func (s *S3Sink) Name() string { return "s3" }

func (s *S3Sink) Save(ctx context.Context, sum *article.Summary, _ *article.Content) error {
	data, err := render.Render(s.format, sum, s.headings)
	if err != nil {
		return err
	}

	key := s.objectKey(sum.SourceURL)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(s.format)),
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// objectKey names the object after the run time and the last path segment
// of the article URL.
func (s *S3Sink) objectKey(sourceURL string) string {
	slug := "article"
	if u, err := url.Parse(sourceURL); err == nil {
		if seg := unsafeKeyChars.ReplaceAllString(path.Base(u.Path), "-"); strings.Trim(seg, "-") != "" {
			slug = strings.Trim(seg, "-")
		}
	}
	if len(slug) > 64 {
		slug = slug[:64]
	}
	name := s.now().UTC().Format("20060102T150405Z") + "-" + slug + render.Extension(s.format)
	return path.Join(s.prefix, name)
}

func contentType(format string) string {
	switch strings.ToLower(format) {
	case render.FormatHTML:
		return "text/html; charset=utf-8"
	case render.FormatJSON:
		return "application/json"
	default:
		return "text/markdown; charset=utf-8"
	}
}
