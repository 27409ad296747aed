package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type S3Config struct {
	Region        string
	Bucket        string
	Endpoint      string
	PublicBaseURL string
	PathStyle     bool
	// Marker is the first key segment of every uploaded object. It doubles as
	// the url marker public ids are derived from.
	Marker     string
	PresignTTL time.Duration
}

type S3 struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucket     string
	baseURL    string
	marker     string
	presignTTL time.Duration
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		baseURL:    strings.TrimRight(baseURL, "/"),
		marker:     strings.Trim(cfg.Marker, "/"),
		presignTTL: cfg.PresignTTL,
	}, nil
}

// Upload stores the body under <marker>/<namespace>/<uuid><ext>.
func (s *S3) Upload(ctx context.Context, in UploadInput) (*Object, error) {
	publicID := uuid.NewString()
	if in.Namespace != "" {
		publicID = in.Namespace + "/" + publicID
	}
	key := s.marker + "/" + publicID + strings.ToLower(in.Extension)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        in.Body,
		ContentType: aws.String(in.ContentType),
	}
	if in.Size > 0 {
		input.ContentLength = aws.Int64(in.Size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}

	return &Object{
		Key:      key,
		URL:      s.baseURL + "/" + key,
		PublicID: publicID,
	}, nil
}

// Destroy deletes the object whose extension-less key matches publicID.
func (s *S3) Destroy(ctx context.Context, publicID string) error {
	prefix := s.marker + "/" + publicID
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return fmt.Errorf("list objects %s: %w", prefix, err)
	}

	deleted := 0
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		if stripExt(key) != prefix {
			continue
		}
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}); err != nil {
			return fmt.Errorf("delete object %s: %w", key, err)
		}
		deleted++
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, publicID)
	}
	return nil
}

func (s *S3) PublicID(rawURL string) (string, bool) {
	return PublicIDFromURL(rawURL, "/"+s.marker+"/")
}

// SignedURL presigns a GET for urls that point into the bucket. Foreign urls
// are returned unchanged.
func (s *S3) SignedURL(ctx context.Context, rawURL string) (string, error) {
	key, ok := strings.CutPrefix(rawURL, s.baseURL+"/")
	if !ok || key == "" {
		return rawURL, nil
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.presignTTL
	})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}
