package resultstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	humanize "github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

// s3API is the subset of the S3 client used by S3Store.
type s3API interface {
	PutObjectWithContext(aws.Context, *s3.PutObjectInput, ...request.Option) (*s3.PutObjectOutput, error)
	GetObjectWithContext(aws.Context, *s3.GetObjectInput, ...request.Option) (*s3.GetObjectOutput, error)
	ListObjectsPagesWithContext(aws.Context, *s3.ListObjectsInput, func(*s3.ListObjectsOutput, bool) bool, ...request.Option) error
}

type locationAPI interface {
	GetBucketLocationWithContext(aws.Context, *s3.GetBucketLocationInput, ...request.Option) (*s3.GetBucketLocationOutput, error)
}

// S3Store writes records under an s3://bucket/prefix destination.
type S3Store struct {
	client s3API
	bucket string
	prefix string
	ext    string
	logger *zap.Logger
}

// ValidateURI validates and parses an S3 URI
func ValidateURI(uri string) (*url.URL, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "s3" {
		return nil, fmt.Errorf("uri %s does not have s3:// scheme", uri)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("uri %s has no bucket", uri)
	}
	return u, nil
}

// NewS3Store connects to the bucket named by uri.
func NewS3Store(ctx context.Context, uri string, opts Options) (*S3Store, error) {
	u, err := ValidateURI(uri)
	if err != nil {
		return nil, err
	}

	sess, err := session.NewSession()
	if err != nil {
		return nil, err
	}

	region := opts.Region
	if region == "" {
		if region, err = bucketRegion(ctx, s3.New(sess, aws.NewConfig().WithRegion("us-west-1")), u.Host); err != nil {
			return nil, fmt.Errorf("unable to determine region: %v", err)
		}
	}

	return newS3Store(s3.New(sess, aws.NewConfig().WithRegion(region)), u, opts), nil
}

func newS3Store(client s3API, u *url.URL, opts Options) *S3Store {
	if opts.Ext == "" {
		opts.Ext = DefaultExt
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &S3Store{
		client: client,
		bucket: u.Host,
		prefix: strings.Trim(u.Path, "/"),
		ext:    opts.Ext,
		logger: opts.Logger,
	}
}

func bucketRegion(ctx context.Context, client locationAPI, bucket string) (string, error) {
	out, err := client.GetBucketLocationWithContext(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(bucket)})
	if err != nil {
		return "", err
	}
	if out.LocationConstraint == nil {
		return "us-east-1", nil
	}
	return *out.LocationConstraint, nil
}

func (s *S3Store) objectKey(k Key) string {
	if s.prefix == "" {
		return k.Name() + s.ext
	}
	return s.prefix + "/" + k.Name() + s.ext
}

func (s *S3Store) uri(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

// Put uploads the encoded record; S3 object writes are atomic.
func (s *S3Store) Put(ctx context.Context, k Key, rec Record) (string, error) {
	key := s.objectKey(k)
	uri := s.uri(key)

	var buf bytes.Buffer
	if err := Encode(&buf, s.ext, &rec); err != nil {
		return "", errors.Persistence(uri, err)
	}
	size := buf.Len()

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return "", errors.Persistence(uri, err)
	}

	s.logger.Info("wrote result",
		zap.String("path", uri),
		zap.Int("rows", len(rec.Err)),
		zap.String("size", humanize.Bytes(uint64(size))))
	return uri, nil
}

// Get downloads and decodes the record for k.
func (s *S3Store) Get(ctx context.Context, k Key) (Record, error) {
	key := s.objectKey(k)
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Record{}, errors.Persistence(s.uri(key), err)
	}
	defer out.Body.Close()

	rec, err := Decode(out.Body, s.ext)
	if err != nil {
		return Record{}, errors.Persistence(s.uri(key), err)
	}
	return rec, nil
}

// List returns the keys of records under the prefix.
func (s *S3Store) List(ctx context.Context) ([]Key, error) {
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}

	var keys []Key
	err := s.client.ListObjectsPagesWithContext(ctx, &s3.ListObjectsInput{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsOutput, last bool) bool {
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(obj.Key), prefix)
			if strings.Contains(name, "/") || !strings.HasSuffix(name, s.ext) {
				continue
			}
			if k, ok := ParseKey(strings.TrimSuffix(name, s.ext)); ok && k.Name()+s.ext == name {
				keys = append(keys, k)
			}
		}
		return true
	})
	if err != nil {
		return nil, errors.Persistence(s.uri(prefix), err)
	}
	SortKeys(keys)
	return keys, nil
}
