package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3API is the subset of *s3.Client used by S3Storage.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// maxDeleteBatch is the S3 DeleteObjects per-request limit.
const maxDeleteBatch = 1000

// S3Storage keeps caches as objects under <Prefix>/<cache>/<sha256(url)>.
// Single-object PUTs give per-key atomicity.
type S3Storage struct {
	Client S3API
	Bucket string
	Prefix string
}

// NewS3Storage returns a storage rooted at bucket/prefix.
func NewS3Storage(client S3API, bucket, prefix string) *S3Storage {
	return &S3Storage{Client: client, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}
}

func (s *S3Storage) cachePrefix(name string) string {
	if s.Prefix == "" {
		return name + "/"
	}
	return s.Prefix + "/" + name + "/"
}

func (s *S3Storage) rootPrefix() string {
	if s.Prefix == "" {
		return ""
	}
	return s.Prefix + "/"
}

func (s *S3Storage) Open(_ context.Context, name string) (Cache, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return &s3Cache{storage: s, prefix: s.cachePrefix(name)}, nil
}

func (s *S3Storage) Keys(ctx context.Context) ([]string, error) {
	root := s.rootPrefix()
	paginator := s3.NewListObjectsV2Paginator(s.Client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.Bucket),
		Prefix:    aws.String(root),
		Delimiter: aws.String("/"),
	})
	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("S3 ListObjectsV2: %w", err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), root), "/")
			if name != "" {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *S3Storage) Delete(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	keys, err := s.listObjectKeys(ctx, s.cachePrefix(name))
	if err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return false, nil
	}

	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))
		ids := make([]s3types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, s3types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := s.Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.Bucket),
			Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return true, fmt.Errorf("S3 DeleteObjects: %w", err)
		}
		if out != nil && len(out.Errors) > 0 {
			first := out.Errors[0]
			return true, fmt.Errorf("S3 DeleteObjects: %d failures, first %s: %s",
				len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}
	log.Debug().Str("cache", name).Int("objects", len(keys)).Msg("Deleted S3 cache generation")
	return true, nil
}

func (s *S3Storage) listObjectKeys(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	})
	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("S3 ListObjectsV2: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

type s3Cache struct {
	storage *S3Storage
	prefix  string
}

func (c *s3Cache) Match(ctx context.Context, url string) (*Entry, bool, error) {
	e, err := c.get(ctx, c.prefix+hashKey(url))
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if e.URL != url {
		return nil, false, nil
	}
	return e, true, nil
}

func (c *s3Cache) get(ctx context.Context, key string) (*Entry, error) {
	out, err := c.storage.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.storage.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("S3 GetObject: %w", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read S3 object: %w", err)
	}
	return decodeEntry(data)
}

func (c *s3Cache) Put(ctx context.Context, e *Entry) error {
	data, err := encodeEntry(e)
	if err != nil {
		return err
	}
	_, err = c.storage.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(c.storage.Bucket),
		Key:             aws.String(c.prefix + hashKey(e.URL)),
		Body:            bytes.NewReader(data),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("zstd"),
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject: %w", err)
	}
	return nil
}

func (c *s3Cache) Keys(ctx context.Context) ([]string, error) {
	objKeys, err := c.storage.listObjectKeys(ctx, c.prefix)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(objKeys))
	for _, k := range objKeys {
		e, err := c.get(ctx, k)
		if err != nil {
			log.Warn().Err(err).Str("key", k).Msg("Skipping unreadable S3 cache entry")
			continue
		}
		urls = append(urls, e.URL)
	}
	sort.Strings(urls)
	return urls, nil
}
