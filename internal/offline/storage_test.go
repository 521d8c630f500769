package offline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory bucket implementing S3API.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	seen := map[string]bool{}
	var keys []string
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+len(delim)]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, s3types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range in.Delete.Objects {
		delete(f.objects, aws.ToString(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func storageBackends(t *testing.T) map[string]Storage {
	t.Helper()
	disk, err := NewDiskStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStorage() error = %v", err)
	}
	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"disk":   disk,
		"s3":     NewS3Storage(newFakeS3(), "bucket", "asset-cache"),
	}
}

func TestStorageContract(t *testing.T) {
	for name, storage := range storageBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			cache, err := storage.Open(ctx, "cctv-guardian-v1")
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}

			entry := &Entry{
				URL:    "/index.html",
				Status: http.StatusOK,
				Header: http.Header{"Content-Type": {"text/html; charset=utf-8"}},
				Body:   []byte("<html>shell</html>"),
			}
			if err := cache.Put(ctx, entry); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if err := cache.Put(ctx, &Entry{URL: "/manifest.json?v=1", Status: 200, Body: []byte("{}")}); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			got, ok, err := cache.Match(ctx, "/index.html")
			if err != nil || !ok {
				t.Fatalf("Match() = (%v, %v, %v), want hit", got, ok, err)
			}
			if got.Status != 200 || string(got.Body) != "<html>shell</html>" || got.Header.Get("Content-Type") != "text/html; charset=utf-8" {
				t.Errorf("Match() returned %+v, want stored entry verbatim", got)
			}

			if _, ok, _ := cache.Match(ctx, "/manifest.json"); ok {
				t.Error("Match() must be exact: query string is part of the key")
			}
			if _, ok, _ := cache.Match(ctx, "/missing"); ok {
				t.Error("Match(/missing) reported a hit")
			}

			keys, err := cache.Keys(ctx)
			if err != nil {
				t.Fatalf("Keys() error = %v", err)
			}
			if strings.Join(keys, ",") != "/index.html,/manifest.json?v=1" {
				t.Errorf("Keys() = %v", keys)
			}

			if _, err := storage.Open(ctx, "cctv-guardian-v2"); err != nil {
				t.Fatalf("Open(v2) error = %v", err)
			}
			other, _ := storage.Open(ctx, "cctv-guardian-v2")
			if err := other.Put(ctx, &Entry{URL: "/", Status: 200}); err != nil {
				t.Fatal(err)
			}

			names, err := storage.Keys(ctx)
			if err != nil {
				t.Fatalf("storage Keys() error = %v", err)
			}
			if strings.Join(names, ",") != "cctv-guardian-v1,cctv-guardian-v2" {
				t.Errorf("storage Keys() = %v", names)
			}

			existed, err := storage.Delete(ctx, "cctv-guardian-v1")
			if err != nil || !existed {
				t.Fatalf("Delete() = (%v, %v), want existed", existed, err)
			}
			existed, err = storage.Delete(ctx, "cctv-guardian-v1")
			if err != nil || existed {
				t.Errorf("second Delete() = (%v, %v), want not existed", existed, err)
			}
			names, _ = storage.Keys(ctx)
			if strings.Join(names, ",") != "cctv-guardian-v2" {
				t.Errorf("after Delete, Keys() = %v", names)
			}
		})
	}
}

func TestStorageRejectsBadNames(t *testing.T) {
	for name, storage := range storageBackends(t) {
		t.Run(name, func(t *testing.T) {
			for _, bad := range []string{"", "..", "a/b", `a\b`} {
				if _, err := storage.Open(context.Background(), bad); !errors.Is(err, ErrInvalidCacheName) {
					t.Errorf("Open(%q) error = %v, want ErrInvalidCacheName", bad, err)
				}
			}
		})
	}
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cache, _ := NewMemoryStorage().Open(ctx, "c")
	if err := cache.Put(ctx, &Entry{URL: "/", Body: []byte("abc")}); err != nil {
		t.Fatal(err)
	}
	e, _, _ := cache.Match(ctx, "/")
	e.Body[0] = 'X'
	again, _, _ := cache.Match(ctx, "/")
	if string(again.Body) != "abc" {
		t.Errorf("stored entry mutated through Match result: %q", again.Body)
	}
}

func TestEntryCodecRoundTrip(t *testing.T) {
	in := &Entry{URL: "/sw.js", Status: 200, Header: http.Header{"X-A": {"1"}}, Body: bytes.Repeat([]byte("cache "), 100)}
	data, err := encodeEntry(in)
	if err != nil {
		t.Fatalf("encodeEntry() error = %v", err)
	}
	if len(data) >= len(in.Body) {
		t.Errorf("compressed size %d not smaller than body %d", len(data), len(in.Body))
	}
	out, err := decodeEntry(data)
	if err != nil {
		t.Fatalf("decodeEntry() error = %v", err)
	}
	if out.URL != in.URL || !bytes.Equal(out.Body, in.Body) || out.Header.Get("X-A") != "1" {
		t.Errorf("round trip mismatch: %+v", out)
	}
}
