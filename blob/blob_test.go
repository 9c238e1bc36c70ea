package blob

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

func newFS(t *testing.T) *Filesystem {
	t.Helper()
	fs, err := NewFilesystem(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	return fs
}

func TestFilesystemStoreFetch(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	if err := fs.Store(ctx, "backgrounds/acme/offer.pdf", []byte("%PDF-1.4")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := fs.Fetch(ctx, "backgrounds/acme/offer.pdf")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got) != "%PDF-1.4" {
		t.Fatalf("got %q", got)
	}
	if _, err := os.Stat(filepath.Join(fs.basePath, "backgrounds/acme/offer.pdf.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	ok, err := fs.Exists(ctx, "backgrounds/acme/offer.pdf")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
}

func TestFilesystemInvalidKeys(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()
	for _, key := range []string{"", "../secret", "a/../../b", "/etc/passwd", "."} {
		if _, err := fs.Fetch(ctx, key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Fetch(%q) err = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestFilesystemNotFoundAndDelete(t *testing.T) {
	fs := newFS(t)
	ctx := context.Background()

	if _, err := fs.Fetch(ctx, "missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := fs.Delete(ctx, "missing.pdf"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}

	if err := fs.Store(ctx, "nested/dir/a.pdf", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := fs.Delete(ctx, "nested/dir/a.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fs.basePath, "nested", "dir")); !os.IsNotExist(err) {
		t.Fatalf("empty directory not removed: %v", err)
	}
	ok, err := fs.Exists(ctx, "nested/dir/a.pdf")
	if err != nil || ok {
		t.Fatalf("Exists after delete = %v, %v", ok, err)
	}
}

func TestHTTPFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/offer.pdf":
			w.Write([]byte("%PDF-remote"))
		case "/big.pdf":
			w.Write(bytes.Repeat([]byte("x"), 64))
		case "/private.pdf":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h := NewHTTP(srv.Client(), 32)
	ctx := context.Background()

	got, err := h.Fetch(ctx, srv.URL+"/offer.pdf")
	if err != nil || string(got) != "%PDF-remote" {
		t.Fatalf("Fetch = %q, %v", got, err)
	}
	if _, err := h.Fetch(ctx, srv.URL+"/nope.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: err = %v", err)
	}
	if _, err := h.Fetch(ctx, srv.URL+"/private.pdf"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("forbidden: err = %v", err)
	}
	if _, err := h.Fetch(ctx, srv.URL+"/big.pdf"); err == nil {
		t.Fatal("expected size limit error")
	}
}

type stubStore struct {
	calls int
	data  map[string][]byte
}

func (s *stubStore) Fetch(_ context.Context, ref string) ([]byte, error) {
	s.calls++
	d, ok := s.data[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func TestRouter(t *testing.T) {
	local := &stubStore{data: map[string][]byte{"a.pdf": []byte("local")}}
	remote := &stubStore{data: map[string][]byte{"https://cdn/a.pdf": []byte("remote")}}
	r := NewRouter(local).Handle("https", remote)
	ctx := context.Background()

	if got, _ := r.Fetch(ctx, "a.pdf"); string(got) != "local" {
		t.Errorf("plain key = %q", got)
	}
	if got, _ := r.Fetch(ctx, "https://cdn/a.pdf"); string(got) != "remote" {
		t.Errorf("https = %q", got)
	}
	if _, err := r.Fetch(ctx, "s3://bucket/a.pdf"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("unknown scheme err = %v", err)
	}
}

type fakeRedis struct {
	values  map[string]string
	getErr  error
	sets    int
	lastTTL time.Duration
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.sets++
	f.lastTTL = ttl
	f.values[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func TestCacheReadThrough(t *testing.T) {
	next := &stubStore{data: map[string][]byte{"a.pdf": []byte("%PDF")}}
	rdb := &fakeRedis{values: map[string]string{}}
	c := NewCache(next, rdb, 10*time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := c.Fetch(ctx, "a.pdf")
		if err != nil || string(got) != "%PDF" {
			t.Fatalf("Fetch #%d = %q, %v", i, got, err)
		}
	}
	if next.calls != 1 {
		t.Errorf("backing store called %d times, want 1", next.calls)
	}
	if rdb.sets != 1 || rdb.lastTTL != 10*time.Minute {
		t.Errorf("sets = %d ttl = %v", rdb.sets, rdb.lastTTL)
	}
}

func TestCacheFailureFallsThrough(t *testing.T) {
	next := &stubStore{data: map[string][]byte{"a.pdf": []byte("%PDF")}}
	rdb := &fakeRedis{values: map[string]string{}, getErr: errors.New("connection refused")}
	c := NewCache(next, rdb, time.Minute, nil)

	got, err := c.Fetch(context.Background(), "a.pdf")
	if err != nil || string(got) != "%PDF" {
		t.Fatalf("Fetch = %q, %v", got, err)
	}

	if _, err := c.Fetch(context.Background(), "missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}
