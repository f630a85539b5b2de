package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	if data, hit, err := c.Get(ctx, "key"); err != nil || hit || data != nil {
		t.Errorf("Get() = %q, %v, %v; want miss", data, hit, err)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

// exercise runs the behavior every backend must share.
func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
		t.Fatalf("Get(missing) hit = %v, err = %v", hit, err)
	}
	if err := c.Set(ctx, "k", []byte("v1"), time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != "v1" {
		t.Fatalf("Get(k) = %q, %v, %v", data, hit, err)
	}
	if err := c.Set(ctx, "k", []byte("v2"), 0); err != nil {
		t.Fatalf("overwrite error: %v", err)
	}
	if data, _, _ := c.Get(ctx, "k"); string(data) != "v2" {
		t.Errorf("after overwrite Get(k) = %q, want v2", data)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("Get after Delete hit")
	}
	if err := c.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete(missing) error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	exercise(t, c)
}

func TestFileCacheExpiry(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	now = now.Add(2 * time.Minute)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry returned")
	}
	if _, err := os.Stat(c.path("k")); !errors.Is(err, os.ErrNotExist) {
		t.Error("expired entry not removed")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	c, _ := NewFileCache(t.TempDir())
	path := c.path("k")
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	_ = os.WriteFile(path, []byte("{not json"), 0o644)

	if _, hit, err := c.Get(context.Background(), "k"); hit || err != nil {
		t.Errorf("corrupt entry: hit = %v, err = %v", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	c, _ := NewFileCache(t.TempDir())
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		_ = c.Set(ctx, k, []byte(k), 0)
	}
	n, err := c.Clear()
	if err != nil || n != 3 {
		t.Fatalf("Clear() = %d, %v; want 3", n, err)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("entry survived Clear")
	}
}

func TestMemoryCache(t *testing.T) {
	exercise(t, NewMemoryCache(8))
}

func TestMemoryCacheEviction(t *testing.T) {
	c := NewMemoryCache(2)
	ctx := context.Background()
	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_, _, _ = c.Get(ctx, "a") // a is now most recent
	_ = c.Set(ctx, "c", []byte("3"), 0)

	if _, hit, _ := c.Get(ctx, "b"); hit {
		t.Error("least recently used entry not evicted")
	}
	if _, hit, _ := c.Get(ctx, "a"); !hit {
		t.Error("recently used entry evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestMemoryCacheExpiryAndCopy(t *testing.T) {
	c := NewMemoryCache(0)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	buf := []byte("value")
	_ = c.Set(ctx, "k", buf, time.Second)
	buf[0] = 'X'
	if data, _, _ := c.Get(ctx, "k"); string(data) != "value" {
		t.Errorf("Get() = %q, stored slice aliased caller buffer", data)
	}
	got, _, _ := c.Get(ctx, "k")
	got[0] = 'Y'
	if data, _, _ := c.Get(ctx, "k"); string(data) != "value" {
		t.Errorf("Get() = %q, returned slice aliased the entry", data)
	}
	now = now.Add(2 * time.Second)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry returned")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length = %d, want 64", len(h1))
	}
	j1, err := HashJSON(map[string]int{"a": 1})
	if err != nil || len(j1) != 64 {
		t.Errorf("HashJSON() = %q, %v", j1, err)
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	base := DocumentKeyOpts{Format: "drawio", Expand: true, MinZones: 5, MinNodes: 25, MinFlows: 20, MinNodesHard: 1}
	k1 := k.DocumentKey("hash", base)
	if k1 != k.DocumentKey("hash", base) {
		t.Error("DocumentKey is not deterministic")
	}
	changed := base
	changed.MinFlows = 21
	if k1 == k.DocumentKey("hash", changed) {
		t.Error("different options should produce different keys")
	}
	svg := base
	svg.Format = "svg"
	if k1 == k.DocumentKey("hash", svg) {
		t.Error("different formats should produce different keys")
	}
	detailed := base
	detailed.Detailed = true
	if k1 == k.DocumentKey("hash", detailed) {
		t.Error("detailed previews should produce different keys")
	}
	if k1 == k.DocumentKey("other", base) {
		t.Error("different graphs should produce different keys")
	}

	e1 := k.ExtractKey("text", ExtractKeyOpts{Profile: "bank", DetailLevel: "standard"})
	e2 := k.ExtractKey("text", ExtractKeyOpts{Profile: "bank", DetailLevel: "lite"})
	if e1 == e2 {
		t.Error("different extract options should produce different keys")
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(nil, "tenant:42:")
	inner := NewDefaultKeyer()
	opts := DocumentKeyOpts{Format: "drawio"}
	if got, want := scoped.DocumentKey("h", opts), "tenant:42:"+inner.DocumentKey("h", opts); got != want {
		t.Errorf("DocumentKey = %q, want %q", got, want)
	}
	eopts := ExtractKeyOpts{Profile: "p"}
	if got, want := scoped.ExtractKey("h", eopts), "tenant:42:"+inner.ExtractKey("h", eopts); got != want {
		t.Errorf("ExtractKey = %q, want %q", got, want)
	}
}

func TestBackoffRetry(t *testing.T) {
	b := Backoff{Attempts: 3, Delay: time.Millisecond}
	ctx := context.Background()

	calls := 0
	err := b.Retry(ctx, func() error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("flaky"))
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("Retry() err = %v after %d calls, want success after 3", err, calls)
	}

	calls = 0
	permanent := errors.New("permanent")
	if err := b.Retry(ctx, func() error { calls++; return permanent }); !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("non-retryable: err = %v, calls = %d", err, calls)
	}

	calls = 0
	err = b.Retry(ctx, func() error { calls++; return Retryable(errors.New("down")) })
	if !IsRetryable(err) || calls != 3 {
		t.Errorf("exhausted: err = %v, calls = %d", err, calls)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		opts    OpenOptions
		wantErr bool
	}{
		{"default", OpenOptions{}, false},
		{"none", OpenOptions{Backend: BackendNone}, false},
		{"memory", OpenOptions{Backend: BackendMemory}, false},
		{"file", OpenOptions{Backend: BackendFile, Dir: t.TempDir()}, false},
		{"file without dir", OpenOptions{Backend: BackendFile}, true},
		{"redis without url", OpenOptions{Backend: BackendRedis}, true},
		{"mongo without uri", OpenOptions{Backend: BackendMongo}, true},
		{"unknown", OpenOptions{Backend: "memcached"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Open(ctx, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if c != nil {
				_ = c.Close()
			}
		})
	}
}
