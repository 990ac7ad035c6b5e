package sync

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeS3 records PutObject requests by path.
type fakeS3 struct {
	mu       sync.Mutex
	puts     int
	objects  map[string]string
	headers  http.Header
	failNext bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	f.puts++
	f.objects[r.URL.Path] = string(body)
	f.headers = r.Header.Clone()
	w.Header().Set("ETag", `"etag"`)
	w.WriteHeader(http.StatusOK)
}

func newFakeS3(t *testing.T) (*fakeS3, *S3Destination) {
	t.Helper()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_REQUEST_CHECKSUM_CALCULATION", "when_required")
	t.Setenv("AWS_RETRY_MAX_ATTEMPTS", "1")

	fake := &fakeS3{objects: make(map[string]string)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	dest, err := NewS3Destination(context.Background(), "backups", "dbr/export.jsonl", "us-east-1", srv.URL)
	if err != nil {
		t.Fatalf("NewS3Destination: %v", err)
	}
	return fake, dest
}

func TestS3Destination_Write(t *testing.T) {
	fake, dest := newFakeS3(t)
	if dest.Name() != "s3://backups/dbr/export.jsonl" {
		t.Errorf("Name() = %q", dest.Name())
	}

	data := `{"version":"1","type":"header"}` + "\n"
	if err := dest.Write(context.Background(), []byte(data)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if got := fake.objects["/backups/dbr/export.jsonl"]; got != data {
		t.Errorf("object body = %q", got)
	}
	if ct := fake.headers.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type = %q", ct)
	}
	if sum := fake.headers.Get("X-Amz-Meta-Dbr-Sha256"); len(sum) != 64 {
		t.Errorf("checksum metadata = %q", sum)
	}
}

func TestS3Destination_SkipsUnchanged(t *testing.T) {
	fake, dest := newFakeS3(t)
	ctx := context.Background()

	for _, data := range []string{"a\n", "a\n", "b\n", "b\n"} {
		if err := dest.Write(ctx, []byte(data)); err != nil {
			t.Fatalf("Write(%q): %v", data, err)
		}
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.puts != 2 {
		t.Errorf("puts = %d, want 2", fake.puts)
	}
}

func TestS3Destination_RetriesAfterFailure(t *testing.T) {
	fake, dest := newFakeS3(t)
	ctx := context.Background()

	fake.mu.Lock()
	fake.failNext = true
	fake.mu.Unlock()
	if err := dest.Write(ctx, []byte("a\n")); err == nil {
		t.Fatal("expected error from failed upload")
	}
	// The failed snapshot was not recorded, so the same data goes out again.
	if err := dest.Write(ctx, []byte("a\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.puts != 1 {
		t.Errorf("puts = %d, want 1", fake.puts)
	}
}

func TestNewS3Destination_RequiresBucketAndKey(t *testing.T) {
	if _, err := NewS3Destination(context.Background(), "", "k", "us-east-1", ""); err == nil {
		t.Error("expected error for missing bucket")
	}
	if _, err := NewS3Destination(context.Background(), "b", "", "us-east-1", ""); err == nil {
		t.Error("expected error for missing key")
	}
}
