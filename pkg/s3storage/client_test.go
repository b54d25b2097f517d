package s3storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/records-classifier/pkg/config"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, runID, path string
		want                string
	}{
		{"exports/", "run-1", "/tmp/out/results.csv", "exports/run-1/results.csv"},
		{"", "run-1", "results.csv", "run-1/results.csv"},
		{"/a/b/", "", "x.csv", "a/b/x.csv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ObjectKey(tt.prefix, tt.runID, tt.path))
	}
}

func TestNew_RequiresBucketAndEndpoint(t *testing.T) {
	_, err := New(config.S3Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	c, err := New(config.S3Config{Endpoint: "localhost:9000", Bucket: "records", Prefix: "p"})
	require.NoError(t, err)
	assert.Equal(t, "p/r/out.csv", c.Key("r", "/x/out.csv"))
}

func TestUpload_PutsObject(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		gotURL string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method = r.Method
		gotURL = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	c, err := New(config.S3Config{
		Endpoint:  u.Host,
		Region:    "us-east-1",
		Bucket:    "records",
		AccessKey: "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(local, []byte("FileName\n"), 0o644))

	info, err := c.Upload(context.Background(), "run/results.csv", local)
	require.NoError(t, err)
	assert.Equal(t, "abc123", info.ETag)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/records/run/results.csv", gotURL)
	assert.Contains(t, string(body), "FileName")
}

func TestUpload_MissingFile(t *testing.T) {
	c, err := New(config.S3Config{Endpoint: "localhost:9000", Bucket: "records", Region: "us-east-1"})
	require.NoError(t, err)

	_, err = c.Upload(context.Background(), "k", filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
