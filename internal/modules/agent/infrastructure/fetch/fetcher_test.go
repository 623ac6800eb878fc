package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("file body"))
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, t.TempDir())
	path, cleanup, err := f.Download(context.Background(), srv.URL, "doc.txt")
	require.NoError(t, err)
	defer cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file body", string(data))

	cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, t.TempDir())
	_, _, err := f.Download(context.Background(), srv.URL, "doc.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doc.txt")
	assert.Contains(t, err.Error(), "404")
}

func TestDownloadConnectionRefused(t *testing.T) {
	f := NewFetcher(time.Second, t.TempDir())
	_, _, err := f.Download(context.Background(), "http://127.0.0.1:1/none", "doc.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doc.txt")
}

func TestDownloadContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := NewFetcher(5*time.Second, t.TempDir())
	_, _, err := f.Download(ctx, srv.URL, "doc.txt")
	require.Error(t, err)
}
