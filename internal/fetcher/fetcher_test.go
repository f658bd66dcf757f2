package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opkgtool/opkg/internal/model"
)

func TestSizeReturnsContentLengthWithoutBody(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.Header().Set("Content-Length", "42")
		if r.Method == http.MethodGet {
			_, _ = w.Write(make([]byte, 42))
		}
	}))
	t.Cleanup(srv.Close)

	h := New(srv.URL, nil)
	p := model.NewPkg("www/app", "1.0")
	p.RepoPath = "All/app-1.0.tgz"

	size, err := h.Size(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int64(42), size)
	assert.Equal(t, http.MethodHead, gotMethod)
}

func TestSizePropagatesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	h := New(srv.URL, nil)
	p := model.NewPkg("www/app", "1.0")
	p.RepoPath = "All/app-1.0.tgz"

	_, err := h.Size(context.Background(), p)
	assert.Error(t, err)
}

func TestFetchWritesArtifactToCacheDir(t *testing.T) {
	body := "archive-bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	h := New(srv.URL, nil)
	p := model.NewPkg("www/app", "1.0")
	p.RepoPath = "All/app-1.0.tgz"

	cacheDir := t.TempDir()
	dest, err := h.Fetch(context.Background(), p, cacheDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cacheDir, "All/app-1.0.tgz"), dest)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	_, err = os.Stat(dest + ".part")
	assert.True(t, os.IsNotExist(err), "partial download file must not survive a successful fetch")
}

func TestFetchPropagatesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	h := New(srv.URL, nil)
	p := model.NewPkg("www/app", "1.0")
	p.RepoPath = "All/app-1.0.tgz"

	_, err := h.Fetch(context.Background(), p, t.TempDir())
	assert.Error(t, err)
}
