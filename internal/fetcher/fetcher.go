// Package fetcher is the reference Fetcher adapter: downloads a
// repository-relative artifact over HTTP into the cache directory.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/opkgtool/opkg/internal/jobs"
	"github.com/opkgtool/opkg/internal/model"
)

// HTTP is an HTTP-backed Fetcher.
type HTTP struct {
	BaseURL string
	Client  *http.Client
}

// New constructs an HTTP fetcher rooted at baseURL (a repository's
// artifact root, joined with each package's RepoPath).
func New(baseURL string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{BaseURL: baseURL, Client: client}
}

func (h *HTTP) url(p *model.Pkg) string {
	return strings.TrimRight(h.BaseURL, "/") + "/" + strings.TrimLeft(p.RepoPath, "/")
}

// Size returns the remote artifact's size via a HEAD request, without
// downloading it.
func (h *HTTP) Size(ctx context.Context, p *model.Pkg) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.url(p), nil)
	if err != nil {
		return 0, err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sizing %s: %w", p.Origin, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("sizing %s: status %d", p.Origin, resp.StatusCode)
	}
	return resp.ContentLength, nil
}

// Fetch downloads p's artifact into cacheDir, returning its final
// on-disk path.
func (h *HTTP) Fetch(ctx context.Context, p *model.Pkg, cacheDir string) (string, error) {
	dest := filepath.Join(cacheDir, p.RepoPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url(p), nil)
	if err != nil {
		return "", err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", p.Origin, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", p.Origin, resp.StatusCode)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("writing %s: %w", p.Origin, err)
	}
	out.Close()
	if err := os.Rename(tmp, dest); err != nil {
		return "", err
	}
	return dest, nil
}

var _ jobs.Fetcher = (*HTTP)(nil)
