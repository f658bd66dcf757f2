// Package archive is the reference Archive adapter: packages are plain
// tar+gzip files carrying a +MANIFEST.json header entry describing the
// origin, file/dir list, lifecycle scripts, and install message, followed
// by the package's payload files. archive/tar and compress/gzip are
// stdlib; no third-party archive format library in the example pack
// covers this shape (see DESIGN.md), so this is one of the module's
// deliberate standard-library components.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/opkgtool/opkg/internal/jobs"
	"github.com/opkgtool/opkg/internal/model"
)

// Manifest is the +MANIFEST.json header entry of a package archive.
type Manifest struct {
	Origin  string            `json:"origin"`
	Version string            `json:"version"`
	Files   []string          `json:"files"`
	Dirs    []string          `json:"dirs"`
	Scripts map[string]string `json:"scripts"`
	Message string            `json:"message"`
}

// Tar is a tar+gzip-backed Archive, opened read-only from the cache
// directory.
type Tar struct {
	path     string
	manifest Manifest
	destRoot string
}

// Opener implements jobs.ArchiveOpener over Tar archives, extracting into
// destRoot (the live filesystem root, "/" in production).
type Opener struct {
	DestRoot string
}

func (o *Opener) Open(ctx context.Context, cacheDir, repoPath string) (jobs.Archive, error) {
	full := filepath.Join(cacheDir, repoPath)
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", full, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var m Manifest
	found := false
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive %s: %w", full, err)
		}
		if hdr.Name == "+MANIFEST.json" {
			if err := json.NewDecoder(tr).Decode(&m); err != nil {
				return nil, fmt.Errorf("decoding manifest in %s: %w", full, err)
			}
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("archive %s has no +MANIFEST.json", full)
	}

	destRoot := o.DestRoot
	if destRoot == "" {
		destRoot = string(filepath.Separator)
	}
	return &Tar{path: full, manifest: m, destRoot: destRoot}, nil
}

func (t *Tar) Origin() string { return t.manifest.Origin }

func (t *Tar) Files() []model.FileEntry {
	out := make([]model.FileEntry, len(t.manifest.Files))
	for i, f := range t.manifest.Files {
		out[i] = model.FileEntry{Path: f}
	}
	return out
}

func (t *Tar) Dirs() []model.DirEntry {
	out := make([]model.DirEntry, len(t.manifest.Dirs))
	for i, d := range t.manifest.Dirs {
		out[i] = model.DirEntry{Path: d}
	}
	return out
}

func (t *Tar) HasFile(path string) bool {
	for _, f := range t.manifest.Files {
		if f == path {
			return true
		}
	}
	return false
}

func (t *Tar) HasDir(path string) bool {
	for _, d := range t.manifest.Dirs {
		if d == path {
			return true
		}
	}
	return false
}

func (t *Tar) Message() string { return t.manifest.Message }

func (t *Tar) Scripts() map[string]string { return t.manifest.Scripts }

// RunScript executes one of the package's lifecycle scripts, if present,
// via /bin/sh -c, matching the C source's use of a shell-interpreted
// script body embedded in the package manifest.
func (t *Tar) RunScript(ctx context.Context, kind string) error {
	body, ok := t.manifest.Scripts[kind]
	if !ok || body == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", body)
	cmd.Dir = t.destRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %s script: %w: %s", kind, err, out)
	}
	return nil
}

// Add extracts the archive's payload entries (everything but
// +MANIFEST.json) under destRoot.
func (t *Tar) Add(ctx context.Context, flags jobs.AddFlags) error {
	if !flags.NoScript {
		if err := t.RunScript(ctx, "pre-install"); err != nil && !flags.Force {
			return err
		}
	}

	f, err := os.Open(t.path)
	if err != nil {
		return err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()
	tr := tar.NewReader(gz)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if hdr.Name == "+MANIFEST.json" {
			continue
		}
		dest := filepath.Join(t.destRoot, hdr.Name)
		if err := extractEntry(dest, hdr, tr); err != nil {
			return fmt.Errorf("extracting %s: %w", hdr.Name, err)
		}
	}

	if !flags.NoScript {
		if err := t.RunScript(ctx, "post-install"); err != nil && !flags.Force {
			return err
		}
	}
	return nil
}

func extractEntry(dest string, hdr *tar.Header, r io.Reader) error {
	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(dest, os.FileMode(hdr.Mode))
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, r)
		return err
	default:
		return nil
	}
}

func (t *Tar) Close() error { return nil }

var _ jobs.Archive = (*Tar)(nil)
var _ jobs.ArchiveOpener = (*Opener)(nil)
