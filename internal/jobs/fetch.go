package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opkgtool/opkg/internal/model"
)

// StatFS abstracts syscall.Statfs so the fetcher driver's free-space
// accounting is testable without touching a real filesystem.
type StatFS interface {
	Stat(path string) (freeBlocks uint64, blockSize uint64, err error)
}

// fetchJobs implements pkg_jobs_fetch (spec §4.6).
func (s *Session) fetchJobs(ctx context.Context) error {
	if s.cacheDir == "" {
		return errFatal(fmt.Errorf("CACHEDIR is required"))
	}

	var dlsize int64
	for _, p := range s.jobs.Iter() {
		remoteSize, err := s.fetcher.Size(ctx, p)
		if err != nil {
			return errFatal(err)
		}
		existing := cachedFileSize(filepath.Join(s.cacheDir, p.RepoPath))
		delta := remoteSize - existing
		if delta > 0 {
			dlsize += delta
		}
	}

	free, blockSize, err := statCacheDir(s.cacheDir)
	if err != nil {
		return errFatal(err)
	}

	if dlsize > int64(free*blockSize) {
		return errNoSpace(fmt.Errorf("not enough space in %s: need %d bytes", s.cacheDir, dlsize))
	}

	if s.flags.Has(model.FlagDryRun) {
		return nil
	}

	for _, p := range s.jobs.Iter() {
		if _, err := s.fetcher.Fetch(ctx, p, s.cacheDir); err != nil {
			return errFatal(err)
		}
	}

	s.events.IntegrityCheckBegin()
	var sticky error
	for _, p := range s.jobs.Iter() {
		a, err := s.opener.Open(ctx, s.cacheDir, p.RepoPath)
		if err != nil {
			sticky = err
			continue
		}
		if err := s.db.IntegrityAppend(ctx, a); err != nil {
			sticky = err
		}
		a.Close()
	}
	checkErr := s.db.IntegrityCheck(ctx)
	s.events.IntegrityCheckFinished()
	if sticky != nil || checkErr != nil {
		if checkErr != nil {
			return errFatal(checkErr)
		}
		return errFatal(sticky)
	}
	return nil
}

func cachedFileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func statCacheDir(dir string) (freeBlocks, blockSize uint64, err error) {
	free, bs, err := statfs(dir)
	if err == nil {
		return free, bs, nil
	}
	if !os.IsNotExist(err) {
		return 0, 0, err
	}
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return 0, 0, mkErr
	}
	return statfs(dir)
}
