package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opkgtool/opkg/internal/model"
)

// fakeFetcher serves fixed sizes and records every Fetch call.
type fakeFetcher struct {
	sizes   map[string]int64
	fetched []string
	fetchErr error
}

func (f *fakeFetcher) Size(ctx context.Context, p *model.Pkg) (int64, error) {
	return f.sizes[p.Origin], nil
}

func (f *fakeFetcher) Fetch(ctx context.Context, p *model.Pkg, cacheDir string) (string, error) {
	if f.fetchErr != nil {
		return "", f.fetchErr
	}
	f.fetched = append(f.fetched, p.Origin)
	return cacheDir + "/" + p.RepoPath, nil
}

// fakeOpener opens a canned fakeFetchArchive whose origin is the repoPath
// it is given.
type fakeOpener struct{}

func (fakeOpener) Open(ctx context.Context, cacheDir, repoPath string) (Archive, error) {
	return fakeFetchArchive{origin: repoPath}, nil
}

type fakeFetchArchive struct{ origin string }

func (a fakeFetchArchive) Origin() string                 { return a.origin }
func (a fakeFetchArchive) Files() []model.FileEntry       { return nil }
func (a fakeFetchArchive) Dirs() []model.DirEntry         { return nil }
func (a fakeFetchArchive) HasFile(path string) bool       { return false }
func (a fakeFetchArchive) HasDir(path string) bool        { return false }
func (a fakeFetchArchive) Message() string                { return "" }
func (a fakeFetchArchive) Scripts() map[string]string     { return nil }
func (a fakeFetchArchive) RunScript(ctx context.Context, kind string) error { return nil }
func (a fakeFetchArchive) Add(ctx context.Context, flags AddFlags) error    { return nil }
func (a fakeFetchArchive) Close() error                                    { return nil }

func newFetchTestSession(t *testing.T, flags model.Flags, fetcher *fakeFetcher, events *fakeEvents) *Session {
	t.Helper()
	s := NewSession(model.JobInstall, Config{
		Db:      newFakeDb(),
		Repo:    newFakeRepo(),
		Fetcher: fetcher,
		Opener:  fakeOpener{},
		Events:  events,
		Plugins: fakePlugins{},
		CacheDir: t.TempDir(),
	})
	s.SetFlags(flags)
	return s
}

func TestFetchJobsDryRunSkipsDownloadAndIntegrityCheck(t *testing.T) {
	p := model.NewPkg("www/app", "1.0")
	p.RepoPath = "All/app-1.0.tgz"

	fetcher := &fakeFetcher{sizes: map[string]int64{"www/app": 100}}
	events := &fakeEvents{}
	s := newFetchTestSession(t, model.FlagDryRun, fetcher, events)
	s.jobs.Append(p)

	require.NoError(t, s.fetchJobs(context.Background()))
	assert.Empty(t, fetcher.fetched, "dry run must not download")
	assert.Equal(t, 0, events.integrityChecks, "dry run must not run the integrity check")
}

func TestFetchJobsDownloadsAndRunsIntegrityCheck(t *testing.T) {
	p := model.NewPkg("www/app", "1.0")
	p.RepoPath = "All/app-1.0.tgz"

	fetcher := &fakeFetcher{sizes: map[string]int64{"www/app": 100}}
	events := &fakeEvents{}
	s := newFetchTestSession(t, 0, fetcher, events)
	s.jobs.Append(p)

	require.NoError(t, s.fetchJobs(context.Background()))
	assert.Equal(t, []string{"www/app"}, fetcher.fetched)
	assert.Equal(t, 1, events.integrityChecks)
}

func TestFetchJobsRequiresCacheDir(t *testing.T) {
	s := NewSession(model.JobInstall, Config{
		Db:      newFakeDb(),
		Repo:    newFakeRepo(),
		Fetcher: &fakeFetcher{},
		Opener:  fakeOpener{},
		Events:  &fakeEvents{},
		Plugins: fakePlugins{},
	})
	err := s.fetchJobs(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindFatal))
}

func TestFetchJobsWrapsFetchErrorAsFatal(t *testing.T) {
	p := model.NewPkg("www/app", "1.0")
	p.RepoPath = "All/app-1.0.tgz"

	fetcher := &fakeFetcher{sizes: map[string]int64{"www/app": 100}, fetchErr: assert.AnError}
	s := newFetchTestSession(t, 0, fetcher, &fakeEvents{})
	s.jobs.Append(p)

	err := s.fetchJobs(context.Background())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindFatal))
}

func TestCachedFileSizeMissingFileIsZero(t *testing.T) {
	assert.Equal(t, int64(0), cachedFileSize(t.TempDir()+"/missing"))
}

func TestStatCacheDirCreatesMissingDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/cache"
	_, _, err := statCacheDir(dir)
	require.NoError(t, err)
}
