package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opkgtool/opkg/internal/jobs"
	"github.com/opkgtool/opkg/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRegisterAndFindOrigin(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := model.NewPkg("www/app", "1.0")
	p.Flatsize = 1024
	p.Options.Set("SSL", "on")
	p.ShlibsRequired.Add("libssl.so.3")
	p.AddDep(model.DepEdge{Origin: "devel/lib", Name: "lib", Version: "2.0"})
	p.Files = []model.FileEntry{{Path: "/usr/local/bin/app"}}
	p.Dirs = []model.DirEntry{{Path: "/usr/local/share/app"}}
	p.Scripts = map[string]string{"post-install": "echo done"}
	p.Annotations = map[string]string{"repository": "default"}

	require.NoError(t, s.Register(ctx, p))

	got, err := s.FindOrigin(ctx, "www/app", model.FieldBasic|model.FieldOptions|model.FieldShlibsRequired|
		model.FieldDeps|model.FieldFiles|model.FieldDirs|model.FieldScripts)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, int64(1024), got.Flatsize)
	assert.Equal(t, "SSL=on ", got.Options.Serialize())
	assert.Equal(t, []string{"libssl.so.3"}, got.ShlibsRequired.Items())
	assert.Equal(t, []string{"devel/lib"}, got.DepOrder)
	assert.Equal(t, "lib", got.Deps["devel/lib"].Name)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "/usr/local/bin/app", got.Files[0].Path)
	require.Len(t, got.Dirs, 1)
	assert.Equal(t, "echo done", got.Scripts["post-install"])
	assert.Equal(t, "default", got.Annotations["repository"])
}

func TestFindOriginNotInstalledReturnsNil(t *testing.T) {
	s := openTestStore(t)
	got, err := s.FindOrigin(context.Background(), "www/nothing", model.FieldBasic)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUnregisterRemovesPackage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := model.NewPkg("www/app", "1.0")
	require.NoError(t, s.Register(ctx, p))

	require.NoError(t, s.Unregister(ctx, "www/app"))

	got, err := s.FindOrigin(ctx, "www/app", model.FieldBasic)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteQueryRecursiveExpandsRdepClosure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := model.NewPkg("devel/base", "1.0")
	require.NoError(t, s.Register(ctx, base))

	mid := model.NewPkg("devel/mid", "1.0")
	mid.AddDep(model.DepEdge{Origin: "devel/base"})
	require.NoError(t, s.Register(ctx, mid))

	top := model.NewPkg("www/top", "1.0")
	top.AddDep(model.DepEdge{Origin: "devel/mid"})
	require.NoError(t, s.Register(ctx, top))

	rows, err := s.DeleteQuery(ctx, "devel/base", model.MatchExact, true)
	require.NoError(t, err)

	origins := make(map[string]bool)
	for _, p := range rows {
		origins[p.Origin] = true
	}
	assert.True(t, origins["devel/base"])
	assert.True(t, origins["devel/mid"])
	assert.True(t, origins["www/top"])
}

func TestIntegrityCheckDetectsFileConflictAcrossStagedCandidates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IntegrityAppend(ctx, fakeArchive{origin: "www/a", files: []string{"/usr/local/bin/shared"}}))
	require.NoError(t, s.IntegrityAppend(ctx, fakeArchive{origin: "www/b", files: []string{"/usr/local/bin/shared"}}))

	err := s.IntegrityCheck(ctx)
	assert.Error(t, err)
}

func TestIntegrityCheckPassesWithoutConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IntegrityAppend(ctx, fakeArchive{origin: "www/a", files: []string{"/usr/local/bin/a"}}))
	require.NoError(t, s.IntegrityAppend(ctx, fakeArchive{origin: "www/b", files: []string{"/usr/local/bin/b"}}))

	assert.NoError(t, s.IntegrityCheck(ctx))
}

// fakeArchive is a minimal jobs.Archive satisfying only what IntegrityAppend
// reads (Origin, Files).
type fakeArchive struct {
	origin string
	files  []string
}

func (a fakeArchive) Origin() string { return a.origin }
func (a fakeArchive) Files() []model.FileEntry {
	out := make([]model.FileEntry, len(a.files))
	for i, f := range a.files {
		out[i] = model.FileEntry{Path: f}
	}
	return out
}
func (a fakeArchive) Dirs() []model.DirEntry    { return nil }
func (a fakeArchive) HasFile(path string) bool  { return false }
func (a fakeArchive) HasDir(path string) bool   { return false }
func (a fakeArchive) Message() string           { return "" }
func (a fakeArchive) Scripts() map[string]string { return nil }
func (a fakeArchive) RunScript(ctx context.Context, kind string) error  { return nil }
func (a fakeArchive) Add(ctx context.Context, flags jobs.AddFlags) error { return nil }
func (a fakeArchive) Close() error { return nil }

var _ jobs.Archive = fakeArchive{}
