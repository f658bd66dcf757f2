package jobs

import (
	"context"

	"github.com/opkgtool/opkg/internal/model"
)

// fakeDb is a minimal in-memory Db stand-in for exercising the solver and
// orderer without a real SQLite store, in the spirit of golang-dep's
// hand-rolled manager_test.go stand-ins for gps.SourceManager rather than
// a generated mock.
type fakeDb struct {
	installed map[string]*model.Pkg
	rdeps     map[string][]string // origin -> origins that depend on it
}

func newFakeDb() *fakeDb {
	return &fakeDb{installed: make(map[string]*model.Pkg), rdeps: make(map[string][]string)}
}

func (f *fakeDb) Lock(ctx context.Context) (func() error, error) {
	return func() error { return nil }, nil
}

func (f *fakeDb) FindOrigin(ctx context.Context, origin string, fields model.LoadField) (*model.Pkg, error) {
	p, ok := f.installed[origin]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (f *fakeDb) Query(ctx context.Context, pattern string, match model.MatchKind, fields model.LoadField) ([]*model.Pkg, error) {
	var out []*model.Pkg
	for _, p := range f.installed {
		if match == model.MatchAll || p.Origin == pattern {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeDb) AllAutomatic(ctx context.Context, fields model.LoadField) ([]*model.Pkg, error) {
	var out []*model.Pkg
	for _, p := range f.installed {
		if p.Automatic {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeDb) AllInstalled(ctx context.Context, fields model.LoadField) ([]*model.Pkg, error) {
	var out []*model.Pkg
	for _, p := range f.installed {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeDb) DeleteQuery(ctx context.Context, pattern string, match model.MatchKind, recursive bool) ([]*model.Pkg, error) {
	return f.Query(ctx, pattern, match, model.FieldBasic)
}

func (f *fakeDb) Delete(ctx context.Context, p *model.Pkg, force, noScript bool) error {
	delete(f.installed, p.Origin)
	return nil
}

func (f *fakeDb) Begin(ctx context.Context, savepoint string) (Txn, error) {
	return &fakeTxn{}, nil
}

func (f *fakeDb) IntegrityConflictLocal(ctx context.Context, origin string) ([]*model.Pkg, error) {
	return nil, nil
}

func (f *fakeDb) IntegrityAppend(ctx context.Context, a Archive) error { return nil }

func (f *fakeDb) IntegrityCheck(ctx context.Context) error { return nil }

func (f *fakeDb) Unregister(ctx context.Context, origin string) error {
	delete(f.installed, origin)
	return nil
}

func (f *fakeDb) Register(ctx context.Context, p *model.Pkg) error {
	f.installed[p.Origin] = p
	return nil
}

type fakeTxn struct{}

func (t *fakeTxn) Savepoint(ctx context.Context, name string) error           { return nil }
func (t *fakeTxn) Release(ctx context.Context, name string, reopen bool) error { return nil }
func (t *fakeTxn) Rollback(ctx context.Context, name string) error            { return nil }
func (t *fakeTxn) Commit(ctx context.Context) error                           { return nil }

// fakeRepo serves a fixed catalog keyed by origin.
type fakeRepo struct {
	catalog map[string]*model.Pkg
}

func newFakeRepo() *fakeRepo { return &fakeRepo{catalog: make(map[string]*model.Pkg)} }

func (f *fakeRepo) Name() string { return "fake" }

func (f *fakeRepo) Query(ctx context.Context, pattern string, match model.MatchKind, fields model.LoadField) ([]*model.Pkg, error) {
	var out []*model.Pkg
	for origin, p := range f.catalog {
		if match == model.MatchExact && origin != pattern {
			continue
		}
		out = append(out, p)
	}
	if out == nil {
		return nil, nil
	}
	return out, nil
}

// fakeEvents records every call for assertions.
type fakeEvents struct {
	circularDependency int
	integrityChecks    int
	missingDependency  []string
	errors             []string
}

func (e *fakeEvents) AlreadyInstalled(p *model.Pkg)  {}
func (e *fakeEvents) NewPkgVersion()                 {}
func (e *fakeEvents) MissingDependency(origin string) {
	e.missingDependency = append(e.missingDependency, origin)
}
func (e *fakeEvents) Locked(p *model.Pkg)          {}
func (e *fakeEvents) UpgradeBegin(p *model.Pkg)    {}
func (e *fakeEvents) UpgradeFinished(p *model.Pkg) {}
func (e *fakeEvents) InstallBegin(p *model.Pkg)    {}
func (e *fakeEvents) InstallFinished(p *model.Pkg) {}
func (e *fakeEvents) IntegrityCheckBegin()         { e.integrityChecks++ }
func (e *fakeEvents) IntegrityCheckFinished()      {}
func (e *fakeEvents) CircularDependency()          { e.circularDependency++ }
func (e *fakeEvents) Error(msg string)             { e.errors = append(e.errors, msg) }
func (e *fakeEvents) Errno(syscall string, arg string) {}

type fakePlugins struct{}

func (fakePlugins) Pre(ctx context.Context, phase string) error  { return nil }
func (fakePlugins) Post(ctx context.Context, phase string) error { return nil }

func newSessionForTest(typ model.JobType, db Db, repo Repo, events Events) *Session {
	return NewSession(typ, Config{
		Db:      db,
		Repo:    repo,
		Events:  events,
		Plugins: fakePlugins{},
	})
}

var _ Db = (*fakeDb)(nil)
var _ Repo = (*fakeRepo)(nil)
var _ Events = (*fakeEvents)(nil)
var _ Plugins = (*fakePlugins)(nil)
var _ Txn = (*fakeTxn)(nil)
