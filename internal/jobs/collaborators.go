package jobs

import (
	"context"

	"github.com/opkgtool/opkg/internal/model"
)

// Db is the local installed-package database, queryable by pattern or
// origin, supporting exclusive locking, nested transactions, integrity
// staging, and registration/unregistration of installed packages.
//
// This is the contract spec.md §1 calls out as an external collaborator;
// internal/db ships a SQLite-backed implementation of it.
type Db interface {
	// Lock acquires the session-wide exclusive advisory lock. Released by
	// the returned func.
	Lock(ctx context.Context) (unlock func() error, err error)

	// FindOrigin returns the locally installed package at origin with the
	// requested fields loaded, or nil if not installed.
	FindOrigin(ctx context.Context, origin string, fields model.LoadField) (*model.Pkg, error)

	// Query returns every locally installed package matching pattern/match,
	// with the requested fields loaded.
	Query(ctx context.Context, pattern string, match model.MatchKind, fields model.LoadField) ([]*model.Pkg, error)

	// AllAutomatic returns every locally installed package flagged
	// automatic, with BASIC|RDEPS loaded (used by Autoremove).
	AllAutomatic(ctx context.Context, fields model.LoadField) ([]*model.Pkg, error)

	// AllInstalled returns every locally installed package (used by
	// Upgrade and Fetch --upgrades-for-installed).
	AllInstalled(ctx context.Context, fields model.LoadField) ([]*model.Pkg, error)

	// DeleteQuery resolves a Deinstall pattern to the concrete rows that
	// would be removed, expanding the rdep closure when recursive is set.
	DeleteQuery(ctx context.Context, pattern string, match model.MatchKind, recursive bool) ([]*model.Pkg, error)

	// Delete removes a package registration outright (non-transactional
	// deinstall path of spec §4.8).
	Delete(ctx context.Context, p *model.Pkg, force, noScript bool) error

	// Begin opens a transaction and its first named savepoint.
	Begin(ctx context.Context, savepoint string) (Txn, error)

	// IntegrityConflictLocal returns locally installed packages that
	// conflict by file or shlib with the candidate at origin.
	IntegrityConflictLocal(ctx context.Context, origin string) ([]*model.Pkg, error)

	// IntegrityAppend registers an opened archive's manifest with the
	// integrity staging set ahead of IntegrityCheck.
	IntegrityAppend(ctx context.Context, a Archive) error

	// IntegrityCheck validates the accumulated staging set for file/shlib
	// conflicts across the whole plan.
	IntegrityCheck(ctx context.Context) error

	// Unregister removes origin's registration (used mid-transaction
	// during displacement).
	Unregister(ctx context.Context, origin string) error

	// Register records a newly installed package.
	Register(ctx context.Context, p *model.Pkg) error
}

// Txn is a nested savepoint-scoped transaction handle.
type Txn interface {
	// Savepoint opens a new named savepoint nested in this one.
	Savepoint(ctx context.Context, name string) error
	// Release commits the named savepoint (and reopens it, per spec
	// §4.7 step 3, if reopen is true).
	Release(ctx context.Context, name string, reopen bool) error
	// Rollback rolls back to the named savepoint.
	Rollback(ctx context.Context, name string) error
	// Commit commits the outstanding top-level transaction.
	Commit(ctx context.Context) error
}

// Repo is a remote repository catalog, queryable by pattern and match
// kind, returning candidate packages with loadable fields.
type Repo interface {
	Name() string
	// Query returns every candidate matching pattern/match with the
	// requested fields loaded. A nil, non-error slice means "no match".
	Query(ctx context.Context, pattern string, match model.MatchKind, fields model.LoadField) ([]*model.Pkg, error)
}

// Archive opens an on-disk package archive, exposes its manifest (files,
// dirs, scripts), and can extract itself into the live filesystem.
type Archive interface {
	Origin() string
	Files() []model.FileEntry
	Dirs() []model.DirEntry
	HasFile(path string) bool
	HasDir(path string) bool
	Message() string
	// Scripts returns the archive's lifecycle script bodies by kind, so
	// the applier can persist them on the Pkg record for later
	// deinstallation (see runLocalScript).
	Scripts() map[string]string

	// RunScript executes one of the package's lifecycle scripts if
	// present. Kinds: "pre-install", "post-install", "pre-deinstall",
	// "post-deinstall".
	RunScript(ctx context.Context, kind string) error

	// Add extracts the archive's contents under the given add flags.
	Add(ctx context.Context, flags AddFlags) error

	Close() error
}

// AddFlags mirrors the C source's pkg_add flag bits consumed at install
// time (force, noscript, upgrade, automatic).
type AddFlags struct {
	Force     bool
	NoScript  bool
	Upgrade   bool
	Automatic bool
}

// ArchiveOpener opens an archive by its cache-relative path.
type ArchiveOpener interface {
	Open(ctx context.Context, cacheDir, repoPath string) (Archive, error)
}

// Fetcher downloads a repository-relative artifact into a cache
// directory.
type Fetcher interface {
	// Size returns the remote artifact's size in bytes, without
	// downloading it, for disk-space accounting.
	Size(ctx context.Context, p *model.Pkg) (int64, error)
	// Fetch downloads p's artifact into cacheDir, returning its final
	// on-disk path.
	Fetch(ctx context.Context, p *model.Pkg, cacheDir string) (string, error)
}

// Events is the progress/error/lifecycle notification sink.
type Events interface {
	AlreadyInstalled(p *model.Pkg)
	NewPkgVersion()
	MissingDependency(origin string)
	Locked(p *model.Pkg)
	UpgradeBegin(p *model.Pkg)
	UpgradeFinished(p *model.Pkg)
	InstallBegin(p *model.Pkg)
	InstallFinished(p *model.Pkg)
	IntegrityCheckBegin()
	IntegrityCheckFinished()
	CircularDependency()
	Error(msg string)
	Errno(syscall string, arg string)
}

// Plugins fires named hooks before/after each apply phase.
type Plugins interface {
	Pre(ctx context.Context, phase string) error
	Post(ctx context.Context, phase string) error
}
