package jobs

import (
	"context"
	"fmt"

	"github.com/opkgtool/opkg/internal/model"
)

// SelfUpdateOrigins are the origins probed before Install/Upgrade to
// detect a self-update of the package manager itself. Configuration, not
// constants (spec §9): the caller supplies them via NewSession.
type SelfUpdateOrigins struct {
	Primary  string
	Fallback string
}

// Session is the Go encoding of JobSession (spec §3, §4.1): it owns the
// lifecycle, flags, repo selection, lock acquisition, and dispatch table
// for one solve()/apply() run.
type Session struct {
	typ      model.JobType
	flags    model.Flags
	repoName string
	patterns []model.JobPattern

	db      Db
	repo    Repo
	fetcher Fetcher
	opener  ArchiveOpener
	events  Events
	plugins Plugins

	selfUpdate SelfUpdateOrigins
	cacheDir   string
	handleRC   bool

	bulk map[string]*model.Pkg
	seen map[string]*model.Pkg
	jobs *orderedPkgs

	solved bool
	unlock func() error
}

// Config bundles the external collaborators and static configuration a
// Session needs; spec.md treats all of these as out-of-scope externals.
type Config struct {
	Db         Db
	Repo       Repo
	Fetcher    Fetcher
	Opener     ArchiveOpener
	Events     Events
	Plugins    Plugins
	SelfUpdate SelfUpdateOrigins
	CacheDir   string
	HandleRC   bool
}

// NewSession constructs a Session for the given job type.
func NewSession(typ model.JobType, cfg Config) *Session {
	return &Session{
		typ:        typ,
		flags:      model.FlagReinstallOnStructuralDiff,
		db:         cfg.Db,
		repo:       cfg.Repo,
		fetcher:    cfg.Fetcher,
		opener:     cfg.Opener,
		events:     cfg.Events,
		plugins:    cfg.Plugins,
		selfUpdate: cfg.SelfUpdate,
		cacheDir:   cfg.CacheDir,
		handleRC:   cfg.HandleRC,
		bulk:       make(map[string]*model.Pkg),
		seen:       make(map[string]*model.Pkg),
		jobs:       newOrderedPkgs(),
	}
}

// SetFlags ORs bits into the session's flag set.
func (s *Session) SetFlags(bits model.Flags) { s.flags |= bits }

// ClearFlags removes bits from the session's flag set.
func (s *Session) ClearFlags(bits model.Flags) { s.flags &^= bits }

// SetRepository records the repository name on the session. Solving
// queries the Repo given in Config whatever name is set here.
func (s *Session) SetRepository(name string) { s.repoName = name }

// Add appends a pattern to the session. Rejected once Solve has run.
func (s *Session) Add(match model.MatchKind, patterns []string, nb int) error {
	if s.solved {
		return &Error{Kind: KindAlreadySolved}
	}
	for _, p := range patterns {
		s.patterns = append(s.patterns, model.JobPattern{Text: p, Match: match, Nb: nb})
	}
	return nil
}

// Find returns the planned package at origin, or nil.
func (s *Session) Find(origin string) *model.Pkg { return s.jobs.Find(origin) }

// Count returns the size of the ordered plan.
func (s *Session) Count() int { return s.jobs.Len() }

// Iter returns the ordered plan.
func (s *Session) Iter() []*model.Pkg { return s.jobs.Iter() }

// Solve acquires the database lock (unless DRY_RUN) and dispatches to the
// matching per-type solver.
func (s *Session) Solve(ctx context.Context) error {
	if s.solved {
		return nil
	}
	if !s.flags.Has(model.FlagDryRun) {
		unlock, err := s.db.Lock(ctx)
		if err != nil {
			return errFatal(err)
		}
		s.unlock = unlock
	}

	var err error
	switch s.typ {
	case model.JobInstall:
		err = s.solveInstall(ctx)
	case model.JobUpgrade:
		err = s.solveUpgrade(ctx)
	case model.JobAutoremove:
		err = s.solveAutoremove(ctx)
	case model.JobDeinstall:
		err = s.solveDeinstall(ctx)
	case model.JobFetch:
		err = s.solveFetch(ctx)
	default:
		err = errFatal(fmt.Errorf("unknown job type %v", s.typ))
	}
	if err != nil {
		return err
	}
	s.solved = true
	return nil
}

// Apply must only be called after a successful Solve.
func (s *Session) Apply(ctx context.Context) error {
	if !s.solved {
		return &Error{Kind: KindNotSolved}
	}

	phase := s.typ.String()
	if s.plugins != nil {
		if err := s.plugins.Pre(ctx, phase); err != nil {
			return errFatal(err)
		}
	}

	var err error
	switch s.typ {
	case model.JobInstall, model.JobUpgrade:
		err = s.applyInstall(ctx)
	case model.JobAutoremove, model.JobDeinstall:
		err = s.applyDeinstall(ctx)
	case model.JobFetch:
		err = s.fetchJobs(ctx)
	}
	if err != nil {
		return err
	}

	if s.plugins != nil {
		if err := s.plugins.Post(ctx, phase); err != nil {
			return errFatal(err)
		}
	}
	return nil
}

// Close releases the database lock, if held. Safe to call multiple times.
func (s *Session) Close() error {
	if s.unlock == nil {
		return nil
	}
	err := s.unlock()
	s.unlock = nil
	return err
}
