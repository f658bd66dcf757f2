package jobs

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/opkgtool/opkg/internal/model"
)

const savepointName = "upgrade"

// applyInstall implements pkg_jobs_install (spec §4.7): fetch, then walk
// jobs under a repeating-savepoint transaction, displacing conflicting
// locals before adding each new archive.
func (s *Session) applyInstall(ctx context.Context) error {
	if err := s.fetchJobs(ctx); err != nil {
		return err
	}
	if s.flags.Has(model.FlagSkipInstall) {
		return nil
	}

	txn, err := s.db.Begin(ctx, savepointName)
	if err != nil {
		return errFatal(err)
	}

	for _, p := range s.jobs.Iter() {
		if err := s.installOne(ctx, txn, p); err != nil {
			_ = txn.Rollback(ctx, savepointName)
			return err
		}
	}

	if err := txn.Commit(ctx); err != nil {
		return errFatal(err)
	}
	return nil
}

// installOne handles one planned package: displacement collection,
// script execution, file-retention marking, old-version deletion on the
// same origin, and the new archive add.
func (s *Session) installOne(ctx context.Context, txn Txn, p *model.Pkg) error {
	isUpgrade := p.NewVersion != ""

	pkgQueue, err := s.collectDisplaced(ctx, p, isUpgrade)
	if err != nil {
		return err
	}

	for _, l := range pkgQueue {
		if err := s.predeinstall(ctx, l); err != nil {
			return err
		}
	}

	a, err := s.opener.Open(ctx, s.cacheDir, p.RepoPath)
	if err != nil {
		return errFatal(err)
	}
	defer a.Close()

	if isUpgrade {
		s.events.UpgradeBegin(p)
	} else {
		s.events.InstallBegin(p)
	}

	markKeep(pkgQueue, a)

	pkgQueue, err = s.deleteSameOrigin(ctx, p, pkgQueue, a)
	if err != nil {
		return err
	}

	addFlags := AddFlags{
		Force:     s.flags.Has(model.FlagForce),
		NoScript:  s.flags.Has(model.FlagNoScript),
		Upgrade:   true,
		Automatic: p.Automatic,
	}
	if err := a.Add(ctx, addFlags); err != nil {
		return errFatal(err)
	}
	p.Scripts = a.Scripts()
	if err := s.db.Register(ctx, p); err != nil {
		return errFatal(err)
	}

	if isUpgrade {
		s.events.UpgradeFinished(p)
	} else {
		s.events.InstallFinished(p)
	}

	if len(pkgQueue) == 0 {
		if err := txn.Release(ctx, savepointName, true); err != nil {
			return errFatal(err)
		}
	}
	return nil
}

// collectDisplaced builds the ordered list of local packages that must be
// unregistered before p's archive is added: the same-origin local (on
// upgrade) plus any local that conflicts by file/shlib.
func (s *Session) collectDisplaced(ctx context.Context, p *model.Pkg, isUpgrade bool) ([]*model.Pkg, error) {
	var queue []*model.Pkg

	if isUpgrade {
		local, err := s.db.FindOrigin(ctx, p.Origin, model.FieldBasic|model.FieldFiles|model.FieldScripts|model.FieldDirs)
		if err != nil {
			return nil, errFatal(err)
		}
		if local != nil {
			if local.Locked {
				s.events.Locked(local)
				return nil, errLocked(local.Origin)
			}
			queue = append(queue, local)
		}
	}

	conflicts, err := s.db.IntegrityConflictLocal(ctx, p.Origin)
	if err != nil {
		return nil, errFatal(err)
	}
	for _, c := range conflicts {
		if c.Locked {
			s.events.Locked(c)
			return nil, errLocked(c.Origin)
		}
		queue = append(queue, c)
	}
	return queue, nil
}

func (s *Session) predeinstall(ctx context.Context, l *model.Pkg) error {
	if !s.flags.Has(model.FlagNoScript) {
		if err := runLocalScript(ctx, l, "pre-deinstall"); err != nil {
			s.events.Error(err.Error())
		}
	}
	if s.handleRC {
		s.stopRCServices(l)
	}
	return s.db.Unregister(ctx, l.Origin)
}

// markKeep marks every displaced local's files/dirs as keep iff the new
// archive also owns that path, per spec §4.7's file-retention step.
func markKeep(pkgQueue []*model.Pkg, a Archive) {
	for _, l := range pkgQueue {
		for i := range l.Files {
			if a.HasFile(l.Files[i].Path) {
				l.Files[i].Keep = true
			}
		}
		for i := range l.Dirs {
			if a.HasDir(l.Dirs[i].Path) {
				l.Dirs[i].Keep = true
			}
		}
	}
}

// deleteSameOrigin removes the queued entry (if any) whose origin equals
// p.Origin: deletes its non-kept files, runs POST_DEINSTALL, deletes its
// directories, and returns the queue with that entry removed.
func (s *Session) deleteSameOrigin(ctx context.Context, p *model.Pkg, pkgQueue []*model.Pkg, a Archive) ([]*model.Pkg, error) {
	idx := -1
	for i, l := range pkgQueue {
		if l.Origin == p.Origin {
			idx = i
			break
		}
	}
	if idx == -1 {
		return pkgQueue, nil
	}
	l := pkgQueue[idx]

	// Annotation carry-over (SPEC_FULL.md §10): the new package inherits
	// the displaced same-origin local's annotations unless it set its own.
	if p.Annotations == nil && l.Annotations != nil {
		p.Annotations = l.Annotations
	}

	for _, f := range l.Files {
		if f.Keep {
			continue
		}
		deleteFile(f.Path)
	}
	if !s.flags.Has(model.FlagNoScript) {
		if err := runLocalScript(ctx, l, "post-deinstall"); err != nil {
			s.events.Error(err.Error())
		}
	}
	for _, d := range l.Dirs {
		if d.Keep {
			continue
		}
		deleteDir(d.Path)
	}

	pkgQueue = append(pkgQueue[:idx], pkgQueue[idx+1:]...)
	return pkgQueue, nil
}

// runLocalScript runs one of l's lifecycle script bodies (loaded via
// FieldScripts) through /bin/sh -c, matching archive.Tar.RunScript's
// handling of the same script kinds during install.
func runLocalScript(ctx context.Context, l *model.Pkg, kind string) error {
	body, ok := l.Scripts[kind]
	if !ok || body == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", body)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %s script for %s: %w: %s", kind, l.Origin, err, out)
	}
	return nil
}

func (s *Session) stopRCServices(l *model.Pkg) {
	// No-op: no RC services owned by l are stopped, even when HandleRC is
	// set.
}

// deleteFile removes a displaced package's file (force semantics: ignore
// a missing file, since the new archive or a prior cluster may already
// have claimed it).
func deleteFile(path string) {
	_ = os.Remove(path)
}

// deleteDir removes a displaced package's directory if now empty; a
// non-empty directory (still owned by something else) is left in place.
func deleteDir(path string) {
	_ = os.Remove(path)
}
