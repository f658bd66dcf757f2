package jobs

import (
	"context"

	"github.com/opkgtool/opkg/internal/model"
	"github.com/opkgtool/opkg/internal/version"
)

// remoteFetchStep implements get_remote_pkg (spec §4.2): for a
// (pattern, match, root) triple, it queries Repo and, for each returned
// candidate, dedups against bulk, tests it against the local install,
// and on acceptance recursively expands its deps/rdeps.
type remoteFetchStep struct {
	s *Session
}

// run queries s.repo for pattern/match and processes every candidate.
// root is true for a top-level, user-specified pattern, and false for a
// transitive (non-root) lookup.
func (r *remoteFetchStep) run(ctx context.Context, pattern string, match model.MatchKind, root bool) error {
	fields := model.FieldBasic | model.FieldOptions | model.FieldShlibsRequired
	skipDeps := r.s.typ == model.JobFetch && !r.s.flags.Has(model.FlagWithDeps) && !r.s.flags.Has(model.FlagUpgradesForInstalled)
	if !skipDeps {
		fields |= model.FieldDeps
	}
	if root && r.s.flags.Has(model.FlagRecursive) {
		fields |= model.FieldRdeps
	}

	candidates, err := r.s.repo.Query(ctx, pattern, match, fields)
	if err != nil {
		return errFatal(err)
	}
	if candidates == nil {
		return errFatal(nil)
	}

	force := (root && r.s.flags.Has(model.FlagForce)) || (r.s.typ == model.JobUpgrade && r.s.flags.Has(model.FlagForce))

	examined := false
	for _, p := range candidates {
		if err := r.processCandidate(ctx, p, root, force); err != nil {
			return err
		}
		examined = true
	}
	if !examined {
		return errFatal(nil)
	}
	return nil
}

func (r *remoteFetchStep) processCandidate(ctx context.Context, p *model.Pkg, root, force bool) error {
	// Deduplication against bulk: keep the higher version.
	if existing, ok := r.s.bulk[p.Origin]; ok {
		cmp := version.Compare(existing.Version, p.Version)
		if cmp == 0 || cmp == 1 {
			existing.Direct = existing.Direct || root
			return nil
		}
		delete(r.s.bulk, p.Origin)
	}

	if r.s.typ != model.JobFetch {
		newer, err := r.s.newerThanLocal(ctx, p, force)
		if err != nil {
			return errFatal(err)
		}
		if !newer {
			if root {
				r.s.events.AlreadyInstalled(p)
			}
			r.s.seen[p.Origin] = p
			return nil
		}
	}

	p.Direct = root
	r.s.bulk[p.Origin] = p

	if err := r.populateDeps(ctx, p); err != nil {
		return err
	}
	if err := r.populateRdeps(ctx, p); err != nil {
		return err
	}
	return nil
}

// populateDeps walks p.Deps and recursively resolves any origin absent
// from both bulk and seen, as a non-root lookup.
func (r *remoteFetchStep) populateDeps(ctx context.Context, p *model.Pkg) error {
	for origin := range p.Deps {
		if _, ok := r.s.bulk[origin]; ok {
			continue
		}
		if _, ok := r.s.seen[origin]; ok {
			continue
		}
		if err := r.run(ctx, origin, model.MatchExact, false); err != nil {
			if e, ok := err.(*Error); ok && e.Kind == KindFatal {
				r.s.events.MissingDependency(origin)
				return errMissingDep(origin)
			}
			return err
		}
	}
	return nil
}

// populateRdeps mirrors populateDeps over p.Rdeps, but only runs if the
// RDEPS field was actually loaded for p (root && RECURSIVE).
func (r *remoteFetchStep) populateRdeps(ctx context.Context, p *model.Pkg) error {
	if !p.Loaded.Has(model.FieldRdeps) {
		return nil
	}
	for origin := range p.Rdeps {
		if _, ok := r.s.bulk[origin]; ok {
			continue
		}
		if _, ok := r.s.seen[origin]; ok {
			continue
		}
		if err := r.run(ctx, origin, model.MatchExact, false); err != nil {
			if e, ok := err.(*Error); ok && e.Kind == KindFatal {
				r.s.events.MissingDependency(origin)
				return errMissingDep(origin)
			}
			return err
		}
	}
	return nil
}
