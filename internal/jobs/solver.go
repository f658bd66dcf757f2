package jobs

import (
	"context"

	"github.com/opkgtool/opkg/internal/model"
)

// selfUpdateProbe implements the Install/Upgrade self-update check of
// spec §4.4: if PKG_VERSION_TEST is not set, probe the configured
// self-update origins; if either is locally present and a remote
// candidate exists, emit NewPkgVersion and signal the caller to order an
// empty plan.
func (s *Session) selfUpdateProbe(ctx context.Context) (skip bool, err error) {
	if s.flags.Has(model.FlagPkgVersionTest) {
		return false, nil
	}
	origins := []string{s.selfUpdate.Primary, s.selfUpdate.Fallback}
	for _, origin := range origins {
		if origin == "" {
			continue
		}
		local, err := s.db.FindOrigin(ctx, origin, model.FieldBasic)
		if err != nil {
			return false, err
		}
		if local == nil {
			continue
		}
		candidates, err := s.repo.Query(ctx, origin, model.MatchExact, model.FieldBasic)
		if err != nil {
			return false, err
		}
		if len(candidates) > 0 {
			s.events.NewPkgVersion()
			return true, nil
		}
		break
	}
	return false, nil
}

// solveInstall implements spec §4.4 "Install".
func (s *Session) solveInstall(ctx context.Context) error {
	skip, err := s.selfUpdateProbe(ctx)
	if err != nil {
		return errFatal(err)
	}
	if skip {
		return orderPool(s.bulk, s.jobs, s.events)
	}

	step := &remoteFetchStep{s: s}
	for _, pat := range s.patterns {
		if err := step.run(ctx, pat.Text, pat.Match, true); err != nil {
			if e, ok := err.(*Error); ok && e.Kind == KindFatal {
				s.events.Error("no match for pattern: " + pat.Text)
				continue
			}
			return err
		}
	}

	for _, p := range s.bulk {
		for origin := range p.Deps {
			if _, ok := s.seen[origin]; ok {
				p.StripDep(origin)
			}
		}
	}
	for _, p := range s.bulk {
		if p.Direct {
			p.Automatic = s.flags.Has(model.FlagAutomatic)
		}
	}
	s.seen = make(map[string]*model.Pkg)

	return orderPool(s.bulk, s.jobs, s.events)
}

// solveUpgrade implements spec §4.4 "Upgrade".
func (s *Session) solveUpgrade(ctx context.Context) error {
	skip, err := s.selfUpdateProbe(ctx)
	if err != nil {
		return errFatal(err)
	}
	if skip {
		return orderPool(s.bulk, s.jobs, s.events)
	}

	installed, err := s.db.AllInstalled(ctx, model.FieldBasic)
	if err != nil {
		return errFatal(err)
	}

	step := &remoteFetchStep{s: s}
	for _, local := range installed {
		if err := step.run(ctx, local.Origin, model.MatchExact, false); err != nil {
			if e, ok := err.(*Error); ok && e.Kind == KindFatal {
				continue // not in any repo; simply skipped
			}
			return err
		}
	}
	s.seen = make(map[string]*model.Pkg)

	return orderPool(s.bulk, s.jobs, s.events)
}

// solveAutoremove implements spec §4.4 "Autoremove": the transitive
// closure of "no surviving consumer" over every locally automatic
// package.
func (s *Session) solveAutoremove(ctx context.Context) error {
	autos, err := s.db.AllAutomatic(ctx, model.FieldBasic|model.FieldRdeps)
	if err != nil {
		return errFatal(err)
	}
	for _, p := range autos {
		s.bulk[p.Origin] = p
	}

	for {
		var removable []string
		for origin, p := range s.bulk {
			if len(p.Rdeps) == 0 {
				removable = append(removable, origin)
			}
		}
		if len(removable) == 0 {
			break
		}
		for _, origin := range removable {
			p := s.bulk[origin]
			delete(s.bulk, origin)
			s.jobs.Append(p)
			removeOriginFromGraph(origin, s.bulk)
		}
	}

	// Residual bulk (cyclic rdeps among automatic packages, or packages
	// still depended on outside the automatic set) is dropped per spec.
	s.bulk = make(map[string]*model.Pkg)
	return nil
}

// solveDeinstall implements spec §4.4 "Deinstall": ask Db for a
// delete-query per pattern, moving rows straight to jobs.
func (s *Session) solveDeinstall(ctx context.Context) error {
	recursive := s.flags.Has(model.FlagRecursive)
	for _, pat := range s.patterns {
		rows, err := s.db.DeleteQuery(ctx, pat.Text, pat.Match, recursive)
		if err != nil {
			return errFatal(err)
		}
		for _, p := range rows {
			s.jobs.Append(p)
		}
	}
	return nil
}

// solveFetch implements spec §4.4 "Fetch".
func (s *Session) solveFetch(ctx context.Context) error {
	step := &remoteFetchStep{s: s}

	if s.flags.Has(model.FlagUpgradesForInstalled) {
		installed, err := s.db.AllInstalled(ctx, model.FieldBasic)
		if err != nil {
			return errFatal(err)
		}
		for _, local := range installed {
			if err := step.run(ctx, local.Origin, model.MatchExact, false); err != nil {
				if e, ok := err.(*Error); ok && e.Kind == KindFatal {
					continue
				}
				return err
			}
		}
	} else {
		for _, pat := range s.patterns {
			if err := step.run(ctx, pat.Text, pat.Match, true); err != nil {
				if e, ok := err.(*Error); ok && e.Kind == KindFatal {
					s.events.Error("no match for pattern: " + pat.Text)
					continue
				}
				return err
			}
		}
	}
	s.seen = make(map[string]*model.Pkg)

	// No ordering needed: transfer bulk to jobs as-is.
	for origin, p := range s.bulk {
		s.jobs.Append(p)
		delete(s.bulk, origin)
	}
	return nil
}
