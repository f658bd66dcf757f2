package jobs

import (
	"context"

	"github.com/opkgtool/opkg/internal/model"
)

// applyDeinstall implements pkg_jobs_deinstall (spec §4.8): not
// transactional, first non-OK delete propagates, prior deletions are not
// rolled back.
func (s *Session) applyDeinstall(ctx context.Context) error {
	if s.flags.Has(model.FlagDryRun) {
		return nil
	}
	force := s.flags.Has(model.FlagForce)
	noScript := s.flags.Has(model.FlagNoScript)

	for _, p := range s.jobs.Iter() {
		if p.Locked {
			s.events.Locked(p)
			return errLocked(p.Origin)
		}
		if err := s.db.Delete(ctx, p, force, noScript); err != nil {
			return errFatal(err)
		}
	}
	return nil
}
