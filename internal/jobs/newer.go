package jobs

import (
	"context"

	"github.com/opkgtool/opkg/internal/model"
	"github.com/opkgtool/opkg/internal/version"
)

// newerThanLocal implements NewerThanLocal (spec §4.3): given a remote
// candidate rp, fetch the local package at the same origin and decide
// whether rp represents something worth planning.
func (s *Session) newerThanLocal(ctx context.Context, rp *model.Pkg, force bool) (bool, error) {
	local, err := s.db.FindOrigin(ctx, rp.Origin, model.FieldBasic|model.FieldDeps|model.FieldOptions|model.FieldShlibsRequired)
	if err != nil {
		return false, err
	}

	if local == nil {
		rp.Automatic = true
		return true, nil
	}
	if local.Locked {
		return false, nil
	}

	remoteVersion := rp.Version
	rp.Version = local.Version
	rp.NewVersion = remoteVersion
	rp.NewFlatsize = rp.Flatsize
	rp.Flatsize = local.Flatsize
	rp.Automatic = local.Automatic

	if force {
		return true, nil
	}

	cmp := version.Compare(remoteVersion, local.Version)
	switch {
	case cmp > 0:
		return true, nil
	case cmp == 0:
		return false, nil
	}

	// cmp < 0: local is newer than remote. Source behavior: still fall
	// through to the structural diff, which can flip this back to "newer"
	// (spec §9 open question). Gated behind FlagReinstallOnStructuralDiff.
	if !s.flags.Has(model.FlagReinstallOnStructuralDiff) {
		return false, nil
	}

	if rp.Options.Serialize() != local.Options.Serialize() {
		return true, nil
	}
	if directDepNames(rp) != directDepNames(local) {
		return true, nil
	}
	if rp.ShlibsRequired.Serialize() != local.ShlibsRequired.Serialize() {
		return true, nil
	}
	return false, nil
}

// directDepNames concatenates a package's direct dependency names (not
// origins) in the order the underlying store returned them (Pkg.DepOrder),
// matching spec §4.3's requirement that the diff be order-sensitive.
func directDepNames(p *model.Pkg) string {
	names := model.NewOrderedStrings()
	for _, origin := range p.DepOrder {
		names.Add(p.Deps[origin].Name)
	}
	return names.Serialize()
}
