package jobs

import "github.com/opkgtool/opkg/internal/model"

// addDepEdge records that p depends on dep, in both p.Deps and, if dep is
// present in the working set, dep.Rdeps.
func addDepEdge(p *model.Pkg, dep *model.Pkg, edge model.DepEdge) {
	p.AddDep(edge)
	if dep != nil {
		dep.Rdeps[p.Origin] = model.DepEdge{Origin: p.Origin, Name: p.Origin, Version: p.Version}
	}
}

// removeOriginFromGraph deletes origin from every deps/rdeps map across
// the given package sets. Used by the orderer when it commits a node to
// jobs, and by autoremove when it commits a leaf.
func removeOriginFromGraph(origin string, sets ...map[string]*model.Pkg) {
	for _, set := range sets {
		for _, p := range set {
			p.StripDep(origin)
			p.StripRdep(origin)
		}
	}
}
