package jobs

import "github.com/opkgtool/opkg/internal/model"

// orderPool drains bulk into jobs (appended in dependency order) using a
// Kahn-style repeated scan: any package whose deps map is now empty is
// removable. One "pass" removes every currently-removable package and
// strips their origins from every remaining package's deps map; orderPool
// repeats passes while bulk is non-empty. A pass that removes
// nothing while bulk is non-empty means a dependency cycle: events gets
// CircularDependency and the caller sees Fatal (spec §4.5/§8).
func orderPool(bulk map[string]*model.Pkg, jobs *orderedPkgs, events Events) error {
	for len(bulk) > 0 {
		var ready []string
		for origin, p := range bulk {
			if len(p.Deps) == 0 {
				ready = append(ready, origin)
			}
		}
		if len(ready) == 0 {
			events.CircularDependency()
			return errFatal(errCircular())
		}
		for _, origin := range ready {
			p := bulk[origin]
			delete(bulk, origin)
			jobs.Append(p)
			removeOriginFromGraph(origin, bulk)
		}
	}
	return nil
}

// orderedPkgs is an origin-keyed map paired with an insertion-order slice,
// modeling the "jobs" table of spec §3: a map for O(1) lookup by origin,
// with iteration order equal to execution order.
type orderedPkgs struct {
	order []string
	byOrg map[string]*model.Pkg
}

func newOrderedPkgs() *orderedPkgs {
	return &orderedPkgs{byOrg: make(map[string]*model.Pkg)}
}

func (o *orderedPkgs) Append(p *model.Pkg) {
	if _, ok := o.byOrg[p.Origin]; ok {
		return
	}
	o.order = append(o.order, p.Origin)
	o.byOrg[p.Origin] = p
}

func (o *orderedPkgs) Find(origin string) *model.Pkg { return o.byOrg[origin] }

func (o *orderedPkgs) Len() int { return len(o.order) }

// Iter returns the packages in insertion order. Callers must not mutate
// the returned slice.
func (o *orderedPkgs) Iter() []*model.Pkg {
	out := make([]*model.Pkg, len(o.order))
	for i, origin := range o.order {
		out[i] = o.byOrg[origin]
	}
	return out
}
