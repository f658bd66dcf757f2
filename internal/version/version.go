// Package version compares package version strings of the form used by
// binary package catalogs: dotted numeric/alpha components, an optional
// "_revision" suffix, and an optional ",epoch" suffix (e.g. "1.2.3_4,1").
//
// This grammar is not semver (arbitrary alpha components, underscore and
// comma separators with distinct meaning from "-"/"+"), so Masterminds'
// semver parser cannot parse it without silently misinterpreting the
// revision/epoch suffixes. The epoch/revision/component split below is
// implemented directly; see DESIGN.md for why no library fits here.
package version

import (
	"strconv"
	"strings"
)

// parsed is a version broken into its epoch, dotted component list, and
// revision.
type parsed struct {
	epoch    int
	comps    []string
	revision int
}

func parse(v string) parsed {
	p := parsed{epoch: 0, revision: 0}

	s := v
	if i := strings.LastIndexByte(s, ','); i >= 0 {
		if n, err := strconv.Atoi(s[i+1:]); err == nil {
			p.epoch = n
			s = s[:i]
		}
	}
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		if n, err := strconv.Atoi(s[i+1:]); err == nil {
			p.revision = n
			s = s[:i]
		}
	}
	p.comps = strings.Split(s, ".")
	return p
}

// compComp compares two dot-separated components: numeric components
// compare numerically, otherwise lexically, matching the common
// convention that "10" > "9" but "a" < "b".
func compComp(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than
// b, per pkg_version_cmp semantics: epoch first, then dotted components
// left to right (a shorter component list sorts lower if its prefix
// matches), then revision.
func Compare(a, b string) int {
	pa, pb := parse(a), parse(b)

	if pa.epoch != pb.epoch {
		if pa.epoch < pb.epoch {
			return -1
		}
		return 1
	}

	for i := 0; i < len(pa.comps) || i < len(pb.comps); i++ {
		var ca, cb string
		if i < len(pa.comps) {
			ca = pa.comps[i]
		}
		if i < len(pb.comps) {
			cb = pb.comps[i]
		}
		if ca == cb {
			continue
		}
		if ca == "" {
			return -1
		}
		if cb == "" {
			return 1
		}
		if c := compComp(ca, cb); c != 0 {
			return c
		}
	}

	switch {
	case pa.revision < pb.revision:
		return -1
	case pa.revision > pb.revision:
		return 1
	default:
		return 0
	}
}
