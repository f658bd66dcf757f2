// Package model defines the package-record data model shared by every
// stage of job planning: the solver, the orderer, the fetcher driver, and
// the applier all operate on *Pkg values keyed by origin.
package model

// LoadField is a bitmask describing which lazily-loaded field groups of a
// Pkg have been populated. Db and Repo queries accept a combination of
// these so a caller only pays for the fields it actually needs.
type LoadField uint16

const (
	FieldBasic LoadField = 1 << iota
	FieldOptions
	FieldShlibsRequired
	FieldDeps
	FieldRdeps
	FieldFiles
	FieldDirs
	FieldScripts
)

// Has reports whether every bit in want is set in f.
func (f LoadField) Has(want LoadField) bool { return f&want == want }

// DepEdge is one entry of a Pkg's deps or rdeps map.
type DepEdge struct {
	Origin  string
	Name    string
	Version string
}

// FileEntry is one file owned by an installed package.
type FileEntry struct {
	Path string
	Keep bool
}

// DirEntry is one directory owned by an installed package.
type DirEntry struct {
	Path string
	Keep bool
}

// OrderedOptions is an insertion-order-preserving set of option name/value
// pairs. The upgrade predicate in NewerThanLocal concatenates options in
// their native iteration order, so a plain Go map (randomized iteration)
// would make that comparison non-deterministic; this type exists purely to
// preserve that order.
type OrderedOptions struct {
	keys   []string
	values map[string]string
}

// NewOrderedOptions returns an empty ordered option set.
func NewOrderedOptions() *OrderedOptions {
	return &OrderedOptions{values: make(map[string]string)}
}

// Set appends name to the iteration order the first time it is seen, and
// always updates its value.
func (o *OrderedOptions) Set(name, value string) {
	if _, ok := o.values[name]; !ok {
		o.keys = append(o.keys, name)
	}
	o.values[name] = value
}

// Len reports the number of options.
func (o *OrderedOptions) Len() int { return len(o.keys) }

// Keys returns the option names in insertion order.
func (o *OrderedOptions) Keys() []string { return o.keys }

// Value returns name's value, or "" if name is not set.
func (o *OrderedOptions) Value(name string) string { return o.values[name] }

// Serialize renders the options as "k=v " concatenation in insertion
// order, matching the diff format of spec §4.3.
func (o *OrderedOptions) Serialize() string {
	var b []byte
	for _, k := range o.keys {
		b = append(b, k...)
		b = append(b, '=')
		b = append(b, o.values[k]...)
		b = append(b, ' ')
	}
	return string(b)
}

// OrderedStrings is an insertion-order-preserving set of names, used for
// shlibs_required and for direct dependency name lists.
type OrderedStrings struct {
	items []string
	seen  map[string]bool
}

// NewOrderedStrings returns an empty ordered string set.
func NewOrderedStrings() *OrderedStrings {
	return &OrderedStrings{seen: make(map[string]bool)}
}

// Add appends name if it has not already been added.
func (o *OrderedStrings) Add(name string) {
	if o.seen[name] {
		return
	}
	o.seen[name] = true
	o.items = append(o.items, name)
}

// Items returns the names in insertion order. Callers must not mutate the
// returned slice.
func (o *OrderedStrings) Items() []string { return o.items }

// Serialize concatenates the names in insertion order.
func (o *OrderedStrings) Serialize() string {
	var b []byte
	for _, s := range o.items {
		b = append(b, s...)
	}
	return string(b)
}

// Pkg is an immutable-ish view over one concrete package version. Fields
// are directly exported; lazily-loaded groups are nil/zero until a Db or
// Repo query asks for them via a LoadField mask.
type Pkg struct {
	Origin    string
	Version   string
	Flatsize  int64
	RepoPath  string
	Automatic bool
	Locked    bool

	// NewVersion/NewFlatsize are only populated on the candidate side of
	// an upgrade (see NewerThanLocal).
	NewVersion   string
	NewFlatsize  int64

	Deps     map[string]DepEdge
	DepOrder []string // insertion order of Deps keys; see AddDep
	Rdeps    map[string]DepEdge

	Options        *OrderedOptions
	ShlibsRequired *OrderedStrings

	// Files/Dirs are only meaningful on the local side, loaded on demand.
	Files []FileEntry
	Dirs  []DirEntry

	// Scripts holds lifecycle script bodies keyed by kind (e.g.
	// "pre-install", "post-deinstall"), loaded on demand via FieldScripts.
	Scripts map[string]string

	Annotations map[string]string

	// Direct is transient: true iff the user's patterns matched this
	// package at top level, not via transitive deps/rdeps expansion.
	Direct bool

	Loaded LoadField
}

// NewPkg returns a Pkg with its ordered-collection fields initialized.
func NewPkg(origin, version string) *Pkg {
	return &Pkg{
		Origin:         origin,
		Version:        version,
		Deps:           make(map[string]DepEdge),
		Rdeps:          make(map[string]DepEdge),
		Options:        NewOrderedOptions(),
		ShlibsRequired: NewOrderedStrings(),
		Loaded:         FieldBasic,
	}
}

// AddDep records a dependency edge, preserving the order in which deps
// were first added. This order is what the option/dep/shlib diff in
// NewerThanLocal concatenates, so it must come from the underlying store's
// native iteration order, not Go's randomized map iteration.
func (p *Pkg) AddDep(edge DepEdge) {
	if _, ok := p.Deps[edge.Origin]; !ok {
		p.DepOrder = append(p.DepOrder, edge.Origin)
	}
	p.Deps[edge.Origin] = edge
}

// StripDep removes origin from p's deps map, e.g. because that dependency
// is already satisfied locally (seen) or has been committed to jobs by the
// orderer.
func (p *Pkg) StripDep(origin string) {
	delete(p.Deps, origin)
	for i, o := range p.DepOrder {
		if o == origin {
			p.DepOrder = append(p.DepOrder[:i], p.DepOrder[i+1:]...)
			break
		}
	}
}

// StripRdep removes origin from p's rdeps map.
func (p *Pkg) StripRdep(origin string) {
	delete(p.Rdeps, origin)
}
