package model

// Flags is the JobSession flag bitset of spec §3. Any subset may be set.
type Flags uint16

const (
	FlagDryRun Flags = 1 << iota
	FlagRecursive
	FlagForce
	FlagPkgVersionTest
	FlagWithDeps
	FlagUpgradesForInstalled
	FlagSkipInstall
	FlagNoScript
	FlagAutomatic

	// FlagReinstallOnStructuralDiff gates the source's "local version is
	// newer than remote, but options/deps/shlibs differ" fallthrough in
	// NewerThanLocal (spec §9 open question). Default on (jobs.NewSession
	// sets it), matching the source's unconditional behavior; a caller can
	// clear it with Session.ClearFlags to get the stricter "never
	// reinstall on downgrade" reading.
	FlagReinstallOnStructuralDiff
)

// Has reports whether every bit in want is set in f.
func (f Flags) Has(want Flags) bool { return f&want == want }
