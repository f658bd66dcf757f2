package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/opkgtool/opkg/internal/jobs"
	"github.com/opkgtool/opkg/internal/model"
)

// FindOrigin returns the locally installed package at origin, or nil if
// not installed.
func (s *Store) FindOrigin(ctx context.Context, origin string, fields model.LoadField) (*model.Pkg, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT origin, version, flatsize, automatic, locked, repo_path, annotations FROM packages WHERE origin = ?`, origin)
	p, err := scanPkg(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadFields(ctx, p, fields); err != nil {
		return nil, err
	}
	return p, nil
}

// Query returns every locally installed package matching pattern/match.
func (s *Store) Query(ctx context.Context, pattern string, match model.MatchKind, fields model.LoadField) ([]*model.Pkg, error) {
	all, err := s.scanAll(ctx, `SELECT origin, version, flatsize, automatic, locked, repo_path, annotations FROM packages`)
	if err != nil {
		return nil, err
	}
	var out []*model.Pkg
	for _, p := range all {
		if !matches(p.Origin, pattern, match) {
			continue
		}
		if err := s.loadFields(ctx, p, fields); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// AllAutomatic returns every locally installed package flagged automatic.
func (s *Store) AllAutomatic(ctx context.Context, fields model.LoadField) ([]*model.Pkg, error) {
	all, err := s.scanAll(ctx, `SELECT origin, version, flatsize, automatic, locked, repo_path, annotations FROM packages WHERE automatic = 1`)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if err := s.loadFields(ctx, p, fields); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// AllInstalled returns every locally installed package.
func (s *Store) AllInstalled(ctx context.Context, fields model.LoadField) ([]*model.Pkg, error) {
	all, err := s.scanAll(ctx, `SELECT origin, version, flatsize, automatic, locked, repo_path, annotations FROM packages`)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if err := s.loadFields(ctx, p, fields); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// DeleteQuery resolves a Deinstall pattern to the concrete rows that would
// be removed, expanding the rdep closure when recursive is set.
func (s *Store) DeleteQuery(ctx context.Context, pattern string, match model.MatchKind, recursive bool) ([]*model.Pkg, error) {
	matched, err := s.Query(ctx, pattern, match, model.FieldBasic)
	if err != nil {
		return nil, err
	}
	if !recursive {
		return matched, nil
	}

	seen := make(map[string]*model.Pkg)
	for _, p := range matched {
		seen[p.Origin] = p
	}
	queue := append([]*model.Pkg(nil), matched...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		rdeps, err := s.rdepsOf(ctx, p.Origin)
		if err != nil {
			return nil, err
		}
		for _, origin := range rdeps {
			if _, ok := seen[origin]; ok {
				continue
			}
			rp, err := s.FindOrigin(ctx, origin, model.FieldBasic)
			if err != nil {
				return nil, err
			}
			if rp == nil {
				continue
			}
			seen[origin] = rp
			queue = append(queue, rp)
		}
	}
	out := make([]*model.Pkg, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) rdepsOf(ctx context.Context, origin string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT origin FROM deps WHERE dep_origin = ?`, origin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Delete removes a package registration outright (non-transactional
// deinstall path, spec §4.8).
func (s *Store) Delete(ctx context.Context, p *model.Pkg, force, noScript bool) error {
	full, err := s.FindOrigin(ctx, p.Origin, model.FieldBasic|model.FieldFiles|model.FieldDirs)
	if err != nil {
		return err
	}
	if full == nil {
		return nil
	}
	for _, f := range full.Files {
		deleteFile(f.Path)
	}
	for _, d := range full.Dirs {
		deleteDir(d.Path)
	}
	_, err = s.conn.ExecContext(ctx, `DELETE FROM packages WHERE origin = ?`, p.Origin)
	return err
}

// deleteFile removes a deinstalled package's file (force semantics:
// ignore a missing file, since a prior cluster may already have claimed
// it), matching jobs.deleteFile's install-time displacement handling.
func deleteFile(path string) {
	_ = os.Remove(path)
}

// deleteDir removes a deinstalled package's directory if now empty; a
// non-empty directory (still owned by something else) is left in place.
func deleteDir(path string) {
	_ = os.Remove(path)
}

// Unregister removes origin's registration.
func (s *Store) Unregister(ctx context.Context, origin string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM packages WHERE origin = ?`, origin)
	return err
}

// Register records a newly installed (or upgraded) package.
func (s *Store) Register(ctx context.Context, p *model.Pkg) error {
	ann, err := json.Marshal(p.Annotations)
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO packages(origin, version, flatsize, automatic, locked, repo_path, annotations)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(origin) DO UPDATE SET
			version=excluded.version, flatsize=excluded.flatsize,
			automatic=excluded.automatic, locked=excluded.locked,
			repo_path=excluded.repo_path, annotations=excluded.annotations`,
		p.Origin, versionOf(p), p.Flatsize, boolInt(p.Automatic), boolInt(p.Locked), p.RepoPath, string(ann))
	if err != nil {
		return err
	}

	if _, err := s.conn.ExecContext(ctx, `DELETE FROM deps WHERE origin = ?`, p.Origin); err != nil {
		return err
	}
	for i, origin := range p.DepOrder {
		e := p.Deps[origin]
		if _, err := s.conn.ExecContext(ctx, `INSERT INTO deps(origin, dep_origin, dep_name, dep_version, ord) VALUES (?,?,?,?,?)`,
			p.Origin, e.Origin, e.Name, e.Version, i); err != nil {
			return err
		}
	}

	if _, err := s.conn.ExecContext(ctx, `DELETE FROM options WHERE origin = ?`, p.Origin); err != nil {
		return err
	}
	if p.Options != nil {
		for i, name := range p.Options.Keys() {
			if _, err := s.conn.ExecContext(ctx, `INSERT INTO options(origin, name, value, ord) VALUES (?,?,?,?)`,
				p.Origin, name, p.Options.Value(name), i); err != nil {
				return err
			}
		}
	}
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM shlibs_required WHERE origin = ?`, p.Origin); err != nil {
		return err
	}
	if p.ShlibsRequired != nil {
		for i, name := range p.ShlibsRequired.Items() {
			if _, err := s.conn.ExecContext(ctx, `INSERT INTO shlibs_required(origin, name, ord) VALUES (?,?,?)`, p.Origin, name, i); err != nil {
				return err
			}
		}
	}

	if _, err := s.conn.ExecContext(ctx, `DELETE FROM files WHERE origin = ?`, p.Origin); err != nil {
		return err
	}
	for _, f := range p.Files {
		if _, err := s.conn.ExecContext(ctx, `INSERT INTO files(origin, path) VALUES (?,?)`, p.Origin, f.Path); err != nil {
			return err
		}
	}
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM dirs WHERE origin = ?`, p.Origin); err != nil {
		return err
	}
	for _, d := range p.Dirs {
		if _, err := s.conn.ExecContext(ctx, `INSERT INTO dirs(origin, path) VALUES (?,?)`, p.Origin, d.Path); err != nil {
			return err
		}
	}

	if _, err := s.conn.ExecContext(ctx, `DELETE FROM scripts WHERE origin = ?`, p.Origin); err != nil {
		return err
	}
	for kind, body := range p.Scripts {
		if _, err := s.conn.ExecContext(ctx, `INSERT INTO scripts(origin, kind, body) VALUES (?,?,?)`, p.Origin, kind, body); err != nil {
			return err
		}
	}
	return nil
}

// versionOf prefers the candidate's NewVersion (the post-upgrade version)
// when present, since Register is called with the candidate Pkg whose
// Version field still holds the pre-upgrade local version (see
// NewerThanLocal).
func versionOf(p *model.Pkg) string {
	if p.NewVersion != "" {
		return p.NewVersion
	}
	return p.Version
}

// IntegrityConflictLocal returns locally installed packages that conflict
// by file path with the candidate at origin's staged manifest.
func (s *Store) IntegrityConflictLocal(ctx context.Context, origin string) ([]*model.Pkg, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT manifest FROM integrity_staging WHERE origin = ?`, origin)
	var manifestJSON string
	if err := row.Scan(&manifestJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	if err := json.Unmarshal([]byte(manifestJSON), &paths); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []*model.Pkg
	for _, p := range paths {
		rows, err := s.conn.QueryContext(ctx, `SELECT DISTINCT origin FROM files WHERE path = ? AND origin != ?`, p, origin)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var o string
			if err := rows.Scan(&o); err != nil {
				rows.Close()
				return nil, err
			}
			if seen[o] {
				continue
			}
			seen[o] = true
			local, err := s.FindOrigin(ctx, o, model.FieldBasic|model.FieldFiles|model.FieldScripts|model.FieldDirs)
			if err != nil {
				rows.Close()
				return nil, err
			}
			if local != nil {
				out = append(out, local)
			}
		}
		rows.Close()
	}
	return out, nil
}

// IntegrityAppend registers an opened archive's manifest with the
// integrity staging set ahead of IntegrityCheck.
func (s *Store) IntegrityAppend(ctx context.Context, a jobs.Archive) error {
	var paths []string
	for _, f := range a.Files() {
		paths = append(paths, f.Path)
	}
	b, err := json.Marshal(paths)
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO integrity_staging(repo_path, origin, manifest) VALUES (?, ?, ?)
		ON CONFLICT(repo_path) DO UPDATE SET origin=excluded.origin, manifest=excluded.manifest`,
		a.Origin(), a.Origin(), string(b))
	return err
}

// IntegrityCheck validates the accumulated staging set for file conflicts
// across the whole plan (two staged candidates claiming the same path).
func (s *Store) IntegrityCheck(ctx context.Context) error {
	rows, err := s.conn.QueryContext(ctx, `SELECT origin, manifest FROM integrity_staging`)
	if err != nil {
		return err
	}
	defer rows.Close()

	owner := make(map[string]string)
	for rows.Next() {
		var origin, manifestJSON string
		if err := rows.Scan(&origin, &manifestJSON); err != nil {
			return err
		}
		var paths []string
		if err := json.Unmarshal([]byte(manifestJSON), &paths); err != nil {
			return err
		}
		for _, p := range paths {
			if other, ok := owner[p]; ok && other != origin {
				return fmt.Errorf("file conflict on %q between %s and %s", p, other, origin)
			}
			owner[p] = origin
		}
	}
	_, err = s.conn.ExecContext(ctx, `DELETE FROM integrity_staging`)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanPkg(row *sql.Row) (*model.Pkg, error) {
	p := model.NewPkg("", "")
	var automatic, locked int
	var annotations string
	if err := row.Scan(&p.Origin, &p.Version, &p.Flatsize, &automatic, &locked, &p.RepoPath, &annotations); err != nil {
		return nil, err
	}
	p.Automatic = automatic != 0
	p.Locked = locked != 0
	if annotations != "" && annotations != "{}" {
		_ = json.Unmarshal([]byte(annotations), &p.Annotations)
	}
	return p, nil
}

func (s *Store) scanAll(ctx context.Context, query string, args ...any) ([]*model.Pkg, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Pkg
	for rows.Next() {
		p := model.NewPkg("", "")
		var automatic, locked int
		var annotations string
		if err := rows.Scan(&p.Origin, &p.Version, &p.Flatsize, &automatic, &locked, &p.RepoPath, &annotations); err != nil {
			return nil, err
		}
		p.Automatic = automatic != 0
		p.Locked = locked != 0
		if annotations != "" && annotations != "{}" {
			_ = json.Unmarshal([]byte(annotations), &p.Annotations)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// loadFields populates the lazily-loaded groups of p per the requested
// mask, matching the Db LoadField contract of spec §4.2.
func (s *Store) loadFields(ctx context.Context, p *model.Pkg, fields model.LoadField) error {
	if fields.Has(model.FieldDeps) {
		rows, err := s.conn.QueryContext(ctx, `SELECT dep_origin, dep_name, dep_version FROM deps WHERE origin = ? ORDER BY ord`, p.Origin)
		if err != nil {
			return err
		}
		for rows.Next() {
			var e model.DepEdge
			if err := rows.Scan(&e.Origin, &e.Name, &e.Version); err != nil {
				rows.Close()
				return err
			}
			p.AddDep(e)
		}
		rows.Close()
		p.Loaded |= model.FieldDeps
	}
	if fields.Has(model.FieldRdeps) {
		rows, err := s.conn.QueryContext(ctx, `SELECT origin, dep_name, dep_version FROM deps WHERE dep_origin = ?`, p.Origin)
		if err != nil {
			return err
		}
		for rows.Next() {
			var e model.DepEdge
			if err := rows.Scan(&e.Origin, &e.Name, &e.Version); err != nil {
				rows.Close()
				return err
			}
			p.Rdeps[e.Origin] = e
		}
		rows.Close()
		p.Loaded |= model.FieldRdeps
	}
	if fields.Has(model.FieldOptions) {
		rows, err := s.conn.QueryContext(ctx, `SELECT name, value FROM options WHERE origin = ? ORDER BY ord`, p.Origin)
		if err != nil {
			return err
		}
		for rows.Next() {
			var name, value string
			if err := rows.Scan(&name, &value); err != nil {
				rows.Close()
				return err
			}
			p.Options.Set(name, value)
		}
		rows.Close()
		p.Loaded |= model.FieldOptions
	}
	if fields.Has(model.FieldShlibsRequired) {
		rows, err := s.conn.QueryContext(ctx, `SELECT name FROM shlibs_required WHERE origin = ? ORDER BY ord`, p.Origin)
		if err != nil {
			return err
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return err
			}
			p.ShlibsRequired.Add(name)
		}
		rows.Close()
		p.Loaded |= model.FieldShlibsRequired
	}
	if fields.Has(model.FieldFiles) {
		rows, err := s.conn.QueryContext(ctx, `SELECT path FROM files WHERE origin = ?`, p.Origin)
		if err != nil {
			return err
		}
		for rows.Next() {
			var path string
			if err := rows.Scan(&path); err != nil {
				rows.Close()
				return err
			}
			p.Files = append(p.Files, model.FileEntry{Path: path})
		}
		rows.Close()
		p.Loaded |= model.FieldFiles
	}
	if fields.Has(model.FieldDirs) {
		rows, err := s.conn.QueryContext(ctx, `SELECT path FROM dirs WHERE origin = ?`, p.Origin)
		if err != nil {
			return err
		}
		for rows.Next() {
			var dpath string
			if err := rows.Scan(&dpath); err != nil {
				rows.Close()
				return err
			}
			p.Dirs = append(p.Dirs, model.DirEntry{Path: dpath})
		}
		rows.Close()
		p.Loaded |= model.FieldDirs
	}
	if fields.Has(model.FieldScripts) {
		rows, err := s.conn.QueryContext(ctx, `SELECT kind, body FROM scripts WHERE origin = ?`, p.Origin)
		if err != nil {
			return err
		}
		for rows.Next() {
			var kind, body string
			if err := rows.Scan(&kind, &body); err != nil {
				rows.Close()
				return err
			}
			if p.Scripts == nil {
				p.Scripts = make(map[string]string)
			}
			p.Scripts[kind] = body
		}
		rows.Close()
		p.Loaded |= model.FieldScripts
	}
	return nil
}

// matches implements the MatchKind dispatch (Exact/Glob/Regex/Condition/
// All) against a package origin. Condition is intentionally limited to an
// "origin=value" equality fragment rather than raw SQL, since origins are
// matched in Go here, not compiled into the query.
func matches(origin, pattern string, kind model.MatchKind) bool {
	switch kind {
	case model.MatchAll:
		return true
	case model.MatchExact:
		return origin == pattern
	case model.MatchGlob:
		ok, _ := path.Match(pattern, origin)
		return ok
	case model.MatchRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(origin)
	case model.MatchCondition:
		// "origin=value" equality condition.
		if k, v, ok := strings.Cut(pattern, "="); ok && k == "origin" {
			return origin == v
		}
		return false
	default:
		return false
	}
}
