// Package repo is the reference Repo adapter: an HTTP-backed remote
// catalog client. Catalogs are fetched as a JSON package index and cached
// in memory with an LRU so repeated pattern queries against a large
// catalog don't re-fetch it every time.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/opkgtool/opkg/internal/jobs"
	"github.com/opkgtool/opkg/internal/model"
)

// entry is the wire format of one catalog row.
type entry struct {
	Origin         string            `json:"origin"`
	Version        string            `json:"version"`
	Flatsize       int64             `json:"flatsize"`
	RepoPath       string            `json:"repo_path"`
	Options        map[string]string `json:"options"`
	ShlibsRequired []string          `json:"shlibs_required"`
	Deps           []depEntry        `json:"deps"`
}

type depEntry struct {
	Origin  string `json:"origin"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HTTP is an HTTP-backed Repo.
type HTTP struct {
	name       string
	indexURL   string
	client     *http.Client
	cache      *lru.Cache[string, []entry]
	cacheKey   string
	cacheTTL   time.Duration
	lastLoaded time.Time
}

// New constructs an HTTP-backed Repo named name, fetching its package
// index from indexURL on first use.
func New(name, indexURL string, client *http.Client) (*HTTP, error) {
	if client == nil {
		client = http.DefaultClient
	}
	c, err := lru.New[string, []entry](1)
	if err != nil {
		return nil, err
	}
	return &HTTP{name: name, indexURL: indexURL, client: client, cache: c, cacheKey: "index", cacheTTL: 5 * time.Minute}, nil
}

func (r *HTTP) Name() string { return r.name }

func (r *HTTP) index(ctx context.Context) ([]entry, error) {
	if es, ok := r.cache.Get(r.cacheKey); ok && time.Since(r.lastLoaded) < r.cacheTTL {
		return es, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.indexURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching repo index %s: %w", r.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching repo index %s: status %d", r.name, resp.StatusCode)
	}

	var es []entry
	if err := json.NewDecoder(resp.Body).Decode(&es); err != nil {
		return nil, fmt.Errorf("decoding repo index %s: %w", r.name, err)
	}
	r.cache.Add(r.cacheKey, es)
	r.lastLoaded = time.Now()
	return es, nil
}

// Query returns every candidate matching pattern/match with the requested
// fields loaded.
func (r *HTTP) Query(ctx context.Context, pattern string, match model.MatchKind, fields model.LoadField) ([]*model.Pkg, error) {
	es, err := r.index(ctx)
	if err != nil {
		return nil, err
	}

	var out []*model.Pkg
	for _, e := range es {
		if !matchOrigin(e.Origin, pattern, match) {
			continue
		}
		out = append(out, toPkg(e, fields))
	}
	return out, nil
}

func toPkg(e entry, fields model.LoadField) *model.Pkg {
	p := model.NewPkg(e.Origin, e.Version)
	p.Flatsize = e.Flatsize
	p.RepoPath = e.RepoPath
	p.Loaded = model.FieldBasic

	if fields.Has(model.FieldOptions) {
		for k, v := range e.Options {
			p.Options.Set(k, v)
		}
		p.Loaded |= model.FieldOptions
	}
	if fields.Has(model.FieldShlibsRequired) {
		for _, s := range e.ShlibsRequired {
			p.ShlibsRequired.Add(s)
		}
		p.Loaded |= model.FieldShlibsRequired
	}
	if fields.Has(model.FieldDeps) {
		for _, d := range e.Deps {
			p.AddDep(model.DepEdge{Origin: d.Origin, Name: d.Name, Version: d.Version})
		}
		p.Loaded |= model.FieldDeps
	}
	return p
}

func matchOrigin(origin, pattern string, kind model.MatchKind) bool {
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
		if k, v, ok := strings.Cut(pattern, "="); ok && k == "origin" {
			return origin == v
		}
		return false
	default:
		return false
	}
}

var _ jobs.Repo = (*HTTP)(nil)
