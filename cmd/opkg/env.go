package main

import (
	"context"
	"fmt"

	"github.com/opkgtool/opkg/internal/archive"
	"github.com/opkgtool/opkg/internal/config"
	"github.com/opkgtool/opkg/internal/db"
	"github.com/opkgtool/opkg/internal/events"
	"github.com/opkgtool/opkg/internal/fetcher"
	"github.com/opkgtool/opkg/internal/jobs"
	"github.com/opkgtool/opkg/internal/logging"
	"github.com/opkgtool/opkg/internal/plugins"
	"github.com/opkgtool/opkg/internal/repo"
)

// env bundles the collaborators a Session needs, built once per CLI
// invocation from the loaded config and root flags.
type env struct {
	cfg     *config.Config
	store   *db.Store
	sess    jobs.Config
	cleanup func() error
}

func newEnv(ctx context.Context, ro *rootOptions) (*env, error) {
	cfg, err := ro.loadConfig()
	if err != nil {
		return nil, err
	}

	level := "info"
	if ro.quiet {
		level = "warn"
	}
	log, err := logging.New(logging.Config{Level: level})
	if err != nil {
		return nil, err
	}

	store, err := db.Open(ctx, cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("opening local database: %w", err)
	}

	repoURL := ro.repoURL
	if repoURL == "" {
		repoURL = cfg.RepoURL
	}
	repoName := ro.repoName
	if repoName == "" {
		repoName = cfg.RepoName
	}
	r, err := repo.New(repoName, repoURL, nil)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("configuring repository %s: %w", repoName, err)
	}

	sessCfg := jobs.Config{
		Db:         store,
		Repo:       r,
		Fetcher:    fetcher.New(repoURL, nil),
		Opener:     &archive.Opener{DestRoot: "/"},
		Events:     events.New(log),
		Plugins:    plugins.New(),
		SelfUpdate: cfg.SelfUpdateOrigins(),
		CacheDir:   cfg.CacheDir,
		HandleRC:   cfg.HandleRCScripts,
	}

	return &env{
		cfg:     cfg,
		store:   store,
		sess:    sessCfg,
		cleanup: func() error { log.Sync(); return store.Close() },
	}, nil
}
