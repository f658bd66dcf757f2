// Package plugins is the reference Plugins host: an ordered registry of
// named pre/post hooks, fired around each apply phase (spec §6).
package plugins

import (
	"context"
	"fmt"

	"github.com/opkgtool/opkg/internal/jobs"
)

// Hook is a single named callback.
type Hook func(ctx context.Context) error

// Host is an in-process Plugins implementation. Hooks are registered by
// phase name ("install", "upgrade", "deinstall", "autoremove", "fetch")
// and run in registration order; the first error aborts the remaining
// hooks for that phase and is returned.
type Host struct {
	pre  map[string][]Hook
	post map[string][]Hook
}

// New returns an empty hook host.
func New() *Host {
	return &Host{pre: make(map[string][]Hook), post: make(map[string][]Hook)}
}

// RegisterPre adds a pre-phase hook for phase.
func (h *Host) RegisterPre(phase string, hook Hook) {
	h.pre[phase] = append(h.pre[phase], hook)
}

// RegisterPost adds a post-phase hook for phase.
func (h *Host) RegisterPost(phase string, hook Hook) {
	h.post[phase] = append(h.post[phase], hook)
}

func (h *Host) Pre(ctx context.Context, phase string) error {
	return runAll(ctx, phase, h.pre[phase])
}

func (h *Host) Post(ctx context.Context, phase string) error {
	return runAll(ctx, phase, h.post[phase])
}

func runAll(ctx context.Context, phase string, hooks []Hook) error {
	for i, hook := range hooks {
		if err := hook(ctx); err != nil {
			return fmt.Errorf("phase %s hook %d: %w", phase, i, err)
		}
	}
	return nil
}

var _ jobs.Plugins = (*Host)(nil)
