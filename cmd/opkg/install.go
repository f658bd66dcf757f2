package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/opkgtool/opkg/internal/jobs"
	"github.com/opkgtool/opkg/internal/model"
)

func newInstallCmd(ro *rootOptions) *cobra.Command {
	var withDeps bool
	cmd := &cobra.Command{
		Use:   "install PATTERN...",
		Short: "Install one or more packages and their dependencies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := baseFlags(ro)
			if withDeps {
				flags |= model.FlagWithDeps
			}
			return runSession(cmd.Context(), ro, model.JobInstall, flags, args)
		},
	}
	cmd.Flags().BoolVar(&withDeps, "with-deps", true, "set the with-deps flag; install resolves missing dependencies whatever its value")
	return cmd
}

func newUpgradeCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade [PATTERN...]",
		Short: "Upgrade installed packages; every installed package is considered, PATTERN does not narrow the set",
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns := args
			flags := baseFlags(ro)
			if len(patterns) == 0 {
				patterns = []string{"*"}
			}
			return runSession(cmd.Context(), ro, model.JobUpgrade, flags, patterns)
		},
	}
	return cmd
}

func newDeinstallCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deinstall PATTERN...",
		Short: "Remove one or more installed packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), ro, model.JobDeinstall, baseFlags(ro), args)
		},
	}
	return cmd
}

func newAutoremoveCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autoremove",
		Short: "Remove automatically installed packages with no remaining dependents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), ro, model.JobAutoremove, baseFlags(ro), nil)
		},
	}
	return cmd
}

func newFetchCmd(ro *rootOptions) *cobra.Command {
	var upgradesForInstalled bool
	cmd := &cobra.Command{
		Use:   "fetch PATTERN...",
		Short: "Download package artifacts into the cache without installing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := baseFlags(ro)
			if upgradesForInstalled {
				flags |= model.FlagUpgradesForInstalled
			}
			return runSession(cmd.Context(), ro, model.JobFetch, flags, args)
		},
	}
	cmd.Flags().BoolVar(&upgradesForInstalled, "upgrades-for-installed", false,
		"fetch the repository's artifact for every installed package, whether or not it is newer")
	return cmd
}

func baseFlags(ro *rootOptions) model.Flags {
	var f model.Flags
	if ro.dryRun {
		f |= model.FlagDryRun
	}
	if ro.force {
		f |= model.FlagForce
	}
	if ro.recursive {
		f |= model.FlagRecursive
	}
	if ro.noScript {
		f |= model.FlagNoScript
	}
	return f
}

// runSession builds a Session for typ, adds patterns as glob matches,
// solves the plan, prints it, and applies it unless dry-run.
func runSession(ctx context.Context, ro *rootOptions, typ model.JobType, flags model.Flags, patterns []string) error {
	e, err := newEnv(ctx, ro)
	if err != nil {
		return err
	}
	defer e.cleanup()

	sess := jobs.NewSession(typ, e.sess)
	sess.SetFlags(flags)
	sess.SetRepository(ro.repoName)
	defer sess.Close()

	match := model.MatchGlob
	if len(patterns) == 0 {
		match = model.MatchAll
		patterns = []string{""}
	}
	if err := sess.Add(match, patterns, 1); err != nil {
		return err
	}

	if err := sess.Solve(ctx); err != nil {
		return err
	}
	printPlan(sess)
	if flags.Has(model.FlagDryRun) {
		return nil
	}
	return sess.Apply(ctx)
}
