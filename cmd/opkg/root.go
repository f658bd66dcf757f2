// Package main is the opkg CLI: a cobra command tree wiring the
// internal/jobs core to the reference Db/Repo/Archive/Fetcher/Events/
// Plugins adapters shipped alongside it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opkgtool/opkg/internal/config"
)

type rootOptions struct {
	configFile string
	repoName   string
	repoURL    string
	dryRun     bool
	force      bool
	recursive  bool
	noScript   bool
	quiet      bool
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "opkg",
		Short:         "Plan and apply binary package installs, upgrades, and removals.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	pf := cmd.PersistentFlags()
	pf.StringVar(&ro.configFile, "config", "", "path to an opkg config file (yaml)")
	pf.StringVar(&ro.repoName, "repo-name", "default", "name of the configured remote repository")
	pf.StringVar(&ro.repoURL, "repo-url", "", "base URL of the remote repository's package index")
	pf.BoolVarP(&ro.dryRun, "dry-run", "n", false, "print the plan without applying it")
	pf.BoolVarP(&ro.force, "force", "f", false, "force reinstall/overwrite even if up to date")
	pf.BoolVarP(&ro.recursive, "recursive", "R", false, "also act on dependents/dependencies, per subcommand")
	pf.BoolVar(&ro.noScript, "no-scripts", false, "skip lifecycle scripts")
	pf.BoolVarP(&ro.quiet, "quiet", "q", false, "only log warnings and errors")

	cmd.AddCommand(
		newInstallCmd(ro),
		newUpgradeCmd(ro),
		newDeinstallCmd(ro),
		newAutoremoveCmd(ro),
		newFetchCmd(ro),
	)
	return cmd
}

func (ro *rootOptions) loadConfig() (*config.Config, error) {
	return config.Load(ro.configFile)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "opkg:", err)
		os.Exit(1)
	}
}
