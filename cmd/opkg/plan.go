package main

import (
	"fmt"

	"github.com/opkgtool/opkg/internal/jobs"
)

// printPlan renders the solved job order, one line per package, matching
// the terse "to be installed / upgraded" summary style of the pkg(8)
// CLI this module's job core is modeled on.
func printPlan(sess *jobs.Session) {
	if sess.Count() == 0 {
		fmt.Println("nothing to do")
		return
	}
	fmt.Printf("the following %d package(s) will be affected:\n\n", sess.Count())
	for _, p := range sess.Iter() {
		if p.NewVersion != "" {
			fmt.Printf("  upgrade  %-40s %s -> %s\n", p.Origin, p.Version, p.NewVersion)
		} else {
			fmt.Printf("  install  %-40s %s\n", p.Origin, p.Version)
		}
	}
	fmt.Println()
}
