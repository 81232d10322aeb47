package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version-check",
		Short: "Check the package index for a newer release now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.scheduler.ForceCheck(cmd.Context())
			result, err := a.scheduler.Await(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "running %s, check %s\n", a.cfg.VersionCheck.CurrentVersion, result.State)
			if result.HasLatestVersion != nil {
				if *result.HasLatestVersion {
					fmt.Fprintln(out, "up to date")
				} else {
					fmt.Fprintf(out, "%s is available\n", result.LatestVersion)
				}
			}
			return nil
		},
	}
}
