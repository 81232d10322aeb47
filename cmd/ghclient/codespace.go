package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stefanpenner/ghclient/pkg/codespaces"
	"github.com/stefanpenner/ghclient/pkg/lifecycle"
	"github.com/stefanpenner/ghclient/pkg/telemetry"
	"github.com/stefanpenner/ghclient/pkg/tui"
	"github.com/stefanpenner/ghclient/pkg/utils"
)

func newCodespaceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "codespace",
		Aliases: []string{"cs"},
		Short:   "Inspect, start and stop codespaces",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <name>",
			Short: "Show one codespace",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cs, err := a.codespaces(nil).Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, cs)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List codespaces of the authenticated user",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				all, err := a.codespaces(nil).List(cmd.Context())
				if err != nil {
					return err
				}
				tui.RenderCodespaces(cmd.OutOrStdout(), all)
				return nil
			},
		},
		newTransitionCommand(a, "start", "Start a codespace", (*codespaces.Service).Start),
		newTransitionCommand(a, "stop", "Stop a codespace", (*codespaces.Service).Stop),
	)
	return cmd
}

type transitionFunc func(*codespaces.Service, context.Context, string, codespaces.Options) (*codespaces.Codespace, error)

func newTransitionCommand(a *app, action, short string, run transitionFunc) *cobra.Command {
	var (
		wait bool
		web  bool
	)

	cmd := &cobra.Command{
		Use:   action + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			var progress *tui.Progress
			if wait {
				progress = tui.NewProgress(fmt.Sprintf("Waiting for %s to %s", name, action), cmd.ErrOrStderr())
				progress.Start()
			}

			cs, err := run(a.codespaces(progress), cmd.Context(), name, codespaces.Options{Wait: wait})
			if progress != nil {
				progress.Finish()
				progress.Wait()
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", utils.MakeClickableLink(cs.GetWebURL(), cs.GetName()), cs.State())
			if web && cs.GetWebURL() != "" {
				return utils.OpenBrowser(cs.GetWebURL())
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the codespace leaves its transitional states")
	cmd.Flags().BoolVar(&web, "web", false, "Open the codespace in a browser when done")
	return cmd
}

// codespaces builds a service whose poller reports to progress when set.
func (a *app) codespaces(progress *tui.Progress) *codespaces.Service {
	logger := telemetry.Component(a.logger, "codespaces")
	pollOpts := []lifecycle.Option{lifecycle.WithLogger(logger)}
	if progress != nil {
		pollOpts = append(pollOpts, lifecycle.WithObserver(progress.Observe))
	}
	return codespaces.NewService(a.client,
		codespaces.WithLogger(logger),
		codespaces.WithPoller(lifecycle.NewPoller(a.cfg.Poll, pollOpts...)),
	)
}
