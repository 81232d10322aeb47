package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/stefanpenner/ghclient/pkg/githubapi"
	"github.com/stefanpenner/ghclient/pkg/utils"
)

func newGraphQLCommand(a *app) *cobra.Command {
	var (
		fields []string
		event  string
		accept []string
	)

	cmd := &cobra.Command{
		Use:   "graphql <query>",
		Short: "Run a GraphQL document and print the data payload",
		Example: `  ghclient graphql 'query($login: String!) { user(login: $login) { name } }' -F login=octocat
  ghclient graphql 'query { viewer { login } }' --event viewer.lookup`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variables, err := utils.ParseVariables(fields)
			if err != nil {
				return err
			}

			var opts []githubapi.RequestOption
			if event != "" {
				opts = append(opts, githubapi.WithEvent(event))
			}
			if len(accept) > 0 {
				opts = append(opts, githubapi.WithAccept(accept...))
			}

			resp, err := a.client.GraphQL(cmd.Context(), args[0], variables, opts...)
			if err != nil {
				return err
			}
			return printJSON(cmd, resp["data"])
		},
	}

	cmd.Flags().StringArrayVarP(&fields, "field", "F", nil, "Add a typed variable in key=value format")
	cmd.Flags().StringVar(&event, "event", "", "Record a named usage event for this request")
	cmd.Flags().StringArrayVar(&accept, "accept", nil, "Extra Accept media types, e.g. preview schemas")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
