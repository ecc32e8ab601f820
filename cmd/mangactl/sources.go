package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ssanime/manga-nexus-hub/internal/app"
)

func newSourcesCmd() *cobra.Command {
	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "Source profile commands",
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the active source profiles",
		Long:  `List the profiles resolved from the built-in defaults, the YAML directory and the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(services *app.Services) error {
				profiles := services.Profiles.List()
				if asJSON {
					return printJSON(cmd.OutOrStdout(), profiles)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-20s %-8s %s\n", "NAME", "ENABLED", "BASE URL")
				for _, profile := range profiles {
					fmt.Fprintf(out, "%-20s %-8t %s\n", profile.Name, profile.IsEnabled(), profile.BaseURL)
				}
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "print profiles as JSON")

	sourcesCmd.AddCommand(listCmd)
	return sourcesCmd
}
