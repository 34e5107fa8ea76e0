package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. load runs once before any subcommand.
func newRootCmd(load func() (*app, error)) *cobra.Command {
	var a *app

	root := &cobra.Command{
		Use:   "evolv",
		Short: "Browse the gallery and evolve artworks from the terminal",
		Long: `evolv talks to the Evolv API: it pages through the public gallery,
shows artworks with their evolution history and submits new evolutions.

Set EVOLV_API_URL to point at a server. Sign in with "evolv login" when
Supabase is configured, or pass an access token in EVOLV_TOKEN.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = load()
			return err
		},
	}

	get := func() *app { return a }
	root.AddCommand(
		newGalleryCmd(get),
		newArtworkCmd(get),
		newEvolveCmd(get),
		newWhoamiCmd(get),
		newLoginCmd(get),
		newLogoutCmd(get),
	)
	return root
}
