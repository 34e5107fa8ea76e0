package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"evolv/internal/evolve"
	"evolv/internal/models"
)

func newArtworkCmd(get func() *app) *cobra.Command {
	var owned string

	cmd := &cobra.Command{
		Use:   "artwork [id]",
		Short: "Show an artwork and its evolution history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			out := cmd.OutOrStdout()

			if owned != "" {
				items, err := evolve.FetchOwnedArtworks(cmd.Context(), a.cache, a.client, owned)
				if err != nil {
					return err
				}
				printArtworkTable(out, items)
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("artwork id is required unless --owner is set")
			}

			art, err := evolve.FetchArtwork(cmd.Context(), a.cache, a.client, args[0])
			if err != nil {
				return err
			}
			if art == nil {
				return fmt.Errorf("artwork %s not found", args[0])
			}
			printArtwork(out, art)
			return nil
		},
	}

	cmd.Flags().StringVar(&owned, "owner", "", "list the artworks of this user instead")
	return cmd
}

func printArtwork(out io.Writer, art *models.Artwork) {
	fmt.Fprintln(out, titleStyle.Render(art.Title))
	fmt.Fprintf(out, "id: %s  owner: %s  size: %s\n", art.ID, art.OwnerID, art.Size)
	if len(art.Tags) > 0 {
		fmt.Fprintf(out, "tags: %s\n", strings.Join(art.Tags, ", "))
	}
	fmt.Fprintf(out, "updated: %s\n", art.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(out)
	for _, evo := range art.Evolutions {
		printEvolution(out, evo)
	}
}

func printEvolution(out io.Writer, evo models.Evolution) {
	line := fmt.Sprintf("  #%d  %s", evo.Step, evo.Prompt)
	if evo.IsPending() {
		fmt.Fprintln(out, pendingStyle.Render(line+"  (processing)"))
		return
	}
	fmt.Fprintln(out, line)
	fmt.Fprintln(out, mutedStyle.Render("      "+evo.ImageURL))
}
