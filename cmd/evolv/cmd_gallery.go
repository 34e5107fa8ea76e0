package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"evolv/internal/gallery"
	"evolv/internal/models"
)

func newGalleryCmd(get func() *app) *cobra.Command {
	var pages int
	var all bool

	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "List public artworks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			feed := gallery.NewFeed(a.client,
				gallery.WithPageSize(a.cfg.PageSize),
				gallery.WithCache(a.cache, gallery.DefaultStaleTime),
			)

			for n := 0; all || n < pages; n++ {
				more, err := feed.FetchNextPage(cmd.Context())
				if err != nil {
					return err
				}
				if !more {
					break
				}
			}

			out := cmd.OutOrStdout()
			printArtworkTable(out, feed.Items())
			if feed.HasNextPage() {
				fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("More artworks available, use --pages %d or --all", len(feed.Pages())+1)))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	cmd.Flags().BoolVar(&all, "all", false, "load every page")
	return cmd
}

func printArtworkTable(out io.Writer, items []models.Artwork) {
	if len(items) == 0 {
		fmt.Fprintln(out, "No artworks yet.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tOWNER\tEVOLUTIONS\tUPDATED")
	for _, art := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			art.ID, art.Title, art.OwnerID, len(art.Evolutions), art.UpdatedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush()
}
