package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"evolv/internal/evolve"
	"evolv/internal/models"
)

const cacheGCInterval = 30 * time.Second

func newEvolveCmd(get func() *app) *cobra.Command {
	var (
		steps    int
		guidance float64
		strength float64
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "evolve <artwork-id> <prompt...>",
		Short: "Evolve an artwork with a prompt and wait for the result",
		Long: `Submits an evolution job, shows the pending evolution right away and
waits until the job settles. A failed job leaves the artwork unchanged.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			out := cmd.OutOrStdout()

			req := models.EvolveRequest{
				ArtworkID: args[0],
				Prompt:    strings.Join(args[1:], " "),
				Params:    paramsFromFlags(cmd, steps, guidance, strength, seed),
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()

			art, err := evolve.FetchArtwork(ctx, a.cache, a.client, req.ArtworkID)
			if err != nil {
				return err
			}
			if art == nil {
				return fmt.Errorf("artwork %s not found", req.ArtworkID)
			}

			flow := evolve.NewFlow(a.client, a.cache,
				evolve.WithPollInterval(a.cfg.PollInterval),
				evolve.OnOptimistic(func(art *models.Artwork) {
					last := art.Evolutions[len(art.Evolutions)-1]
					fmt.Fprintln(out, pendingStyle.Render(fmt.Sprintf("Evolving %q: step %d %q is processing...", art.Title, last.Step, last.Prompt)))
				}),
			)

			var evo *models.Evolution
			g, gctx := errgroup.WithContext(ctx)
			janitorCtx, stopJanitor := context.WithCancel(gctx)
			g.Go(func() error {
				return a.cache.Run(janitorCtx, cacheGCInterval)
			})
			g.Go(func() error {
				defer stopJanitor()
				var err error
				evo, err = flow.Submit(gctx, req)
				return err
			})
			if err := g.Wait(); err != nil {
				return describeEvolveError(err)
			}

			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Step %d ready: %s", evo.Step, evo.ImageURL)))
			if settled, ok := cachedArtwork(a, req.ArtworkID); ok {
				printArtwork(out, settled)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 50, "inference steps (10-100)")
	cmd.Flags().Float64Var(&guidance, "guidance", 7.5, "guidance scale (1-20)")
	cmd.Flags().Float64Var(&strength, "strength", 0.8, "how far to move from the current image (0.1-1)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	return cmd
}

// paramsFromFlags keeps only the flags the user set, so the server applies
// its own defaults for the rest.
func paramsFromFlags(cmd *cobra.Command, steps int, guidance, strength float64, seed int64) *models.EvolutionParams {
	var p models.EvolutionParams
	set := false
	if cmd.Flags().Changed("steps") {
		p.Steps, set = &steps, true
	}
	if cmd.Flags().Changed("guidance") {
		p.GuidanceScale, set = &guidance, true
	}
	if cmd.Flags().Changed("strength") {
		p.Strength, set = &strength, true
	}
	if cmd.Flags().Changed("seed") {
		p.Seed, set = &seed, true
	}
	if !set {
		return nil
	}
	return &p
}

func cachedArtwork(a *app, id string) (*models.Artwork, bool) {
	v, ok := a.cache.Get(evolve.ArtworkKey(id))
	if !ok {
		return nil, false
	}
	art, ok := v.(*models.Artwork)
	return art, ok && art != nil
}

func describeEvolveError(err error) error {
	var failed *evolve.EvolutionFailedError
	var submit *evolve.SubmissionError
	switch {
	case errors.As(err, &failed) && failed.Status == models.JobFailed:
		return fmt.Errorf("evolution failed: %v", failed.Err)
	case errors.As(err, &failed):
		return fmt.Errorf("evolution did not finish: %v", failed.Err)
	case errors.As(err, &submit):
		return fmt.Errorf("could not submit evolution: %v", submit.Err)
	}
	return err
}
