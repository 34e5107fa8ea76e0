// Package evolve runs an evolution submission against the query cache:
// optimistic placeholder, job submission, polling, then reconciliation or
// rollback.
package evolve

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"evolv/internal/models"
	"evolv/internal/querycache"
)

const (
	DefaultPollInterval = time.Second

	// PlaceholderImageURL is shown while a pending evolution is processing.
	PlaceholderImageURL = "/api/placeholder/512/512?text=Processing..."
)

// JobAPI creates evolution jobs and reports their status.
type JobAPI interface {
	SubmitEvolution(ctx context.Context, req models.EvolveRequest) (string, error)
	GetJobStatus(ctx context.Context, jobID string) (*models.JobStatus, error)
}

type Flow struct {
	api          JobAPI
	cache        *querycache.Cache
	pollInterval time.Duration
	now          func() time.Time
	onOptimistic func(*models.Artwork)
	log          *logrus.Entry

	mu       sync.Mutex
	inflight map[string]struct{}
}

type Option func(*Flow)

func WithPollInterval(d time.Duration) Option {
	return func(f *Flow) {
		if d > 0 {
			f.pollInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

// OnOptimistic registers a callback that sees the optimistic artwork right
// after it is written to the cache.
func OnOptimistic(fn func(*models.Artwork)) Option {
	return func(f *Flow) { f.onOptimistic = fn }
}

func WithLogger(log *logrus.Entry) Option {
	return func(f *Flow) { f.log = log }
}

func NewFlow(api JobAPI, cache *querycache.Cache, opts ...Option) *Flow {
	f := &Flow{
		api:          api,
		cache:        cache,
		pollInterval: DefaultPollInterval,
		now:          time.Now,
		log:          logrus.WithField("component", "evolve"),
		inflight:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Submit evolves an artwork and blocks until the job settles. On success the
// cached artwork holds the confirmed evolution in place of the placeholder;
// on any failure the cached artwork is restored to what it was before.
func (f *Flow) Submit(ctx context.Context, req models.EvolveRequest) (*models.Evolution, error) {
	req = req.Normalize()
	if req.ArtworkID == "" || req.Prompt == "" {
		return nil, ErrInvalidRequest
	}

	if !f.acquire(req.ArtworkID) {
		return nil, ErrSubmissionInFlight
	}
	defer f.release(req.ArtworkID)

	log := f.log.WithField("artwork_id", req.ArtworkID)
	key := ArtworkKey(req.ArtworkID)

	snapshot, hadSnapshot := f.applyOptimistic(key, req)

	jobID, err := f.api.SubmitEvolution(ctx, req)
	if err != nil {
		f.rollback(key, snapshot, hadSnapshot)
		log.WithError(err).Warn("Evolution submission failed, rolled back")
		return nil, &SubmissionError{ArtworkID: req.ArtworkID, Err: err}
	}
	log = log.WithField("job_id", jobID)
	log.Debug("Evolution job submitted")

	status, err := f.poll(ctx, jobID)
	if err == nil {
		err = checkResult(status)
	}
	if err != nil {
		f.rollback(key, snapshot, hadSnapshot)
		log.WithError(err).Warn("Evolution failed, rolled back")
		failed := &EvolutionFailedError{ArtworkID: req.ArtworkID, JobID: jobID, Err: err}
		if status != nil {
			failed.Status = status.Status
		}
		return nil, failed
	}

	evo := f.reconcile(key, req, status, snapshot)
	log.WithFields(logrus.Fields{"evolution_id": evo.ID, "step": evo.Step}).Info("Evolution settled")
	return evo, nil
}

// InFlight reports whether a submission for the artwork is unsettled.
func (f *Flow) InFlight(artworkID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.inflight[artworkID]
	return ok
}

func (f *Flow) acquire(artworkID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.inflight[artworkID]; busy {
		return false
	}
	f.inflight[artworkID] = struct{}{}
	return true
}

func (f *Flow) release(artworkID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inflight, artworkID)
}

// applyOptimistic cancels any outstanding read of the artwork, snapshots the
// cached value and appends a placeholder evolution to a copy of it.
func (f *Flow) applyOptimistic(key querycache.Key, req models.EvolveRequest) (*models.Artwork, bool) {
	f.cache.Cancel(key)

	var (
		snapshot   *models.Artwork
		optimistic *models.Artwork
	)
	f.cache.Update(key, func(old interface{}, ok bool) (interface{}, bool) {
		art, isArt := old.(*models.Artwork)
		if !ok || !isArt || art == nil {
			return nil, false
		}
		snapshot = art

		now := f.now().UTC()
		optimistic = art.Clone()
		optimistic.Evolutions = append(optimistic.Evolutions, models.Evolution{
			ID:        models.PendingIDPrefix + uuid.NewString(),
			Step:      art.NextStep(),
			Prompt:    req.Prompt,
			ImageURL:  PlaceholderImageURL,
			CreatedAt: now,
			Params:    req.Params.Clone(),
		})
		optimistic.UpdatedAt = later(now, art.UpdatedAt)
		return optimistic, true
	})

	if optimistic != nil && f.onOptimistic != nil {
		f.onOptimistic(optimistic.Clone())
	}
	return snapshot, snapshot != nil
}

func (f *Flow) rollback(key querycache.Key, snapshot *models.Artwork, had bool) {
	if !had {
		return
	}
	f.cache.Set(key, snapshot)
}

// poll asks for the job status every interval until it is terminal.
func (f *Flow) poll(ctx context.Context, jobID string) (*models.JobStatus, error) {
	timer := time.NewTimer(f.pollInterval)
	defer timer.Stop()

	for {
		status, err := f.api.GetJobStatus(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to get job status: %w", err)
		}
		if status.Status.Terminal() {
			return status, nil
		}

		timer.Reset(f.pollInterval)
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-timer.C:
		}
	}
}

func checkResult(status *models.JobStatus) error {
	switch {
	case status.Status == models.JobFailed:
		if status.Error != "" {
			return errors.New(status.Error)
		}
		return errors.New("job failed")
	case status.ResultURL == "":
		return ErrMissingResult
	}
	return nil
}

// reconcile swaps every placeholder for the confirmed evolution.
func (f *Flow) reconcile(key querycache.Key, req models.EvolveRequest, status *models.JobStatus, snapshot *models.Artwork) *models.Evolution {
	now := f.now().UTC()
	evo := models.Evolution{
		ID:        "evo-" + uuid.NewString(),
		Step:      1,
		Prompt:    req.Prompt,
		ImageURL:  status.ResultURL,
		CreatedAt: now,
		Params:    req.Params.Clone(),
	}
	if snapshot != nil {
		evo.Step = snapshot.NextStep()
	}

	f.cache.Update(key, func(old interface{}, ok bool) (interface{}, bool) {
		art, isArt := old.(*models.Artwork)
		if !ok || !isArt || art == nil {
			return nil, false
		}
		next := art.Clone()
		kept := make([]models.Evolution, 0, len(next.Evolutions)+1)
		for _, e := range next.Evolutions {
			if !e.IsPending() {
				kept = append(kept, e)
			}
		}
		evo.Step = len(kept) + 1
		next.Evolutions = append(kept, evo)
		next.UpdatedAt = later(now, art.UpdatedAt)
		return next, true
	})

	out := evo
	out.Params = evo.Params.Clone()
	return &out
}

// later returns now, or just after prev when the clock has not moved past it.
func later(now, prev time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Millisecond)
}
