// Package jobs simulates the evolution job backend. A job's status is a
// function of its age: pending, then processing with rising progress, then
// done once the processing time has elapsed.
package jobs

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"evolv/internal/models"
	"evolv/internal/repository"
)

const (
	DefaultProcessingTime = 1500 * time.Millisecond
	DefaultRetention      = 10 * time.Minute

	jobIDPrefix = "job-"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrInvalidPrompt = errors.New("prompt must not be blank")
)

// ResultStore produces the image of a finished job and returns its URL.
type ResultStore interface {
	SaveResult(ctx context.Context, job Job) (string, error)
}

// Job is the immutable description of a submitted evolution.
type Job struct {
	ID        string
	ArtworkID string
	UserID    string
	Prompt    string
	Params    *models.EvolutionParams
	CreatedAt time.Time
}

type record struct {
	Job

	mu        sync.Mutex
	state     models.JobState
	resultURL string
	errMsg    string
	settledAt time.Time
}

type Service struct {
	repo       repository.Store
	results    ResultStore
	processing time.Duration
	retention  time.Duration
	now        func() time.Time
	log        *logrus.Entry

	mu      sync.Mutex
	jobs    map[string]*record
	entropy io.Reader
}

type Option func(*Service)

func WithProcessingTime(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.processing = d
		}
	}
}

func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo repository.Store, results ResultStore, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		results:    results,
		processing: DefaultProcessingTime,
		retention:  DefaultRetention,
		now:        time.Now,
		log:        logrus.WithField("component", "jobs"),
		jobs:       make(map[string]*record),
		entropy:    ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit registers a job for an existing artwork and returns its id.
func (s *Service) Submit(ctx context.Context, userID string, req models.EvolveRequest) (string, error) {
	req = req.Normalize()
	if req.Prompt == "" {
		return "", ErrInvalidPrompt
	}
	if _, err := s.repo.Get(ctx, req.ArtworkID); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id, err := ulid.New(ulid.Timestamp(now), s.entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate job id: %w", err)
	}

	rec := &record{
		Job: Job{
			ID:        jobIDPrefix + id.String(),
			ArtworkID: req.ArtworkID,
			UserID:    userID,
			Prompt:    req.Prompt,
			Params:    req.Params,
			CreatedAt: now,
		},
		state: models.JobPending,
	}
	s.jobs[rec.ID] = rec

	s.log.WithFields(logrus.Fields{
		"job_id":     rec.ID,
		"artwork_id": rec.ArtworkID,
		"user_id":    userID,
	}).Info("Evolution job submitted")

	return rec.ID, nil
}

// Status reports the job's current state. The first call that observes a
// finished job stores its result and appends the evolution to the artwork.
func (s *Service) Status(ctx context.Context, jobID string) (*models.JobStatus, error) {
	s.mu.Lock()
	rec, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrJobNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.state.Terminal() {
		return rec.status(nil), nil
	}

	elapsed := s.now().Sub(rec.CreatedAt)
	switch {
	case elapsed < s.processing/5:
		rec.state = models.JobPending
		return rec.status(nil), nil
	case elapsed < s.processing:
		rec.state = models.JobProcessing
		progress := int(elapsed * 100 / s.processing)
		return rec.status(&progress), nil
	}

	s.settle(context.WithoutCancel(ctx), rec)
	return rec.status(nil), nil
}

// settle runs with rec.mu held. The outcome is final, so ctx must not carry
// the poller's cancellation.
func (s *Service) settle(ctx context.Context, rec *record) {
	log := s.log.WithFields(logrus.Fields{"job_id": rec.ID, "artwork_id": rec.ArtworkID})
	rec.settledAt = s.now()

	url, err := s.results.SaveResult(ctx, rec.Job)
	if err != nil {
		rec.state = models.JobFailed
		rec.errMsg = fmt.Sprintf("failed to store result: %v", err)
		log.WithError(err).Error("Evolution job failed")
		return
	}

	evo := models.Evolution{
		ID:        "evo-" + uuid.NewString(),
		Prompt:    rec.Prompt,
		ImageURL:  url,
		CreatedAt: rec.settledAt.UTC(),
		Params:    rec.Params.Clone(),
	}
	if _, err := s.repo.AppendEvolution(ctx, rec.ArtworkID, evo); err != nil {
		rec.state = models.JobFailed
		rec.errMsg = fmt.Sprintf("failed to record evolution: %v", err)
		log.WithError(err).Error("Evolution job failed")
		return
	}

	rec.state = models.JobDone
	rec.resultURL = url
	log.WithField("result_url", url).Info("Evolution job done")
}

func (r *record) status(progress *int) *models.JobStatus {
	st := &models.JobStatus{
		ID:        r.ID,
		Status:    r.state,
		Progress:  progress,
		ResultURL: r.resultURL,
		Error:     r.errMsg,
	}
	if r.state == models.JobDone {
		full := 100
		st.Progress = &full
	}
	return st
}

// Sweep forgets settled jobs older than the retention window.
func (s *Service) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.jobs {
		rec.mu.Lock()
		expired := rec.state.Terminal() && now.Sub(rec.settledAt) > s.retention
		rec.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Debug("Swept settled jobs")
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

// Len returns the number of tracked jobs.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
