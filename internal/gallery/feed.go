// Package gallery pages through the artwork gallery for infinite scrolling.
package gallery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"evolv/internal/models"
	"evolv/internal/querycache"
)

const (
	DefaultPageSize  = 12
	DefaultStaleTime = 30 * time.Second
)

// Lister fetches one zero-based page of artworks.
type Lister interface {
	ListArtworks(ctx context.Context, page, pageSize int) (*models.ArtworkPage, error)
}

// PageKey is the cache key of one gallery page.
func PageKey(pageSize, page int) querycache.Key {
	return querycache.Key{"artworks", pageSize, page}
}

// Feed accumulates gallery pages in order. A new page is requested only when
// the consumer asks for it and no page fetch is already outstanding.
type Feed struct {
	lister    Lister
	cache     *querycache.Cache
	pageSize  int
	staleTime time.Duration
	log       *logrus.Entry

	mu       sync.Mutex
	pages    []models.ArtworkPage
	hasNext  bool
	fetching bool
	err      error
	gen      int
}

type Option func(*Feed)

// WithPageSize fixes the page size for the lifetime of the feed.
func WithPageSize(n int) Option {
	return func(f *Feed) {
		if n > 0 {
			f.pageSize = n
		}
	}
}

// WithCache serves pages through a query cache.
func WithCache(c *querycache.Cache, staleTime time.Duration) Option {
	return func(f *Feed) {
		f.cache = c
		f.staleTime = staleTime
	}
}

func NewFeed(lister Lister, opts ...Option) *Feed {
	f := &Feed{
		lister:    lister,
		pageSize:  DefaultPageSize,
		staleTime: DefaultStaleTime,
		hasNext:   true,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = logrus.WithFields(logrus.Fields{"component": "gallery", "page_size": f.pageSize})
	return f
}

// FetchNextPage loads the page after the last one held. It returns false
// without doing anything when a fetch is outstanding or the end was reached.
func (f *Feed) FetchNextPage(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if f.fetching || !f.hasNext {
		f.mu.Unlock()
		return false, nil
	}
	f.fetching = true
	next := len(f.pages)
	gen := f.gen
	f.mu.Unlock()

	page, err := f.load(ctx, next)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetching = false
	if err != nil {
		f.err = err
		f.log.WithError(err).WithField("page", next).Warn("Failed to fetch gallery page")
		return false, fmt.Errorf("failed to fetch page %d: %w", next, err)
	}
	if f.gen != gen {
		// Reset ran while the fetch was in flight.
		return false, nil
	}

	f.err = nil
	f.pages = append(f.pages, *page)
	f.hasNext = page.HasMore
	f.log.WithFields(logrus.Fields{"page": next, "items": len(page.Items), "has_more": page.HasMore}).Debug("Fetched gallery page")
	return true, nil
}

func (f *Feed) load(ctx context.Context, page int) (*models.ArtworkPage, error) {
	fetch := func(ctx context.Context) (*models.ArtworkPage, error) {
		return f.lister.ListArtworks(ctx, page, f.pageSize)
	}
	if f.cache == nil {
		return fetch(ctx)
	}
	return querycache.FetchAs(ctx, f.cache, PageKey(f.pageSize, page), fetch, querycache.StaleTime(f.staleTime))
}

func (f *Feed) HasNextPage() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasNext
}

func (f *Feed) IsFetchingNextPage() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetching
}

func (f *Feed) PageSize() int {
	return f.pageSize
}

// Err returns the error of the last failed fetch, cleared by the next success.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Pages returns the fetched pages in order.
func (f *Feed) Pages() []models.ArtworkPage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ArtworkPage(nil), f.pages...)
}

// Items concatenates the items of every fetched page.
func (f *Feed) Items() []models.Artwork {
	f.mu.Lock()
	defer f.mu.Unlock()

	var items []models.Artwork
	for _, p := range f.pages {
		items = append(items, p.Items...)
	}
	return items
}

// Reset drops every fetched page so the feed starts over from page zero.
func (f *Feed) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = nil
	f.hasNext = true
	f.err = nil
	f.gen++
	if f.cache != nil {
		for page := 0; ; page++ {
			key := PageKey(f.pageSize, page)
			if _, ok := f.cache.Get(key); !ok {
				break
			}
			f.cache.Invalidate(key)
		}
	}
}
