package gallery_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evolv/internal/gallery"
	"evolv/internal/models"
	"evolv/internal/querycache"
	"evolv/internal/repository"
)

type storeLister struct {
	store   *repository.MemoryStore
	calls   int32
	block   chan struct{}
	failing bool
}

func (l *storeLister) ListArtworks(ctx context.Context, page, pageSize int) (*models.ArtworkPage, error) {
	atomic.AddInt32(&l.calls, 1)
	if l.block != nil {
		<-l.block
	}
	if l.failing {
		return nil, assert.AnError
	}
	return l.store.List(ctx, page, pageSize)
}

func newLister(n int) *storeLister {
	seed := make([]models.Artwork, n)
	for i := range seed {
		seed[i] = models.Artwork{ID: fmt.Sprintf("A%d", i+1), Size: models.SizeSmall}
	}
	return &storeLister{store: repository.NewMemoryStore(seed)}
}

func TestFeed_FetchAllPages(t *testing.T) {
	lister := newLister(20)
	feed := gallery.NewFeed(lister)
	ctx := context.Background()

	assert.True(t, feed.HasNextPage())
	assert.Equal(t, gallery.DefaultPageSize, feed.PageSize())

	fetched, err := feed.FetchNextPage(ctx)
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Len(t, feed.Items(), 12)
	assert.True(t, feed.HasNextPage())

	fetched, err = feed.FetchNextPage(ctx)
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Len(t, feed.Items(), 20)
	assert.False(t, feed.HasNextPage())

	fetched, err = feed.FetchNextPage(ctx)
	require.NoError(t, err)
	assert.False(t, fetched, "no fetch after the last page")
	assert.Equal(t, int32(2), atomic.LoadInt32(&lister.calls))

	pages := feed.Pages()
	require.Len(t, pages, 2)
	assert.Equal(t, 0, pages[0].Page)
	assert.Equal(t, 1, pages[1].Page)

	items := feed.Items()
	for i, art := range items {
		assert.Equal(t, fmt.Sprintf("A%d", i+1), art.ID)
	}
}

func TestFeed_NoDuplicateConcurrentFetch(t *testing.T) {
	lister := newLister(30)
	lister.block = make(chan struct{})
	feed := gallery.NewFeed(lister, gallery.WithPageSize(10))
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fetched, err := feed.FetchNextPage(ctx)
		assert.NoError(t, err)
		assert.True(t, fetched)
	}()

	require.Eventually(t, feed.IsFetchingNextPage, time.Second, time.Millisecond)

	fetched, err := feed.FetchNextPage(ctx)
	require.NoError(t, err)
	assert.False(t, fetched, "second trigger while in flight is ignored")

	close(lister.block)
	wg.Wait()

	assert.False(t, feed.IsFetchingNextPage())
	assert.Equal(t, int32(1), atomic.LoadInt32(&lister.calls))
	assert.Len(t, feed.Items(), 10)
}

func TestFeed_ErrorKeepsPages(t *testing.T) {
	lister := newLister(20)
	feed := gallery.NewFeed(lister)
	ctx := context.Background()

	_, err := feed.FetchNextPage(ctx)
	require.NoError(t, err)

	lister.failing = true
	fetched, err := feed.FetchNextPage(ctx)
	assert.False(t, fetched)
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorIs(t, feed.Err(), assert.AnError)
	assert.Len(t, feed.Items(), 12)
	assert.True(t, feed.HasNextPage())
	assert.False(t, feed.IsFetchingNextPage())

	lister.failing = false
	fetched, err = feed.FetchNextPage(ctx)
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.NoError(t, feed.Err())
}

func TestFeed_WithCacheReusesPages(t *testing.T) {
	lister := newLister(20)
	cache := querycache.New()
	ctx := context.Background()

	first := gallery.NewFeed(lister, gallery.WithCache(cache, time.Minute))
	_, err := first.FetchNextPage(ctx)
	require.NoError(t, err)

	second := gallery.NewFeed(lister, gallery.WithCache(cache, time.Minute))
	_, err = second.FetchNextPage(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&lister.calls))
	_, ok := cache.Get(gallery.PageKey(12, 0))
	assert.True(t, ok)
}

func TestFeed_Reset(t *testing.T) {
	lister := newLister(20)
	cache := querycache.New()
	feed := gallery.NewFeed(lister, gallery.WithCache(cache, time.Hour))
	ctx := context.Background()

	for feed.HasNextPage() {
		_, err := feed.FetchNextPage(ctx)
		require.NoError(t, err)
	}

	feed.Reset()
	assert.Empty(t, feed.Pages())
	assert.True(t, feed.HasNextPage())
	assert.True(t, cache.IsStale(gallery.PageKey(12, 0)))

	_, err := feed.FetchNextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&lister.calls), "reset pages are refetched")
}
