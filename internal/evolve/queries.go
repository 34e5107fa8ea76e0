package evolve

import (
	"context"
	"time"

	"evolv/internal/models"
	"evolv/internal/querycache"
)

const (
	ArtworkStaleTime = time.Minute
	UserStaleTime    = time.Minute
)

// ArtworkAPI is the read side of the backend used by the artwork queries.
// A missing artwork or an anonymous caller is reported as nil, nil.
type ArtworkAPI interface {
	GetArtwork(ctx context.Context, id string) (*models.Artwork, error)
	ListOwnedArtworks(ctx context.Context, userID string) ([]models.Artwork, error)
	GetCurrentUser(ctx context.Context) (*models.User, error)
}

func ArtworkKey(id string) querycache.Key {
	return querycache.Key{"artwork", id}
}

func OwnedArtworksKey(userID string) querycache.Key {
	return querycache.Key{"artworks", "owned", userID}
}

func UserKey() querycache.Key {
	return querycache.Key{"user"}
}

// FetchArtwork reads an artwork through the cache. A nil artwork without an
// error means it does not exist.
func FetchArtwork(ctx context.Context, cache *querycache.Cache, api ArtworkAPI, id string) (*models.Artwork, error) {
	art, err := querycache.FetchAs(ctx, cache, ArtworkKey(id), func(ctx context.Context) (*models.Artwork, error) {
		return api.GetArtwork(ctx, id)
	}, querycache.StaleTime(ArtworkStaleTime))
	if err != nil {
		return nil, err
	}
	return art.Clone(), nil
}

// FetchOwnedArtworks returns copies of the cached list so callers may edit
// them freely.
func FetchOwnedArtworks(ctx context.Context, cache *querycache.Cache, api ArtworkAPI, userID string) ([]models.Artwork, error) {
	items, err := querycache.FetchAs(ctx, cache, OwnedArtworksKey(userID), func(ctx context.Context) ([]models.Artwork, error) {
		return api.ListOwnedArtworks(ctx, userID)
	})
	if err != nil || items == nil {
		return items, err
	}
	out := make([]models.Artwork, len(items))
	for i := range items {
		out[i] = *items[i].Clone()
	}
	return out, nil
}

// FetchCurrentUser returns nil for an anonymous session.
func FetchCurrentUser(ctx context.Context, cache *querycache.Cache, api ArtworkAPI) (*models.User, error) {
	return querycache.FetchAs(ctx, cache, UserKey(), api.GetCurrentUser, querycache.StaleTime(UserStaleTime))
}
