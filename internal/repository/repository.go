// Package repository holds the artwork records behind the gallery.
package repository

import (
	"context"
	"errors"

	"evolv/internal/models"
)

const DefaultPageSize = 12

// ErrNotFound is returned for a missing artwork. Callers treat it as an
// empty result, not a failure.
var ErrNotFound = errors.New("artwork not found")

// Reader answers the read-only queries of the gallery.
type Reader interface {
	Get(ctx context.Context, id string) (*models.Artwork, error)
	List(ctx context.Context, page, pageSize int) (*models.ArtworkPage, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Artwork, error)
}

// Writer records evolutions produced by completed jobs. A zero Step is
// numbered as the count of existing evolutions plus one.
type Writer interface {
	AppendEvolution(ctx context.Context, artworkID string, evo models.Evolution) (*models.Artwork, error)
}

type Store interface {
	Reader
	Writer
}

// pageBounds returns the slice bounds of a zero-based page.
func pageBounds(page, pageSize, total int) (start, end int) {
	start = page * pageSize
	if start > total {
		start = total
	}
	end = start + pageSize
	if end > total {
		end = total
	}
	return start, end
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}
