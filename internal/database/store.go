package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"evolv/internal/models"
	"evolv/internal/repository"
)

// Store is the Postgres-backed artwork repository.
type Store struct {
	db *sql.DB
}

var _ repository.Store = (*Store)(nil)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, connectionString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const artworkColumns = `id, owner_id, title, base_image_url, cover_image_url, public, tags, size, created_at, updated_at`

func (s *Store) Get(ctx context.Context, id string) (*models.Artwork, error) {
	var art models.Artwork
	err := s.db.QueryRowContext(ctx, `
		SELECT `+artworkColumns+`
		FROM artworks
		WHERE id = $1
	`, id).Scan(artworkDest(&art)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artwork: %w", err)
	}

	artworks := []models.Artwork{art}
	if err := s.attachEvolutions(ctx, artworks); err != nil {
		return nil, err
	}
	return &artworks[0], nil
}

func (s *Store) List(ctx context.Context, page, pageSize int) (*models.ArtworkPage, error) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = repository.DefaultPageSize
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artworks`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count artworks: %w", err)
	}

	items, err := s.queryArtworks(ctx, `
		SELECT `+artworkColumns+`
		FROM artworks
		ORDER BY seq ASC
		LIMIT $1 OFFSET $2
	`, pageSize, page*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list artworks: %w", err)
	}

	return &models.ArtworkPage{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		HasMore:  (page+1)*pageSize < total,
	}, nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]models.Artwork, error) {
	items, err := s.queryArtworks(ctx, `
		SELECT `+artworkColumns+`
		FROM artworks
		WHERE owner_id = $1
		ORDER BY seq ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner artworks: %w", err)
	}
	return items, nil
}

func (s *Store) AppendEvolution(ctx context.Context, artworkID string, evo models.Evolution) (*models.Artwork, error) {
	params, err := marshalParams(evo.Params)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE artworks
		SET updated_at = GREATEST(NOW(), updated_at + INTERVAL '1 millisecond')
		WHERE id = $1
	`, artworkID)
	if err != nil {
		return nil, fmt.Errorf("failed to touch artwork: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, repository.ErrNotFound
	}

	if evo.Step == 0 {
		// the artwork row is locked by the update above
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) + 1 FROM evolutions WHERE artwork_id = $1`, artworkID).Scan(&evo.Step); err != nil {
			return nil, fmt.Errorf("failed to number evolution: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO evolutions (id, artwork_id, step, prompt, image_url, params, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, evo.ID, artworkID, evo.Step, evo.Prompt, evo.ImageURL, params, evo.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert evolution: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit evolution: %w", err)
	}

	return s.Get(ctx, artworkID)
}

// Seed inserts the given artworks when the table is empty.
func (s *Store) Seed(ctx context.Context, artworks []models.Artwork) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artworks`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count artworks: %w", err)
	}
	if count > 0 {
		logrus.WithField("artworks", count).Debug("Artworks table not empty, skipping seed")
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, art := range artworks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO artworks (`+artworkColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, art.ID, art.OwnerID, art.Title, art.BaseImageURL, art.CoverImageURL, art.Public,
			pq.Array(art.Tags), string(art.Size), art.CreatedAt, art.UpdatedAt); err != nil {
			return fmt.Errorf("failed to seed artwork %s: %w", art.ID, err)
		}

		for _, evo := range art.Evolutions {
			params, err := marshalParams(evo.Params)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO evolutions (id, artwork_id, step, prompt, image_url, params, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, evo.ID, art.ID, evo.Step, evo.Prompt, evo.ImageURL, params, evo.CreatedAt); err != nil {
				return fmt.Errorf("failed to seed evolution %s: %w", evo.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}

	logrus.WithField("artworks", len(artworks)).Info("Seeded artworks table")
	return nil
}

func (s *Store) queryArtworks(ctx context.Context, query string, args ...interface{}) ([]models.Artwork, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	artworks := make([]models.Artwork, 0)
	for rows.Next() {
		var art models.Artwork
		if err := rows.Scan(artworkDest(&art)...); err != nil {
			return nil, fmt.Errorf("failed to scan artwork: %w", err)
		}
		artworks = append(artworks, art)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachEvolutions(ctx, artworks); err != nil {
		return nil, err
	}
	return artworks, nil
}

func (s *Store) attachEvolutions(ctx context.Context, artworks []models.Artwork) error {
	if len(artworks) == 0 {
		return nil
	}

	ids := make([]string, len(artworks))
	index := make(map[string]int, len(artworks))
	for i, art := range artworks {
		ids[i] = art.ID
		index[art.ID] = i
		artworks[i].Evolutions = []models.Evolution{}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT artwork_id, id, step, prompt, image_url, params, created_at
		FROM evolutions
		WHERE artwork_id = ANY($1)
		ORDER BY seq ASC
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to get evolutions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			artworkID string
			evo       models.Evolution
			params    []byte
		)
		if err := rows.Scan(&artworkID, &evo.ID, &evo.Step, &evo.Prompt, &evo.ImageURL, &params, &evo.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan evolution: %w", err)
		}
		if len(params) > 0 {
			evo.Params = &models.EvolutionParams{}
			if err := json.Unmarshal(params, evo.Params); err != nil {
				return fmt.Errorf("failed to decode params of evolution %s: %w", evo.ID, err)
			}
		}
		i := index[artworkID]
		artworks[i].Evolutions = append(artworks[i].Evolutions, evo)
	}
	return rows.Err()
}

func artworkDest(art *models.Artwork) []interface{} {
	return []interface{}{
		&art.ID, &art.OwnerID, &art.Title, &art.BaseImageURL, &art.CoverImageURL,
		&art.Public, pq.Array(&art.Tags), &art.Size, &art.CreatedAt, &art.UpdatedAt,
	}
}

func marshalParams(p *models.EvolutionParams) (interface{}, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	// jsonb needs text; pq would send []byte as bytea
	return string(data), nil
}
