package database_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evolv/internal/database"
	"evolv/internal/models"
	"evolv/internal/repository"
)

func TestMigrations_Ordered(t *testing.T) {
	names, err := database.Migrations()
	require.NoError(t, err)

	assert.Equal(t, []string{"001_create_artworks.sql", "002_create_evolutions.sql"}, names)
}

// openTestStore connects to TEST_DATABASE_URL. The database must be
// disposable: the artworks tables are truncated.
func openTestStore(t *testing.T) *database.Store {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.Open(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db).Run(ctx))
	_, err = db.ExecContext(ctx, "TRUNCATE artworks, evolutions")
	require.NoError(t, err)

	return database.NewStore(db)
}

func TestStore_SeedAndPaginate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seed := repository.DefaultSeed()[:20]
	require.NoError(t, store.Seed(ctx, seed))
	// second seed is a no-op
	require.NoError(t, store.Seed(ctx, seed))

	first, err := store.List(ctx, 0, 12)
	require.NoError(t, err)
	assert.Len(t, first.Items, 12)
	assert.True(t, first.HasMore)
	assert.Equal(t, 20, first.Total)

	second, err := store.List(ctx, 1, 12)
	require.NoError(t, err)
	assert.Len(t, second.Items, 8)
	assert.False(t, second.HasMore)

	assert.Equal(t, seed[0].ID, first.Items[0].ID)
	assert.Equal(t, seed[12].ID, second.Items[0].ID)
	assert.Len(t, first.Items[0].Evolutions, len(seed[0].Evolutions))
	assert.ElementsMatch(t, seed[0].Tags, first.Items[0].Tags)
}

func TestStore_GetNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_AppendEvolution(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seed := repository.DefaultSeed()[:1]
	require.NoError(t, store.Seed(ctx, seed))

	before, err := store.Get(ctx, seed[0].ID)
	require.NoError(t, err)

	after, err := store.AppendEvolution(ctx, seed[0].ID, models.Evolution{
		ID:        "evo-test",
		Step:      before.NextStep(),
		Prompt:    "add rain",
		ImageURL:  "/img/x.png",
		CreatedAt: before.UpdatedAt,
	})
	require.NoError(t, err)

	require.Len(t, after.Evolutions, len(before.Evolutions)+1)
	assert.Equal(t, "evo-test", after.Evolutions[len(after.Evolutions)-1].ID)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}
