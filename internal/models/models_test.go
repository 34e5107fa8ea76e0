package models_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evolv/internal/models"
)

func sampleArtwork() *models.Artwork {
	steps, guidance := 40, 9.0
	return &models.Artwork{
		ID:        "A1",
		Title:     "Neon Dreams",
		Tags:      []string{"neon", "city"},
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Evolutions: []models.Evolution{
			{ID: "evo-1", Step: 1, Prompt: "base", Params: &models.EvolutionParams{Steps: &steps, GuidanceScale: &guidance}},
			{ID: "evo-2", Step: 2, Prompt: "add rain"},
		},
	}
}

func TestArtworkClone_IsDeep(t *testing.T) {
	orig := sampleArtwork()
	clone := orig.Clone()
	require.True(t, cmp.Equal(orig, clone))

	clone.Tags[0] = "changed"
	clone.Evolutions[0].Prompt = "changed"
	*clone.Evolutions[0].Params.Steps = 99
	clone.Evolutions = append(clone.Evolutions, models.Evolution{ID: "evo-3"})

	assert.Equal(t, "neon", orig.Tags[0])
	assert.Equal(t, "base", orig.Evolutions[0].Prompt)
	assert.Equal(t, 40, *orig.Evolutions[0].Params.Steps)
	assert.Len(t, orig.Evolutions, 2)

	var nilArt *models.Artwork
	assert.Nil(t, nilArt.Clone())
}

func TestArtwork_NextStepIgnoresPending(t *testing.T) {
	art := sampleArtwork()
	assert.Equal(t, 3, art.NextStep())

	art.Evolutions = append(art.Evolutions, models.Evolution{ID: models.PendingIDPrefix + "x", Step: 3})
	assert.True(t, art.Evolutions[2].IsPending())
	assert.False(t, art.Evolutions[1].IsPending())
	assert.Equal(t, 2, art.ConfirmedEvolutions())
	assert.Equal(t, 3, art.NextStep())

	assert.Equal(t, 1, (&models.Artwork{}).NextStep())
}

func TestEvolveRequest_Normalize(t *testing.T) {
	seed := int64(7)
	req := models.EvolveRequest{
		ArtworkID: " A1 ",
		Prompt:    "\tadd rain  ",
		Params:    &models.EvolutionParams{Seed: &seed},
	}

	got := req.Normalize()
	assert.Equal(t, "A1", got.ArtworkID)
	assert.Equal(t, "add rain", got.Prompt)
	require.NotNil(t, got.Params)
	assert.NotSame(t, req.Params, got.Params)
	assert.Equal(t, int64(7), *got.Params.Seed)

	assert.Nil(t, models.EvolveRequest{Prompt: "x"}.Normalize().Params)
}

func TestJobState_Terminal(t *testing.T) {
	assert.False(t, models.JobPending.Terminal())
	assert.False(t, models.JobProcessing.Terminal())
	assert.True(t, models.JobDone.Terminal())
	assert.True(t, models.JobFailed.Terminal())
}

func TestUserFromMetadata(t *testing.T) {
	email := models.UserFromMetadata("u1", "ada@evolv.dev", map[string]interface{}{"name": "Ada"})
	assert.Equal(t, models.User{ID: "u1", Email: "ada@evolv.dev", Name: "Ada"}, email)

	github := models.UserFromMetadata("u2", "gh@evolv.dev", map[string]interface{}{
		"full_name":  "Grace Hopper",
		"user_name":  "grace",
		"avatar_url": "https://avatars.example/grace.png",
	})
	assert.Equal(t, "Grace Hopper", github.Name)
	assert.Equal(t, "grace", github.Username)
	assert.Equal(t, "https://avatars.example/grace.png", github.AvatarURL)

	google := models.UserFromMetadata("u3", "g@evolv.dev", map[string]interface{}{
		"name":               "",
		"full_name":          "Alan Turing",
		"preferred_username": "alan",
		"picture":            "https://avatars.example/alan.png",
		"avatar_url":         42,
	})
	assert.Equal(t, "Alan Turing", google.Name, "empty values fall through")
	assert.Equal(t, "alan", google.Username)
	assert.Equal(t, "https://avatars.example/alan.png", google.AvatarURL, "non-string values are skipped")

	assert.Equal(t, models.User{ID: "u4"}, models.UserFromMetadata("u4", "", nil))
}
