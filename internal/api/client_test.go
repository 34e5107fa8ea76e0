package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evolv/internal/api"
	"evolv/internal/models"
	"evolv/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_SubmitEvolution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/evolutions", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req models.EvolveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "A1", req.ArtworkID)
		assert.Equal(t, "add rain", req.Prompt)

		writeJSON(w, http.StatusAccepted, models.SubmitResponse{JobID: "job-1"})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL+"/api/v1/", api.WithSession(session.FromToken("tok")))
	id, err := client.SubmitEvolution(context.Background(), models.EvolveRequest{ArtworkID: "A1", Prompt: "add rain"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
}

func TestClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: "prompt must not be blank"})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL)
	_, err := client.SubmitEvolution(context.Background(), models.EvolveRequest{ArtworkID: "A1", Prompt: "x"})

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid request", apiErr.Code)
	assert.Equal(t, "prompt must not be blank", apiErr.Message)
}

func TestClient_GetArtworkNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/artworks/A1" {
			writeJSON(w, http.StatusOK, models.Artwork{ID: "A1", Title: "Neon Dreams"})
			return
		}
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "artwork not found"})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL)
	ctx := context.Background()

	art, err := client.GetArtwork(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Neon Dreams", art.Title)

	missing, err := client.GetArtwork(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClient_ListArtworks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/artworks", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "12", r.URL.Query().Get("pageSize"))
		assert.Empty(t, r.Header.Get("Authorization"), "anonymous requests carry no token")
		writeJSON(w, http.StatusOK, models.ArtworkPage{
			Items:    []models.Artwork{{ID: "A13"}},
			Page:     1,
			PageSize: 12,
			Total:    13,
			HasMore:  false,
		})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, api.WithSession(session.NewStatic()))
	p, err := client.ListArtworks(context.Background(), 1, 12)
	require.NoError(t, err)
	assert.Len(t, p.Items, 1)
	assert.Equal(t, 13, p.Total)
	assert.False(t, p.HasMore)
}

func TestClient_JobStatusAndUsers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		progress := 40
		writeJSON(w, http.StatusOK, models.JobStatus{ID: "job-1", Status: models.JobProcessing, Progress: &progress})
	})
	mux.HandleFunc("/users/user-1/artworks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Artwork{{ID: "A1"}, {ID: "A2"}})
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			writeJSON(w, http.StatusOK, models.CurrentUserResponse{})
			return
		}
		writeJSON(w, http.StatusOK, models.CurrentUserResponse{User: &models.User{ID: "user-1"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	ctx := context.Background()

	client := api.NewClient(srv.URL, api.WithSession(session.FromToken("tok")))

	st, err := client.GetJobStatus(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobProcessing, st.Status)
	assert.Equal(t, 40, *st.Progress)

	owned, err := client.ListOwnedArtworks(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	me, err := client.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", me.ID)

	anon, err := api.NewClient(srv.URL).GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, anon)
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.JobStatus{})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := api.NewClient(srv.URL).GetJobStatus(ctx, "job-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, api.IsNotFound(&api.Error{StatusCode: http.StatusNotFound}))
	assert.False(t, api.IsNotFound(&api.Error{StatusCode: http.StatusBadRequest}))
	assert.False(t, api.IsNotFound(assert.AnError))
}
