package supabase

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	storage "github.com/supabase-community/storage-go"

	"evolv/internal/jobs"
	"evolv/internal/placeholder"
)

const resultSize = 512

type uploadFunc func(storagePath string, data []byte, contentType string) error

// ResultStore renders job results and uploads them to a public bucket.
type ResultStore struct {
	upload  uploadFunc
	bucket  string
	baseURL string
}

func NewResultStore(supabaseURL, serviceKey, bucket string) *ResultStore {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceKey, nil)

	return &ResultStore{
		bucket:  bucket,
		baseURL: baseURL,
		upload: func(storagePath string, data []byte, contentType string) error {
			upsert := true
			_, err := client.UploadFile(bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
				ContentType: &contentType,
				Upsert:      &upsert,
			})
			return err
		},
	}
}

// SaveResult renders the job's image, stores it under
// artworks/{artwork_id}/{job_id}.png and returns its public URL.
func (s *ResultStore) SaveResult(ctx context.Context, job jobs.Job) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := placeholder.PNG(resultSize, resultSize, jobs.ResultText(job))
	if err != nil {
		return "", err
	}

	storagePath := fmt.Sprintf("artworks/%s/%s.png", job.ArtworkID, job.ID)
	if err := s.upload(storagePath, data, placeholder.ContentType); err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"bucket": s.bucket,
		"path":   storagePath,
		"bytes":  len(data),
	}).Debug("Uploaded evolution result")

	return s.PublicURL(storagePath), nil
}

func (s *ResultStore) PublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, storagePath)
}
