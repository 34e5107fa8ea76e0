// Package api is the HTTP client for the evolv backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"evolv/internal/models"
	"evolv/internal/session"
)

const defaultTimeout = 30 * time.Second

// Error is a non-2xx answer from the backend.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Code)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL    string
	auth       session.Provider
	httpClient *http.Client
	log        *logrus.Entry
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSession attaches the caller's bearer token to every request.
func WithSession(p session.Provider) Option {
	return func(c *Client) { c.auth = p }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		log: logrus.WithField("component", "api_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SubmitEvolution(ctx context.Context, req models.EvolveRequest) (string, error) {
	var resp models.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/evolutions", req, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("jobId is empty in response")
	}
	return resp.JobID, nil
}

func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*models.JobStatus, error) {
	var status models.JobStatus
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) ListArtworks(ctx context.Context, page, pageSize int) (*models.ArtworkPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	var p models.ArtworkPage
	if err := c.do(ctx, http.MethodGet, "/artworks?"+q.Encode(), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetArtwork returns nil, nil when the artwork does not exist.
func (c *Client) GetArtwork(ctx context.Context, id string) (*models.Artwork, error) {
	var art models.Artwork
	if err := c.do(ctx, http.MethodGet, "/artworks/"+url.PathEscape(id), nil, &art); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &art, nil
}

func (c *Client) ListOwnedArtworks(ctx context.Context, userID string) ([]models.Artwork, error) {
	var items []models.Artwork
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/artworks", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetCurrentUser returns nil, nil for an anonymous caller.
func (c *Client) GetCurrentUser(ctx context.Context) (*models.User, error) {
	var resp models.CurrentUserResponse
	if err := c.do(ctx, http.MethodGet, "/me", nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := session.AccessToken(ctx, c.auth)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	}).Debug("API request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var errResp models.ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			apiErr.Code = errResp.Error
			apiErr.Message = errResp.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(data))
	}
	return nil
}
