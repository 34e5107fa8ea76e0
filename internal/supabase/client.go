package supabase

import (
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
)

// Client is the project handle shared by the auth provider.
type Client struct {
	Supabase *supabase.Client
	URL      string
}

func NewClient(supabaseURL, publishableKey string) (*Client, error) {
	if supabaseURL == "" || publishableKey == "" {
		return nil, fmt.Errorf("supabase url and publishable key are required")
	}
	baseURL := strings.TrimSuffix(supabaseURL, "/")

	client, err := supabase.NewClient(baseURL, publishableKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		Supabase: client,
		URL:      baseURL,
	}, nil
}
