package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"evolv/internal/api"
	"evolv/internal/config"
	"evolv/internal/querycache"
	"evolv/internal/session"
	"evolv/internal/supabase"
)

// app is what every command works against.
type app struct {
	cfg     *config.ClientConfig
	session session.Provider
	client  *api.Client
	cache   *querycache.Cache
	log     *logrus.Entry
}

func loadApp() (*app, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.WarnLevel
	}
	logrus.SetLevel(level)

	provider, err := newSessionProvider(cfg)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, provider), nil
}

func newApp(cfg *config.ClientConfig, provider session.Provider) *app {
	return &app{
		cfg:     cfg,
		session: provider,
		client:  api.NewClient(cfg.APIBaseURL, api.WithSession(provider)),
		cache:   querycache.New(),
		log:     logrus.WithField("component", "cli"),
	}
}

// newSessionProvider prefers an explicit EVOLV_TOKEN, then Supabase Auth
// with a persisted session, then an anonymous session.
func newSessionProvider(cfg *config.ClientConfig) (session.Provider, error) {
	if cfg.AccessToken != "" {
		return session.FromToken(cfg.AccessToken), nil
	}
	if cfg.SupabaseURL == "" || cfg.SupabasePublishableKey == "" {
		return session.NewStatic(), nil
	}

	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabasePublishableKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Supabase client: %w", err)
	}
	auth := supabase.NewAuth(client)

	if cfg.SessionFile != "" {
		saved, err := session.LoadFile(cfg.SessionFile)
		if err != nil {
			logrus.WithError(err).Warn("Ignoring unreadable session file")
		} else if saved != nil {
			auth.Restore(saved)
		}
		session.Persist(auth, cfg.SessionFile)
	}
	return auth, nil
}
