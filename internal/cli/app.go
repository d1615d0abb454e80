package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fmuoria/recruit-crm/internal/agent"
	"github.com/fmuoria/recruit-crm/internal/cache"
	"github.com/fmuoria/recruit-crm/internal/config"
	"github.com/fmuoria/recruit-crm/internal/ingestion"
	"github.com/fmuoria/recruit-crm/internal/llm"
	"github.com/fmuoria/recruit-crm/internal/mapping"
	"github.com/fmuoria/recruit-crm/internal/notify"
	"github.com/fmuoria/recruit-crm/internal/scoring"
	"github.com/fmuoria/recruit-crm/internal/storage"
	"github.com/rs/zerolog"
)

// app is the wired service shared by serve and the one-shot commands
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	db     *sql.DB
	repo   *storage.CandidateRepository
	memory *storage.MappingMemory
	agent  *agent.ImportAgent

	closers []func() error
}

// openDB connects to the configured database and applies the schema
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db, cfg.Database.Driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	cfg.ApplyToEnv()

	if a.db, err = openDB(ctx, cfg); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.db.Close)

	driver := cfg.Database.Driver
	a.repo = storage.NewCandidateRepository(a.db, driver)
	a.memory = storage.NewMappingMemory(a.db, driver, cfg.Memory.InitialConfidence, cfg.Memory.ConfidenceStep)

	norm, err := mapping.NewNormalizer(cfg.Mapping.NormalizeCacheSize)
	if err != nil {
		return nil, err
	}
	scorer, err := a.scorer(ctx)
	if err != nil {
		return nil, err
	}
	resolver, err := mapping.NewResolver(norm, a.memory, scorer, cfg.Mapping.Precedence, log)
	if err != nil {
		return nil, err
	}

	sessionCache, err := a.sessionCache(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, sessionCache.Close)
	sessions := ingestion.NewSessionStore(ingestion.NewFileHandler(cfg.Uploads.Dir), sessionCache, cfg.Uploads.SessionTTL, log)

	notifier, err := notify.New(ctx, notify.Options{
		Driver:               cfg.Notify.Driver,
		From:                 cfg.Notify.Sender,
		MaxRetries:           cfg.Notify.MaxRetries,
		GmailCredentialsFile: cfg.Notify.GmailCredentialsFile,
		GmailTokenFile:       cfg.Notify.GmailTokenFile,
		SESRegion:            cfg.Notify.SESRegion,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up notifications: %w", err)
	}

	a.agent, err = agent.NewImportAgent(agent.Options{
		Sessions:   sessions,
		Resolver:   resolver,
		Memory:     a.memory,
		Candidates: a.repo,
		Notifier:   notifier,
		Recipients: cfg.Notify.Recipients,
		Log:        log,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// scorer picks the similarity stage: Gemini backed by fuzzy, or fuzzy alone
func (a *app) scorer(ctx context.Context) (scoring.Scorer, error) {
	fuzzy := scoring.NewFuzzyScorer()
	if a.cfg.Mapping.Scorer != "vertex" {
		return fuzzy, nil
	}

	v := a.cfg.Vertex
	client, err := llm.NewVertexAIClient(ctx, v.Project, v.Location, v.Model)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	a.log.Info().Str("project", v.Project).Str("model", v.Model).Msg("semantic header scoring enabled")
	return scoring.WithFallback(scoring.NewSemanticScorer(client), fuzzy, a.log), nil
}

func (a *app) sessionCache(ctx context.Context) (cache.Client, error) {
	u := a.cfg.Uploads
	if u.CacheDriver == "redis" {
		return cache.NewRedisClient(ctx, cache.RedisConfig{URL: u.RedisURL})
	}
	return cache.NewMemoryClient(u.CacheSize, u.SessionTTL), nil
}

// sweep expires old uploads every interval until ctx is done
func (a *app) sweep(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.agent.Sweep(ctx)
			if err != nil {
				a.log.Warn().Err(err).Msg("upload sweep failed")
				continue
			}
			if n > 0 {
				a.log.Info().Int("removed", n).Msg("expired uploads removed")
			}
		}
	}
}

// Close releases everything newApp opened, newest first
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
