package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fmuoria/recruit-crm/internal/cache"
	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrSessionExpired means the upload id no longer resolves to data
var ErrSessionExpired = errors.New("upload session expired, please re-upload the file")

// DefaultSessionTTL is how long an upload stays resolvable
const DefaultSessionTTL = 2 * time.Hour

// SessionStore keeps uploads between parse, validate and commit. The CSV
// mirror on disk is authoritative; the cache only saves re-reading it.
type SessionStore struct {
	files *FileHandler
	cache cache.Client
	ttl   time.Duration
	log   zerolog.Logger
	now   func() time.Time
}

// NewSessionStore wires the mirror directory and the cache together
func NewSessionStore(files *FileHandler, c cache.Client, ttl time.Duration, log zerolog.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if c == nil {
		c = cache.NewMemoryClient(0, ttl)
	}
	return &SessionStore{files: files, cache: c, ttl: ttl, log: log, now: time.Now}
}

// Create stores a parsed table under a fresh upload id
func (s *SessionStore) Create(ctx context.Context, table *models.Table) (*models.UploadSession, error) {
	sess := &models.UploadSession{
		ID:        uuid.NewString(),
		Headers:   table.Headers,
		Rows:      table.Rows,
		CreatedAt: s.now(),
	}
	if _, err := s.files.SaveMirror(sess.ID, table); err != nil {
		return nil, fmt.Errorf("failed to persist upload: %w", err)
	}
	s.remember(ctx, sess)
	return sess, nil
}

// Get resolves an upload id, falling back to the mirror on a cache miss
func (s *SessionStore) Get(ctx context.Context, id string) (*models.UploadSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionExpired
	}

	if b, err := s.cache.Get(ctx, id); err == nil {
		var sess models.UploadSession
		if err := json.Unmarshal(b, &sess); err == nil {
			return &sess, nil
		}
		s.log.Warn().Str("upload_id", id).Msg("discarding unreadable cached upload")
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn().Err(err).Str("upload_id", id).Msg("upload cache lookup failed")
	}

	table, written, err := s.files.LoadMirror(id)
	if errors.Is(err, ErrMirrorNotFound) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	if s.now().Sub(written) > s.ttl {
		if err := s.files.RemoveMirror(id); err != nil {
			s.log.Warn().Err(err).Str("upload_id", id).Msg("failed to remove expired upload")
		}
		return nil, ErrSessionExpired
	}

	sess := &models.UploadSession{ID: id, Headers: table.Headers, Rows: table.Rows, CreatedAt: written}
	s.remember(ctx, sess)
	return sess, nil
}

func (s *SessionStore) remember(ctx context.Context, sess *models.UploadSession) {
	b, err := json.Marshal(sess)
	if err != nil {
		s.log.Warn().Err(err).Str("upload_id", sess.ID).Msg("failed to encode upload for cache")
		return
	}
	if err := s.cache.Set(ctx, sess.ID, b, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("upload_id", sess.ID).Msg("failed to cache upload")
	}
}

// List returns the ids of uploads still on disk
func (s *SessionStore) List(_ context.Context) ([]string, error) {
	return s.files.ListMirrors()
}

// Delete forgets an upload
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrSessionExpired
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("upload_id", id).Msg("failed to evict upload from cache")
	}
	return s.files.RemoveMirror(id)
}

// Sweep removes uploads older than the TTL and reports how many went
func (s *SessionStore) Sweep(ctx context.Context) (int, error) {
	ids, err := s.files.MirrorsOlderThan(s.now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := s.cache.Delete(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("upload_id", id).Msg("failed to evict upload from cache")
		}
		if err := s.files.RemoveMirror(id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Close releases the cache
func (s *SessionStore) Close() error {
	return s.cache.Close()
}
