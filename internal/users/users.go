// Package users resolves API keys to account metadata.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vita-api/internal/cache"
	"vita-api/internal/shared"

	"go.uber.org/zap"
)

func metadataKey(apiKey string) string {
	return fmt.Sprintf("v1:user:apikey:%s", apiKey)
}

type Service struct {
	readDB *sql.DB
	cache  *cache.Manager
	log    *zap.SugaredLogger
}

func NewService(readDB *sql.DB, c *cache.Manager, log *zap.SugaredLogger) *Service {
	return &Service{readDB: readDB, cache: c, log: log}
}

// GetUserMetadataFromKey resolves an API key to the owning account. Results
// are cached briefly so hot keys skip the join; the cache write is async, a
// lookup never waits on it.
func (s *Service) GetUserMetadataFromKey(ctx context.Context, apiKey string) (*shared.UserMetadata, error) {
	key := metadataKey(apiKey)
	var cached shared.UserMetadata
	if s.cache.GetJSON(ctx, key, &cached) {
		cached.APIKey = apiKey
		return &cached, nil
	}

	var meta shared.UserMetadata
	err := s.readDB.QueryRowContext(ctx, `
	SELECT user.id, user.username, user.email, user.locked, api_key.rpm
	FROM user
	INNER JOIN api_key ON api_key.user_id = user.id
	WHERE api_key.key = ?
	`, apiKey).Scan(&meta.UserID, &meta.Username, &meta.Email, &meta.Locked, &meta.RPM)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	meta.APIKey = apiKey

	go s.cache.SetJSON(context.Background(), key, &meta, shared.UserInfoCacheTTL)
	return &meta, nil
}

// InvalidateKey drops the cached metadata for one API key, used when an
// account is locked or a key revoked.
func (s *Service) InvalidateKey(ctx context.Context, apiKey string) {
	s.cache.Invalidate(ctx, metadataKey(apiKey))
}
