package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domrepo "MarketBrief/internal/domain/repository"
	"MarketBrief/pkg/cache"
	applogger "MarketBrief/pkg/logger"
)

const blobKeyPrefix = "blob:"

// CacheBlobStore implements BlobStore on top of the cache service, so the
// same store works against the in-memory backend in one-shot runs and Redis
// in serve mode.
type CacheBlobStore struct {
	cache  cache.Service
	ttl    time.Duration
	logger *applogger.Logger
}

func NewCacheBlobStore(c cache.Service, ttl time.Duration, lgr *applogger.Logger) domrepo.BlobStore {
	return &CacheBlobStore{cache: c, ttl: ttl, logger: lgr}
}

// Set stores a blob under key. Values are normalized to strings before
// hitting the cache: both backends round-trip strings unchanged, while
// arbitrary structs would come back in backend-dependent shapes.
func (s *CacheBlobStore) Set(ctx context.Context, key string, value any, contentType string) error {
	body, err := encodeBlob(value)
	if err != nil {
		return fmt.Errorf("encode blob %s: %w", key, err)
	}

	if err := s.cache.Set(ctx, blobKeyPrefix+key, body, s.ttl); err != nil {
		return fmt.Errorf("store blob %s: %w", key, err)
	}
	if err := s.cache.Set(ctx, blobKeyPrefix+key+":type", contentType, s.ttl); err != nil {
		s.logger.Warn("blob content-type store failed",
			applogger.String("key", key),
			applogger.Error(err))
	}

	s.logger.Debug("blob stored",
		applogger.String("key", key),
		applogger.String("content_type", contentType),
		applogger.Int("bytes", len(body)))
	return nil
}

func (s *CacheBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body string
	if err := s.cache.Get(ctx, blobKeyPrefix+key, &body); err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func encodeBlob(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
