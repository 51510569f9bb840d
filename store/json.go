package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const flagTrue = "true"

// LoadJSON decodes the value under key. Missing, unreadable and corrupt
// records all yield the zero value and false; a corrupt record is removed.
func LoadJSON[T any](ctx context.Context, s Store, key string, logger *zap.Logger) (T, bool) {
	var zero T
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return zero, false
	}
	if err != nil {
		logger.Warn("Failed to read persisted record", zap.String("key", key), zap.Error(err))
		return zero, false
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		logger.Warn("Discarding corrupt persisted record", zap.String("key", key), zap.Error(err))
		if err := s.Remove(ctx, key); err != nil {
			logger.Error("Failed to clear corrupt record", zap.String("key", key), zap.Error(err))
		}
		return zero, false
	}
	return v, true
}

func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

// Flag reports whether key holds the 'true' sentinel.
func Flag(ctx context.Context, s Store, key string) (bool, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == flagTrue, nil
}

func SetFlag(ctx context.Context, s Store, key string) error {
	return s.Set(ctx, key, flagTrue)
}

// ConsumeFlag reads the sentinel under key and removes it.
func ConsumeFlag(ctx context.Context, s Store, key string) (bool, error) {
	set, err := Flag(ctx, s, key)
	if err != nil || !set {
		return false, err
	}
	return true, s.Remove(ctx, key)
}
