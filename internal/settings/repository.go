package settings

import (
	"context"
	"time"

	"eduoj/internal/common/cache"
	"eduoj/internal/common/db"
	appErr "eduoj/pkg/errors"
)

// Schema is the settings DDL, executed by the restore flow.
const Schema = `
CREATE TABLE IF NOT EXISTS system_settings (
    id    BIGSERIAL PRIMARY KEY,
    name  TEXT NOT NULL UNIQUE,
    value TEXT NOT NULL
)`

// ConfigSettingName is the setting that holds the problem configuration
// document, roster included.
const ConfigSettingName = "config"

const (
	defaultSettingTTL      = 5 * time.Minute
	defaultSettingEmptyTTL = 30 * time.Second

	settingCachePrefix = "setting:"
)

// Repository reads and writes named settings with a cache in front of the
// database. A read of an absent setting yields SettingNotFound.
type Repository interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
}

type PostgresRepository struct {
	dbProvider db.Provider
	cache      cache.Cache
	ttl        time.Duration
	emptyTTL   time.Duration
}

// NewRepository creates a settings repository over the given provider and
// cache.
func NewRepository(provider db.Provider, cacheClient cache.Cache) Repository {
	return NewRepositoryWithTTL(provider, cacheClient, defaultSettingTTL, defaultSettingEmptyTTL)
}

// NewRepositoryWithTTL creates a settings repository with explicit cache
// lifetimes.
func NewRepositoryWithTTL(provider db.Provider, cacheClient cache.Cache, ttl, emptyTTL time.Duration) Repository {
	if ttl <= 0 {
		ttl = defaultSettingTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultSettingEmptyTTL
	}
	return &PostgresRepository{
		dbProvider: provider,
		cache:      cacheClient,
		ttl:        ttl,
		emptyTTL:   emptyTTL,
	}
}

func (r *PostgresRepository) Get(ctx context.Context, name string) (string, error) {
	value, err := cache.GetWithCached(ctx, r.cache, settingCachePrefix+name,
		cache.JitterTTL(r.ttl), r.emptyTTL,
		func(v string) bool { return v == "" },
		func(v string) string { return v },
		func(v string) (string, error) { return v, nil },
		func(ctx context.Context) (string, error) {
			return r.fetch(ctx, name)
		},
	)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", appErr.Newf(appErr.SettingNotFound, "setting %q not found", name)
	}
	return value, nil
}

func (r *PostgresRepository) fetch(ctx context.Context, name string) (string, error) {
	database, err := db.CurrentDatabase(r.dbProvider)
	if err != nil {
		return "", appErr.Wrap(err, appErr.SettingsReadFailed)
	}
	var value string
	row := database.QueryRow(ctx, "SELECT value FROM system_settings WHERE name = $1", name)
	if err := row.Scan(&value); err != nil {
		if db.IsNoRows(err) {
			// Absence is cached as the null sentinel by the caller.
			return "", nil
		}
		return "", appErr.Wrapf(err, appErr.SettingsReadFailed, "read setting %q failed", name)
	}
	return value, nil
}

func (r *PostgresRepository) Set(ctx context.Context, name, value string) error {
	return cache.UpdateCached(ctx, r.cache, settingCachePrefix+name, func(ctx context.Context) error {
		database, err := db.CurrentDatabase(r.dbProvider)
		if err != nil {
			return appErr.Wrap(err, appErr.SettingsWriteFailed)
		}
		query := `
			INSERT INTO system_settings (name, value)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`
		if _, err := database.Exec(ctx, query, name, value); err != nil {
			return appErr.Wrapf(err, appErr.SettingsWriteFailed, "write setting %q failed", name)
		}
		return nil
	})
}

func (r *PostgresRepository) Delete(ctx context.Context, name string) error {
	return cache.UpdateCached(ctx, r.cache, settingCachePrefix+name, func(ctx context.Context) error {
		database, err := db.CurrentDatabase(r.dbProvider)
		if err != nil {
			return appErr.Wrap(err, appErr.SettingsWriteFailed)
		}
		if _, err := database.Exec(ctx, "DELETE FROM system_settings WHERE name = $1", name); err != nil {
			return appErr.Wrapf(err, appErr.SettingsWriteFailed, "delete setting %q failed", name)
		}
		return nil
	})
}
