// Package config loads the settings of the persistence layer from a YAML
// file and PERSISTENCE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-persistence/cache"
	"github.com/goliatone/go-persistence/cacheclient"
	"github.com/goliatone/go-persistence/internal/logging"
	"github.com/goliatone/go-persistence/session"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is prepended to every environment override. Nested keys
	// use underscores, so database.url is PERSISTENCE_DATABASE_URL.
	EnvPrefix = "PERSISTENCE"

	configName = "persistence"
	configType = "yaml"
)

// Config groups the settings of every component.
type Config struct {
	Database    session.Config     `mapstructure:"database"`
	Cache       cacheclient.Config `mapstructure:"cache"`
	MemoryCache cache.Config       `mapstructure:"memory_cache"`
	Log         logging.Config     `mapstructure:"log"`
}

// Default returns the settings used when neither a file nor the
// environment provides a value.
func Default() Config {
	return Config{
		Database:    session.DefaultConfig(),
		Cache:       cacheclient.DefaultConfig(),
		MemoryCache: cache.DefaultConfig(),
		Log:         logging.DefaultConfig(),
	}
}

// Validate checks every section and reports the first one that fails.
func (c Config) Validate() error {
	sections := []struct {
		name string
		fn   func() error
	}{
		{"database", c.Database.Validate},
		{"cache", c.Cache.Validate},
		{"memory_cache", c.MemoryCache.Validate},
		{"log", c.Log.Validate},
	}
	for _, section := range sections {
		if err := section.fn(); err != nil {
			return fmt.Errorf("config %s: %w", section.name, err)
		}
	}
	return nil
}

// Load reads the settings. When path is empty persistence.yaml is looked up
// in the working directory and ./config, and a missing file is not an
// error. An explicit path must exist. Environment variables win over the
// file.
func Load(path string) (Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType(configType)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())
	return v
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	db := d.Database
	v.SetDefault("database.url", db.URL)
	v.SetDefault("database.pool_size", db.PoolSize)
	v.SetDefault("database.max_overflow", db.MaxOverflow)
	v.SetDefault("database.pool_pre_ping", db.PoolPrePing)
	v.SetDefault("database.autoflush", db.Autoflush)
	v.SetDefault("database.expire_on_commit", db.ExpireOnCommit)
	v.SetDefault("database.echo", db.Echo)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)

	cc := d.Cache
	v.SetDefault("cache.url", cc.URL)
	v.SetDefault("cache.db", cc.DB)
	v.SetDefault("cache.username", cc.Username)
	v.SetDefault("cache.password", cc.Password)
	v.SetDefault("cache.decode_responses", cc.DecodeResponses)
	v.SetDefault("cache.default_ttl", cc.DefaultTTL)
	v.SetDefault("cache.dial_timeout", cc.DialTimeout)
	v.SetDefault("cache.key_prefix", cc.KeyPrefix)

	mc := d.MemoryCache
	v.SetDefault("memory_cache.backend", string(mc.Backend))
	v.SetDefault("memory_cache.capacity", mc.Capacity)
	v.SetDefault("memory_cache.num_shards", mc.NumShards)
	v.SetDefault("memory_cache.ttl", mc.TTL)
	v.SetDefault("memory_cache.eviction_percentage", mc.EvictionPercentage)
	v.SetDefault("memory_cache.missing_record_storage", mc.MissingRecordStorage)
	v.SetDefault("memory_cache.eviction_interval", mc.EvictionInterval)
	if er := mc.EarlyRefresh; er != nil {
		v.SetDefault("memory_cache.early_refresh.min_async_refresh_time", er.MinAsyncRefreshTime)
		v.SetDefault("memory_cache.early_refresh.max_async_refresh_time", er.MaxAsyncRefreshTime)
		v.SetDefault("memory_cache.early_refresh.sync_refresh_time", er.SyncRefreshTime)
		v.SetDefault("memory_cache.early_refresh.retry_base_delay", er.RetryBaseDelay)
	}

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
