package cache

import (
	"fmt"
	"time"

	"github.com/goliatone/go-persistence/cacheclient"
	"github.com/goliatone/go-persistence/internal/cacheinfra"
)

// Backend selects the store behind a CacheService.
type Backend string

const (
	// BackendMemory keeps entries in process (sturdyc).
	BackendMemory Backend = "memory"
	// BackendRedis shares entries through the managed Redis client.
	BackendRedis Backend = "redis"
)

// Config exposes the cache options to consumers of the cache package. The
// sizing fields only apply to the memory backend; the Redis backend takes
// its expiry and key prefix from the cache client configuration.
type Config struct {
	Backend              Backend             `mapstructure:"backend"`
	Capacity             int                 `mapstructure:"capacity"`
	NumShards            int                 `mapstructure:"num_shards"`
	TTL                  time.Duration       `mapstructure:"ttl"`
	EvictionPercentage   int                 `mapstructure:"eviction_percentage"`
	EarlyRefresh         *EarlyRefreshConfig `mapstructure:"early_refresh"`
	MissingRecordStorage bool                `mapstructure:"missing_record_storage"`
	EvictionInterval     time.Duration       `mapstructure:"eviction_interval"`
}

// EarlyRefreshConfig mirrors the sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `mapstructure:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `mapstructure:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `mapstructure:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
}

// DefaultConfig returns the memory backend with its default sizing. Early
// refresh is off: it re-runs fetch functions in the background, after the
// session they capture may have been closed.
func DefaultConfig() Config {
	cfg := convertFromInternal(cacheinfra.DefaultConfig())
	cfg.Backend = BackendMemory
	cfg.EarlyRefresh = nil
	return cfg
}

// Validate checks the backend name and, for the memory backend, its sizing.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, "":
		return c.toInternal().Validate()
	case BackendRedis:
		return nil
	default:
		return &cacheinfra.ConfigError{Field: "Backend", Message: fmt.Sprintf("unknown backend %q", c.Backend)}
	}
}

// NewCacheService builds the in-process store described by cfg.
func NewCacheService(cfg Config) (CacheService, error) {
	service, err := cacheinfra.NewSturdycService(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return service, nil
}

// NewRedisCacheService builds a store on the client owned by m. The client
// is looked up on every call, so the service may be created before Setup;
// until then calls fail with cacheclient.ErrNotInitialized.
func NewRedisCacheService(m *cacheclient.Manager) (CacheService, error) {
	if m == nil {
		return nil, &cacheinfra.ConfigError{Field: "manager", Message: "cannot be nil"}
	}
	cc := m.Config()
	service, err := cacheinfra.NewRedisService(m, cacheinfra.RedisConfig{
		Prefix: cc.KeyPrefix,
		TTL:    cc.DefaultTTL,
		JSON:   cc.DecodeResponses,
		Logger: m.Logger(),
	})
	if err != nil {
		return nil, err
	}
	return service, nil
}

// New builds the store selected by cfg.Backend. m is only used by the Redis
// backend.
func New(cfg Config, m *cacheclient.Manager) (CacheService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == BackendRedis {
		return NewRedisCacheService(m)
	}
	return NewCacheService(cfg)
}

func (c Config) toInternal() cacheinfra.Config {
	var early *cacheinfra.EarlyRefreshConfig
	if c.EarlyRefresh != nil {
		early = &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: c.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     c.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      c.EarlyRefresh.RetryBaseDelay,
		}
	}

	return cacheinfra.Config{
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		TTL:                  c.TTL,
		EvictionPercentage:   c.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	var early *EarlyRefreshConfig
	if cfg.EarlyRefresh != nil {
		early = &EarlyRefreshConfig{
			MinAsyncRefreshTime: cfg.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: cfg.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     cfg.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      cfg.EarlyRefresh.RetryBaseDelay,
		}
	}

	return Config{
		Capacity:             cfg.Capacity,
		NumShards:            cfg.NumShards,
		TTL:                  cfg.TTL,
		EvictionPercentage:   cfg.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: cfg.MissingRecordStorage,
		EvictionInterval:     cfg.EvictionInterval,
	}
}
