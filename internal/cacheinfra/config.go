package cacheinfra

import (
	"errors"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"
)

// Config holds the options of the in-process sturdyc store.
type Config struct {
	// Capacity is the maximum number of entries. Must be greater than 0.
	Capacity int

	// NumShards splits the store to reduce lock contention. Must be
	// greater than 0.
	NumShards int

	// TTL is how long an entry is served before it is fetched again.
	TTL time.Duration

	// EvictionPercentage is the share of entries dropped when the store is
	// full, between 1 and 100.
	EvictionPercentage int

	// EarlyRefresh refreshes hot entries in the background before they
	// expire. Nil disables it.
	EarlyRefresh *EarlyRefreshConfig

	// MissingRecordStorage remembers lookups that found nothing.
	MissingRecordStorage bool

	// EvictionInterval is how often expired entries are swept. Zero uses
	// the sturdyc default.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig mirrors the sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
		EarlyRefresh: &EarlyRefreshConfig{
			MinAsyncRefreshTime: 10 * time.Second,
			MaxAsyncRefreshTime: 20 * time.Second,
			SyncRefreshTime:     30 * time.Second,
			RetryBaseDelay:      100 * time.Millisecond,
		},
		MissingRecordStorage: true,
	}
}

// ToSturdycOptions returns the optional sturdyc settings. Capacity, shards,
// TTL and eviction percentage are constructor arguments and are not part of
// the result.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}
	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate reports the first invalid field as a *ConfigError.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Nanosecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
	)
	if err != nil {
		return toConfigError(err)
	}

	if r := c.EarlyRefresh; r != nil {
		err := validation.ValidateStruct(r,
			validation.Field(&r.MinAsyncRefreshTime, validation.Min(time.Duration(0))),
			validation.Field(&r.MaxAsyncRefreshTime, validation.Min(time.Duration(0))),
			validation.Field(&r.SyncRefreshTime, validation.Min(time.Duration(0))),
			validation.Field(&r.RetryBaseDelay, validation.Min(time.Duration(0))),
		)
		if err != nil {
			ce := toConfigError(err)
			ce.Field = "EarlyRefresh." + ce.Field
			return ce
		}
	}

	return nil
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// toConfigError picks the first field, in name order, out of an ozzo
// validation result.
func toConfigError(err error) *ConfigError {
	var fields validation.Errors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return &ConfigError{Field: "config", Message: err.Error()}
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return &ConfigError{Field: names[0], Message: fields[names[0]].Error()}
}
