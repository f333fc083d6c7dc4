package cacheclient

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/redis/go-redis/v9"
)

// Config describes the cache endpoint.
type Config struct {
	// URL is redis://[user:pass@]host:port/db or rediss:// for TLS.
	URL string `mapstructure:"url"`

	// DB overrides the database index of the URL when >= 0.
	DB int `mapstructure:"db"`

	// Username and Password override the credentials of the URL when set.
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// DecodeResponses stores values as JSON text instead of msgpack so they
	// stay readable from other clients.
	DecodeResponses bool `mapstructure:"decode_responses"`

	// DefaultTTL is the expiry applied by the cache service. Zero keeps keys
	// until they are deleted.
	DefaultTTL time.Duration `mapstructure:"default_ttl"`

	// DialTimeout bounds connection establishment. Zero uses the client
	// default.
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	// KeyPrefix namespaces every key written through the cache service.
	KeyPrefix string `mapstructure:"key_prefix"`
}

func DefaultConfig() Config {
	return Config{
		URL:             "redis://localhost:6379/0",
		DB:              -1,
		DecodeResponses: true,
		DefaultTTL:      10 * time.Minute,
		DialTimeout:     5 * time.Second,
		KeyPrefix:       "persistence",
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URL, validation.Required, validation.By(redisScheme)),
		validation.Field(&c.DB, validation.Min(-1)),
		validation.Field(&c.DefaultTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.DialTimeout, validation.Min(time.Duration(0))),
	)
}

func redisScheme(value any) error {
	raw, _ := value.(string)
	if strings.HasPrefix(raw, "redis://") || strings.HasPrefix(raw, "rediss://") || strings.HasPrefix(raw, "unix://") {
		return nil
	}
	return validation.NewError("validation_redis_scheme", "must use the redis://, rediss:// or unix:// scheme")
}

// options turns the config into go-redis client options.
func (c Config) options() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, err
	}
	if c.DB >= 0 {
		opts.DB = c.DB
	}
	if c.Username != "" {
		opts.Username = c.Username
	}
	if c.Password != "" {
		opts.Password = c.Password
	}
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}
	return opts, nil
}
