package session

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config holds the connection pool and session behaviour options.
type Config struct {
	// URL is the store connection string, driver://[user:pass@]path-or-host/db.
	// Supported schemes are sqlite (pure Go), sqlite3 (cgo) and postgres.
	URL string `mapstructure:"url"`

	// PoolSize is the number of connections kept open in steady state.
	PoolSize int `mapstructure:"pool_size"`

	// MaxOverflow is how many extra connections may be opened under load on
	// top of PoolSize. -1 removes the upper bound.
	MaxOverflow int `mapstructure:"max_overflow"`

	// PoolPrePing validates a leased connection before handing it out.
	// Connections failing the ping are discarded and another one is drawn.
	PoolPrePing bool `mapstructure:"pool_pre_ping"`

	// Autoflush flushes staged writes before every read in a session.
	Autoflush bool `mapstructure:"autoflush"`

	// ExpireOnCommit drops the session identity map after each commit so the
	// next lookup reloads from the store.
	ExpireOnCommit bool `mapstructure:"expire_on_commit"`

	// Echo logs every statement at debug level.
	Echo bool `mapstructure:"echo"`

	// ConnMaxLifetime recycles connections older than this. Zero keeps them.
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DefaultConfig mirrors the defaults of the application settings.
func DefaultConfig() Config {
	return Config{
		URL:            "sqlite:///./data/db.sqlite3",
		PoolSize:       5,
		MaxOverflow:    10,
		PoolPrePing:    true,
		Autoflush:      false,
		ExpireOnCommit: false,
	}
}

// Validate checks the pool options and that the URL names a known driver.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URL, validation.Required, validation.By(knownScheme)),
		validation.Field(&c.PoolSize, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxOverflow, validation.Min(-1)),
		validation.Field(&c.ConnMaxLifetime, validation.Min(time.Duration(0))),
	)
}

func knownScheme(value any) error {
	raw, _ := value.(string)
	scheme, _, ok := strings.Cut(raw, "://")
	if !ok {
		return errors.New("must have the form driver://...")
	}
	if _, ok := lookupDriver(scheme); !ok {
		return ErrUnsupportedDriver
	}
	return nil
}

func (c Config) maxOpen() int {
	if c.MaxOverflow < 0 {
		return 0
	}
	return c.PoolSize + c.MaxOverflow
}

func (c Config) leaseAttempts() int {
	return c.PoolSize + max(c.MaxOverflow, 0) + 1
}
