package cacheclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(addr string) Config {
	cfg := DefaultConfig()
	cfg.URL = "redis://" + addr + "/0"
	cfg.DialTimeout = 200 * time.Millisecond
	return cfg
}

func TestManager_ClientBeforeSetup(t *testing.T) {
	m := New(DefaultConfig(), nil)

	client, err := m.Client()
	assert.Nil(t, client)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NotErrorIs(t, err, ErrConnectivity)
	assert.Equal(t, StateUninitialized, m.State())
}

func TestManager_SetupReady(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	m := New(testConfig(srv.Addr()), nil)

	require.NoError(t, m.Setup(ctx))
	assert.Equal(t, StateReady, m.State())

	client, err := m.Client()
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	got, err := srv.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	assert.ErrorIs(t, m.Setup(ctx), ErrAlreadyInitialized)
	require.NoError(t, m.Close(ctx))
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	m := New(testConfig(srv.Addr()), nil)

	require.NoError(t, m.Close(ctx), "close before setup")
	assert.Equal(t, StateUninitialized, m.State())

	require.NoError(t, m.Setup(ctx))
	require.NoError(t, m.Close(ctx))
	require.NoError(t, m.Close(ctx))
	assert.Equal(t, StateClosed, m.State())

	_, err := m.Client()
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, m.Setup(ctx), ErrClosed)
}

func TestManager_UnreachableThenRecovered(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	m := New(testConfig(srv.Addr()), nil)

	srv.Close()
	err := m.Setup(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectivity)
	assert.Equal(t, StateUninitialized, m.State())

	_, err = m.Client()
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, srv.Restart())
	require.NoError(t, m.Setup(ctx))
	assert.Equal(t, StateReady, m.State())
	require.NoError(t, m.Close(ctx))
}

func TestManager_Authentication(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	srv.RequireAuth("secret")

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "missing password", password: "", wantErr: ErrAuthentication},
		{name: "wrong password", password: "nope", wantErr: ErrAuthentication},
		{name: "right password", password: "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(srv.Addr())
			cfg.Password = tt.password
			m := New(cfg, nil)

			err := m.Setup(ctx)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, StateUninitialized, m.State())
				return
			}
			require.NoError(t, err)
			require.NoError(t, m.Close(ctx))
		})
	}
}

func TestManager_DBOverride(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)

	cfg := testConfig(srv.Addr())
	cfg.DB = 3
	m := New(cfg, nil)
	require.NoError(t, m.Setup(ctx))
	defer m.Close(ctx)

	client, err := m.Client()
	require.NoError(t, err)
	assert.Equal(t, 3, client.Options().DB)
}

func TestManager_InvalidConfig(t *testing.T) {
	m := New(Config{URL: "http://localhost:6379", DB: -1}, nil)
	err := m.Setup(context.Background())
	assert.ErrorIs(t, err, ErrUnexpected)
	assert.Equal(t, StateUninitialized, m.State())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "db zero", mutate: func(c *Config) { c.DB = 0 }},
		{name: "no expiry", mutate: func(c *Config) { c.DefaultTTL = 0 }},
		{name: "default dial timeout", mutate: func(c *Config) { c.DialTimeout = 0 }},
		{name: "db below minus one", mutate: func(c *Config) { c.DB = -2 }, wantErr: true},
		{name: "negative ttl", mutate: func(c *Config) { c.DefaultTTL = -time.Second }, wantErr: true},
		{name: "negative dial timeout", mutate: func(c *Config) { c.DialTimeout = -time.Second }, wantErr: true},
		{name: "empty url", mutate: func(c *Config) { c.URL = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{name: "noauth", err: errors.New("NOAUTH Authentication required."), target: ErrAuthentication},
		{name: "wrongpass", err: errors.New("WRONGPASS invalid username-password pair"), target: ErrAuthentication},
		{name: "refused", err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, target: ErrConnectivity},
		{name: "eof", err: fmt.Errorf("read: %w", io.EOF), target: ErrConnectivity},
		{name: "deadline", err: context.DeadlineExceeded, target: ErrConnectivity},
		{name: "other", err: errors.New("ERR unknown command"), target: ErrUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.ErrorIs(t, got, tt.target)
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.NoError(t, classify(nil))
}

func TestDefaultManager(t *testing.T) {
	srv := miniredis.RunT(t)
	installed := New(testConfig(srv.Addr()), nil)

	previous := SetDefault(installed)
	t.Cleanup(func() { SetDefault(previous) })

	assert.Same(t, installed, Default())

	_, err := Default().Client()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "closed", StateClosed.String())
}
