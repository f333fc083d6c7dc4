package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-persistence/cacheclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func useTempStore(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("PERSISTENCE_DATABASE_URL", "sqlite:///"+filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("PERSISTENCE_LOG_LEVEL", "error")
}

func TestMigrate(t *testing.T) {
	useTempStore(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "ready")
}

func TestDemo(t *testing.T) {
	useTempStore(t)

	out, err := execute(t, "demo")
	require.NoError(t, err)
	assert.Equal(t, "user: hi\nassistant: hello\n", out)

	// A second run reuses the user and starts a new conversation.
	out, err = execute(t, "demo", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, "assistant: hello\n", out)
}

func TestCachePing(t *testing.T) {
	useTempStore(t)
	srv := miniredis.RunT(t)
	t.Setenv("PERSISTENCE_CACHE_URL", "redis://"+srv.Addr()+"/0")

	out, err := execute(t, "cache", "ping")
	require.NoError(t, err)
	assert.Equal(t, "cache ready\n", out)
}

func TestCachePing_Unreachable(t *testing.T) {
	useTempStore(t)
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()
	t.Setenv("PERSISTENCE_CACHE_URL", "redis://"+addr+"/0")

	_, err := execute(t, "cache", "ping")
	assert.ErrorIs(t, err, cacheclient.ErrConnectivity)
}

func TestMissingConfigFile(t *testing.T) {
	useTempStore(t)

	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "migrate")
	assert.Error(t, err)
}
