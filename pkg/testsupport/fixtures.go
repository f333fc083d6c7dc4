package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-persistence/cacheclient"
	"github.com/goliatone/go-persistence/entity"
	"github.com/goliatone/go-persistence/session"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t *testing.T, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// NewFactory returns a session factory over a fresh sqlite file in a test
// temp dir with the schema already created. It is closed on cleanup.
func NewFactory(t *testing.T, mutate ...func(*session.Config)) *session.Factory {
	t.Helper()

	cfg := session.DefaultConfig()
	cfg.URL = "sqlite:///" + filepath.Join(t.TempDir(), "test.db")
	for _, fn := range mutate {
		fn(&cfg)
	}

	ctx := context.Background()
	f, err := session.NewFactory(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("failed to open session factory: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })

	if err := f.CreateSchema(ctx); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return f
}

// OpenSession opens a session that is closed on cleanup.
func OpenSession(t *testing.T, f *session.Factory) *session.Session {
	t.Helper()

	s, err := f.Open(context.Background())
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Seed is the JSON layout of a conversation fixture.
type Seed struct {
	Users []struct {
		ExternalID int64   `json:"external_id"`
		FirstName  string  `json:"first_name"`
		Username   *string `json:"username"`
	} `json:"users"`
	Messages []struct {
		ExternalID int64     `json:"external_id"`
		SessionID  string    `json:"session_id"`
		Role       string    `json:"role"`
		Content    string    `json:"content"`
		SentAt     time.Time `json:"sent_at"`
	} `json:"messages"`
}

// SeedFixture loads a Seed from path and stores it in one transaction.
// Messages reference their user by external id. The stored users are
// returned keyed by external id.
func SeedFixture(t *testing.T, f *session.Factory, path string) map[int64]*entity.User {
	t.Helper()

	var seed Seed
	LoadFixtureJSON(t, path, &seed)

	ctx := context.Background()
	s := OpenSession(t, f)

	users := make(map[int64]*entity.User, len(seed.Users))
	for _, u := range seed.Users {
		user := &entity.User{ExternalID: u.ExternalID, FirstName: u.FirstName, Username: u.Username}
		users[u.ExternalID] = user
		if err := s.Add(user); err != nil {
			t.Fatalf("failed to stage user %d: %v", u.ExternalID, err)
		}
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("failed to seed users: %v", err)
	}

	for _, m := range seed.Messages {
		owner, ok := users[m.ExternalID]
		if !ok {
			t.Fatalf("fixture message references unknown user %d", m.ExternalID)
		}
		msg := &entity.Message{
			UserID:    owner.ID,
			SessionID: m.SessionID,
			Role:      m.Role,
			Content:   m.Content,
			SentAt:    m.SentAt.UTC(),
		}
		if err := s.Add(msg); err != nil {
			t.Fatalf("failed to stage message: %v", err)
		}
	}
	if err := s.Commit(ctx); err != nil {
		t.Fatalf("failed to seed messages: %v", err)
	}

	return users
}

// NewRedis starts an in-memory Redis server and returns a cache manager
// that has been set up against it. Both are closed on cleanup.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *cacheclient.Manager) {
	t.Helper()

	srv := miniredis.RunT(t)
	cfg := cacheclient.DefaultConfig()
	cfg.URL = "redis://" + srv.Addr() + "/0"
	cfg.DefaultTTL = time.Minute

	ctx := context.Background()
	m := cacheclient.New(cfg, nil)
	if err := m.Setup(ctx); err != nil {
		t.Fatalf("failed to set up cache client: %v", err)
	}
	t.Cleanup(func() { _ = m.Close(ctx) })
	return srv, m
}
