package di

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/goliatone/go-persistence/dao"
	"github.com/goliatone/go-persistence/session"
)

func seedUsers(t testing.TB, container *Container, n int) {
	t.Helper()
	ctx := context.Background()

	s, err := container.Factory().Open(ctx)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	for i := 1; i <= n; i++ {
		if _, err := container.Users().Create(ctx, s, int64(i), fmt.Sprintf("User %d", i), nil); err != nil {
			t.Fatalf("Create(%d) failed: %v", i, err)
		}
	}
}

// TestConcurrentAccess runs cached lookups from many goroutines, each with
// its own session.
func TestConcurrentAccess(t *testing.T) {
	container := newTestContainer(t, testConfig(t))
	seedUsers(t, container, 20)

	ctx := context.Background()
	const workers = 10
	const lookups = 40

	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			errs <- session.Scope(ctx, container.Factory(), func(ctx context.Context, s *session.Session) error {
				for i := 0; i < lookups; i++ {
					externalID := int64((worker+i)%20 + 1)
					found, err := container.Users().FindByExternalID(ctx, s, externalID)
					if err != nil {
						return err
					}
					user, ok := found.Get()
					if !ok {
						return fmt.Errorf("user %d not found", externalID)
					}
					if user.ExternalID != externalID {
						return fmt.Errorf("expected external id %d, got %d", externalID, user.ExternalID)
					}
				}
				return nil
			})
		}(w)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("worker failed: %v", err)
		}
	}

	if tracked := container.Users().Tracked(); tracked != 20 {
		t.Errorf("Expected 20 tracked keys, got %d", tracked)
	}
}

// TestConversationFlow stores a user and two messages and reads the
// conversation back through the container.
func TestConversationFlow(t *testing.T) {
	container := newTestContainer(t, testConfig(t))
	ctx := context.Background()

	contents, err := session.Run(ctx, container.Factory(), func(ctx context.Context, s *session.Session) ([]string, error) {
		user, err := container.Users().Create(ctx, s, 42, "Ana", nil)
		if err != nil {
			return nil, err
		}
		for _, m := range []dao.NewMessage{
			{UserID: user.ID, SessionID: "s1", Role: "user", Content: "hi"},
			{UserID: user.ID, SessionID: "s1", Role: "assistant", Content: "hello"},
		} {
			if _, err := container.Messages().Create(ctx, s, m); err != nil {
				return nil, err
			}
		}

		recent, err := container.Messages().Recent(ctx, s, "s1", 10)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(recent))
		for _, m := range recent {
			out = append(out, m.Content)
		}
		return out, nil
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if len(contents) != 2 || contents[0] != "hi" || contents[1] != "hello" {
		t.Errorf("Expected [hi hello], got %v", contents)
	}
}
