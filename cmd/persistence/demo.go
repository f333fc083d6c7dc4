package main

import (
	"context"
	"fmt"

	"github.com/goliatone/go-persistence/dao"
	"github.com/goliatone/go-persistence/entity"
	"github.com/goliatone/go-persistence/session"
	"github.com/samber/mo"
	"github.com/spf13/cobra"
)

type demoOptions struct {
	externalID int64
	firstName  string
	limit      int
}

func newDemoCmd(a *app) *cobra.Command {
	opts := demoOptions{}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Store a short conversation and print it back",
		Long: `Find or create a user, store a user message and an assistant reply in a
new conversation, then print the most recent messages of that conversation
oldest first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			container, err := a.container(ctx)
			if err != nil {
				return err
			}
			defer container.Close(ctx)

			messages, err := session.Run(ctx, container.Factory(), func(ctx context.Context, s *session.Session) ([]*entity.Message, error) {
				return runDemo(ctx, s, container.Users(), container.Messages(), opts)
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range messages {
				fmt.Fprintf(out, "%s: %s\n", m.Role, m.Content)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&opts.externalID, "external-id", 42, "external id of the demo user")
	cmd.Flags().StringVar(&opts.firstName, "first-name", "Ana", "first name used when the user is created")
	cmd.Flags().IntVar(&opts.limit, "limit", dao.DefaultRecentLimit, "number of recent messages to print")
	return cmd
}

type userStore interface {
	FindByExternalID(ctx context.Context, s *session.Session, externalID int64) (mo.Option[*entity.User], error)
	Create(ctx context.Context, s *session.Session, externalID int64, firstName string, username *string) (*entity.User, error)
}

func runDemo(ctx context.Context, s *session.Session, users userStore, messages *dao.MessageAccessor, opts demoOptions) ([]*entity.Message, error) {
	found, err := users.FindByExternalID(ctx, s, opts.externalID)
	if err != nil {
		return nil, err
	}
	user, ok := found.Get()
	if !ok {
		if user, err = users.Create(ctx, s, opts.externalID, opts.firstName, nil); err != nil {
			return nil, err
		}
	}

	conversation := entity.NewConversationID()
	for _, m := range []dao.NewMessage{
		{UserID: user.ID, SessionID: conversation, Role: "user", Content: "hi"},
		{UserID: user.ID, SessionID: conversation, Role: "assistant", Content: "hello"},
	} {
		if _, err := messages.Create(ctx, s, m); err != nil {
			return nil, err
		}
	}

	return messages.Recent(ctx, s, conversation, opts.limit)
}
