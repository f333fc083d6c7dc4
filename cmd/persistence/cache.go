package main

import (
	"fmt"

	"github.com/goliatone/go-persistence/cacheclient"
	"github.com/spf13/cobra"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Cache endpoint commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Connect to the cache endpoint and disconnect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			m := cacheclient.New(a.cfg.Cache, a.logger)
			if err := m.Setup(ctx); err != nil {
				return err
			}
			defer m.Close(ctx)

			client, err := m.Client()
			if err != nil {
				return err
			}
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "cache %s\n", m.State())
			return nil
		},
	})
	return cmd
}
