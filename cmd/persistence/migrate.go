package main

import (
	"fmt"

	"github.com/goliatone/go-persistence/entity"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables and indexes",
		Long:  `Create every table and index that does not exist yet. Existing tables are left as they are.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			container, err := a.container(ctx)
			if err != nil {
				return err
			}
			defer container.Close(ctx)

			for _, def := range entity.Definitions() {
				fmt.Fprintf(cmd.OutOrStdout(), "table %s ready\n", def.Table())
			}
			return nil
		},
	}
}
