package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ydethe/quizzy/internal/app"
	"github.com/ydethe/quizzy/internal/store"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica el esquema de la base de datos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := app.StoreConfig(c.cfg)
			if err != nil {
				return err
			}
			sc.AutoMigrate = false
			repo, err := store.Open(cmd.Context(), sc)
			if err != nil {
				return err
			}
			defer repo.Close()

			res, err := store.Migrate(cmd.Context(), repo)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "driver=%s applied=%v skipped=%v (%s)\n", sc.Driver, res.Applied, res.Skipped, res.Duration)
			return nil
		},
	}
}
