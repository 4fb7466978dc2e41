package cli

import (
	"context"
	"fmt"

	"github.com/platinummonkey/entitle/pkg/rbac"
	"github.com/platinummonkey/entitle/pkg/storage"
	"github.com/platinummonkey/entitle/pkg/storage/postgres"
)

func newMigrateCommand(env *Env) *Command {
	return &Command{
		Name:        "migrate",
		Description: "Apply pending Postgres migrations",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlagSet("migrate")
			list := fs.Bool("list", false, "List migrations without applying them")
			if err := fs.Parse(args); err != nil {
				return err
			}

			if *list {
				for _, m := range postgres.GetMigrations() {
					fmt.Fprintf(env.Out, "%3d  %s\n", m.Version, m.Description)
				}
				return nil
			}

			if env.Config.Storage.Type != storage.TypePostgres {
				env.Log.Infof("Storage type %q has no migrations", env.Config.Storage.Type)
				return nil
			}

			// Open applies migrations before returning.
			env.Config.Storage.AutoMigrate = true
			return env.withStore(ctx, func(rbac.MutationStore) error {
				env.Log.Info("Migrations applied")
				return nil
			})
		},
	}
}
