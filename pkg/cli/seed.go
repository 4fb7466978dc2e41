package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/platinummonkey/entitle/pkg/permission"
	"github.com/platinummonkey/entitle/pkg/rbac"
)

func newSeedCommand(env *Env) *Command {
	return &Command{
		Name:        "seed",
		Description: "Upsert subscription tiers and the permission catalog",
		Run: func(ctx context.Context, args []string) error {
			if err := newFlagSet("seed").Parse(args); err != nil {
				return err
			}
			return env.withStore(ctx, func(store rbac.MutationStore) error {
				checker, err := env.checker(store)
				if err != nil {
					return err
				}
				if err := rbac.NewService(store, checker).SeedCatalog(ctx); err != nil {
					return err
				}
				env.Log.WithField("permissions", checker.Registry().Len()).Info("Catalog seeded")
				return nil
			})
		},
	}
}

func newCatalogCommand(env *Env) *Command {
	return &Command{
		Name:        "catalog",
		Description: "Validate and print the effective permission catalog as YAML",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlagSet("catalog")
			file := fs.String("file", env.Config.Permissions.CatalogFile, "Catalog file (empty for built-in)")
			out := fs.String("out", "", "Write to this file instead of stdout")
			if err := fs.Parse(args); err != nil {
				return err
			}

			reg, err := permission.LoadRegistry(*file)
			if err != nil {
				return err
			}
			data, err := permission.MarshalCatalog(reg)
			if err != nil {
				return fmt.Errorf("failed to encode catalog: %w", err)
			}

			if *out == "" {
				_, err = env.Out.Write(data)
				return err
			}
			if err := os.WriteFile(*out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write catalog: %w", err)
			}
			env.Log.WithField("path", *out).Infof("Wrote %d permissions", reg.Len())
			return nil
		},
	}
}
