package cli

import (
	"context"
	"fmt"

	"github.com/platinummonkey/entitle/pkg/rbac"
	"github.com/platinummonkey/entitle/pkg/refresher"
)

func newRefreshCommand(env *Env) *Command {
	return &Command{
		Name:        "refresh",
		Description: "Recompute and persist one membership's permissions",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlagSet("refresh")
			membership := fs.String("membership", "", "Membership ID")
			if err := fs.Parse(args); err != nil {
				return err
			}
			if *membership == "" {
				return fmt.Errorf("membership is required")
			}

			return env.withStore(ctx, func(store rbac.MutationStore) error {
				checker, err := env.checker(store)
				if err != nil {
					return err
				}
				mask, err := checker.RefreshAndStore(ctx, *membership)
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s %v\n", mask, checker.Registry().Codes(mask))
				return nil
			})
		},
	}
}

func newSweepCommand(env *Env) *Command {
	return &Command{
		Name:        "sweep",
		Description: "Refresh one batch of stale memberships",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlagSet("sweep")
			batch := fs.Int("batch", env.Config.Refresh.Batch, "Memberships to refresh")
			workers := fs.Int("workers", 8, "Concurrent refreshes")
			if err := fs.Parse(args); err != nil {
				return err
			}

			return env.withStore(ctx, func(store rbac.MutationStore) error {
				checker, err := env.checker(store)
				if err != nil {
					return err
				}
				sweeper := refresher.New(store, checker, refresher.Config{
					TTL:     env.Config.Permissions.CacheTTL,
					Batch:   *batch,
					Workers: *workers,
				})
				res, err := sweeper.RunOnce(ctx)
				if err != nil {
					return err
				}
				env.Log.WithFields(map[string]interface{}{
					"scanned":   res.Scanned,
					"refreshed": res.Refreshed,
					"skipped":   res.Skipped,
					"failed":    res.Failed,
				}).Info("Sweep finished")
				if res.Failed > 0 {
					return fmt.Errorf("%d memberships failed to refresh", res.Failed)
				}
				return nil
			})
		},
	}
}
