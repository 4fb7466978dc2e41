package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/platinummonkey/entitle/pkg/rbac"
)

// ErrDenied is returned by check when the user lacks the permission
var ErrDenied = errors.New("permission denied")

func newCheckCommand(env *Env) *Command {
	return &Command{
		Name:        "check",
		Description: "Check one permission for a user in an organization",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlagSet("check")
			user := fs.String("user", "", "User ID")
			org := fs.String("org", "", "Organization ID")
			code := fs.String("code", "", "Permission code")
			if err := fs.Parse(args); err != nil {
				return err
			}
			if *user == "" || *org == "" || *code == "" {
				return fmt.Errorf("user, org and code are required")
			}

			return env.withStore(ctx, func(store rbac.MutationStore) error {
				checker, err := env.checker(store)
				if err != nil {
					return err
				}
				allowed, err := checker.CheckPermission(ctx, *user, *org, *code)
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s\n", map[bool]string{true: "allowed", false: "denied"}[allowed])
				if !allowed {
					return ErrDenied
				}
				return nil
			})
		},
	}
}

func newPermissionsCommand(env *Env) *Command {
	return &Command{
		Name:        "permissions",
		Description: "List every permission a user holds in an organization",
		Run: func(ctx context.Context, args []string) error {
			fs := newFlagSet("permissions")
			user := fs.String("user", "", "User ID")
			org := fs.String("org", "", "Organization ID")
			asJSON := fs.Bool("json", false, "Print the full code map as JSON")
			if err := fs.Parse(args); err != nil {
				return err
			}
			if *user == "" || *org == "" {
				return fmt.Errorf("user and org are required")
			}

			return env.withStore(ctx, func(store rbac.MutationStore) error {
				checker, err := env.checker(store)
				if err != nil {
					return err
				}
				all, err := checker.GetAllPermissions(ctx, *user, *org)
				if err != nil {
					return err
				}
				if *asJSON {
					enc := json.NewEncoder(env.Out)
					enc.SetIndent("", "  ")
					return enc.Encode(all)
				}

				codes := make([]string, 0, len(all))
				for code, ok := range all {
					if ok {
						codes = append(codes, code)
					}
				}
				sort.Strings(codes)
				for _, code := range codes {
					fmt.Fprintln(env.Out, code)
				}
				return nil
			})
		},
	}
}
