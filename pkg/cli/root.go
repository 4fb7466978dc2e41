package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/entitle/pkg/config"
	"github.com/platinummonkey/entitle/pkg/observability"
	"github.com/platinummonkey/entitle/pkg/permission"
	"github.com/platinummonkey/entitle/pkg/rbac"
	"github.com/platinummonkey/entitle/pkg/storage"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
}

// Env is what commands share: configuration, logger, output and a store opener
type Env struct {
	Config *config.Config
	Log    *logrus.Logger
	Out    io.Writer

	// OpenStore defaults to storage.Open with Config.Storage
	OpenStore func(ctx context.Context) (rbac.MutationStore, error)
}

// NewEnv builds an Env for cfg that writes results to stdout
func NewEnv(cfg *config.Config, log *logrus.Logger) *Env {
	env := &Env{Config: cfg, Log: log, Out: os.Stdout}
	env.OpenStore = func(ctx context.Context) (rbac.MutationStore, error) {
		return storage.Open(ctx, env.Config.Storage, observability.NopLogger())
	}
	return env
}

// NewLogger returns the text logger used by the CLI
func NewLogger(level string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// NewRootCommand creates the root command
func NewRootCommand(env *Env) *Command {
	root := &Command{
		Name:        "entitlectl",
		Description: "entitlectl - operate the entitle permission engine",
		Subcommands: make(map[string]*Command),
	}

	for _, cmd := range []*Command{
		newMigrateCommand(env),
		newSeedCommand(env),
		newCatalogCommand(env),
		newCheckCommand(env),
		newPermissionsCommand(env),
		newRefreshCommand(env),
		newSweepCommand(env),
	} {
		root.Subcommands[cmd.Name] = cmd
	}

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		c.usage(out)
		return nil
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:])
	}

	c.usage(out)
	return fmt.Errorf("unknown command: %s", args[0])
}

func (c *Command) usage(out io.Writer) {
	fmt.Fprintf(out, "Usage: %s <command> [flags]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// withStore opens the configured store, runs fn and closes the store
func (e *Env) withStore(ctx context.Context, fn func(rbac.MutationStore) error) error {
	store, err := e.OpenStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", e.Config.Storage.Type, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			e.Log.WithError(err).Warn("Failed to close storage")
		}
	}()
	return fn(store)
}

func (e *Env) registry() (*permission.Registry, error) {
	return permission.LoadRegistry(e.Config.Permissions.CatalogFile)
}

func (e *Env) checker(store rbac.Store) (*rbac.PermissionChecker, error) {
	reg, err := e.registry()
	if err != nil {
		return nil, err
	}
	return rbac.NewPermissionChecker(store, reg, rbac.WithCacheTTL(e.Config.Permissions.CacheTTL)), nil
}
