// Package cli implements the keysof command.
//
//	keysof rewrite [patterns] [-w] [-o dir] [--no-cache]
//	keysof resolve <expr> [--pkg p | --schema f | --proto f] [--mode keys|funs] [--format json|yaml|go]
//	keysof check
//	keysof cache clean
//	keysof version
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/funvibe/keysof/internal/config"
	"github.com/funvibe/keysof/internal/oracle/gotypes"
	"github.com/spf13/cobra"
)

// Version is set at build time using: -ldflags "-X github.com/funvibe/keysof/pkg/cli.Version=..."
var Version = "dev"

// app holds the global flags and streams shared by all commands.
type app struct {
	configPath string
	verbose    bool

	stdout io.Writer
	stderr io.Writer
	log    *logger
}

// NewRootCmd builds the command tree writing to stdout and stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "keysof",
		Short: "Rewrite keysof.Keys and keysof.Funs calls into literals",
		Long: `keysof resolves the type argument of every keysof.Keys[T]() and
keysof.Funs[T]() call and replaces the call with the member names or method
signatures of T. T may combine types with | (common members), & or
interface{ A; B } (all members) and any.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.log = newLogger(a.stderr, a.verbose)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to keysof.yaml (default: search upwards from the working directory)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(
		a.newRewriteCmd(),
		a.newResolveCmd(),
		a.newCheckCmd(),
		a.newCacheCmd(),
		a.newVersionCmd(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCmd(os.Stdout, os.Stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig loads --config, or the keysof.yaml found above the working
// directory, or the defaults.
func (a *app) loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cannot determine working directory: %w", err)
	}
	cfg, err := config.Discover(a.configPath, cwd)
	if err != nil {
		return nil, err
	}
	if len(cfg.Fingerprint()) > 0 {
		a.log.Infof("using config %s", cfg.Dir())
	}
	return cfg, nil
}

func oracleOptions(cfg *config.Config) gotypes.Options {
	return gotypes.Options{
		Unexported:     cfg.Unexported,
		Promoted:       cfg.PromotedMembers(),
		PointerMethods: cfg.PointerReceiverMethods(),
	}
}

func parallelism(cfg *config.Config) int {
	if cfg.Parallelism > 0 {
		return cfg.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the keysof version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "keysof %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
