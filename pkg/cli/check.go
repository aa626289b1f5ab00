package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/funvibe/keysof/internal/cache"
	"github.com/funvibe/keysof/internal/oracle/protodesc"
	"github.com/funvibe/keysof/internal/oracle/schema"
	"github.com/spf13/cobra"
)

func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate keysof.yaml and the files it names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd.Context())
		},
	}
}

func (a *app) runCheck(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	w := a.stdout
	if len(cfg.Fingerprint()) > 0 {
		fmt.Fprintf(w, "Config: %s ✓\n", cfg.Dir())
	} else {
		fmt.Fprintln(w, "Config: none (using defaults)")
	}
	fmt.Fprintf(w, "Runtime: %s\n", cfg.Runtime)
	fmt.Fprintf(w, "Members: unexported=%t promoted=%t pointer_methods=%t\n",
		cfg.Unexported, cfg.PromotedMembers(), cfg.PointerReceiverMethods())
	if len(cfg.BuildTags) > 0 {
		fmt.Fprintf(w, "Build tags: %s\n", strings.Join(cfg.BuildTags, ","))
	}
	fmt.Fprintf(w, "Parallelism: %d\n", parallelism(cfg))
	if cfg.CacheEnabled() {
		n, err := cachedPackages(ctx, cfg.CacheDir())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Cache: %s (%d package(s))\n", cfg.CacheDir(), n)
	} else {
		fmt.Fprintln(w, "Cache: disabled")
	}

	if paths := cfg.SchemaPaths(); len(paths) > 0 {
		o, err := schema.Load(paths...)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Schemas: %d file(s), %d type(s) ✓\n", len(paths), len(o.Types()))
	}
	if paths := cfg.ProtoPaths(); len(paths) > 0 {
		o, err := protodesc.Load(cfg.ImportDirs(), paths...)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Protos: %d file(s), %d type(s) ✓\n", len(paths), len(o.Names()))
	}

	fmt.Fprintln(w, "\nAll checks passed ✓")
	return nil
}

// cachedPackages counts the packages stored in the cache under dir
// without creating it.
func cachedPackages(ctx context.Context, dir string) (int, error) {
	if _, err := os.Stat(filepath.Join(dir, cache.FileName)); err != nil {
		return 0, nil
	}
	c, err := cache.Open(ctx, dir)
	if err != nil {
		return 0, err
	}
	defer c.Close()
	return c.Len(ctx)
}

func (a *app) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the rewrite cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Remove the rewrite cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			dir := cfg.CacheDir()
			if err := cache.Clean(dir); err != nil {
				return fmt.Errorf("removing cache: %w", err)
			}
			fmt.Fprintf(a.stdout, "Removed %s\n", dir)
			return nil
		},
	})
	return cmd
}
