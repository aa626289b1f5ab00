package cli

import (
	"context"
	"fmt"
	"path"

	"github.com/funvibe/keysof/internal/config"
	"github.com/funvibe/keysof/internal/emit"
	"github.com/funvibe/keysof/internal/oracle/gotypes"
	"github.com/funvibe/keysof/internal/oracle/protodesc"
	"github.com/funvibe/keysof/internal/oracle/schema"
	"github.com/funvibe/keysof/internal/resolver"
	"github.com/funvibe/keysof/internal/typeexpr"
	"github.com/spf13/cobra"
)

type resolveFlags struct {
	pkg     string
	schemas []string
	protos  []string
	mode    string
	format  string
}

func (a *app) newResolveCmd() *cobra.Command {
	var flags resolveFlags
	cmd := &cobra.Command{
		Use:   "resolve <type expression>",
		Short: "Print the members a type expression resolves to",
		Long: `Resolve evaluates a type expression such as "A | B" or
"interface{ A; B }" against a Go package, YAML schema files or .proto
files and prints the literal a keysof call would be replaced with.

Without --pkg, --schema or --proto the schemas and protos of keysof.yaml
are used, and failing those the package in the working directory.`,
		Example: `  keysof resolve 'Reader | Closer' --pkg io --mode funs
  keysof resolve 'User & Group' --proto api/users.proto --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runResolve(cmd.Context(), args[0], flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.pkg, "pkg", "", "resolve against the Go package `pattern`")
	f.StringSliceVar(&flags.schemas, "schema", nil, "resolve against YAML schema `files`")
	f.StringSliceVar(&flags.protos, "proto", nil, "resolve against .proto `files`")
	f.StringVar(&flags.mode, "mode", "keys", "keys (member names) or funs (method signatures)")
	f.StringVar(&flags.format, "format", "json", "output format: json, yaml or go")
	cmd.MarkFlagsMutuallyExclusive("pkg", "schema", "proto")
	return cmd
}

func parseMode(s string) (resolver.Mode, error) {
	switch s {
	case "keys":
		return resolver.NamesOnly, nil
	case "funs":
		return resolver.Signatures, nil
	}
	return resolver.None, fmt.Errorf("invalid --mode %q: want keys or funs", s)
}

func (a *app) runResolve(ctx context.Context, src string, flags resolveFlags) error {
	mode, err := parseMode(flags.mode)
	if err != nil {
		return err
	}
	switch flags.format {
	case "json", "yaml", "go":
	default:
		return fmt.Errorf("invalid --format %q: want json, yaml or go", flags.format)
	}

	expr, err := typeexpr.Parse(src)
	if err != nil {
		return err
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	oracle, warnings, err := a.selectOracle(ctx, cfg, flags)
	if err != nil {
		return err
	}

	members := resolver.Resolve(expr, oracle, mode)
	if warnings != nil {
		for _, w := range warnings() {
			a.log.Warnf("%s", w)
		}
	}
	a.log.Infof("%s resolved to %d member(s)", expr, len(members))

	out, err := render(emit.Emit(members, mode), flags.format, path.Base(cfg.Runtime))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, out)
	return nil
}

// selectOracle picks the oracle named by the flags, falling back to the
// config file and then to the package in the working directory. The
// returned function, when not nil, reports unresolved references.
func (a *app) selectOracle(ctx context.Context, cfg *config.Config, flags resolveFlags) (resolver.Oracle, func() []string, error) {
	schemas, protos := flags.schemas, flags.protos
	if flags.pkg == "" && len(schemas) == 0 && len(protos) == 0 {
		schemas, protos = cfg.SchemaPaths(), cfg.ProtoPaths()
	}

	switch {
	case len(schemas) > 0:
		a.log.Infof("loading %d schema file(s)", len(schemas))
		o, err := schema.Load(schemas...)
		return o, nil, err
	case len(protos) > 0:
		a.log.Infof("parsing %d proto file(s)", len(protos))
		o, err := protodesc.Load(cfg.ImportDirs(), protos...)
		return o, nil, err
	}

	pattern := flags.pkg
	if pattern == "" {
		pattern = "."
	}
	pkgs, err := gotypes.Load(ctx, gotypes.LoadOptions{BuildTags: cfg.BuildTags}, pattern)
	if err != nil {
		return nil, nil, err
	}
	if len(pkgs) != 1 {
		return nil, nil, fmt.Errorf("--pkg %s matches %d packages, want 1", pattern, len(pkgs))
	}
	o := gotypes.New(pkgs[0], oracleOptions(cfg))
	return o, o.Warnings, nil
}

func render(v emit.Value, format, qualifier string) (string, error) {
	switch format {
	case "go":
		return emit.FormatGo(v, qualifier)
	case "yaml":
		data, err := emit.YAML(v)
		if err != nil {
			return "", err
		}
		return string(trimNewline(data)), nil
	default:
		data, err := emit.JSON(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == '\n' {
		b = b[:len(b)-1]
	}
	return b
}
