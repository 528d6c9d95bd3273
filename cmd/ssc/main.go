// Command ssc compiles scheme blueprints into .ss containers and compilation
// summaries, and manages the local scheme store.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sbl8/ssccs/blueprint"
	"github.com/sbl8/ssccs/compiler"
	"github.com/sbl8/ssccs/internal/cli"
	"github.com/sbl8/ssccs/scheme"
	"github.com/sbl8/ssccs/ssfile"
	"github.com/sbl8/ssccs/store"
)

var (
	app = cli.NewApp("ssc")

	buildFlags struct {
		outDir      string
		profile     string
		strict      bool
		allowCycles bool
		save        bool
		noOutput    bool
	}
	fromStore bool

	rootCmd = &cobra.Command{
		Use:   "ssc",
		Short: "Compile structural scheme blueprints",
	}
	buildCmd = &cobra.Command{
		Use:   "build <blueprint>...",
		Short: "Compile blueprints (.yaml or .ssd) into .ss containers",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBuild,
	}
	inspectCmd = &cobra.Command{
		Use:   "inspect <file.ss | ref>",
		Short: "Decode a container and describe the scheme",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	lsCmd = &cobra.Command{
		Use:   "ls",
		Short: "List the schemes in the store",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	exportCmd = &cobra.Command{
		Use:   "export <ref> <out.ss>",
		Short: "Copy a stored scheme to a file or URL",
		Args:  cobra.ExactArgs(2),
		RunE:  runExport,
	}
)

func init() {
	app.Bind(rootCmd)

	f := buildCmd.Flags()
	f.StringVarP(&buildFlags.outDir, "out-dir", "o", "", "directory for .ss files (default: next to each blueprint)")
	f.StringVar(&buildFlags.profile, "profile", "", "hardware profile, e.g. cpu:8 or pim:16 (default from config)")
	f.BoolVar(&buildFlags.strict, "strict", false, "fail when the layout cannot address every point")
	f.BoolVar(&buildFlags.allowCycles, "allow-cycles", false, "record dependency cycles instead of failing")
	f.BoolVar(&buildFlags.save, "save", false, "store the scheme and its summary, tagged with the blueprint name")
	f.BoolVar(&buildFlags.noOutput, "no-output", false, "do not write .ss files")

	inspectCmd.Flags().BoolVar(&fromStore, "store", false, "resolve the argument as a store tag or identity")

	rootCmd.AddCommand(buildCmd, inspectCmd, lsCmd, exportCmd)
}

func main() {
	ctx := context.Background()
	err := rootCmd.ExecuteContext(ctx)
	if cerr := app.Close(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		os.Exit(1)
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := app.Config.Compile
	if buildFlags.profile != "" {
		cfg.Profile = buildFlags.profile
	}
	profile, err := cfg.HardwareProfile()
	if err != nil {
		return err
	}
	opts := cfg.Options()
	opts.Logger = app.Logger
	opts.StrictAddressing = opts.StrictAddressing || buildFlags.strict
	opts.AllowCycles = opts.AllowCycles || buildFlags.allowCycles

	var st *store.Store
	if buildFlags.save {
		if st, err = app.OpenStore(); err != nil {
			return err
		}
		defer st.Close()
	}

	summaries := make([]compiler.Summary, len(args))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallel)
	for i, location := range args {
		g.Go(func() error {
			sum, err := compileOne(gctx, st, location, profile, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", location, err)
			}
			summaries[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return writeYAML(cmd.OutOrStdout(), summaries)
}

func compileOne(ctx context.Context, st *store.Store, location string, profile compiler.HardwareProfile, opts compiler.Options) (compiler.Summary, error) {
	doc, err := blueprint.Load(ctx, app.FS, location)
	if err != nil {
		return compiler.Summary{}, err
	}
	s, err := doc.BuildScheme()
	if err != nil {
		return compiler.Summary{}, err
	}
	compiled, err := compiler.Compile(ctx, s, profile, opts)
	if err != nil {
		return compiler.Summary{}, err
	}
	sum := compiled.Summary()

	basic, ok := s.(*scheme.Basic)
	if !ok {
		app.Logger.Warn("only basic schemes have a container form; skipping .ss output",
			slog.String("blueprint", location))
	}
	if ok && !buildFlags.noOutput {
		data, err := ssfile.Marshal(basic)
		if err != nil {
			return compiler.Summary{}, err
		}
		out := cli.OutputPath(buildFlags.outDir, location)
		if err := app.Upload(ctx, out, data); err != nil {
			return compiler.Summary{}, err
		}
		app.Logger.Info("wrote container",
			slog.String("out", out),
			slog.String("scheme", basic.ID().Short()),
			slog.Int("bytes", len(data)))
	}
	if st != nil {
		if ok {
			if _, err := st.PutScheme(ctx, basic); err != nil {
				return compiler.Summary{}, err
			}
			if err := st.Tag(ctx, doc.Name, basic.ID()); err != nil {
				return compiler.Summary{}, err
			}
		}
		if err := st.PutSummary(ctx, sum); err != nil {
			return compiler.Summary{}, err
		}
	}
	return sum, nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var (
		s    *scheme.Basic
		sums []compiler.Summary
		err  error
	)
	if fromStore {
		st, err := app.OpenStore()
		if err != nil {
			return err
		}
		defer st.Close()
		id, err := st.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		if s, err = st.GetScheme(ctx, id); err != nil {
			return err
		}
		if sums, err = st.Summaries(ctx, id); err != nil {
			return err
		}
	} else if s, err = app.LoadScheme(ctx, args[0]); err != nil {
		return err
	}
	return writeYAML(cmd.OutOrStdout(), describe(s, sums))
}

type description struct {
	Scheme      string             `yaml:"scheme"`
	Summary     string             `yaml:"summary"`
	Axes        []string           `yaml:"axes,omitempty"`
	Layout      string             `yaml:"layout"`
	Constraints []string           `yaml:"constraints,omitempty"`
	Metadata    map[string]string  `yaml:"metadata,omitempty"`
	Compiled    []compiler.Summary `yaml:"compiled,omitempty"`
}

func describe(s *scheme.Basic, sums []compiler.Summary) description {
	d := description{
		Scheme:   s.ID().String(),
		Summary:  s.Describe(),
		Layout:   s.Layout().String(),
		Metadata: s.Metadata(),
		Compiled: sums,
	}
	for _, a := range s.Axes() {
		d.Axes = append(d.Axes, a.String())
	}
	for _, c := range s.Constraints() {
		d.Constraints = append(d.Constraints, c.String())
	}
	return d
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	st, err := app.OpenStore()
	if err != nil {
		return err
	}
	defer st.Close()
	ids, err := st.Schemes(ctx)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, id := range ids {
		s, err := st.GetScheme(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrCorrupt) {
				fmt.Fprintf(w, "%s\tcorrupt\n", id)
				continue
			}
			return err
		}
		fmt.Fprintf(w, "%s\t%d points\t%d relations\n", id, s.Len(), len(s.Relations()))
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := app.OpenStore()
	if err != nil {
		return err
	}
	defer st.Close()
	id, err := st.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	data, err := st.RawScheme(ctx, id)
	if err != nil {
		return err
	}
	if err := app.Upload(ctx, args[1], data); err != nil {
		return err
	}
	app.Logger.Info("exported scheme", slog.String("scheme", id.Short()), slog.String("out", args[1]))
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
