// Command ssrun explores the configurations reachable from seed points
// under the constraints of a blueprint's field.
//
// Every seed becomes one job; jobs run concurrently, each against its own
// copy of the field.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sbl8/ssccs/blueprint"
	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/field"
	"github.com/sbl8/ssccs/internal/cli"
	"github.com/sbl8/ssccs/scheme"
	"github.com/sbl8/ssccs/session"
)

var (
	app = cli.NewApp("ssrun")

	runFlags struct {
		seeds      []string
		depth      int
		states     int
		adjacency  string
		axis       int
		filter     string
		schemeFile string
		workers    int
		failFast   bool
		project    string
		quiet      bool
	}

	rootCmd = &cobra.Command{
		Use:   "ssrun <blueprint>",
		Short: "Explore the reachable configurations of a blueprint",
		Long: `ssrun loads a blueprint, builds its field and walks from every seed.

Seeds, bound and adjacency come from the blueprint's explore section and can
be overridden with flags. Structural adjacency follows the relations of the
blueprint's scheme, or of a .ss container given with --scheme.`,
		Args: cobra.ExactArgs(1),
		RunE: run,
	}
)

func init() {
	app.Bind(rootCmd)
	f := rootCmd.Flags()
	f.StringArrayVarP(&runFlags.seeds, "seed", "s", nil, "seed coordinate, e.g. \"[6]\" (repeatable)")
	f.IntVar(&runFlags.depth, "depth", -1, "maximum depth (default from blueprint or config)")
	f.IntVar(&runFlags.states, "states", -1, "maximum states per job (default from blueprint or config)")
	f.StringVar(&runFlags.adjacency, "adjacency", "", "arithmetic, structural or transitions")
	f.IntVar(&runFlags.axis, "axis", -1, "axis of arithmetic adjacency")
	f.StringVar(&runFlags.filter, "filter", "", "relation filter of structural adjacency")
	f.StringVar(&runFlags.schemeFile, "scheme", "", ".ss container providing the structure")
	f.IntVar(&runFlags.workers, "workers", 0, "concurrent jobs (default from config)")
	f.BoolVar(&runFlags.failFast, "fail-fast", false, "stop at the first failing job")
	f.StringVar(&runFlags.project, "project", "", "also report projected values: integer or parity")
	f.BoolVarP(&runFlags.quiet, "quiet", "q", false, "omit the coordinate lists")
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

// jobReport is the printed outcome of one job.
type jobReport struct {
	Job       string   `yaml:"job"`
	Seed      string   `yaml:"seed"`
	States    int      `yaml:"states"`
	Expanded  int      `yaml:"expanded"`
	Depth     int      `yaml:"depth"`
	Truncated bool     `yaml:"truncated,omitempty"`
	Duration  string   `yaml:"duration"`
	Points    []string `yaml:"points,omitempty"`
	Values    []string `yaml:"values,omitempty"`
	Error     string   `yaml:"error,omitempty"`
}

type runReport struct {
	Blueprint string      `yaml:"blueprint"`
	Field     string      `yaml:"field,omitempty"`
	Jobs      []jobReport `yaml:"jobs"`
	Union     int         `yaml:"union"`
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	doc, err := blueprint.Load(ctx, app.FS, args[0])
	if err != nil {
		return err
	}
	f, err := doc.BuildField()
	if err != nil {
		return err
	}

	spec := exploreSpec(doc)
	seeds, err := spec.SeedCoordinates()
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		return fmt.Errorf("%s: no seeds; add an explore section or pass --seed", args[0])
	}
	bound := spec.Bound()
	if err := bound.Validate(); err != nil {
		return err
	}

	var structure scheme.Scheme
	if spec.Adjacency == "structural" {
		if structure, err = loadStructure(ctx, doc); err != nil {
			return err
		}
	}
	adj, err := spec.NewAdjacency(structure)
	if err != nil {
		return err
	}
	proj, err := projector(runFlags.project, spec.Axis)
	if err != nil {
		return err
	}

	jobs := make([]session.Job, len(seeds))
	for i, s := range seeds {
		jobs[i] = session.Job{Label: s.String(), Seed: s, Adjacency: adj, Bound: bound}
	}
	opts := app.Config.Explore.SessionOptions()
	opts.Logger = app.Logger
	if runFlags.workers > 0 {
		opts.Workers = runFlags.workers
	}
	opts.FailFast = opts.FailFast || runFlags.failFast

	results, err := session.New(f, opts).Run(ctx, jobs)
	if err != nil {
		return err
	}

	report := runReport{
		Blueprint: doc.Name,
		Field:     f.DescribeConstraints(),
		Union:     session.Merge(results).Len(),
	}
	for _, r := range results {
		report.Jobs = append(report.Jobs, jobReportOf(f, r, proj))
	}
	if err := writeYAML(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if failed := session.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d jobs failed", len(failed), len(results))
	}
	return nil
}

// exploreSpec merges the blueprint's explore section, the config defaults
// and the command line flags, in increasing precedence.
func exploreSpec(doc *blueprint.Document) blueprint.ExploreSpec {
	var spec blueprint.ExploreSpec
	if doc.Explore != nil {
		spec = *doc.Explore
	}
	if spec.MaxDepth == 0 && spec.MaxStates == 0 {
		spec.MaxDepth = app.Config.Explore.MaxDepth
		spec.MaxStates = app.Config.Explore.MaxStates
	}
	if len(runFlags.seeds) > 0 {
		spec.Seeds = runFlags.seeds
	}
	if runFlags.depth >= 0 {
		spec.MaxDepth = runFlags.depth
	}
	if runFlags.states >= 0 {
		spec.MaxStates = runFlags.states
	}
	if runFlags.adjacency != "" {
		spec.Adjacency = runFlags.adjacency
	}
	if runFlags.axis >= 0 {
		spec.Axis = runFlags.axis
	}
	if runFlags.filter != "" {
		spec.Filter = runFlags.filter
	}
	return spec
}

func loadStructure(ctx context.Context, doc *blueprint.Document) (scheme.Scheme, error) {
	if runFlags.schemeFile != "" {
		return app.LoadScheme(ctx, runFlags.schemeFile)
	}
	return doc.BuildScheme()
}

type projection func(f *field.Field, p core.Segment) (string, bool)

func projector(kind string, axis int) (projection, error) {
	switch kind {
	case "":
		return nil, nil
	case "integer":
		p := field.Integer(axis)
		return func(f *field.Field, s core.Segment) (string, bool) {
			v, ok := field.Observe[int64](f, s, p)
			return strconv.FormatInt(v, 10), ok
		}, nil
	case "parity":
		p := field.Parity(axis)
		return func(f *field.Field, s core.Segment) (string, bool) {
			return field.Observe[string](f, s, p)
		}, nil
	}
	return nil, fmt.Errorf("unknown projection %q", kind)
}

func jobReportOf(f *field.Field, r session.Result, proj projection) jobReport {
	rep := jobReport{
		Job:       r.Job.String(),
		Seed:      r.Seed.String(),
		States:    r.Stats.States,
		Expanded:  r.Stats.Expanded,
		Depth:     r.Stats.MaxDepth,
		Truncated: r.Stats.Truncated,
		Duration:  r.Stats.Duration.String(),
	}
	if r.Err != nil {
		rep.Error = r.Err.Error()
		return rep
	}
	if !runFlags.quiet {
		for _, c := range r.States.Coordinates() {
			rep.Points = append(rep.Points, c.String())
		}
	}
	if proj != nil {
		seen := map[string]bool{}
		for _, s := range r.States.Sorted() {
			if v, ok := proj(f, s); ok && !seen[v] {
				seen[v] = true
				rep.Values = append(rep.Values, v)
			}
		}
		slices.Sort(rep.Values)
	}
	return rep
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
