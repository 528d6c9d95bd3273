// Command ssperf times the hot paths of the toolchain: scheme construction,
// identity hashing, container encoding, compilation and exploration.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/sbl8/ssccs/compiler"
	"github.com/sbl8/ssccs/core"
	"github.com/sbl8/ssccs/explore"
	"github.com/sbl8/ssccs/field"
	"github.com/sbl8/ssccs/internal/cli"
	"github.com/sbl8/ssccs/scheme"
	"github.com/sbl8/ssccs/ssfile"
)

var (
	app = cli.NewApp("ssperf")

	testType string
	size     int
	iter     int
	verbose  bool

	rootCmd = &cobra.Command{
		Use:   "ssperf",
		Short: "Time scheme construction, hashing, encoding, compilation and exploration",
		Args:  cobra.NoArgs,
		RunE:  run,
	}
)

func init() {
	app.Bind(rootCmd)
	f := rootCmd.Flags()
	f.StringVar(&testType, "test", "all", "test type: all, build, identity, ssfile, compile, explore")
	f.IntVar(&size, "size", 32, "grid side length")
	f.IntVar(&iter, "iter", 20, "number of iterations")
	f.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
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

var suites = map[string]func(ctx context.Context) error{
	"build":    runBuildTests,
	"identity": runIdentityTests,
	"ssfile":   runSSFileTests,
	"compile":  runCompileTests,
	"explore":  runExploreTests,
}

var order = []string{"build", "identity", "ssfile", "compile", "explore"}

func run(cmd *cobra.Command, _ []string) error {
	if size < 2 || iter < 1 {
		return fmt.Errorf("need --size >= 2 and --iter >= 1")
	}
	fmt.Printf("SSCCS Performance Analysis Tool\n")
	fmt.Printf("===============================\n")
	fmt.Printf("Go Version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("CPUs: %d\n", runtime.NumCPU())
	fmt.Printf("Grid: %dx%d (%d points)\n", size, size, size*size)
	fmt.Printf("Iterations: %d\n", iter)
	fmt.Printf("\n")

	ctx := cmd.Context()
	if testType == "all" {
		for _, name := range order {
			if err := suites[name](ctx); err != nil {
				return err
			}
		}
		return nil
	}
	suite, ok := suites[testType]
	if !ok {
		return fmt.Errorf("unknown test type: %s", testType)
	}
	return suite(ctx)
}

func perOp(d time.Duration, n int) time.Duration {
	return d / time.Duration(n)
}

func grid() (*scheme.Basic, error) {
	return scheme.Grid2D(int64(size), int64(size), scheme.EightConnected)
}

func runBuildTests(context.Context) error {
	fmt.Printf("Scheme Construction\n")
	fmt.Printf("-------------------\n")

	var s *scheme.Basic
	start := time.Now()
	for i := 0; i < iter; i++ {
		var err error
		if s, err = grid(); err != nil {
			return err
		}
	}
	gridTime := time.Since(start)

	start = time.Now()
	for i := 0; i < iter; i++ {
		if _, err := scheme.IntegerLine(0, int64(size*size)-1, 1); err != nil {
			return err
		}
	}
	lineTime := time.Since(start)

	fmt.Printf("Grid2D eight-connected:      %v/op (%d relations)\n", perOp(gridTime, iter), len(s.Relations()))
	fmt.Printf("IntegerLine:                 %v/op\n", perOp(lineTime, iter))
	fmt.Printf("\n")
	return nil
}

func runIdentityTests(context.Context) error {
	fmt.Printf("Identity Hashing\n")
	fmt.Printf("----------------\n")

	n := size * size
	coords := make([]core.Coordinate, n)
	for i := range coords {
		coords[i] = core.Coord(int64(i%size), int64(i/size), int64(i))
	}
	start := time.Now()
	for i := 0; i < iter; i++ {
		for _, c := range coords {
			_ = core.IdentityOf(c)
		}
	}
	coordTime := time.Since(start)

	s, err := grid()
	if err != nil {
		return err
	}
	start = time.Now()
	for i := 0; i < iter; i++ {
		_ = s.ID()
	}
	schemeTime := time.Since(start)

	hashesPerSecond := float64(n*iter) / coordTime.Seconds()
	fmt.Printf("Coordinate identity:         %v/op (%.2f Mhash/s)\n", perOp(coordTime, n*iter), hashesPerSecond/1e6)
	fmt.Printf("Scheme identity:             %v/op\n", perOp(schemeTime, iter))
	fmt.Printf("\n")
	return nil
}

func runSSFileTests(context.Context) error {
	fmt.Printf("Container Encoding\n")
	fmt.Printf("------------------\n")

	s, err := grid()
	if err != nil {
		return err
	}
	var data []byte
	start := time.Now()
	for i := 0; i < iter; i++ {
		if data, err = ssfile.Marshal(s); err != nil {
			return err
		}
	}
	encodeTime := time.Since(start)

	start = time.Now()
	for i := 0; i < iter; i++ {
		if _, err := ssfile.Unmarshal(data); err != nil {
			return err
		}
	}
	decodeTime := time.Since(start)

	mbPerSecond := func(d time.Duration) float64 {
		return float64(len(data)*iter) / d.Seconds() / (1 << 20)
	}
	fmt.Printf("Marshal:                     %v/op (%.2f MiB/s)\n", perOp(encodeTime, iter), mbPerSecond(encodeTime))
	fmt.Printf("Unmarshal:                   %v/op (%.2f MiB/s)\n", perOp(decodeTime, iter), mbPerSecond(decodeTime))
	if verbose {
		fmt.Printf("  Container size: %d bytes\n", len(data))
	}
	fmt.Printf("\n")
	return nil
}

func runCompileTests(ctx context.Context) error {
	fmt.Printf("Compilation\n")
	fmt.Printf("-----------\n")

	s, err := grid()
	if err != nil {
		return err
	}
	opts := compiler.DefaultOptions()
	opts.Logger = app.Logger
	for _, profile := range []compiler.HardwareProfile{compiler.CPU(runtime.NumCPU()), compiler.PIM(16), compiler.FPGA(64)} {
		var cs *compiler.CompiledScheme
		start := time.Now()
		for i := 0; i < iter; i++ {
			if cs, err = compiler.Compile(ctx, s, profile, opts); err != nil {
				return err
			}
		}
		elapsed := time.Since(start)
		fmt.Printf("Compile %-20s %v/op\n", profile.String()+":", perOp(elapsed, iter))
		if verbose {
			sum := cs.Summary()
			fmt.Printf("  Points %d, addressed %d\n", sum.Points, sum.Addressed)
		}
	}
	fmt.Printf("\n")
	return nil
}

func runExploreTests(ctx context.Context) error {
	fmt.Printf("Exploration\n")
	fmt.Printf("-----------\n")

	limit := int64(size * size)
	f := field.New(core.Range(0, 0, limit))

	for _, depth := range []int{4, 8, 16} {
		var stats explore.Stats
		start := time.Now()
		for i := 0; i < iter; i++ {
			var err error
			if _, stats, err = explore.Walk(ctx, core.SegmentOf(1), f, field.Arithmetic(0), explore.Depth(depth)); err != nil {
				return err
			}
		}
		elapsed := time.Since(start)
		fmt.Printf("Walk depth %-3d               %v/op (%d states)\n", depth, perOp(elapsed, iter), stats.States)
	}
	fmt.Printf("\n")
	return nil
}
