package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/getsentry/cmakestat/internal/calltree"
	"github.com/getsentry/cmakestat/internal/errorutil"
	"github.com/getsentry/cmakestat/internal/logutil"
	"github.com/getsentry/cmakestat/internal/report"
	"github.com/getsentry/cmakestat/internal/tracefile"
	"github.com/getsentry/cmakestat/internal/treestore"
)

const defaultStoreFile = "cmake.traces"

var release string

type options struct {
	storeFile      string
	threshold      float64
	depth          int
	ignoreNesting  bool
	traceInfoWidth int
	sortTraces     bool
	reportOnly     bool
	one            bool
}

var verbose bool

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "cmakestat [trace]",
		Short: "Profile CMake script execution from a --trace log",
		Long: `Process a CMake execution log produced with the --trace/--trace-expand
command line options and report per-call cumulative timings.
Note: in order to provide command timestamps CMake should be patched to
prefix every trace line with one.

Each trace line in a report has 6 distinct parts:
1) nesting level in square brackets;
2) path to the original cmake script (maybe shortened with dots when -w
   is used);
3) line number of the traced line in the original cmake script;
4) the line of code as it was traced by cmake;
5) cumulative execution time of the traced line in seconds;
6) percentage of the cumulative execution time to the whole execution
   time.
In short the format is as follows:
[nesting]file_path(line_number):  cmake_code (seconds)(percentage)

Input lines which are not recognized as cmake trace lines (normally
script messages) are echoed to stderr prefixed with "Ignored: ".`,
		Args:          cobra.MaximumNArgs(1),
		Version:       release,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logutil.ConfigureLogger(verbose)
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("shelve-file") && cfg.StoreFile != "" {
				opts.storeFile = cfg.StoreFile
			}
			initSentry(cfg)
			defer sentry.Flush(2 * time.Second)

			err = run(opts, args)
			if err != nil {
				sentry.CaptureException(err)
				log.Err(err).Msg("run failed")
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.storeFile, "shelve-file", "f", defaultStoreFile,
		"file the collected call tree is saved to, so subsequent runs can report without re-parsing the log")
	cmd.Flags().Float64VarP(&opts.threshold, "threshold", "t", 0,
		"do not report traces with relative time lower than the threshold, for example 0.01 corresponds to 1% of the whole execution time")
	cmd.Flags().IntVarP(&opts.depth, "depth", "d", 0,
		"do not report traces with depth bigger than requested (depth=0 is ignored)")
	cmd.Flags().BoolVar(&opts.ignoreNesting, "ignore-nesting", false,
		"ignore the nesting level field in the input cmake log")
	cmd.Flags().IntVarP(&opts.traceInfoWidth, "trace-info-width", "w", 0,
		"fixed width in characters of the variable part of a cmake trace (file name, line number, nesting) in the generated report")
	cmd.Flags().BoolVarP(&opts.sortTraces, "sort-traces", "s", false,
		"sort subcalls in a trace according to their timings")
	cmd.Flags().BoolVarP(&opts.reportOnly, "report-only", "r", false,
		"do not collect stats, make a report from the saved call tree instead")
	cmd.Flags().BoolVarP(&opts.one, "one", "1", false,
		"report only the most expensive stack trace")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose output")

	cmd.AddCommand(newServeCommand())

	return cmd
}

func run(opts options, args []string) error {
	if opts.reportOnly && len(args) > 0 {
		return fmt.Errorf("a trace log and --report-only are mutually exclusive: %w", errorutil.ErrConfiguration)
	}

	store := treestore.New(opts.storeFile)

	var forest *calltree.Forest
	var err error
	if opts.reportOnly {
		forest, err = store.Load()
		if err != nil {
			return err
		}
	} else {
		var in io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		err = store.Remove()
		if err != nil {
			return err
		}

		forest, err = collect(in, opts.ignoreNesting)
		if err != nil {
			return err
		}

		err = store.Save(forest)
		if err != nil {
			_ = store.Remove()
			return err
		}
	}

	return report.Render(os.Stdout, forest, report.Options{
		Threshold:      opts.threshold,
		MaxDepth:       opts.depth,
		SortByDuration: opts.sortTraces,
		SinglePath:     opts.one,
		Width:          opts.traceInfoWidth,
	})
}

func collect(in io.Reader, ignoreNesting bool) (*calltree.Forest, error) {
	parser := tracefile.NewParser(in, tracefile.Options{IgnoreNesting: ignoreNesting})
	builder := calltree.NewBuilder()

	events := 0
	for {
		ev, err := parser.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		err = builder.Add(ev)
		if err != nil {
			return nil, err
		}
		events++
	}

	forest, err := builder.Finish()
	if err != nil {
		return nil, err
	}
	log.Debug().Int("events", events).Int("nodes", len(forest.Nodes)-1).Msg("trace collected")
	return forest, nil
}

func initSentry(cfg Config) {
	if cfg.SentryDSN == "" {
		return
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     release,
	})
	if err != nil {
		log.Warn().Err(err).Msg("can't initialize sentry")
	}
}
