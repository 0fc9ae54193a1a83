package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"symex/src/executor"
	"symex/src/project"
	"symex/src/report"
	"symex/src/util"
	"symex/src/vm"
)

// run drives one end-to-end symbolic execution: load the bitcode, build a
// VM rooted at opt.Entry, explore every path to termination, and render
// each terminated path's report.
func run(opt util.Options) error {
	util.SetVerbose(opt.Verbose)

	proj, err := project.Load(opt.BitcodeFiles)
	if err != nil {
		return fmt.Errorf("loading project: %w", err)
	}

	metrics := executor.NewMetrics(prometheus.NewRegistry())
	machine, err := vm.New(proj, opt.Entry, opt.Bounds, metrics, opt.NullCheck)
	if err != nil {
		return fmt.Errorf("building vm: %w", err)
	}
	util.WithRun(machine.RunID).Infof("exploring %s", opt.Entry)

	results := machine.Run()

	out := os.Stdout
	if opt.Out != "" {
		f, err := os.OpenFile(opt.Out, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("opening output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	reporter := report.New(opt.Report)
	failed := false
	for _, pair := range results {
		rec, err := reporter.Build(pair)
		if err != nil {
			util.Log.WithError(err).Warnf("path %d: solving witnesses", pair.Result.PathIndex)
			continue
		}
		printRecord(out, rec)
		if rec.Outcome == vm.OutcomeFailure {
			failed = true
		}
	}
	util.WithRun(machine.RunID).Infof("explored %d paths", len(results))
	if failed {
		return errFailingPath
	}
	return nil
}

var errFailingPath = fmt.Errorf("one or more paths reported a program failure")

func printRecord(out *os.File, rec report.Record) {
	line := report.FormatSummary(rec)
	switch rec.Outcome {
	case vm.OutcomeSuccess:
		color.New(color.FgGreen).Fprintln(out, line)
	case vm.OutcomeFailure:
		color.New(color.FgRed).Fprintln(out, line)
	default:
		color.New(color.FgYellow).Fprintln(out, line)
	}
}

func newRootCmd() *cobra.Command {
	opt := util.DefaultOptions()
	var out string

	root := &cobra.Command{
		Use:     "spexec",
		Short:   "Symbolic execution engine for LLVM bitcode",
		Version: util.Version(),
	}

	runCmd := &cobra.Command{
		Use:   "run <bitcode-file> [more-bitcode-files...]",
		Short: "Explore every feasible path through --entry and report the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opt.BitcodeFiles = args
			opt.Out = out
			if err := opt.Validate(); err != nil {
				return err
			}
			return run(opt)
		},
	}
	runCmd.Flags().StringVar(&opt.Entry, "entry", "main", "entry function name")
	runCmd.Flags().BoolVarP(&opt.Verbose, "verbose", "v", false, "enable debug logging")
	runCmd.Flags().BoolVar(&opt.NullCheck, "null-check", false, "fail paths that may dereference a null pointer")
	runCmd.Flags().StringVarP(&out, "out", "o", "", "write the report here instead of stdout")
	runCmd.Flags().IntVar(&opt.Bounds.MaxCallDepth, "max-call-depth", opt.Bounds.MaxCallDepth, "maximum live call depth before a path is failed")
	runCmd.Flags().IntVar(&opt.Bounds.MaxIterCount, "max-iter-count", opt.Bounds.MaxIterCount, "maximum br/switch transitions before a path is failed")
	runCmd.Flags().IntVar(&opt.Bounds.MaxFnPtrResolutions, "max-fn-ptr-resolutions", opt.Bounds.MaxFnPtrResolutions, "maximum function-pointer concretizations per indirect call")
	runCmd.Flags().IntVar(&opt.Bounds.MaxMemoryAccessResolutions, "max-memory-access-resolutions", opt.Bounds.MaxMemoryAccessResolutions, "maximum address concretizations per load/store")

	root.AddCommand(runCmd)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
