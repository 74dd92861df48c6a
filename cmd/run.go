package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rvila94/ALASCA-sub001/household"
	"github.com/rvila94/ALASCA-sub001/sim"
	"github.com/rvila94/ALASCA-sub001/sim/scenario"
	"github.com/rvila94/ALASCA-sub001/sim/trace"
)

var (
	archPath     string // Architecture YAML, empty for the built-in household
	scenarioPath string // Scenario YAML
	traceLevel   string // none, events or variables
	traceOut     string // Where the rendered trace goes ("-" for stdout)
	traceDB      string // SQLite trace store
	runID        string // Run identifier, generated when empty
)

// runOptions gathers the flags of the run command.
type runOptions struct {
	ArchPath     string
	ScenarioPath string
	TraceLevel   string
	TraceOut     string
	TraceDB      string
	RunID        string
}

// loadArchitecture reads path, or returns the built-in household when path is
// empty.
func loadArchitecture(path string) (*sim.Architecture, sim.Params, error) {
	if path == "" {
		return household.NewArchitecture(3600), household.DefaultParams(), nil
	}
	return sim.LoadArchitecture(path)
}

// runScenario replays a scenario standalone, writes the rendered trace and the
// tally to w, and stores the trace when asked to.
func runScenario(ctx context.Context, w io.Writer, o runOptions) (*scenario.Tally, error) {
	level, err := trace.ParseTraceLevel(o.TraceLevel)
	if err != nil {
		return nil, err
	}
	arch, params, err := loadArchitecture(o.ArchPath)
	if err != nil {
		return nil, err
	}
	sc, err := scenario.LoadScenario(o.ScenarioPath)
	if err != nil {
		return nil, err
	}
	id := o.RunID
	if id == "" {
		id = uuid.NewString()
	}

	var st *trace.SimulationTrace
	opts := []sim.Option{sim.WithRunID(id)}
	if level != trace.TraceLevelNone {
		st = trace.NewSimulationTrace(trace.TraceConfig{Level: level})
		opts = append(opts, sim.WithTrace(st))
	}
	s, err := arch.ConstructSimulator(params, opts...)
	if err != nil {
		return nil, err
	}
	tally, err := scenario.NewDriver(sc).RunStandalone(s)
	if err != nil {
		return tally, err
	}

	if st != nil {
		if err := writeTrace(w, o.TraceOut, st, arch); err != nil {
			return tally, err
		}
		if o.TraceDB != "" {
			if err := saveTrace(ctx, o.TraceDB, st); err != nil {
				return tally, err
			}
		}
	}

	stats := s.Stats()
	fmt.Fprintf(w, "=== Run %s ===\n", id)
	fmt.Fprintf(w, "Scenario: %s (%s to %s)\n", sc.Name, sc.Start, sc.End)
	fmt.Fprintf(w, "Instants: %d, deliveries: %d\n", stats.Instants, stats.Deliveries)
	for _, r := range tally.Results() {
		verdict := "ok"
		if !r.Passed() {
			verdict = "FAILED: " + r.Err.Error()
		}
		fmt.Fprintf(w, "  [%s] %-40s %s\n", r.At, r.Action, verdict)
	}
	fmt.Fprintf(w, "Steps: %s\n", tally)
	return tally, nil
}

func writeTrace(w io.Writer, out string, st *trace.SimulationTrace, arch *sim.Architecture) error {
	if out == "" {
		return nil
	}
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("trace output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := trace.Render(w, st, arch.TimeUnit); err != nil {
		return err
	}
	summary := trace.Summarize(st)
	logrus.Infof("trace: %d deliveries to %d models, %d updates", summary.TotalDeliveries, summary.UniqueTargets, summary.TotalUpdates)
	return nil
}

func saveTrace(ctx context.Context, path string, st *trace.SimulationTrace) error {
	store, err := trace.OpenStore(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Save(ctx, st); err != nil {
		return err
	}
	logrus.Infof("trace %s saved to %s", st.RunID, path)
	return nil
}

// runCmd replays a scenario against an architecture in pure simulated time
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a scenario in simulated time",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scenarioPath == "" {
			return fmt.Errorf("--scenario is required")
		}
		return withTelemetry(cmd.Context(), func(ctx context.Context) error {
			tally, err := runScenario(ctx, cmd.OutOrStdout(), runOptions{
				ArchPath:     archPath,
				ScenarioPath: scenarioPath,
				TraceLevel:   traceLevel,
				TraceOut:     traceOut,
				TraceDB:      traceDB,
				RunID:        runID,
			})
			if err != nil {
				return err
			}
			return tally.Err()
		})
	},
}

// validateCmd constructs the simulator without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check an architecture and print its models in execution order",
	RunE: func(cmd *cobra.Command, args []string) error {
		arch, params, err := loadArchitecture(archPath)
		if err != nil {
			return err
		}
		s, err := arch.ConstructSimulator(params)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s: %d atomic, %d coupled models\n", arch.RootURI, len(arch.Atomic), len(arch.Coupled))
		fmt.Fprintf(w, "order: %s\n", strings.Join(s.Order(), " -> "))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVar(&archPath, "arch", "", "Architecture YAML (default: the built-in household)")
	}
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario YAML")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Trace level (none, events, variables)")
	runCmd.Flags().StringVar(&traceOut, "trace-out", "-", "Rendered trace destination, - for stdout, empty to skip")
	runCmd.Flags().StringVar(&traceDB, "trace-db", "", "SQLite file the trace is saved to")
	runCmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (default: random UUID)")
}
