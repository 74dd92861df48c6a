package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/rvila94/ALASCA-sub001/sim/bridge"
	"github.com/rvila94/ALASCA-sub001/sim/scenario"
	"github.com/rvila94/ALASCA-sub001/sim/trace"
	"github.com/rvila94/ALASCA-sub001/testbed"
)

var (
	tbMode         string
	tbAcceleration float64
	tbStartDelay   time.Duration
	tbClockAddr    string
	tbLampAddr     string
	tbFanAddr      string
	tbHeatPumpAddr string
)

// testbedOptions turns the testbed flags into deployment options.
func testbedOptions(sc *scenario.Scenario) (testbed.Options, error) {
	mode, err := bridge.ParseExecutionMode(tbMode)
	if err != nil {
		return testbed.Options{}, err
	}
	arch, params, err := loadArchitecture(archPath)
	if err != nil {
		return testbed.Options{}, err
	}
	arch.Acceleration = tbAcceleration

	opts := testbed.DefaultOptions(sc)
	opts.Mode = mode
	opts.Acceleration = tbAcceleration
	opts.StartDelay = tbStartDelay
	opts.Architecture = arch
	opts.Params = params
	opts.RunID = runID
	opts.Endpoints = map[string]string{
		testbed.ClockEndpoint:    tbClockAddr,
		testbed.LampEndpoint:     tbLampAddr,
		testbed.FanEndpoint:      tbFanAddr,
		testbed.HeatPumpEndpoint: tbHeatPumpAddr,
	}
	level, err := trace.ParseTraceLevel(traceLevel)
	if err != nil {
		return testbed.Options{}, err
	}
	if level != trace.TraceLevelNone && mode == bridge.Hybrid {
		opts.Trace = trace.NewSimulationTrace(trace.TraceConfig{Level: level})
	}
	return opts, nil
}

func printReport(w io.Writer, r *testbed.Report) {
	fmt.Fprintf(w, "=== Testbed %s ===\n", r.RunID)
	names := make([]string, 0, len(r.Endpoints))
	for n := range r.Endpoints {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-9s %s\n", n, r.Endpoints[n])
	}
	if r.Tally != nil {
		fmt.Fprintf(w, "Steps: %s\n", r.Tally)
	}
	for _, c := range r.Checks {
		verdict := "ok"
		if c.Err != nil {
			verdict = "FAILED: " + c.Err.Error()
		}
		fmt.Fprintf(w, "  check %-30s %s\n", c.Action, verdict)
	}
	if r.Stats.Instants > 0 {
		fmt.Fprintf(w, "Simulated: %d instants, %d deliveries\n", r.Stats.Instants, r.Stats.Deliveries)
	}
}

// testbedCmd deploys the live appliances and, in hybrid mode, their simulator
var testbedCmd = &cobra.Command{
	Use:   "testbed",
	Short: "Serve the clock and the live appliances, then replay a scenario through them",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scenarioPath == "" {
			return fmt.Errorf("--scenario is required")
		}
		sc, err := scenario.LoadScenario(scenarioPath)
		if err != nil {
			return err
		}
		opts, err := testbedOptions(sc)
		if err != nil {
			return err
		}
		return withTelemetry(cmd.Context(), func(ctx context.Context) error {
			report, err := testbed.Run(ctx, opts)
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			if opts.Trace != nil && traceDB != "" {
				if err := saveTrace(ctx, traceDB, opts.Trace); err != nil {
					return err
				}
			}
			return report.Err()
		})
	},
}

func init() {
	f := testbedCmd.Flags()
	f.StringVar(&archPath, "arch", "", "Architecture YAML (default: the built-in household)")
	f.StringVar(&scenarioPath, "scenario", "", "Scenario YAML")
	f.StringVar(&tbMode, "mode", "hybrid", "Execution mode (live, hybrid)")
	f.Float64Var(&tbAcceleration, "acceleration", 3600, "Simulated seconds per wall-clock second")
	f.DurationVar(&tbStartDelay, "start-delay", 2*time.Second, "Wall time before the scenario starts")
	f.StringVar(&tbClockAddr, "clock-addr", "127.0.0.1:0", "Clock service listen address")
	f.StringVar(&tbLampAddr, "lamp-addr", "127.0.0.1:0", "Lamp listen address")
	f.StringVar(&tbFanAddr, "fan-addr", "127.0.0.1:0", "Fan listen address")
	f.StringVar(&tbHeatPumpAddr, "heatpump-addr", "127.0.0.1:0", "Heat pump listen address")
	f.StringVar(&traceLevel, "trace", "none", "Trace level of the hybrid simulator (none, events, variables)")
	f.StringVar(&traceDB, "trace-db", "", "SQLite file the hybrid trace is saved to")
	f.StringVar(&runID, "run-id", "", "Run identifier (default: random UUID)")
}
