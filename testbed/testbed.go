// Package testbed deploys the household: it serves the clock and the live
// appliances on named endpoints, optionally runs the simulator in hybrid mode
// with every appliance bridged to its model, and replays a scenario through
// the appliances' clients.
//
// Shutdown disconnects the live services first, then waits for the simulator
// to reach the end of the run.
package testbed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rvila94/ALASCA-sub001/clocksvc"
	"github.com/rvila94/ALASCA-sub001/household/fan"
	"github.com/rvila94/ALASCA-sub001/household/heatpump"
	"github.com/rvila94/ALASCA-sub001/household/lamp"
	"github.com/rvila94/ALASCA-sub001/sim"
	"github.com/rvila94/ALASCA-sub001/sim/bridge"
	"github.com/rvila94/ALASCA-sub001/sim/scenario"
	"github.com/rvila94/ALASCA-sub001/telemetry"
	"github.com/rvila94/ALASCA-sub001/transport"
)

// Report summarises one deployment.
type Report struct {
	RunID     string
	Endpoints map[string]string // actual listen addresses
	Tally     *scenario.Tally
	// Checks holds the scenario expectations, evaluated on the simulator's
	// final state. Empty in live mode.
	Checks []scenario.StepResult
	Stats  sim.RunStats
}

// Err returns an error describing every failed step and check.
func (r *Report) Err() error {
	var errs []error
	if r.Tally != nil {
		errs = append(errs, r.Tally.Err())
	}
	for _, c := range r.Checks {
		if c.Err != nil {
			errs = append(errs, fmt.Errorf("check %d (%s on %s): %w", c.Index, c.Action, c.Target, c.Err))
		}
	}
	return errors.Join(errs...)
}

type endpoint struct {
	name   string
	server *transport.Server
	lis    net.Listener
}

// Run deploys the household described by opts and replays its scenario. It
// returns once the replay and the simulated run are over, or ctx is done.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("testbed options: %w", err)
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx, span := telemetry.Tracer("github.com/rvila94/ALASCA-sub001/testbed").Start(ctx, "testbed.run",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("mode", opts.Mode.String()),
			attribute.String("scenario", opts.Scenario.Name),
		))
	defer span.End()

	report, err := run(ctx, opts, runID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	return report, err
}

func run(ctx context.Context, opts Options, runID string) (*Report, error) {
	sc := opts.Scenario
	report := &Report{RunID: runID, Endpoints: make(map[string]string)}

	clocks := clocksvc.NewRegistry()
	if _, err := clocks.Create(opts.ClockName, opts.StartDelay, sc.Start, opts.Acceleration); err != nil {
		return nil, err
	}

	var simulator *sim.Simulator
	var target bridge.Target
	if opts.Mode == bridge.Hybrid {
		simOpts := []sim.Option{sim.WithRunID(runID)}
		if opts.Trace != nil {
			simOpts = append(simOpts, sim.WithTrace(opts.Trace))
		}
		s, err := opts.Architecture.ConstructSimulator(opts.Params, simOpts...)
		if err != nil {
			return nil, err
		}
		simulator, target = s, s
	}

	lampBridge, err := bridge.New(LampEndpoint, opts.Mode, target)
	if err != nil {
		return nil, err
	}
	fanBridge, err := bridge.New(FanEndpoint, opts.Mode, target)
	if err != nil {
		return nil, err
	}
	pumpBridge, err := bridge.New(HeatPumpEndpoint, opts.Mode, target)
	if err != nil {
		return nil, err
	}
	services := map[string]*transport.Service{
		ClockEndpoint:    clocksvc.Operations(clocks),
		LampEndpoint:     lamp.Operations(lamp.NewService(lamp.DefaultServiceConfig(lamp.ElectricityURI), lampBridge)),
		FanEndpoint:      fan.Operations(fan.NewService(FanEndpoint, fan.ElectricityURI, fanBridge)),
		HeatPumpEndpoint: heatpump.Operations(heatpump.NewService(HeatPumpEndpoint, heatpump.ElectricityURI, pumpBridge)),
	}

	endpoints := make([]endpoint, 0, len(services))
	defer func() {
		for _, ep := range endpoints {
			ep.server.Stop()
		}
	}()
	for _, name := range []string{ClockEndpoint, LampEndpoint, FanEndpoint, HeatPumpEndpoint} {
		lis, err := net.Listen("tcp", opts.Endpoints[name])
		if err != nil {
			return nil, fmt.Errorf("listen %s on %s: %w", name, opts.Endpoints[name], err)
		}
		srv := transport.NewServer()
		srv.Register(services[name])
		endpoints = append(endpoints, endpoint{name: name, server: srv, lis: lis})
		report.Endpoints[name] = lis.Addr().String()
		logrus.Infof("%s serving %s on %s", name, services[name].Name(), lis.Addr())
	}

	conns := make(map[string]*transport.Client, len(endpoints))
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	for _, ep := range endpoints {
		c, err := transport.Dial(report.Endpoints[ep.name])
		if err != nil {
			return nil, err
		}
		conns[ep.name] = c
	}
	clients := Clients{
		Lamp:     lamp.NewClient(conns[LampEndpoint]),
		Fan:      fan.NewClient(conns[FanEndpoint]),
		HeatPump: heatpump.NewClient(conns[HeatPumpEndpoint]),
	}
	live, expectations, err := LiveScenario(sc, clients)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	var stopOnce sync.Once
	disconnect := func() {
		stopOnce.Do(func() {
			for _, ep := range endpoints {
				ep.server.GracefulStop()
			}
			logrus.Infof("live services disconnected")
		})
	}
	for _, ep := range endpoints {
		g.Go(func() error { return ep.server.Serve(ep.lis) })
	}

	simDone := make(chan struct{})
	if simulator != nil {
		clk, err := clocks.Get(opts.ClockName)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			defer close(simDone)
			_, span := telemetry.Tracer("github.com/rvila94/ALASCA-sub001/testbed").Start(gctx, "testbed.simulate")
			defer span.End()
			return simulator.RunRealTime(gctx, clk, sc.Start, sc.End-sc.Start)
		})
	} else {
		close(simDone)
	}

	g.Go(func() error {
		defer disconnect()
		rctx, span := telemetry.Tracer("github.com/rvila94/ALASCA-sub001/testbed").Start(gctx, "testbed.replay")
		defer span.End()

		// the controller shares the deployment clock through the clock service
		clk, err := clocksvc.NewClient(conns[ClockEndpoint]).GetClock(rctx, opts.ClockName)
		if err != nil {
			return fmt.Errorf("fetch clock: %w", err)
		}
		tally, err := scenario.NewDriver(live).RunLive(rctx, clk, refuseInjections{})
		report.Tally = tally
		if err != nil {
			return err
		}
		// live services go before the simulator is released
		disconnect()
		select {
		case <-simDone:
		case <-gctx.Done():
		}
		return nil
	})

	err = g.Wait()
	if simulator != nil {
		report.Stats = simulator.Stats()
		if err == nil {
			report.Checks = evaluate(simulator, expectations)
		}
	}
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			logrus.Warnf("testbed %s interrupted", runID)
		}
		return report, err
	}
	logrus.Infof("testbed %s finished: %s", runID, report.Tally)
	return report, nil
}

func evaluate(s *sim.Simulator, expectations []scenario.Step) []scenario.StepResult {
	out := make([]scenario.StepResult, 0, len(expectations))
	for i, st := range expectations {
		a := st.Action.(scenario.ExpectAction)
		res := scenario.StepResult{
			Index:  i,
			Target: st.Target,
			At:     st.At,
			Action: fmt.Sprintf("expect %s", a.Variable),
			Err:    scenario.Evaluate(s, st.Target, a),
		}
		out = append(out, res)
	}
	return out
}
