// Package sim provides the discrete-event engine that runs the household
// models, alone or alongside the live appliances.
//
// # Reading Guide
//
// Start with these three files to understand the engine:
//   - model.go: the AtomicModel contract and Base, which every model embeds
//   - architecture.go: how atomic and coupled models, routes and bindings are
//     described and turned into a Simulator
//   - simulator.go: the instant loop, micro-steps and variable propagation
//
// # Architecture
//
// The sim package owns the kernel; supporting pieces live in sub-packages:
//   - sim/clock/: accelerated clocks mapping simulated instants to wall time
//   - sim/scenario/: timed test scenarios, replayed standalone or live
//   - sim/bridge/: forwarding of live component events into a running simulator
//   - sim/trace/: delivery and variable traces, rendering and SQLite storage
//
// Model packages register their types with RegisterModelType from init(), so
// architecture files can name them.
//
// # Time
//
// Instants are time.Duration values from an arbitrary origin. Infinity means
// "never". Within one instant the engine runs micro-steps until no model is
// imminent and no external event is pending, then runs the hooks scheduled at
// that instant.
package sim
