package sim

import "fmt"

// EventSink is one destination of an event route. An empty Kind keeps the
// source kind.
type EventSink struct {
	Model string    `yaml:"model"`
	Kind  EventKind `yaml:"kind,omitempty"`
}

// EventRoute fans an event kind emitted by Source out to its sinks.
// Source is either an atomic model exporting Kind or a coupled model importing
// Kind from outside (external input coupling).
type EventRoute struct {
	Source string      `yaml:"source"`
	Kind   EventKind   `yaml:"kind"`
	Sinks  []EventSink `yaml:"sinks"`
}

type routeKey struct {
	source string
	kind   EventKind
}

// RoutingTable maps (source model, event kind) to its ordered sinks.
// It is immutable once built.
type RoutingTable struct {
	routes map[routeKey][]EventSink
}

// Sinks returns the sinks registered for (source, kind), already resolved to
// concrete sink kinds.
func (rt *RoutingTable) Sinks(source string, kind EventKind) []EventSink {
	return rt.routes[routeKey{source, kind}]
}

// Len returns the number of (source, kind) entries.
func (rt *RoutingTable) Len() int { return len(rt.routes) }

// buildRoutingTable validates every route against the instantiated models and
// coupled descriptors and returns the resolved table.
func buildRoutingTable(routes []EventRoute, models map[string]AtomicModel, coupled map[string]CoupledDescriptor, cerr *ConfigError) *RoutingTable {
	rt := &RoutingTable{routes: make(map[routeKey][]EventSink, len(routes))}
	declared := make(map[routeKey]bool, len(routes))
	for i, r := range routes {
		where := fmt.Sprintf("route[%d] %s/%s", i, r.Source, r.Kind)
		key := routeKey{r.Source, r.Kind}
		if declared[key] {
			cerr.addf("%s: (source, kind) declared more than once", where)
			continue
		}
		declared[key] = true
		ok := true
		if m, isAtomic := models[r.Source]; isAtomic {
			if !m.core().Exports(r.Kind) {
				cerr.addf("%s: source does not export %s", where, r.Kind)
				ok = false
			}
		} else if c, isCoupled := coupled[r.Source]; isCoupled {
			if !containsKind(c.ImportedEvents, r.Kind) {
				cerr.addf("%s: coupled source does not import %s", where, r.Kind)
				ok = false
			}
		} else {
			cerr.addf("%s: unknown source model %q", where, r.Source)
			ok = false
		}
		if len(r.Sinks) == 0 {
			cerr.addf("%s: no sinks", where)
			ok = false
		}
		seen := make(map[string]bool, len(r.Sinks))
		resolved := make([]EventSink, 0, len(r.Sinks))
		for _, s := range r.Sinks {
			kind := s.Kind
			if kind == "" {
				kind = r.Kind
			}
			sink, isAtomic := models[s.Model]
			if !isAtomic {
				cerr.addf("%s: sink %q is not an atomic model", where, s.Model)
				ok = false
				continue
			}
			if seen[s.Model] {
				cerr.addf("%s: sink %q listed twice", where, s.Model)
				ok = false
				continue
			}
			seen[s.Model] = true
			if !sink.core().Imports(kind) {
				cerr.addf("%s: sink %q does not import %s", where, s.Model, kind)
				ok = false
				continue
			}
			resolved = append(resolved, EventSink{Model: s.Model, Kind: kind})
		}
		if ok {
			rt.routes[key] = resolved
		}
	}
	return rt
}

func containsKind(kinds []EventKind, k EventKind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}
