package sim

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// VariableSink is one destination of a variable binding. An empty Variable
// keeps the source variable name.
type VariableSink struct {
	Model    string `yaml:"model"`
	Variable string `yaml:"variable,omitempty"`
}

// VariableBinding propagates an exported variable of Source into imported
// variables of other models.
type VariableBinding struct {
	Source   string         `yaml:"source"`
	Variable string         `yaml:"variable"`
	Sinks    []VariableSink `yaml:"sinks"`
}

// boundVar is one resolved binding edge.
type boundVar struct {
	src  *Variable
	sink *Variable
}

// BindingTable maps each exported variable to the imported variables it feeds.
// It is immutable once built.
type BindingTable struct {
	bySource map[*Variable][]*Variable
	edges    int
}

// Targets returns the imported variables fed by src.
func (bt *BindingTable) Targets(src *Variable) []*Variable {
	return bt.bySource[src]
}

// Len returns the number of (source variable, sink variable) edges.
func (bt *BindingTable) Len() int { return bt.edges }

// buildBindingTable validates every binding against the instantiated models.
// Every imported variable must be bound exactly once.
func buildBindingTable(bindings []VariableBinding, models map[string]AtomicModel, cerr *ConfigError) (*BindingTable, []boundVar) {
	bt := &BindingTable{bySource: make(map[*Variable][]*Variable)}
	var edges []boundVar
	boundTo := make(map[*Variable]string)

	for i, b := range bindings {
		where := fmt.Sprintf("binding[%d] %s.%s", i, b.Source, b.Variable)
		srcModel, ok := models[b.Source]
		if !ok {
			cerr.addf("%s: unknown source model %q", where, b.Source)
			continue
		}
		src, ok := srcModel.core().Variable(b.Variable)
		if !ok {
			cerr.addf("%s: source model has no variable %q", where, b.Variable)
			continue
		}
		if src.Direction() != Exported {
			cerr.addf("%s: source variable is not exported", where)
			continue
		}
		if len(b.Sinks) == 0 {
			cerr.addf("%s: no sinks", where)
		}
		for _, s := range b.Sinks {
			name := s.Variable
			if name == "" {
				name = b.Variable
			}
			sinkModel, ok := models[s.Model]
			if !ok {
				cerr.addf("%s: unknown sink model %q", where, s.Model)
				continue
			}
			sink, ok := sinkModel.core().Variable(name)
			if !ok {
				cerr.addf("%s: sink model %q has no variable %q", where, s.Model, name)
				continue
			}
			if sink.Direction() != Imported {
				cerr.addf("%s: sink variable %s.%s is not imported", where, s.Model, name)
				continue
			}
			if sink.Type() != src.Type() {
				cerr.addf("%s: type mismatch, source is %s but sink %s.%s is %s", where, src.Type(), s.Model, name, sink.Type())
				continue
			}
			if prev, dup := boundTo[sink]; dup {
				cerr.addf("%s: sink %s.%s already bound from %s", where, s.Model, name, prev)
				continue
			}
			boundTo[sink] = b.Source + "." + b.Variable
			bt.bySource[src] = append(bt.bySource[src], sink)
			bt.edges++
			edges = append(edges, boundVar{src: src, sink: sink})
		}
	}

	uris := make([]string, 0, len(models))
	for uri := range models {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	for _, uri := range uris {
		for _, v := range models[uri].Variables() {
			if v.Direction() == Imported {
				if _, bound := boundTo[v]; !bound {
					cerr.addf("imported variable %s.%s is not bound to any exported variable", uri, v.Name())
				}
			}
		}
	}
	return bt, edges
}

// topologicalOrder orders models so that every binding source precedes its
// sinks. Models unrelated by bindings are ordered by URI. A cycle in the
// binding graph is a configuration error.
func topologicalOrder(models map[string]AtomicModel, edges []boundVar, cerr *ConfigError) []string {
	uris := make([]string, 0, len(models))
	for uri := range models {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	ids := make(map[string]int64, len(uris))
	g := simple.NewDirectedGraph()
	for i, uri := range uris {
		ids[uri] = int64(i)
		g.AddNode(simple.Node(int64(i)))
	}
	for _, e := range edges {
		from, to := ids[e.src.Owner()], ids[e.sink.Owner()]
		if from == to {
			cerr.addf("binding cycle: %s.%s feeds its own model", e.src.Owner(), e.src.Name())
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(from), simple.Node(to)))
	}

	sorted, err := topo.SortStabilized(g, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	})
	if err != nil {
		var cycles topo.Unorderable
		if errors.As(err, &cycles) {
			for _, component := range cycles {
				names := make([]string, 0, len(component))
				for _, n := range component {
					names = append(names, uris[n.ID()])
				}
				sort.Strings(names)
				cerr.addf("binding cycle between %s", strings.Join(names, ", "))
			}
		} else {
			cerr.addf("ordering binding graph: %v", err)
		}
		return uris
	}
	order := make([]string, 0, len(sorted))
	for _, n := range sorted {
		order = append(order, uris[n.ID()])
	}
	return order
}
