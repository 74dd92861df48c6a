package sim

import (
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// AtomicDescriptor says how to create one atomic model. New takes precedence
// over Type, which is resolved through the model-type registry.
type AtomicDescriptor struct {
	Type string       `yaml:"type"`
	New  ModelFactory `yaml:"-"`
}

// CoupledDescriptor groups submodels (atomic or coupled) and declares the event
// kinds the coupled model accepts from outside.
type CoupledDescriptor struct {
	Submodels      []string    `yaml:"submodels"`
	ImportedEvents []EventKind `yaml:"imported_events,omitempty"`
}

// Architecture describes a simulatable household: its models and their wiring.
// It is a plain description; ConstructSimulator validates it and instantiates
// the models.
type Architecture struct {
	RootURI      string                       `yaml:"root"`
	TimeUnit     time.Duration                `yaml:"time_unit"`
	Acceleration float64                      `yaml:"acceleration"`
	Atomic       map[string]AtomicDescriptor  `yaml:"atomic"`
	Coupled      map[string]CoupledDescriptor `yaml:"coupled"`
	Routes       []EventRoute                 `yaml:"routes"`
	Bindings     []VariableBinding            `yaml:"bindings"`
}

// NewArchitecture returns an empty architecture rooted at rootURI.
func NewArchitecture(rootURI string, timeUnit time.Duration, acceleration float64) *Architecture {
	return &Architecture{
		RootURI:      rootURI,
		TimeUnit:     timeUnit,
		Acceleration: acceleration,
		Atomic:       make(map[string]AtomicDescriptor),
		Coupled:      make(map[string]CoupledDescriptor),
	}
}

// AddAtomic registers an atomic model created by factory.
func (a *Architecture) AddAtomic(uri string, factory ModelFactory) *Architecture {
	a.Atomic[uri] = AtomicDescriptor{New: factory}
	return a
}

// AddAtomicType registers an atomic model resolved from the model-type registry.
func (a *Architecture) AddAtomicType(uri, typeName string) *Architecture {
	a.Atomic[uri] = AtomicDescriptor{Type: typeName}
	return a
}

// AddCoupled registers a coupled model.
func (a *Architecture) AddCoupled(uri string, imported []EventKind, submodels ...string) *Architecture {
	a.Coupled[uri] = CoupledDescriptor{Submodels: submodels, ImportedEvents: imported}
	return a
}

// Route adds an event route from (source, kind) to sinks.
func (a *Architecture) Route(source string, kind EventKind, sinks ...EventSink) *Architecture {
	a.Routes = append(a.Routes, EventRoute{Source: source, Kind: kind, Sinks: sinks})
	return a
}

// Bind adds a variable binding from source.variable to sinks.
func (a *Architecture) Bind(source, variable string, sinks ...VariableSink) *Architecture {
	a.Bindings = append(a.Bindings, VariableBinding{Source: source, Variable: variable, Sinks: sinks})
	return a
}

// ConstructSimulator validates the architecture, instantiates and parameterises
// its atomic models and returns a simulator ready to run. Every problem is
// reported in a single *ConfigError before any simulation step runs.
func (a *Architecture) ConstructSimulator(params Params, opts ...Option) (*Simulator, error) {
	cerr := &ConfigError{}

	if !(a.Acceleration > 0) {
		cerr.addf("acceleration factor must be > 0, got %v", a.Acceleration)
	}
	if a.TimeUnit <= 0 {
		cerr.addf("time unit must be positive, got %s", a.TimeUnit)
	}
	for uri := range a.Atomic {
		if _, both := a.Coupled[uri]; both {
			cerr.addf("model %q has both an atomic and a coupled descriptor", uri)
		}
	}
	a.validateHierarchy(cerr)

	models := a.instantiate(params, cerr)
	routes := buildRoutingTable(a.Routes, models, a.Coupled, cerr)
	bindings, edges := buildBindingTable(a.Bindings, models, cerr)
	order := topologicalOrder(models, edges, cerr)

	if err := cerr.orNil(); err != nil {
		return nil, err
	}
	logrus.Debugf("architecture %s: %d atomic, %d coupled, %d routes, %d bindings, order %v",
		a.RootURI, len(models), len(a.Coupled), routes.Len(), bindings.Len(), order)
	return newSimulator(a, models, order, routes, bindings, opts...), nil
}

// validateHierarchy checks that the containment tree is rooted at RootURI,
// references only declared models, gives each model at most one parent and
// reaches every declared model.
func (a *Architecture) validateHierarchy(cerr *ConfigError) {
	_, rootAtomic := a.Atomic[a.RootURI]
	_, rootCoupled := a.Coupled[a.RootURI]
	if !rootAtomic && !rootCoupled {
		cerr.addf("root model %q is not declared", a.RootURI)
		return
	}

	parent := make(map[string]string)
	for _, uri := range sortedKeys(a.Coupled) {
		for _, sub := range a.Coupled[uri].Submodels {
			_, isAtomic := a.Atomic[sub]
			_, isCoupled := a.Coupled[sub]
			if !isAtomic && !isCoupled {
				cerr.addf("coupled model %q contains undeclared submodel %q", uri, sub)
				continue
			}
			if sub == a.RootURI {
				cerr.addf("root model %q cannot be a submodel of %q", sub, uri)
				continue
			}
			if p, dup := parent[sub]; dup {
				cerr.addf("model %q has two parents: %q and %q", sub, p, uri)
				continue
			}
			parent[sub] = uri
		}
	}

	reached := map[string]bool{}
	var visit func(uri string, path map[string]bool)
	visit = func(uri string, path map[string]bool) {
		if path[uri] {
			cerr.addf("containment cycle through %q", uri)
			return
		}
		if reached[uri] {
			return
		}
		reached[uri] = true
		path[uri] = true
		for _, sub := range a.Coupled[uri].Submodels {
			visit(sub, path)
		}
		delete(path, uri)
	}
	visit(a.RootURI, map[string]bool{})

	for _, uri := range sortedKeys(a.Atomic) {
		if !reached[uri] {
			cerr.addf("atomic model %q is not reachable from root %q", uri, a.RootURI)
		}
	}
	for _, uri := range sortedKeys(a.Coupled) {
		if !reached[uri] {
			cerr.addf("coupled model %q is not reachable from root %q", uri, a.RootURI)
		}
	}
}

// instantiate creates every atomic model and hands it its run parameters.
func (a *Architecture) instantiate(params Params, cerr *ConfigError) map[string]AtomicModel {
	models := make(map[string]AtomicModel, len(a.Atomic))
	for _, uri := range sortedKeys(a.Atomic) {
		desc := a.Atomic[uri]
		factory := desc.New
		if factory == nil {
			f, ok := LookupModelType(desc.Type)
			if !ok {
				cerr.addf("atomic model %q: unknown model type %q", uri, desc.Type)
				continue
			}
			factory = f
		}
		m := factory(uri)
		if m == nil {
			cerr.addf("atomic model %q: factory returned nil", uri)
			continue
		}
		if m.URI() != uri {
			cerr.addf("atomic model %q: factory returned a model named %q", uri, m.URI())
			continue
		}
		if p, ok := m.(Parameterised); ok {
			if err := p.SetParameters(params); err != nil {
				var nested *ConfigError
				if errors.As(err, &nested) {
					for _, problem := range nested.Problems {
						cerr.addf("atomic model %q: %s", uri, problem)
					}
				} else {
					cerr.addf("atomic model %q: %v", uri, err)
				}
				continue
			}
		}
		models[uri] = m
	}
	return models
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
