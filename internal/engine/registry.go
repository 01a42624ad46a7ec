package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/petrijr/grafo/pkg/api"
)

// stepRegistry holds the named step functions and their metadata.
// Registration happens during single-threaded startup; lookups are
// concurrent once runs are in flight.
type stepRegistry struct {
	mu    sync.RWMutex
	steps map[string]api.StepDefinition
}

func newStepRegistry() *stepRegistry {
	return &stepRegistry{
		steps: make(map[string]api.StepDefinition),
	}
}

func (r *stepRegistry) Register(def api.StepDefinition) error {
	if def.Name == "" {
		return errors.New("step name is required")
	}
	if def.Name == api.End {
		return fmt.Errorf("step name %q is reserved", api.End)
	}
	if def.Fn == nil {
		return fmt.Errorf("step %q has no function", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.steps[def.Name]; exists {
		return &api.DuplicateNameError{Name: def.Name}
	}

	r.steps[def.Name] = def
	return nil
}

func (r *stepRegistry) Lookup(name string) (api.StepDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.steps[name]
	if !ok {
		return api.StepDefinition{}, &api.UnknownStepError{Name: name}
	}
	return def, nil
}

func (r *stepRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.steps))
	for name := range r.steps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// graphRegistry holds validated, frozen graph definitions by name.
type graphRegistry struct {
	mu     sync.RWMutex
	graphs map[string]api.GraphDefinition
}

func newGraphRegistry() *graphRegistry {
	return &graphRegistry{
		graphs: make(map[string]api.GraphDefinition),
	}
}

func (r *graphRegistry) Register(def api.GraphDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.graphs[def.Name]; exists {
		return fmt.Errorf("graph already registered: %s", def.Name)
	}

	r.graphs[def.Name] = def.Frozen()
	return nil
}

func (r *graphRegistry) Get(name string) (api.GraphDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.graphs[name]
	if !ok {
		return api.GraphDefinition{}, fmt.Errorf("%w: %s", api.ErrGraphNotFound, name)
	}
	return def, nil
}
