package neuron

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"spikenet/internal/operation"
)

var (
	ErrModelExists   = errors.New("neuron model already registered")
	ErrModelNotFound = errors.New("neuron model not found")
	ErrInvalidParams = errors.New("invalid neuron parameters")
)

// Factory builds one neuron from its config parameters.
type Factory func(params map[string]float64, opts ...Option) (operation.Active, error)

var modelRegistry = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{
	m: make(map[string]Factory),
}

func init() {
	registerDefaultModels()
}

func registerDefaultModels() {
	_ = Register("counter", func(params map[string]float64, opts ...Option) (operation.Active, error) {
		p, err := CounterParamsFromMap(params)
		if err != nil {
			return nil, err
		}
		return NewCounter(p, opts...), nil
	})
	_ = Register("lif", func(params map[string]float64, opts ...Option) (operation.Active, error) {
		p, err := LIFParamsFromMap(params)
		if err != nil {
			return nil, err
		}
		return NewLIF(p, opts...), nil
	})
	_ = Register("izhikevich", func(params map[string]float64, opts ...Option) (operation.Active, error) {
		p, err := IzhikevichParamsFromMap(params)
		if err != nil {
			return nil, err
		}
		return NewIzhikevich(p, opts...), nil
	})
}

func Register(name string, factory Factory) error {
	if name == "" {
		return errors.New("model name is required")
	}
	if factory == nil {
		return errors.New("model factory is required")
	}

	modelRegistry.mu.Lock()
	defer modelRegistry.mu.Unlock()
	if _, exists := modelRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrModelExists, name)
	}
	modelRegistry.m[name] = factory
	return nil
}

// Build resolves name and constructs a neuron from params.
func Build(name string, params map[string]float64, opts ...Option) (operation.Active, error) {
	modelRegistry.mu.RLock()
	factory, ok := modelRegistry.m[name]
	modelRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return factory(params, opts...)
}

func Models() []string {
	modelRegistry.mu.RLock()
	defer modelRegistry.mu.RUnlock()
	names := make([]string, 0, len(modelRegistry.m))
	for name := range modelRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetRegistryForTests() {
	modelRegistry.mu.Lock()
	modelRegistry.m = make(map[string]Factory)
	modelRegistry.mu.Unlock()
	registerDefaultModels()
}
