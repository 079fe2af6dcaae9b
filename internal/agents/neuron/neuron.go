// Package neuron implements the active agents: clock-driven neurons that
// report Fired every generation.
package neuron

import (
	"fmt"
	"log/slog"
)

type options struct {
	logger *slog.Logger
}

type Option func(*options)

// WithLogger sets where severed edges and dropped events are reported.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// param reads name from params, falling back to def. Unknown keys are
// rejected by the model constructors, not here.
func param(params map[string]float64, name string, def float64) float64 {
	if v, ok := params[name]; ok {
		return v
	}
	return def
}

func checkKeys(model string, params map[string]float64, known ...string) error {
	allowed := make(map[string]struct{}, len(known))
	for _, k := range known {
		allowed[k] = struct{}{}
	}
	for k := range params {
		if _, ok := allowed[k]; !ok {
			return fmt.Errorf("%w: %s has no parameter %q", ErrInvalidParams, model, k)
		}
	}
	return nil
}
