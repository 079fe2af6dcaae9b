package neuron

import (
	"errors"
	"testing"

	"spikenet/internal/operation"
)

type modeSetter interface {
	ConfigMode(operation.RunMode)
}

func TestModeRequiresEveryComponentToAgree(t *testing.T) {
	counter := NewCounter(CounterParams{})
	lif := NewLIF(DefaultLIFParams())
	cases := []struct {
		name  string
		agent operation.Configurable
		parts []modeSetter
	}{
		{"counter", counter, []modeSetter{counter.out, counter.postSyn, counter.deviceIn}},
		{"lif", lif, []modeSetter{lif.out, lif.postSyn, lif.deviceIn}},
	}
	for _, tc := range cases {
		for skew := range tc.parts {
			for i, part := range tc.parts {
				if i == skew {
					part.ConfigMode(operation.Idle)
				} else {
					part.ConfigMode(operation.Feedforward)
				}
			}
			if _, err := tc.agent.Mode(); !errors.Is(err, operation.ErrInconsistentMode) {
				t.Fatalf("%s with component %d idle: expected ErrInconsistentMode, got %v", tc.name, skew, err)
			}
		}

		for _, part := range tc.parts {
			part.ConfigMode(operation.Feedforward)
		}
		mode, err := tc.agent.Mode()
		if err != nil || mode != operation.Feedforward {
			t.Fatalf("%s: expected feedforward, got %s %v", tc.name, mode, err)
		}
	}
}
