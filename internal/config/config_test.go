package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spikenet/internal/agents/synapse"
	"spikenet/internal/platform"
)

func configPath(name string) string {
	return filepath.Join("..", "..", "testdata", "configs", name)
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(configPath("counter_chain.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Run.Dt != 0.1 || cfg.Run.Duration != 0.6 {
		t.Fatalf("unexpected run section: %+v", cfg.Run)
	}
	if cfg.Run.ReportTimeout != 5*time.Second {
		t.Fatalf("report_timeout = %v, want 5s", cfg.Run.ReportTimeout)
	}
	if cfg.Supervisor.MaxRestarts != 2 || cfg.Supervisor.BackoffFactor != 2 {
		t.Fatalf("unexpected supervisor section: %+v", cfg.Supervisor)
	}
	if cfg.Logging.Format != "text" {
		t.Fatalf("expected default text format, got %q", cfg.Logging.Format)
	}
	if len(cfg.Populations) != 2 || cfg.Populations[0].Params["event_cond"] != 3 {
		t.Fatalf("unexpected populations: %+v", cfg.Populations)
	}
	if !cfg.Projections[0].Direct {
		t.Fatal("expected direct projection")
	}
}

func TestProjectionSynapseParams(t *testing.T) {
	cfg, err := LoadFromFile(configPath("lif_pair.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	params, err := cfg.Projections[0].SynapseParams()
	if err != nil {
		t.Fatalf("synapse params: %v", err)
	}
	if params.Flag != synapse.STDP || params.W != 1 || params.Delay != 1 {
		t.Fatalf("unexpected synapse params: %+v", params)
	}
	if params.WMax != synapse.DefaultParams().WMax {
		t.Fatalf("expected default w_max, got %v", params.WMax)
	}
}

func TestParseJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"run": {"dt": 0.5, "duration": 2}, "populations": [{"name": "a", "model": "counter", "size": 3}]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Run.Dt != 0.5 || cfg.Populations[0].Size != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPIKENET_STORE", "sqlite")
	t.Setenv("SPIKENET_DB_PATH", "/tmp/spikenet.db")
	t.Setenv("SPIKENET_LOG_LEVEL", "trace")
	t.Setenv("SPIKENET_PARALLELISM", "4")

	cfg, err := Parse([]byte("run: {dt: 1}\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Run.Store != "sqlite" || cfg.Run.DBPath != "/tmp/spikenet.db" {
		t.Fatalf("store overrides not applied: %+v", cfg.Run)
	}
	if cfg.Logging.Level != "trace" || cfg.Run.Parallelism != 4 {
		t.Fatalf("overrides not applied: level=%s parallelism=%d", cfg.Logging.Level, cfg.Run.Parallelism)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Run.Dt = 0
	cfg.Run.Store = "sqlite"
	cfg.Supervisor.Restart = "sometimes"
	cfg.Logging.Level = "loud"
	cfg.Populations = []PopulationConfig{
		{Name: "a", Model: "counter", Size: 1},
		{Name: "a", Model: "counter", Size: 1},
		{Name: "b", Model: "izhikevich", Size: 1},
	}
	cfg.Projections = []ProjectionConfig{{Pre: "a", Post: "missing", Connector: "ring"}}
	cfg.Recordings = []string{"ghost"}

	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	for _, want := range []string{
		"dt must be > 0",
		"db_path is required",
		"unsupported restart policy",
		"invalid log level",
		"duplicate name a",
		"unknown model",
		"unknown post population",
		"unknown connector",
		"recordings: unknown population",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestSupervisorPolicy(t *testing.T) {
	cfg := Default()
	cfg.Supervisor.Strategy = string(platform.StrategyOneForAll)
	policy := cfg.Supervisor.Policy()
	if policy.Strategy != platform.StrategyOneForAll || policy.MaxRestarts != 3 {
		t.Fatalf("unexpected policy: %+v", policy)
	}
}
