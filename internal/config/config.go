// Package config loads the YAML description of a network run: the run
// parameters, the populations to create, the projections between them and
// what to record.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"spikenet/internal/agents/neuron"
	"spikenet/internal/agents/synapse"
	"spikenet/internal/connector"
	"spikenet/internal/platform"
)

var ErrInvalidConfig = errors.New("invalid config")

type NetworkConfig struct {
	Run         RunConfig          `json:"run" yaml:"run"`
	Supervisor  SupervisorConfig   `json:"supervisor" yaml:"supervisor"`
	Logging     LoggingConfig      `json:"logging" yaml:"logging"`
	Populations []PopulationConfig `json:"populations" yaml:"populations"`
	Projections []ProjectionConfig `json:"projections" yaml:"projections"`
	// Recordings names the populations whose firing times are persisted.
	Recordings  []string           `json:"recordings,omitempty" yaml:"recordings,omitempty"`
	// Monitors names the populations that get a recorder device per member.
	Monitors    []string           `json:"monitors,omitempty" yaml:"monitors,omitempty"`
}

type RunConfig struct {
	// Dt is the step of one generation in ms.
	Dt              float64       `json:"dt" yaml:"dt"`
	// Duration is the simulated time to run in ms.
	Duration        float64       `json:"duration" yaml:"duration"`
	// RunID is generated when empty.
	RunID           string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	// Store is "memory" or "sqlite".
	Store           string        `json:"store" yaml:"store"`
	DBPath          string        `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	ChannelCapacity int           `json:"channel_capacity,omitempty" yaml:"channel_capacity,omitempty"`
	ReportTimeout   time.Duration `json:"report_timeout,omitempty" yaml:"report_timeout,omitempty"`
	Parallelism     int           `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`
	// EventLog is a JSONL file receiving one line per generation.
	EventLog        string        `json:"event_log,omitempty" yaml:"event_log,omitempty"`
}

type SupervisorConfig struct {
	Restart        string        `json:"restart" yaml:"restart"`
	Strategy       string        `json:"strategy" yaml:"strategy"`
	MaxRestarts    int           `json:"max_restarts" yaml:"max_restarts"`
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff" yaml:"max_backoff"`
	BackoffFactor  float64       `json:"backoff_factor" yaml:"backoff_factor"`
}

type LoggingConfig struct {
	// Level is "info" (default), "debug" or "trace".
	Level  string `json:"level" yaml:"level"`
	// Format is "text" (default) or "json".
	Format string `json:"format" yaml:"format"`
}

type PopulationConfig struct {
	Name   string             `json:"name" yaml:"name"`
	Model  string             `json:"model" yaml:"model"`
	Size   int                `json:"size" yaml:"size"`
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

type ProjectionConfig struct {
	Pre       string        `json:"pre" yaml:"pre"`
	Post      string        `json:"post" yaml:"post"`
	Connector string        `json:"connector" yaml:"connector"`
	// Direct wires one-way edges without synapses.
	Direct    bool          `json:"direct,omitempty" yaml:"direct,omitempty"`
	Synapse   SynapseConfig `json:"synapse,omitempty" yaml:"synapse,omitempty"`
}

type SynapseConfig struct {
	// Flag is "static" (default) or "stdp".
	Flag   string             `json:"flag,omitempty" yaml:"flag,omitempty"`
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

// Default returns a config with an empty topology and run defaults.
func Default() *NetworkConfig {
	return &NetworkConfig{
		Run: RunConfig{
			Dt:            0.1,
			Duration:      100,
			Store:         "memory",
			ReportTimeout: 10 * time.Second,
		},
		Supervisor: SupervisorConfig{
			Restart:        string(platform.RestartTransient),
			Strategy:       string(platform.StrategyOneForOne),
			MaxRestarts:    3,
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     200 * time.Millisecond,
			BackoffFactor:  2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile reads a YAML file over Default and applies environment
// overrides. JSON files load too, JSON being a subset of YAML.
func LoadFromFile(path string) (*NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*NetworkConfig, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	applyEnvOverrides(config)
	config.Run.DBPath = os.ExpandEnv(config.Run.DBPath)
	config.Run.EventLog = os.ExpandEnv(config.Run.EventLog)
	return config, nil
}

func applyEnvOverrides(config *NetworkConfig) {
	if v := os.Getenv("SPIKENET_STORE"); v != "" {
		config.Run.Store = v
	}
	if v := os.Getenv("SPIKENET_DB_PATH"); v != "" {
		config.Run.DBPath = v
	}
	if v := os.Getenv("SPIKENET_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("SPIKENET_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Run.Parallelism = n
		}
	}
}

// Validate checks the run parameters and that every projection, recording
// and monitor names a declared population.
func (c *NetworkConfig) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Run.Dt <= 0 {
		add("dt must be > 0, got %v", c.Run.Dt)
	}
	if c.Run.Duration < 0 {
		add("duration must be >= 0, got %v", c.Run.Duration)
	}
	if c.Run.ChannelCapacity < 0 {
		add("channel_capacity must be >= 0, got %d", c.Run.ChannelCapacity)
	}
	if c.Run.ReportTimeout < 0 {
		add("report_timeout must be non-negative, got %v", c.Run.ReportTimeout)
	}
	switch c.Run.Store {
	case "", "memory":
	case "sqlite":
		if c.Run.DBPath == "" {
			add("db_path is required for the sqlite store")
		}
	default:
		add("invalid store: %s (valid: memory, sqlite)", c.Run.Store)
	}

	if _, err := platform.ParseRestartPolicy(c.Supervisor.Restart); err != nil {
		add("%v", err)
	}
	switch platform.Strategy(c.Supervisor.Strategy) {
	case "", platform.StrategyOneForOne, platform.StrategyOneForAll:
	default:
		add("invalid strategy: %s", c.Supervisor.Strategy)
	}
	if c.Supervisor.MaxRestarts < 0 {
		add("max_restarts must be >= 0, got %d", c.Supervisor.MaxRestarts)
	}

	validLevels := map[string]bool{"": true, "info": true, "debug": true, "trace": true}
	if !validLevels[c.Logging.Level] {
		add("invalid log level: %s (valid: info, debug, trace)", c.Logging.Level)
	}
	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		add("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}

	models := neuron.Models()
	declared := make(map[string]bool, len(c.Populations))
	for i, p := range c.Populations {
		switch {
		case p.Name == "":
			add("populations[%d]: name is required", i)
			continue
		case declared[p.Name]:
			add("populations[%d]: duplicate name %s", i, p.Name)
		case !slices.Contains(models, p.Model):
			add("population %s: unknown model %q (valid: %v)", p.Name, p.Model, models)
		case p.Size <= 0:
			add("population %s: size must be > 0, got %d", p.Name, p.Size)
		}
		declared[p.Name] = true
	}

	for i, p := range c.Projections {
		if !declared[p.Pre] {
			add("projections[%d]: unknown pre population %q", i, p.Pre)
		}
		if !declared[p.Post] {
			add("projections[%d]: unknown post population %q", i, p.Post)
		}
		if _, err := connector.Resolve(p.Connector); err != nil {
			add("projections[%d]: %v", i, err)
		}
		if !p.Direct {
			if _, err := p.SynapseParams(); err != nil {
				add("projections[%d]: %v", i, err)
			}
		}
	}

	for _, name := range c.Recordings {
		if !declared[name] {
			add("recordings: unknown population %q", name)
		}
	}
	for _, name := range c.Monitors {
		if !declared[name] {
			add("monitors: unknown population %q", name)
		}
	}
	return errors.Join(errs...)
}

// SynapseParams resolves the synapse section onto synapse.Params.
func (p ProjectionConfig) SynapseParams() (synapse.Params, error) {
	flag, err := synapse.ParseFlag(p.Synapse.Flag)
	if err != nil {
		return synapse.Params{}, err
	}
	return synapse.ParamsFromMap(p.Synapse.Params, flag)
}

func (c SupervisorConfig) Policy() platform.Policy {
	return platform.Policy{
		InitialBackoff: c.InitialBackoff,
		MaxBackoff:     c.MaxBackoff,
		BackoffFactor:  c.BackoffFactor,
		MaxRestarts:    c.MaxRestarts,
		Strategy:       platform.Strategy(c.Strategy),
	}
}
