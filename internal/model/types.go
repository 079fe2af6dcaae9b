// Package model holds the run outputs persisted by the storage layer. Agent
// state is never persisted; only what a run produced.
package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type PopulationSummary struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Size  int    `json:"size"`
}

type RunSummary struct {
	VersionedRecord
	RunID       string  `json:"run_id"`
	Dt          float64 `json:"dt"`
	Duration    float64 `json:"duration"`
	Generations int     `json:"generations"`
	Agents      int     `json:"agents"`
	Synapses    int     `json:"synapses"`
	Spikes      int     `json:"spikes"`

	// MonitorEvents counts the payloads drained by every monitor.
	MonitorEvents int                 `json:"monitor_events"`
	Populations   []PopulationSummary `json:"populations"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    time.Time           `json:"finished_at"`
}

// SpikeRecord lists the firing times of one recorded neuron.
type SpikeRecord struct {
	VersionedRecord
	Agent      uint64    `json:"agent"`
	Population string    `json:"population"`
	Times      []float64 `json:"times"`
}

// SynapseWeight is the weight of one synapse when the run ended.
type SynapseWeight struct {
	VersionedRecord
	Synapse uint64  `json:"synapse"`
	Flag    string  `json:"flag"`
	Weight  float64 `json:"weight"`
}
