package stats

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"spikenet/internal/model"
)

func TestWriteRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := RunArtifacts{
		Summary: model.RunSummary{RunID: "run-123", Dt: 1, Duration: 40, Generations: 40},
		Records: []model.SpikeRecord{
			{Agent: 2, Population: "pre", Times: []float64{14, 30}},
			{Agent: 1, Population: "pre", Times: []float64{14}},
			{Agent: 3, Population: "post", Times: []float64{15}},
		},
		Weights: []model.SynapseWeight{{Synapse: 4, Flag: "stdp", Weight: 1.05}},
	}

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	if runDir != filepath.Join(baseDir, "run-123") {
		t.Fatalf("unexpected run dir %s", runDir)
	}
	for _, file := range []string{"summary.json", "spike_records.json", "synapse_weights.json", "firing_rates.json", "spikes.csv"} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	rows, ok, err := ReadSpikeRaster(runDir)
	if err != nil || !ok {
		t.Fatalf("read raster: ok=%t err=%v", ok, err)
	}
	want := []RasterRow{
		{Population: "pre", Agent: 1, Time: 14},
		{Population: "pre", Agent: 2, Time: 14},
		{Population: "post", Agent: 3, Time: 15},
		{Population: "pre", Agent: 2, Time: 30},
	}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %v", len(want), rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("row %d: got %+v want %+v", i, rows[i], want[i])
		}
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected error for missing run id")
	}
}

func TestFiringRates(t *testing.T) {
	records := []model.SpikeRecord{
		{Agent: 1, Population: "exc", Times: []float64{1, 2, 3, 4}},
		{Agent: 2, Population: "exc", Times: []float64{5, 6}},
		{Agent: 3, Population: "inh"},
	}
	rates := FiringRates(records, 500)
	if len(rates) != 2 || rates[0].Population != "exc" || rates[1].Population != "inh" {
		t.Fatalf("unexpected populations: %+v", rates)
	}
	// 6 spikes over 2 agents in 0.5 s
	if rates[0].Agents != 2 || rates[0].Spikes != 6 || math.Abs(rates[0].RateHz-6) > 1e-12 {
		t.Fatalf("unexpected exc rate: %+v", rates[0])
	}
	if rates[1].RateHz != 0 {
		t.Fatalf("expected silent inh, got %+v", rates[1])
	}

	if zero := FiringRates(records, 0); zero[0].RateHz != 0 {
		t.Fatalf("expected zero rate for zero duration, got %+v", zero[0])
	}
}

func TestReadSpikeRasterMissing(t *testing.T) {
	rows, ok, err := ReadSpikeRaster(t.TempDir())
	if err != nil || ok || rows != nil {
		t.Fatalf("expected missing raster, got %v %t %v", rows, ok, err)
	}
}
