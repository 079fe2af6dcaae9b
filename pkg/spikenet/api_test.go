package spikenet

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"spikenet/internal/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{StoreKind: "memory"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func counterConfig(t *testing.T) *config.NetworkConfig {
	t.Helper()
	cfg, err := config.LoadFromFile(filepath.Join("..", "..", "testdata", "configs", "counter_chain.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestClientRunPersistsOutputs(t *testing.T) {
	client := newTestClient(t)
	cfg := counterConfig(t)
	cfg.Run.EventLog = filepath.Join(t.TempDir(), "events.jsonl")

	summary, err := client.Run(context.Background(), RunRequest{Config: cfg})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected generated run id")
	}
	if summary.Generations != 6 {
		t.Fatalf("expected 6 generations, got %d", summary.Generations)
	}
	if summary.Spikes != 2 {
		t.Fatalf("expected 2 recorded spikes, got %d", summary.Spikes)
	}
	if summary.MonitorEvents != 2 {
		t.Fatalf("expected 2 monitor events, got %d", summary.MonitorEvents)
	}

	runs, err := client.Runs(context.Background(), RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID || runs[0].Agents != 3 {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	records, err := client.Records(context.Background(), RecordsRequest{Latest: true, Population: "src"})
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 1 || len(records[0].Times) != 2 {
		t.Fatalf("unexpected records: %+v", records)
	}
	if records[0].Times[0] < 0.29 || records[0].Times[0] > 0.31 {
		t.Fatalf("expected first spike at 0.3, got %v", records[0].Times[0])
	}

	f, err := os.Open(cfg.Run.EventLog)
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	defer f.Close()
	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	if lines != 6 {
		t.Fatalf("expected 6 event lines, got %d", lines)
	}
}

func TestClientRunStoresSynapseWeights(t *testing.T) {
	client := newTestClient(t)
	cfg, err := config.LoadFromFile(filepath.Join("..", "..", "testdata", "configs", "lif_pair.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	summary, err := client.Run(context.Background(), RunRequest{Config: cfg, RunID: "lif-run"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID != "lif-run" {
		t.Fatalf("expected run id lif-run, got %s", summary.RunID)
	}
	weights, err := client.Weights(context.Background(), "lif-run", false)
	if err != nil {
		t.Fatalf("weights: %v", err)
	}
	if len(weights) != 2 {
		t.Fatalf("expected 2 synapse weights, got %d", len(weights))
	}
	for _, w := range weights {
		if w.Flag != "stdp" || w.Weight < 0 || w.Weight > 2 {
			t.Fatalf("unexpected weight: %+v", w)
		}
	}
}

func TestClientRunRejectsInvalidConfig(t *testing.T) {
	client := newTestClient(t)
	cfg := counterConfig(t)
	cfg.Populations[0].Model = "hodgkin_huxley"
	if _, err := client.Run(context.Background(), RunRequest{Config: cfg}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := client.Run(context.Background(), RunRequest{}); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestClientRecordsUnknownRun(t *testing.T) {
	client := newTestClient(t)
	if _, err := client.Records(context.Background(), RecordsRequest{RunID: "missing"}); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := client.Records(context.Background(), RecordsRequest{Latest: true}); err == nil {
		t.Fatal("expected error with no runs stored")
	}
	if _, err := client.Records(context.Background(), RecordsRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected error for run id plus latest")
	}
}

func TestClientExportWritesRunDirectory(t *testing.T) {
	client := newTestClient(t)
	if _, err := client.Run(context.Background(), RunRequest{Config: counterConfig(t), RunID: "export-me"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	outDir := t.TempDir()
	runDir, err := client.Export(context.Background(), ExportRequest{Latest: true, OutDir: outDir})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if runDir != filepath.Join(outDir, "export-me") {
		t.Fatalf("unexpected export dir %s", runDir)
	}
	for _, file := range []string{"summary.json", "spikes.csv", "firing_rates.json"} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected exported %s: %v", file, err)
		}
	}

	if _, err := client.Export(context.Background(), ExportRequest{RunID: "missing", OutDir: outDir}); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := client.Export(context.Background(), ExportRequest{Latest: true}); err == nil {
		t.Fatal("expected error without output directory")
	}
}
