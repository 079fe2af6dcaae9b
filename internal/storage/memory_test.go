package storage

import (
	"context"
	"testing"
	"time"

	"spikenet/internal/model"
)

func TestMemoryStoreRunSummaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	summary := model.RunSummary{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-1",
		Dt:              0.1,
		Generations:     10,
		Populations:     []model.PopulationSummary{{Name: "src", Model: "counter", Size: 2}},
	}
	if err := store.SaveRunSummary(ctx, summary); err != nil {
		t.Fatalf("save summary: %v", err)
	}
	summary.Populations[0].Size = 99

	loaded, ok, err := store.GetRunSummary(ctx, "run-1")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted summary")
	}
	if loaded.Generations != 10 || loaded.Populations[0].Size != 2 {
		t.Fatalf("unexpected summary: %+v", loaded)
	}

	if _, ok, err := store.GetRunSummary(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%t err=%v", ok, err)
	}
}

func TestMemoryStoreSpikeRecordsAreCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.SpikeRecord{{VersionedRecord: CurrentVersion(), Agent: 1, Population: "src", Times: []float64{0.3, 0.6}}}
	if err := store.SaveSpikeRecords(ctx, "run-1", input); err != nil {
		t.Fatalf("save spikes: %v", err)
	}
	input[0].Times[0] = -1

	output, ok, err := store.GetSpikeRecords(ctx, "run-1")
	if err != nil {
		t.Fatalf("get spikes: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted spikes")
	}
	if output[0].Times[0] != 0.3 {
		t.Fatalf("stored records aliased the caller's slice: %+v", output)
	}
}

func TestMemoryStoreListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new", "mid"} {
		offset := map[string]time.Duration{"old": 0, "mid": time.Hour, "new": 2 * time.Hour}[id]
		summary := model.RunSummary{VersionedRecord: CurrentVersion(), RunID: id, StartedAt: base.Add(offset), Generations: i}
		if err := store.SaveRunSummary(ctx, summary); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	list, err := store.ListRunSummaries(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].RunID != "new" || list[1].RunID != "mid" || list[2].RunID != "old" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRunSummary(context.Background(), model.RunSummary{RunID: "x"}); err == nil {
		t.Fatal("expected error before init")
	}
}
