package storage

import (
	"context"

	"spikenet/internal/model"
)

// Store persists the outputs of simulation runs, keyed by run id.
type Store interface {
	Init(ctx context.Context) error
	SaveRunSummary(ctx context.Context, summary model.RunSummary) error
	GetRunSummary(ctx context.Context, runID string) (model.RunSummary, bool, error)
	ListRunSummaries(ctx context.Context) ([]model.RunSummary, error)
	SaveSpikeRecords(ctx context.Context, runID string, records []model.SpikeRecord) error
	GetSpikeRecords(ctx context.Context, runID string) ([]model.SpikeRecord, bool, error)
	SaveSynapseWeights(ctx context.Context, runID string, weights []model.SynapseWeight) error
	GetSynapseWeights(ctx context.Context, runID string) ([]model.SynapseWeight, bool, error)
}
