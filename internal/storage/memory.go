package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"spikenet/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	summaries   map[string]model.RunSummary
	spikes      map[string][]model.SpikeRecord
	weights     map[string][]model.SynapseWeight
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.summaries = make(map[string]model.RunSummary)
	s.spikes = make(map[string][]model.SpikeRecord)
	s.weights = make(map[string][]model.SynapseWeight)
	return nil
}

func (s *MemoryStore) SaveRunSummary(_ context.Context, summary model.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	summary.Populations = append([]model.PopulationSummary(nil), summary.Populations...)
	s.summaries[summary.RunID] = summary
	return nil
}

func (s *MemoryStore) GetRunSummary(_ context.Context, runID string) (model.RunSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[runID]
	if !ok {
		return model.RunSummary{}, false, nil
	}
	summary.Populations = append([]model.PopulationSummary(nil), summary.Populations...)
	return summary, true, nil
}

// ListRunSummaries returns every summary, most recently started first.
func (s *MemoryStore) ListRunSummaries(_ context.Context) ([]model.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunSummary, 0, len(s.summaries))
	for _, summary := range s.summaries {
		summary.Populations = append([]model.PopulationSummary(nil), summary.Populations...)
		out = append(out, summary)
	}
	sortSummaries(out)
	return out, nil
}

func (s *MemoryStore) SaveSpikeRecords(_ context.Context, runID string, records []model.SpikeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.spikes[runID] = copySpikeRecords(records)
	return nil
}

func (s *MemoryStore) GetSpikeRecords(_ context.Context, runID string) ([]model.SpikeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.spikes[runID]
	if !ok {
		return nil, false, nil
	}
	return copySpikeRecords(records), true, nil
}

func (s *MemoryStore) SaveSynapseWeights(_ context.Context, runID string, weights []model.SynapseWeight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.weights[runID] = append([]model.SynapseWeight(nil), weights...)
	return nil
}

func (s *MemoryStore) GetSynapseWeights(_ context.Context, runID string) ([]model.SynapseWeight, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	weights, ok := s.weights[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.SynapseWeight(nil), weights...), true, nil
}

func copySpikeRecords(records []model.SpikeRecord) []model.SpikeRecord {
	copied := make([]model.SpikeRecord, len(records))
	for i, record := range records {
		record.Times = append([]float64(nil), record.Times...)
		copied[i] = record
	}
	return copied
}

func sortSummaries(summaries []model.RunSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].StartedAt.Equal(summaries[j].StartedAt) {
			return summaries[i].RunID < summaries[j].RunID
		}
		return summaries[i].StartedAt.After(summaries[j].StartedAt)
	})
}
