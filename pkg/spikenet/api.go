// Package spikenet is the public entry point: it builds a network from a
// config, runs it for the configured duration and persists what the run
// produced.
package spikenet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"spikenet/internal/config"
	"spikenet/internal/connector"
	"spikenet/internal/logging"
	"spikenet/internal/model"
	"spikenet/internal/network"
	"spikenet/internal/platform"
	"spikenet/internal/stats"
	"spikenet/internal/storage"
)

const defaultDBPath = "spikenet.db"

var ErrRunNotFound = errors.New("run not found")

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger
}

type RunRequest struct {
	Config *config.NetworkConfig
	// RunID overrides the config's run id; one is generated when both are empty.
	RunID string
	// Duration overrides the config's duration when > 0.
	Duration float64
}

type RunSummary struct {
	RunID         string
	Generations   int
	Time          float64
	Spikes        int
	MonitorEvents int
	Records       []model.SpikeRecord
	Weights       []model.SynapseWeight
}

type RunsRequest struct {
	Limit int
}

type RecordsRequest struct {
	RunID  string
	Latest bool
	// Population filters the records when set.
	Population string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{store: store, logger: logger}, nil
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Run builds the configured network, ticks it for the configured duration
// and persists the run summary, spike records and final synapse weights.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Config == nil {
		return RunSummary{}, errors.New("run requires a network config")
	}
	cfg := *req.Config
	if req.Duration > 0 {
		cfg.Run.Duration = req.Duration
	}
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	runID := req.RunID
	if runID == "" {
		runID = cfg.Run.RunID
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := c.logger.With("run_id", runID)

	events, err := logging.OpenEventLog(cfg.Run.EventLog)
	if err != nil {
		return RunSummary{}, fmt.Errorf("open event log: %w", err)
	}
	defer events.Close()

	restart, err := platform.ParseRestartPolicy(cfg.Supervisor.Restart)
	if err != nil {
		return RunSummary{}, err
	}
	n := network.New(network.Config{
		Dt:              cfg.Run.Dt,
		ChannelCapacity: cfg.Run.ChannelCapacity,
		ReportTimeout:   cfg.Run.ReportTimeout,
		Parallelism:     cfg.Run.Parallelism,
		Restart:         restart,
		Supervisor:      cfg.Supervisor.Policy(),
		Logger:          logger,
	})
	if err := build(n, &cfg); err != nil {
		return RunSummary{}, err
	}

	startedAt := time.Now().UTC()
	if err := n.Start(ctx); err != nil {
		return RunSummary{}, fmt.Errorf("start network: %w", err)
	}
	defer func() { _ = n.Stop() }()

	steps := n.Steps(cfg.Run.Duration)
	var last network.TickReport
	for i := 0; i < steps; i++ {
		report, err := n.Tick(ctx)
		if err != nil {
			return RunSummary{}, fmt.Errorf("generation %d: %w", report.Generation, err)
		}
		last = report
		if err := events.Log(map[string]any{
			"run_id":        runID,
			"generation":    report.Generation,
			"time":          report.Time,
			"ran":           report.Ran,
			"fired":         len(report.Fired),
			"severed":       report.Severed,
			"severed_edges": report.SeveredEdges,
		}); err != nil {
			logger.Warn("event log write failed", "error", err)
		}
	}
	if err := n.Stop(); err != nil {
		return RunSummary{}, fmt.Errorf("stop network: %w", err)
	}

	summary, err := collect(n, runID)
	if err != nil {
		return RunSummary{}, err
	}
	summary.Generations = last.Generation
	summary.Time = last.Time

	record := model.RunSummary{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Dt:              cfg.Run.Dt,
		Duration:        cfg.Run.Duration,
		Generations:     summary.Generations,
		Agents:          n.Arena().Len(),
		Synapses:        len(summary.Weights),
		Spikes:          summary.Spikes,
		MonitorEvents:   summary.MonitorEvents,
		StartedAt:       startedAt,
		FinishedAt:      time.Now().UTC(),
	}
	for _, pop := range n.Populations() {
		record.Populations = append(record.Populations, model.PopulationSummary{
			Name:  pop.Name(),
			Model: pop.Model(),
			Size:  pop.Len(),
		})
	}
	if err := c.store.SaveRunSummary(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run summary: %w", err)
	}
	if err := c.store.SaveSpikeRecords(ctx, runID, summary.Records); err != nil {
		return RunSummary{}, fmt.Errorf("save spike records: %w", err)
	}
	if err := c.store.SaveSynapseWeights(ctx, runID, summary.Weights); err != nil {
		return RunSummary{}, fmt.Errorf("save synapse weights: %w", err)
	}
	logger.Info("run complete",
		"generations", summary.Generations,
		"spikes", summary.Spikes,
		"synapses", len(summary.Weights),
	)
	return summary, nil
}

func build(n *network.Network, cfg *config.NetworkConfig) error {
	for _, p := range cfg.Populations {
		if _, err := n.Create(p.Name, p.Model, p.Size, p.Params); err != nil {
			return err
		}
	}
	for _, p := range cfg.Projections {
		conn, err := connector.Resolve(p.Connector)
		if err != nil {
			return err
		}
		if p.Direct {
			if _, err := n.ConnectDirect(p.Pre, p.Post, conn); err != nil {
				return err
			}
			continue
		}
		params, err := p.SynapseParams()
		if err != nil {
			return err
		}
		if _, err := n.Connect(p.Pre, p.Post, conn, params); err != nil {
			return err
		}
	}
	for _, name := range cfg.Recordings {
		if err := n.RecordSpikes(name); err != nil {
			return err
		}
	}
	for _, name := range cfg.Monitors {
		if err := n.Monitor(name); err != nil {
			return err
		}
	}
	return nil
}

func collect(n *network.Network, runID string) (RunSummary, error) {
	summary := RunSummary{RunID: runID}
	for _, rec := range n.SpikeRecords() {
		summary.Spikes += len(rec.Times)
		summary.Records = append(summary.Records, model.SpikeRecord{
			VersionedRecord: storage.CurrentVersion(),
			Agent:           uint64(rec.Agent),
			Population:      rec.Population,
			Times:           rec.Times,
		})
	}
	states, err := n.SynapseWeights()
	if err != nil {
		return RunSummary{}, fmt.Errorf("read synapse weights: %w", err)
	}
	for _, s := range states {
		summary.Weights = append(summary.Weights, model.SynapseWeight{
			VersionedRecord: storage.CurrentVersion(),
			Synapse:         uint64(s.Handle),
			Flag:            s.Flag.String(),
			Weight:          s.Weight,
		})
	}
	for _, h := range n.Monitored() {
		count, err := n.MonitorLen(h)
		if err != nil {
			return RunSummary{}, fmt.Errorf("read monitor of %s: %w", h, err)
		}
		summary.MonitorEvents += count
	}
	return summary, nil
}

// Runs lists stored run summaries, most recent first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunSummary, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	runs, err := c.store.ListRunSummaries(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}
	return runs, nil
}

// Records returns the spike records of one run.
func (c *Client) Records(ctx context.Context, req RecordsRequest) ([]model.SpikeRecord, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	records, ok, err := c.store.GetSpikeRecords(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if req.Population == "" {
		return records, nil
	}
	filtered := records[:0]
	for _, r := range records {
		if r.Population == req.Population {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// Weights returns the final synapse weights of one run.
func (c *Client) Weights(ctx context.Context, runID string, latest bool) ([]model.SynapseWeight, error) {
	runID, err := c.resolveRunID(ctx, runID, latest)
	if err != nil {
		return nil, err
	}
	weights, ok, err := c.store.GetSynapseWeights(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return weights, nil
}

// Export writes a stored run under OutDir/<run id> and returns that directory.
func (c *Client) Export(ctx context.Context, req ExportRequest) (string, error) {
	if req.OutDir == "" {
		return "", errors.New("export requires an output directory")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return "", err
	}
	summary, ok, err := c.store.GetRunSummary(ctx, runID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	records, _, err := c.store.GetSpikeRecords(ctx, runID)
	if err != nil {
		return "", err
	}
	weights, _, err := c.store.GetSynapseWeights(ctx, runID)
	if err != nil {
		return "", err
	}
	return stats.WriteRunArtifacts(req.OutDir, stats.RunArtifacts{
		Summary: summary,
		Records: records,
		Weights: weights,
	})
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("requires run id or latest")
	}
	runs, err := c.store.ListRunSummaries(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].RunID, nil
}
