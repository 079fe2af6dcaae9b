// Package stats exports the outputs of a stored run as files and derives
// summary statistics from its spike records.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"spikenet/internal/model"
)

const rasterFile = "spikes.csv"

type RunArtifacts struct {
	Summary model.RunSummary
	Records []model.SpikeRecord
	Weights []model.SynapseWeight
}

// PopulationRate is the mean firing rate of the recorded members of one
// population, in Hz, given simulated time in ms.
type PopulationRate struct {
	Population string  `json:"population"`
	Agents     int     `json:"agents"`
	Spikes     int     `json:"spikes"`
	RateHz     float64 `json:"rate_hz"`
}

// RasterRow is one line of the spike raster.
type RasterRow struct {
	Population string
	Agent      uint64
	Time       float64
}

// WriteRunArtifacts writes a run under baseDir/<run id> and returns that
// directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Summary.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Summary.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "summary.json"), artifacts.Summary); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "spike_records.json"), artifacts.Records); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "synapse_weights.json"), artifacts.Weights); err != nil {
		return "", err
	}
	rates := FiringRates(artifacts.Records, artifacts.Summary.Duration)
	if err := writeJSON(filepath.Join(runDir, "firing_rates.json"), rates); err != nil {
		return "", err
	}
	if err := WriteSpikeRaster(runDir, artifacts.Records); err != nil {
		return "", err
	}

	return runDir, nil
}

// FiringRates groups records by population. Populations are sorted by name.
// A non-positive duration yields zero rates.
func FiringRates(records []model.SpikeRecord, duration float64) []PopulationRate {
	byPop := make(map[string]*PopulationRate)
	for _, r := range records {
		rate, ok := byPop[r.Population]
		if !ok {
			rate = &PopulationRate{Population: r.Population}
			byPop[r.Population] = rate
		}
		rate.Agents++
		rate.Spikes += len(r.Times)
	}

	out := make([]PopulationRate, 0, len(byPop))
	for _, rate := range byPop {
		if duration > 0 && rate.Agents > 0 {
			rate.RateHz = float64(rate.Spikes) / float64(rate.Agents) / (duration / 1000)
		}
		out = append(out, *rate)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Population < out[j].Population })
	return out
}

// WriteSpikeRaster writes one row per spike, ordered by time then agent.
func WriteSpikeRaster(runDir string, records []model.SpikeRecord) error {
	rows := make([]RasterRow, 0, len(records))
	for _, r := range records {
		for _, t := range r.Times {
			rows = append(rows, RasterRow{Population: r.Population, Agent: r.Agent, Time: t})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Time != rows[j].Time {
			return rows[i].Time < rows[j].Time
		}
		return rows[i].Agent < rows[j].Agent
	})

	file, err := os.Create(filepath.Join(runDir, rasterFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"time", "population", "agent"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			strconv.FormatFloat(row.Time, 'f', -1, 64),
			row.Population,
			strconv.FormatUint(row.Agent, 10),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadSpikeRaster(runDir string) ([]RasterRow, bool, error) {
	file, err := os.Open(filepath.Join(runDir, rasterFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []RasterRow{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 3 {
		return nil, false, fmt.Errorf("spike raster header must have 3 columns")
	}

	var rows []RasterRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 3 {
			return nil, false, fmt.Errorf("spike raster row must have 3 columns")
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, false, err
		}
		agent, err := strconv.ParseUint(record[2], 10, 64)
		if err != nil {
			return nil, false, err
		}
		rows = append(rows, RasterRow{Population: record[1], Agent: agent, Time: t})
	}
	return rows, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
