package storage

import (
	"encoding/json"
	"errors"

	"spikenet/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps a record with the versions this build writes.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRunSummary(s model.RunSummary) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeRunSummary(data []byte) (model.RunSummary, error) {
	var summary model.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return model.RunSummary{}, err
	}
	if err := checkVersion(summary.VersionedRecord); err != nil {
		return model.RunSummary{}, err
	}
	return summary, nil
}

func EncodeSpikeRecords(records []model.SpikeRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodeSpikeRecords(data []byte) ([]model.SpikeRecord, error) {
	var records []model.SpikeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := checkVersion(record.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func EncodeSynapseWeights(weights []model.SynapseWeight) ([]byte, error) {
	return json.Marshal(weights)
}

func DecodeSynapseWeights(data []byte) ([]model.SynapseWeight, error) {
	var weights []model.SynapseWeight
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, err
	}
	for _, w := range weights {
		if err := checkVersion(w.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return weights, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
