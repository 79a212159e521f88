package curation

import (
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"github.com/1F47E/shoreline-transects/pkg/models"
)

// Snapshot represents the serializable form of a curated shoreline set
type Snapshot struct {
	Records   []models.ShorelineRecord
	Options   Options
	CreatedAt time.Time
}

// SaveSnapshot saves a curated set to a binary file
func SaveSnapshot(filename string, records []models.ShorelineRecord, opts Options) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	data := Snapshot{
		Records:   records,
		Options:   opts,
		CreatedAt: time.Now().UTC(),
	}

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot loads a curated set from a binary file
func LoadSnapshot(filename string) (*Snapshot, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var data Snapshot
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return &data, nil
}
