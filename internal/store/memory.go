package store

import (
	"errors"
	"sync"

	"github.com/i474232898/solar-data-pipeline/internal/dataset"
	"github.com/i474232898/solar-data-pipeline/internal/solar"
)

var (
	// ErrNotFound is returned when no record is published for a location.
	ErrNotFound = errors.New("no published record for location")
)

// DatasetStore is a concurrency-safe, append-only, in-memory copy of the
// published dataset.
type DatasetStore struct {
	mu sync.RWMutex

	records []dataset.Record

	// key: location name, value: index of the latest record for it
	byLocation map[string]int
}

// NewDatasetStore creates an empty DatasetStore.
func NewDatasetStore() *DatasetStore {
	return &DatasetStore{
		byLocation: make(map[string]int),
	}
}

// Replace swaps the whole dataset, e.g. after loading a published file.
func (s *DatasetStore) Replace(records []dataset.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make([]dataset.Record, 0, len(records))
	s.byLocation = make(map[string]int, len(records))
	s.appendLocked(records)
}

// Append adds records at the end, preserving order.
func (s *DatasetStore) Append(records ...dataset.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(records)
}

func (s *DatasetStore) appendLocked(records []dataset.Record) {
	for _, rec := range records {
		// Later rows for the same location win, as in the front-end lookup.
		if name, ok := rec.Get(solar.ColumnLocation); ok {
			s.byLocation[name] = len(s.records)
		}
		s.records = append(s.records, rec)
	}
}

// All returns a copy of the records in publication order.
func (s *DatasetStore) All() []dataset.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]dataset.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *DatasetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// GetByLocation returns the latest record for a location name.
func (s *DatasetStore) GetByLocation(name string) (dataset.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byLocation[name]
	if !ok {
		return nil, ErrNotFound
	}
	return s.records[i], nil
}
