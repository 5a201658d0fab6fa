package store

import (
	"errors"
	"testing"

	"github.com/i474232898/solar-data-pipeline/internal/dataset"
)

var header = []string{"Latitude", "Longitude", "Location", "202301"}

func TestAppendKeepsOrderAndIndexesLocations(t *testing.T) {
	s := NewDatasetStore()
	s.Append(dataset.FromCSV(header, [][]string{
		{"37.5", "127.0", "서울", "2.6"},
		{"35.1", "129.0", "부산", "2.9"},
	})...)

	if got := s.Len(); got != 2 {
		t.Fatalf("expected 2 records, got %d", got)
	}

	all := s.All()
	if name, _ := all[1].Get("Location"); name != "부산" {
		t.Fatalf("expected second record to be 부산, got %s", name)
	}

	rec, err := s.GetByLocation("서울")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := rec.Get("202301"); v != "2.6" {
		t.Fatalf("expected 2.6, got %s", v)
	}
}

func TestLaterRecordWinsLookup(t *testing.T) {
	s := NewDatasetStore()
	s.Append(dataset.FromCSV(header, [][]string{{"37.5", "127.0", "서울", "2.6"}})...)
	s.Append(dataset.FromCSV(header, [][]string{{"37.5", "127.0", "서울", "9.9"}})...)

	rec, err := s.GetByLocation("서울")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := rec.Get("202301"); v != "9.9" {
		t.Fatalf("expected latest value 9.9, got %s", v)
	}
}

func TestGetByLocationNotFound(t *testing.T) {
	s := NewDatasetStore()
	if _, err := s.GetByLocation("nowhere"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceResetsIndex(t *testing.T) {
	s := NewDatasetStore()
	s.Append(dataset.FromCSV(header, [][]string{{"37.5", "127.0", "서울", "2.6"}})...)
	s.Replace(dataset.FromCSV(header, [][]string{{"35.1", "129.0", "부산", "2.9"}}))

	if _, err := s.GetByLocation("서울"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected replaced record to be gone, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", s.Len())
	}
}

func TestAllReturnsCopy(t *testing.T) {
	s := NewDatasetStore()
	s.Append(dataset.FromCSV(header, [][]string{{"37.5", "127.0", "서울", "2.6"}})...)

	all := s.All()
	all[0] = nil

	if s.All()[0] == nil {
		t.Fatal("mutating All() result must not affect the store")
	}
}
