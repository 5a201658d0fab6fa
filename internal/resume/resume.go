// Package resume tracks which locations earlier runs completed or failed.
package resume

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/i474232898/solar-data-pipeline/internal/common"
	"github.com/i474232898/solar-data-pipeline/internal/csvstore"
	"github.com/i474232898/solar-data-pipeline/internal/locations"
	"github.com/i474232898/solar-data-pipeline/internal/solar"
)

// Set is a set of location names.
type Set map[string]struct{}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Add inserts name.
func (s Set) Add(name string) {
	s[name] = struct{}{}
}

// Len returns the number of names.
func (s Set) Len() int {
	return len(s)
}

// ProcessedFromCSV returns the names in the Location column of the CSV at
// path. A missing or empty file yields an empty set.
func ProcessedFromCSV(path string) (Set, error) {
	header, records, err := csvstore.ReadRecords(path)
	if err != nil {
		return nil, err
	}

	set := make(Set, len(records))
	if header == nil {
		return set, nil
	}

	col := -1
	for i, c := range header {
		if strings.TrimPrefix(c, "\ufeff") == solar.ColumnLocation {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%s has no %s column", path, solar.ColumnLocation)
	}

	for _, rec := range records {
		if col < len(rec) && rec[col] != "" {
			set.Add(rec[col])
		}
	}
	return set, nil
}

// FailureLog is the set of locations whose fetch exhausted its attempts,
// persisted in the location file format. Each name appears at most once.
type FailureLog struct {
	mu      sync.Mutex
	path    string
	entries []solar.Location
	index   map[string]int
	logger  *zap.Logger
}

// OpenFailureLog loads the failure log at path. A missing file is an empty
// log. Duplicate lines left by older runs collapse to one entry; malformed
// lines are dropped.
func OpenFailureLog(path string, logger *zap.Logger) (*FailureLog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fl := &FailureLog{
		path:   path,
		index:  make(map[string]int),
		logger: logger,
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fl, nil
		}
		return nil, fmt.Errorf("open failure log: %w", err)
	}
	defer f.Close()

	res, err := locations.Parse(f, logger)
	if err != nil {
		return nil, fmt.Errorf("read failure log: %w", err)
	}
	for _, loc := range res.Locations {
		fl.index[loc.Name] = len(fl.entries)
		fl.entries = append(fl.entries, loc)
	}
	return fl, nil
}

// Has reports whether name is currently recorded as failed.
func (f *FailureLog) Has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.index[name]
	return ok
}

// Record upserts loc. Recording a name already present with the same
// coordinates does not touch the file.
func (f *FailureLog) Record(loc solar.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if i, ok := f.index[loc.Name]; ok {
		if f.entries[i] == loc {
			return nil
		}
		f.entries[i] = loc
	} else {
		f.index[loc.Name] = len(f.entries)
		f.entries = append(f.entries, loc)
	}
	return f.save()
}

// Resolve removes name from the log.
func (f *FailureLog) Resolve(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	i, ok := f.index[name]
	if !ok {
		return nil
	}
	f.entries = append(f.entries[:i], f.entries[i+1:]...)
	delete(f.index, name)
	for j := i; j < len(f.entries); j++ {
		f.index[f.entries[j].Name] = j
	}
	f.logger.Info("resolved previously failed location", zap.String("location", name))
	return f.save()
}

// Names returns the recorded names, sorted.
func (f *FailureLog) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.entries))
	for _, loc := range f.entries {
		out = append(out, loc.Name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of recorded locations.
func (f *FailureLog) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func (f *FailureLog) save() error {
	err := common.WriteFileAtomic(f.path, func(w io.Writer) error {
		for _, loc := range f.entries {
			if _, err := io.WriteString(w, locations.FormatLine(loc)+"\n"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write failure log: %w", err)
	}
	return nil
}
