package solar

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Service walks a location list, fetching each unprocessed location from the
// source and routing the outcome to the row sink or the failure tracker.
type Service struct {
	source   Source
	sink     RowSink
	failures FailureTracker
	logger   *zap.Logger
}

// NewService creates a new Service.
func NewService(source Source, sink RowSink, failures FailureTracker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:   source,
		sink:     sink,
		failures: failures,
		logger:   logger,
	}
}

// Summary counts the outcomes of one Run.
type Summary struct {
	Total   int
	Fetched int
	Skipped int
	Retried int
	Failed  int
}

// Run fetches every location in order. Locations in processed are skipped
// without touching the source; locations the failure tracker knows about are
// retried. A failed fetch is recorded and the loop moves on. Run stops early
// only when ctx is cancelled or the sink or tracker cannot be written.
func (s *Service) Run(ctx context.Context, locations []Location, processed NameSet) (Summary, error) {
	sum := Summary{Total: len(locations)}

	for _, loc := range locations {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		log := s.logger.With(zap.String("location", loc.Name))

		if processed != nil && processed.Has(loc.Name) {
			log.Debug("already processed, skipping")
			sum.Skipped++
			continue
		}

		retry := s.failures != nil && s.failures.Has(loc.Name)
		if retry {
			log.Info("previously failed, retrying")
			sum.Retried++
		}

		log.Debug("fetching",
			zap.String("source", s.source.Name()),
			zap.Float64("lat", loc.Latitude),
			zap.Float64("lon", loc.Longitude))

		months, err := s.source.MonthlyIrradiance(ctx, loc)
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			log.Warn("fetch failed, added to retry list", zap.Error(err))
			sum.Failed++
			if s.failures != nil {
				if recErr := s.failures.Record(loc); recErr != nil {
					return sum, fmt.Errorf("record failure for %s: %w", loc.Name, recErr)
				}
			}
			continue
		}

		if err := s.sink.Add(Row{Location: loc, Months: months}); err != nil {
			return sum, fmt.Errorf("store row for %s: %w", loc.Name, err)
		}
		sum.Fetched++

		if retry {
			if err := s.failures.Resolve(loc.Name); err != nil {
				return sum, fmt.Errorf("resolve failure for %s: %w", loc.Name, err)
			}
		}
	}

	return sum, nil
}
