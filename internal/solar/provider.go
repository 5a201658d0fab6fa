package solar

import (
	"context"
)

// Source abstracts a monthly irradiance data source (e.g. NASA POWER).
type Source interface {
	Name() string
	MonthlyIrradiance(ctx context.Context, loc Location) (Months, error)
}

// RowSink receives successful rows. The CSV batch satisfies it.
type RowSink interface {
	Add(row Row) error
}

// FailureTracker is the contract the failure log must satisfy.
type FailureTracker interface {
	Has(name string) bool
	Record(loc Location) error
	Resolve(name string) error
}

// NameSet is a read-only set of location names.
type NameSet interface {
	Has(name string) bool
}
