package solar

import (
	"sort"
	"strconv"
	"strings"
)

// Fixed leading CSV columns. Month columns follow in sorted order.
const (
	ColumnLatitude  = "Latitude"
	ColumnLongitude = "Longitude"
	ColumnLocation  = "Location"
)

// LeadingColumns lists the columns every row carries before its months.
var LeadingColumns = []string{ColumnLatitude, ColumnLongitude, ColumnLocation}

// Location represents a named point for which irradiance is fetched.
// Name is the unique key.
type Location struct {
	Name      string  `json:"name" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// Key returns a canonical string key for indexing this location.
func (l Location) Key() string {
	return l.Name
}

// Months maps a year-month key ("202301") to the value exactly as the API
// rendered it.
type Months map[string]string

// Keys returns the month keys in lexicographic order.
func (m Months) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsMonthKey reports whether k is an all-digit key whose last two digits name
// a calendar month. The API's annual aggregate ("YYYY13") is not a month.
func IsMonthKey(k string) bool {
	if len(k) < 2 {
		return false
	}
	for _, r := range k {
		if r < '0' || r > '9' {
			return false
		}
	}
	month, err := strconv.Atoi(k[len(k)-2:])
	if err != nil {
		return false
	}
	return month >= 1 && month <= 12
}

// FilterMonths keeps the entries of raw whose keys are month keys.
func FilterMonths(raw map[string]string) Months {
	out := make(Months, len(raw))
	for k, v := range raw {
		if IsMonthKey(k) {
			out[k] = v
		}
	}
	return out
}

// Row is one successful fetch: a location and its monthly values.
type Row struct {
	Location Location
	Months   Months
}

// Values returns the row keyed by CSV column.
func (r Row) Values() map[string]string {
	out := make(map[string]string, len(r.Months)+len(LeadingColumns))
	for k, v := range r.Months {
		out[k] = v
	}
	out[ColumnLatitude] = FormatCoordinate(r.Location.Latitude)
	out[ColumnLongitude] = FormatCoordinate(r.Location.Longitude)
	out[ColumnLocation] = r.Location.Name
	return out
}

// FormatCoordinate renders v in its shortest form, keeping a decimal point so
// whole numbers still read as coordinates ("127.0", not "127").
func FormatCoordinate(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
