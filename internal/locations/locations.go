// Package locations reads location list files of the form
//
//	"<name>": (<lat>, <lon>)
//
// one entry per line. The failure log uses the same format.
package locations

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/i474232898/solar-data-pipeline/internal/solar"
)

// ErrMalformedLine is returned by ParseLine for lines that do not match the
// location format.
var ErrMalformedLine = errors.New("line does not match \"<name>\": (<lat>, <lon>)")

var (
	linePattern = regexp.MustCompile(`^"(.+)": \((-?\d+\.\d+), (-?\d+\.\d+)\)$`)
	validate    = validator.New()
)

// Issue describes a line that was skipped.
type Issue struct {
	Line   int    // 1-based
	Text   string // trimmed line content
	Reason string
}

func (i Issue) String() string {
	return fmt.Sprintf("line %d: %s: %s", i.Line, i.Reason, i.Text)
}

// Result is the outcome of parsing a location file.
type Result struct {
	// Locations in file order. A repeated name keeps its first position and
	// takes the coordinates of its last occurrence.
	Locations []solar.Location
	Issues    []Issue
}

// Map returns the locations keyed by name.
func (r Result) Map() map[string]solar.Location {
	out := make(map[string]solar.Location, len(r.Locations))
	for _, loc := range r.Locations {
		out[loc.Name] = loc
	}
	return out
}

// ParseLine parses a single trimmed line.
func ParseLine(line string) (solar.Location, error) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return solar.Location{}, ErrMalformedLine
	}
	lat, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return solar.Location{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return solar.Location{}, fmt.Errorf("longitude: %w", err)
	}

	loc := solar.Location{Name: m[1], Latitude: lat, Longitude: lon}
	if err := validate.Struct(loc); err != nil {
		return solar.Location{}, fmt.Errorf("coordinates out of range: %w", err)
	}
	return loc, nil
}

// FormatLine renders loc in the location file format. The output always
// parses back with ParseLine.
func FormatLine(loc solar.Location) string {
	return fmt.Sprintf(`"%s": (%s, %s)`,
		loc.Name,
		solar.FormatCoordinate(loc.Latitude),
		solar.FormatCoordinate(loc.Longitude))
}

// Parse reads locations from r. Blank lines are ignored; malformed lines are
// skipped, reported in Result.Issues and logged as warnings.
func Parse(r io.Reader, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var res Result
	index := make(map[string]int)

	err := scan(r, func(lineNo int, line string) {
		loc, err := ParseLine(line)
		if err != nil {
			issue := Issue{Line: lineNo, Text: line, Reason: err.Error()}
			res.Issues = append(res.Issues, issue)
			logger.Warn("skipping malformed location line",
				zap.Int("line", lineNo),
				zap.String("text", line),
				zap.Error(err))
			return
		}

		if i, ok := index[loc.Name]; ok {
			logger.Debug("duplicate location, keeping last coordinates",
				zap.String("location", loc.Name), zap.Int("line", lineNo))
			res.Locations[i] = loc
			return
		}
		index[loc.Name] = len(res.Locations)
		res.Locations = append(res.Locations, loc)
	})
	return res, err
}

// Load parses the location file at path.
func Load(path string, logger *zap.Logger) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open locations file: %w", err)
	}
	defer f.Close()

	res, err := Parse(f, logger)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}
	return res, nil
}

// Validate reports every line of the file at path that fails the location
// format, without stopping at the first one.
func Validate(path string, logger *zap.Logger) ([]Issue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open locations file: %w", err)
	}
	defer f.Close()

	var issues []Issue
	err = scan(f, func(lineNo int, line string) {
		if _, err := ParseLine(line); err != nil {
			issues = append(issues, Issue{Line: lineNo, Text: line, Reason: err.Error()})
			logger.Warn("invalid location line",
				zap.Int("line", lineNo),
				zap.String("text", line),
				zap.Error(err))
		}
	})
	if err != nil {
		return issues, fmt.Errorf("read %s: %w", path, err)
	}
	return issues, nil
}

// scan calls fn with the 1-based number and trimmed content of every
// non-blank line.
func scan(r io.Reader, fn func(lineNo int, line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fn(lineNo, line)
	}
	return scanner.Err()
}
