package resume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/solar-data-pipeline/internal/csvstore"
	"github.com/i474232898/solar-data-pipeline/internal/solar"
)

func TestProcessedFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "korea_solar_data.csv")
	w := csvstore.NewWriter(path, nil)
	require.NoError(t, w.Append([]solar.Row{
		{Location: solar.Location{Name: "서울", Latitude: 37.5, Longitude: 127}, Months: solar.Months{"202301": "1"}},
		{Location: solar.Location{Name: "부산, 중구", Latitude: 35.1, Longitude: 129}, Months: solar.Months{"202301": "2"}},
	}))

	set, err := ProcessedFromCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Has("서울"))
	assert.True(t, set.Has("부산, 중구"), "names with commas survive CSV quoting")
	assert.False(t, set.Has("대구"))
}

func TestProcessedFromMissingCSV(t *testing.T) {
	set, err := ProcessedFromCSV(filepath.Join(t.TempDir(), "none.csv"))
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestProcessedFromCSVWithoutLocationColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))

	_, err := ProcessedFromCSV(path)
	require.Error(t, err)
}

func TestFailureLogRecordIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_requests")
	fl, err := OpenFailureLog(path, nil)
	require.NoError(t, err)

	loc := solar.Location{Name: "울릉군", Latitude: 37.4845, Longitude: 130.9057}
	require.NoError(t, fl.Record(loc))
	require.NoError(t, fl.Record(loc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\"울릉군\": (37.4845, 130.9057)\n", string(data))
	assert.True(t, fl.Has("울릉군"))
}

func TestFailureLogCollapsesLegacyDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_requests")
	legacy := "\"a\": (1.0, 2.0)\n\"b\": (3.0, 4.0)\n\"a\": (1.0, 2.0)\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	fl, err := OpenFailureLog(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, fl.Names())
	assert.Equal(t, 2, fl.Len())
}

func TestFailureLogResolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_requests")
	fl, err := OpenFailureLog(path, nil)
	require.NoError(t, err)

	require.NoError(t, fl.Record(solar.Location{Name: "a", Latitude: 1, Longitude: 2}))
	require.NoError(t, fl.Record(solar.Location{Name: "b", Latitude: 3, Longitude: 4}))
	require.NoError(t, fl.Record(solar.Location{Name: "c", Latitude: 5, Longitude: 6}))
	require.NoError(t, fl.Resolve("a"))
	require.NoError(t, fl.Resolve("missing"))

	assert.False(t, fl.Has("a"))
	assert.True(t, fl.Has("c"))

	reopened, err := OpenFailureLog(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, reopened.Names())
}
