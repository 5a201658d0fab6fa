package csvstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/i474232898/solar-data-pipeline/internal/solar"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func row(name string, lat, lon float64, months solar.Months) solar.Row {
	return solar.Row{
		Location: solar.Location{Name: name, Latitude: lat, Longitude: lon},
		Months:   months,
	}
}

func TestHeaderSortsUnionOfKeys(t *testing.T) {
	rows := []solar.Row{
		row("a", 1, 2, solar.Months{"202312": "1"}),
		row("b", 1, 2, solar.Months{"202301": "1", "202305": "2"}),
	}
	assert.Equal(t,
		"Latitude,Longitude,Location,202301,202305,202312",
		strings.Join(Header(rows), ","))
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "korea_solar_data.csv")
	w := NewWriter(path, nil)

	require.NoError(t, w.Append([]solar.Row{row("서울", 37.5665, 126.978, solar.Months{"202301": "2.62", "202302": "3.47"})}))
	require.NoError(t, w.Append([]solar.Row{row("부산", 35.1796, 129.0756, solar.Months{"202302": "3.9", "202301": "3.1"})}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"Latitude,Longitude,Location,202301,202302\n"+
			"37.5665,126.978,서울,2.62,3.47\n"+
			"35.1796,129.0756,부산,3.1,3.9\n",
		string(data))
}

func TestAppendWritesHeaderIntoEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	require.NoError(t, NewWriter(path, nil).Append([]solar.Row{row("a", 1, 2, solar.Months{"202301": "1"})}))

	header, records, err := ReadRecords(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Latitude", "Longitude", "Location", "202301"}, header)
	assert.Equal(t, [][]string{{"1.0", "2.0", "a", "1"}}, records)
}

func TestAppendLeavesMissingMonthsBlank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	rows := []solar.Row{
		row("a", 1, 2, solar.Months{"202301": "1"}),
		row("b", 1, 2, solar.Months{"202302": "2"}),
	}
	require.NoError(t, NewWriter(path, nil).Append(rows))

	_, records, err := ReadRecords(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"1.0", "2.0", "a", "1", ""},
		{"1.0", "2.0", "b", "", "2"},
	}, records)
}

func TestAppendWidensHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	w := NewWriter(path, nil)

	require.NoError(t, w.Append([]solar.Row{row("a", 1, 2, solar.Months{"202301": "1"})}))
	require.NoError(t, w.Append([]solar.Row{row("b", 3, 4, solar.Months{"202301": "5", "202302": "6"})}))

	header, records, err := ReadRecords(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Latitude", "Longitude", "Location", "202301", "202302"}, header)
	assert.Equal(t, [][]string{
		{"1.0", "2.0", "a", "1", ""},
		{"3.0", "4.0", "b", "5", "6"},
	}, records)
}

func TestReadRecordsMissingFile(t *testing.T) {
	header, records, err := ReadRecords(filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)
	assert.Nil(t, header)
	assert.Nil(t, records)
}

func TestBatchFlushesAtSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	b := NewBatch(NewWriter(path, nil), 2)

	require.NoError(t, b.Add(row("a", 1, 2, solar.Months{"202301": "1"})))
	_, records, err := ReadRecords(path)
	require.NoError(t, err)
	assert.Empty(t, records, "batch below size must not flush")

	require.NoError(t, b.Add(row("b", 1, 2, solar.Months{"202301": "1"})))
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 2, b.Flushed())

	require.NoError(t, b.Add(row("c", 1, 2, solar.Months{"202301": "1"})))
	require.NoError(t, b.Flush())

	_, records, err = ReadRecords(path)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, 3, b.Flushed())
}

func TestBatchDefaultSize(t *testing.T) {
	b := NewBatch(NewWriter(filepath.Join(t.TempDir(), "x.csv"), nil), 0)
	assert.Equal(t, DefaultBatchSize, b.size)
}
