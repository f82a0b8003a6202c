package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/niktheblak/water-quality-logger/pkg/reading"
)

var testReadings = []reading.Reading{
	{
		ID:        1,
		Timestamp: time.Date(2025, time.June, 1, 8, 0, 0, 250000000, time.UTC),
		Sensor:    "ph",
		Value:     reading.Float64Pointer(6.75),
		Unit:      reading.StringPointer("pH"),
		Meta:      reading.Meta{"voltage": 1.59},
	},
	{
		ID:        2,
		Timestamp: time.Date(2025, time.June, 1, 8, 0, 1, 0, time.UTC),
		Sensor:    "tds",
	},
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	require.NoError(t, WriteCSV(buf, testReadings))
	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"timestamp", "sensor", "value", "unit", "meta"},
		{"2025-06-01T08:00:00.25Z", "ph", "6.75", "pH", `{"voltage":1.59}`},
		{"2025-06-01T08:00:01Z", "tds", "", "", ""},
	}, records)
}

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	require.NoError(t, WriteXLSX(buf, testReadings))
	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{sheet}, f.GetSheetList())
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "2025-06-01T08:00:00.25Z", rows[1][0])
	assert.Equal(t, "ph", rows[1][1])
	assert.Equal(t, "6.75", rows[1][2])
	assert.Equal(t, "pH", rows[1][3])
	assert.Equal(t, "tds", rows[2][1])
}
