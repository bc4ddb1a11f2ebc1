package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensensemap/osem/internal/models"
)

// fakeSource yields batches of batchSize measurements until total is
// exhausted, then io.EOF.
type fakeSource struct {
	total     int
	batchSize int
	served    int
	fetches   int
}

func (f *fakeSource) Next(ctx context.Context) ([]models.Measurement, error) {
	if f.served >= f.total {
		return nil, io.EOF
	}
	f.fetches++

	n := f.batchSize
	if remaining := f.total - f.served; remaining < n {
		n = remaining
	}

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	batch := make([]models.Measurement, n)
	for i := range batch {
		batch[i] = models.Measurement{
			SensorID: "sensor1",
			Time:     base.Add(time.Duration(f.served+i) * time.Minute),
			Value:    float64(f.served + i),
		}
	}
	f.served += n
	return batch, nil
}

type failingSource struct{}

func (f *failingSource) Next(ctx context.Context) ([]models.Measurement, error) {
	return nil, fmt.Errorf("connection lost")
}

func TestStreamCSVAllRecords(t *testing.T) {
	src := &fakeSource{total: 25, batchSize: 10}
	var buf bytes.Buffer

	err := Stream(context.Background(), &buf, src, Options{Format: FormatCSV})
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	// Header plus one row per measurement, across all batches.
	require.Len(t, records, 26)
	assert.Equal(t, DefaultColumns, records[0])
	assert.Equal(t, 3, src.fetches)

	for i, row := range records[1:] {
		require.Len(t, row, len(DefaultColumns))
		assert.Equal(t, "sensor1", row[0])
		assert.Equal(t, fmt.Sprint(i), row[2])
	}
}

func TestStreamCSVDelimiter(t *testing.T) {
	src := &fakeSource{total: 2, batchSize: 10}
	var buf bytes.Buffer

	err := Stream(context.Background(), &buf, src, Options{Format: FormatCSV, Delimiter: ';'})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "sensorId;time;value", lines[0])
}

func TestStreamJSONAllRecords(t *testing.T) {
	src := &fakeSource{total: 12, batchSize: 5}
	var buf bytes.Buffer

	err := Stream(context.Background(), &buf, src, Options{Format: FormatJSON})
	require.NoError(t, err)
	require.True(t, json.Valid(buf.Bytes()))

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 12)

	assert.Equal(t, "sensor1", records[0]["sensorId"])
	assert.Equal(t, float64(0), records[0]["value"])
	assert.Equal(t, "2025-06-01T00:00:00Z", records[0]["time"])
}

func TestStreamJSONEmpty(t *testing.T) {
	src := &fakeSource{total: 0, batchSize: 5}
	var buf bytes.Buffer

	err := Stream(context.Background(), &buf, src, Options{Format: FormatJSON})
	require.NoError(t, err)
	assert.Equal(t, "[]", buf.String())
}

func TestStreamCSVEmptyWritesHeader(t *testing.T) {
	src := &fakeSource{total: 0, batchSize: 5}
	var buf bytes.Buffer

	err := Stream(context.Background(), &buf, src, Options{Format: FormatCSV})
	require.NoError(t, err)
	assert.Equal(t, "sensorId,time,value\n", buf.String())
}

func TestStreamSourceError(t *testing.T) {
	var buf bytes.Buffer

	err := Stream(context.Background(), &buf, &failingSource{}, Options{Format: FormatCSV})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection lost")
}

func TestStreamMetadataColumns(t *testing.T) {
	src := &fakeSource{total: 1, batchSize: 1}
	sensors := map[string]*models.Sensor{
		"sensor1": {
			ID:         "sensor1",
			BoxID:      "box1",
			Title:      "Temperatur",
			Unit:       "°C",
			SensorType: "HDC1080",
		},
	}
	var buf bytes.Buffer

	opts := Options{
		Format:  FormatCSV,
		Columns: []string{"sensorId", "value", "unit", "phenomenon", "sensorType", "boxId"},
		Sensors: sensors,
	}
	require.NoError(t, Stream(context.Background(), &buf, src, opts))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"sensor1", "0", "°C", "Temperatur", "HDC1080", "box1"}, records[1])
}

func TestValidColumn(t *testing.T) {
	for _, col := range DefaultColumns {
		assert.True(t, ValidColumn(col))
	}
	assert.True(t, ValidColumn("phenomenon"))
	assert.False(t, ValidColumn("password"))
}

func TestContentDisposition(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	assert.Equal(t,
		`attachment; filename="opensensemap_Temperatur_2025-06-01T123000Z.csv"`,
		ContentDisposition("Temperatur", FormatCSV, now))
	assert.Equal(t,
		`attachment; filename="opensensemap_2025-06-01T123000Z.json"`,
		ContentDisposition("", FormatJSON, now))
}

func TestParseDelimiter(t *testing.T) {
	assert.Equal(t, ';', int32(ParseDelimiter("semicolon")))
	assert.Equal(t, ',', int32(ParseDelimiter("")))
	assert.Equal(t, ',', int32(ParseDelimiter("comma")))
}
