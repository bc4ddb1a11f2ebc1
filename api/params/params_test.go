package params

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensensemap/osem/internal/errors"
)

func TestDecodeMeasurementsQueryDefaults(t *testing.T) {
	q, err := DecodeMeasurementsQuery(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, "raw", q.Aggregation)
	assert.Nil(t, q.FromDate)
	assert.Nil(t, q.ToDate)
}

func TestDecodeMeasurementsQueryAggregations(t *testing.T) {
	for _, agg := range []string{"raw", "10m", "1h", "1d", "1m", "1y"} {
		q, err := DecodeMeasurementsQuery(url.Values{"aggregation": {agg}})
		require.NoError(t, err, agg)
		assert.Equal(t, agg, q.Aggregation)
	}
}

func TestDecodeMeasurementsQueryRejectsUnknownAggregation(t *testing.T) {
	_, err := DecodeMeasurementsQuery(url.Values{"aggregation": {"5weeks"}})
	require.Error(t, err)

	apiErr := errors.AsAPIError(err)
	assert.Equal(t, 400, apiErr.Code)
	assert.Equal(t, "aggregation", apiErr.Field)
}

func TestDecodeMeasurementsQueryParsesDates(t *testing.T) {
	q, err := DecodeMeasurementsQuery(url.Values{
		"from-date": {"2025-06-01T00:00:00Z"},
		"to-date":   {"2025-06-02T00:00:00Z"},
	})
	require.NoError(t, err)
	require.NotNil(t, q.FromDate)
	require.NotNil(t, q.ToDate)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), q.FromDate.UTC())
}

func TestDecodeMeasurementsQueryRejectsInvertedRange(t *testing.T) {
	_, err := DecodeMeasurementsQuery(url.Values{
		"from-date": {"2025-06-02T00:00:00Z"},
		"to-date":   {"2025-06-01T00:00:00Z"},
	})
	require.Error(t, err)
	assert.Equal(t, "from-date", errors.AsAPIError(err).Field)
}

func TestDecodeDataQueryRequiresBoxID(t *testing.T) {
	_, err := DecodeDataQuery(url.Values{})
	require.Error(t, err)
	assert.Equal(t, "boxId", errors.AsAPIError(err).Field)
}

func TestDecodeDataQueryDefaults(t *testing.T) {
	q, err := DecodeDataQuery(url.Values{"boxId": {"box1,box2"}})
	require.NoError(t, err)
	assert.Equal(t, "csv", q.Format)
	assert.Equal(t, []string{"box1", "box2"}, q.BoxIDs())
	assert.Equal(t, []string{"sensorId", "time", "value"}, q.ColumnList())
	assert.False(t, q.Download)
}

func TestDecodeDataQueryRejectsUnknownFormat(t *testing.T) {
	_, err := DecodeDataQuery(url.Values{"boxId": {"box1"}, "format": {"xml"}})
	require.Error(t, err)
	assert.Equal(t, "format", errors.AsAPIError(err).Field)
}

func TestDecodeDataQueryRejectsUnknownColumn(t *testing.T) {
	_, err := DecodeDataQuery(url.Values{"boxId": {"box1"}, "columns": {"sensorId,password"}})
	require.Error(t, err)
	assert.Equal(t, "columns", errors.AsAPIError(err).Field)
}

func TestDecodeDataQueryRejectsBadDelimiter(t *testing.T) {
	_, err := DecodeDataQuery(url.Values{"boxId": {"box1"}, "delimiter": {"tab"}})
	require.Error(t, err)
	assert.Equal(t, "delimiter", errors.AsAPIError(err).Field)
}

func TestDecodeDataQueryParsesBBox(t *testing.T) {
	q, err := DecodeDataQuery(url.Values{
		"boxId": {"box1"},
		"bbox":  {"7.5,51.9,7.7,52.0"},
	})
	require.NoError(t, err)
	require.NotNil(t, q.BBox)
	assert.Equal(t, 7.5, q.BBox.MinX)
	assert.Equal(t, 52.0, q.BBox.MaxY)
}

func TestDecodeDataQueryRejectsMalformedBBox(t *testing.T) {
	_, err := DecodeDataQuery(url.Values{
		"boxId": {"box1"},
		"bbox":  {"7.5,51.9"},
	})
	require.Error(t, err)
	assert.Equal(t, 400, errors.AsAPIError(err).Code)
}

func TestDecodeBoxListQueryRejectsBadExposure(t *testing.T) {
	_, err := DecodeBoxListQuery(url.Values{"exposure": {"underwater"}})
	require.Error(t, err)
	assert.Equal(t, "exposure", errors.AsAPIError(err).Field)
}
