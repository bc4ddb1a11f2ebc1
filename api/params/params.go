// FilePath: api/params/params.go
package params

import (
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/gorilla/schema"

	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/export"
	"github.com/opensensemap/osem/internal/geo"
	"github.com/opensensemap/osem/internal/models"
)

var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)

	d.RegisterConverter(time.Time{}, func(value string) reflect.Value {
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(t)
	})

	d.RegisterConverter(geo.BoundingBox{}, func(value string) reflect.Value {
		bbox, err := geo.ParseBoundingBox(value)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(*bbox)
	})

	return d
}

// MeasurementsQuery carries the query parameters of the single-sensor
// measurement endpoint.
type MeasurementsQuery struct {
	FromDate    *time.Time `schema:"from-date"`
	ToDate      *time.Time `schema:"to-date"`
	Aggregation string     `schema:"aggregation"`
}

// DataQuery carries the query parameters of the multi-box data export
// endpoint.
type DataQuery struct {
	BoxID      string           `schema:"boxId"`
	Phenomenon string           `schema:"phenomenon"`
	FromDate   *time.Time       `schema:"from-date"`
	ToDate     *time.Time       `schema:"to-date"`
	Format     string           `schema:"format"`
	Download   bool             `schema:"download"`
	Delimiter  string           `schema:"delimiter"`
	Columns    string           `schema:"columns"`
	BBox       *geo.BoundingBox `schema:"bbox"`
}

// BoxListQuery carries the query parameters of the box list endpoint.
type BoxListQuery struct {
	Exposure   string `schema:"exposure"`
	Status     string `schema:"status"`
	Phenomenon string `schema:"phenomenon"`
	Owner      string `schema:"owner"`
}

// DecodeMeasurementsQuery parses and validates the measurement query
// parameters. Unknown aggregation keywords are rejected here so the
// storage layer's permissive fallback is never reached from the API.
func DecodeMeasurementsQuery(values url.Values) (*MeasurementsQuery, error) {
	q := &MeasurementsQuery{}
	if err := decode(values, q); err != nil {
		return nil, err
	}

	if q.Aggregation == "" {
		q.Aggregation = string(models.AggregationRaw)
	}
	if !models.ValidAggregation(models.Aggregation(q.Aggregation)) {
		return nil, errors.NewValidationError("unknown aggregation keyword", nil).WithField("aggregation")
	}
	if err := validateRange(q.FromDate, q.ToDate); err != nil {
		return nil, err
	}
	return q, nil
}

// DecodeDataQuery parses and validates the export query parameters.
func DecodeDataQuery(values url.Values) (*DataQuery, error) {
	q := &DataQuery{}
	if err := decode(values, q); err != nil {
		return nil, err
	}

	if q.BoxID == "" {
		return nil, errors.NewValidationError("boxId is required", nil).WithField("boxId")
	}
	if q.Format == "" {
		q.Format = string(export.FormatCSV)
	}
	if q.Format != string(export.FormatCSV) && q.Format != string(export.FormatJSON) {
		return nil, errors.NewValidationError("format must be csv or json", nil).WithField("format")
	}
	if q.Delimiter != "" && q.Delimiter != "comma" && q.Delimiter != "semicolon" {
		return nil, errors.NewValidationError("delimiter must be comma or semicolon", nil).WithField("delimiter")
	}
	if err := validateRange(q.FromDate, q.ToDate); err != nil {
		return nil, err
	}
	if q.Columns != "" {
		for _, col := range splitList(q.Columns) {
			if !export.ValidColumn(col) {
				return nil, errors.NewValidationError("unknown column: "+col, nil).WithField("columns")
			}
		}
	}
	if values.Get("bbox") != "" && q.BBox == nil {
		return nil, errors.NewValidationError("bbox must be minX,minY,maxX,maxY", nil).WithField("bbox")
	}
	return q, nil
}

// DecodeBoxListQuery parses the box list filters.
func DecodeBoxListQuery(values url.Values) (*BoxListQuery, error) {
	q := &BoxListQuery{}
	if err := decode(values, q); err != nil {
		return nil, err
	}
	if q.Exposure != "" && !models.ValidExposure(models.Exposure(q.Exposure)) {
		return nil, errors.NewValidationError("invalid exposure", nil).WithField("exposure")
	}
	return q, nil
}

// BoxIDs splits the comma-separated boxId parameter.
func (q *DataQuery) BoxIDs() []string {
	return splitList(q.BoxID)
}

// ColumnList returns the requested export columns, or the defaults.
func (q *DataQuery) ColumnList() []string {
	if q.Columns == "" {
		return export.DefaultColumns
	}
	return splitList(q.Columns)
}

func decode(values url.Values, dst any) error {
	if err := decoder.Decode(dst, values); err != nil {
		if multi, ok := err.(schema.MultiError); ok {
			for field := range multi {
				return errors.NewValidationError("invalid query parameter", err).WithField(field)
			}
		}
		return errors.NewValidationError("invalid query parameters", err)
	}
	return nil
}

func validateRange(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return errors.NewValidationError("from-date must not be after to-date", nil).WithField("from-date")
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
