// FilePath: internal/export/export.go

// Package export serializes measurement batches to CSV or JSON without
// ever materializing the full result set: memory is bounded by one batch.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/opensensemap/osem/internal/models"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Source yields time-ordered measurement batches. Next returns io.EOF once
// the sequence is exhausted.
type Source interface {
	Next(ctx context.Context) ([]models.Measurement, error)
}

// DefaultColumns are emitted when the caller requests none explicitly.
var DefaultColumns = []string{"sensorId", "time", "value"}

var knownColumns = map[string]bool{
	"sensorId":   true,
	"time":       true,
	"value":      true,
	"lon":        true,
	"lat":        true,
	"unit":       true,
	"phenomenon": true,
	"sensorType": true,
	"boxId":      true,
}

// ValidColumn reports whether col is a selectable export column.
func ValidColumn(col string) bool {
	return knownColumns[col]
}

// Options controls the output shape of a streamed export.
type Options struct {
	Format    Format
	Delimiter rune // CSV only; ',' when unset
	Columns   []string
	// Sensors supplies metadata for the unit/phenomenon/boxId columns,
	// keyed by sensor id.
	Sensors map[string]*models.Sensor
}

// Stream consumes src batch by batch and writes serialized records to w.
// The CSV header row or JSON opening bracket goes out before the first
// batch is fetched. Any error aborts the stream; the caller surfaces a 500
// and the client observes a truncated body.
func Stream(ctx context.Context, w io.Writer, src Source, opts Options) error {
	columns := opts.Columns
	if len(columns) == 0 {
		columns = DefaultColumns
	}

	switch opts.Format {
	case FormatJSON:
		return streamJSON(ctx, w, src, columns, opts.Sensors)
	default:
		return streamCSV(ctx, w, src, columns, opts)
	}
}

func streamCSV(ctx context.Context, w io.Writer, src Source, columns []string, opts Options) error {
	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	row := make([]string, len(columns))
	for {
		batch, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("measurement stream failed: %w", err)
		}

		for i := range batch {
			for j, col := range columns {
				row[j] = formatColumn(&batch[i], opts.Sensors, col)
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("failed to write csv row: %w", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("failed to flush csv batch: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func streamJSON(ctx context.Context, w io.Writer, src Source, columns []string, sensors map[string]*models.Sensor) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return fmt.Errorf("failed to open json array: %w", err)
	}

	first := true
	for {
		batch, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("measurement stream failed: %w", err)
		}

		for i := range batch {
			record := make(map[string]interface{}, len(columns))
			for _, col := range columns {
				record[col] = columnValue(&batch[i], sensors, col)
			}

			encoded, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("failed to encode record: %w", err)
			}

			if !first {
				if _, err := io.WriteString(w, ","); err != nil {
					return fmt.Errorf("failed to write record separator: %w", err)
				}
			}
			first = false

			if _, err := w.Write(encoded); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
	}

	if _, err := io.WriteString(w, "]"); err != nil {
		return fmt.Errorf("failed to close json array: %w", err)
	}
	return nil
}

// columnValue maps a requested column name to its value for one
// measurement. Metadata columns resolve through the sensor lookup and stay
// empty when the sensor is unknown.
func columnValue(m *models.Measurement, sensors map[string]*models.Sensor, col string) interface{} {
	switch col {
	case "sensorId":
		return m.SensorID
	case "time":
		return m.Time.UTC().Format(time.RFC3339)
	case "value":
		return m.Value
	case "lon":
		if m.X != nil {
			return *m.X
		}
		return nil
	case "lat":
		if m.Y != nil {
			return *m.Y
		}
		return nil
	case "unit":
		if s := sensors[m.SensorID]; s != nil {
			return s.Unit
		}
		return ""
	case "phenomenon":
		if s := sensors[m.SensorID]; s != nil {
			return s.Title
		}
		return ""
	case "sensorType":
		if s := sensors[m.SensorID]; s != nil {
			return s.SensorType
		}
		return ""
	case "boxId":
		if s := sensors[m.SensorID]; s != nil {
			return s.BoxID
		}
		return ""
	default:
		return nil
	}
}

func formatColumn(m *models.Measurement, sensors map[string]*models.Sensor, col string) string {
	v := columnValue(m, sensors, col)
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	default:
		return fmt.Sprint(tv)
	}
}

// ContentDisposition builds the attachment header value for downloads,
// encoding the current timestamp and the requested phenomenon.
func ContentDisposition(phenomenon string, format Format, now time.Time) string {
	name := "opensensemap"
	if phenomenon != "" {
		name += "_" + phenomenon
	}
	ext := "csv"
	if format == FormatJSON {
		ext = "json"
	}
	return fmt.Sprintf(`attachment; filename="%s_%s.%s"`, name, now.UTC().Format("2006-01-02T150405Z"), ext)
}

// ParseDelimiter maps the query-level delimiter keyword to its rune.
// Unknown keywords fall back to comma.
func ParseDelimiter(s string) rune {
	if s == "semicolon" {
		return ';'
	}
	return ','
}
