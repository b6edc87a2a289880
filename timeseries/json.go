package timeseries

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// JSONOptions describes how an array of flat JSON records maps onto a single
// series, e.g. stock candles of the form {"date": ..., "price": ...}.
type JSONOptions struct {
	Entity     string
	TimeField  string
	ValueField string
	TimeLayout string
}

func (o JSONOptions) withDefaults() JSONOptions {
	if o.TimeField == "" {
		o.TimeField = "date"
	}
	if o.ValueField == "" {
		o.ValueField = "price"
	}
	if o.TimeLayout == "" {
		o.TimeLayout = time.RFC3339
	}
	return o
}

// ReadJSONFile loads a JSON record array from disk into a single-entity series.
func ReadJSONFile(path string, opt JSONOptions) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open series json, %w", err)
	}
	defer f.Close()
	return ReadJSON(f, opt)
}

// ReadJSON parses an array of flat records into one series, preserving record
// order.
func ReadJSON(r io.Reader, opt JSONOptions) (*Series, error) {
	opt = opt.withDefaults()

	var records []map[string]any
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("unable to decode series json, %w", err)
	}

	t := make([]time.Time, 0, len(records))
	y := make([]float64, 0, len(records))
	for i, record := range records {
		rawT, exists := record[opt.TimeField]
		if !exists {
			return nil, fmt.Errorf("record %d field %q, %w", i, opt.TimeField, ErrMissingColumn)
		}
		tsStr, ok := rawT.(string)
		if !ok {
			return nil, fmt.Errorf("record %d field %q, %w", i, opt.TimeField, ErrBadTimestamp)
		}
		ts, err := time.Parse(opt.TimeLayout, tsStr)
		if err != nil {
			return nil, fmt.Errorf("record %d, %q, %w", i, tsStr, ErrBadTimestamp)
		}

		rawY, exists := record[opt.ValueField]
		if !exists {
			return nil, fmt.Errorf("record %d field %q, %w", i, opt.ValueField, ErrMissingColumn)
		}
		val, ok := rawY.(float64)
		if !ok {
			return nil, fmt.Errorf("record %d field %q, %w", i, opt.ValueField, ErrBadObservation)
		}

		t = append(t, ts)
		y = append(y, val)
	}

	return NewSeries(opt.Entity, t, y)
}
