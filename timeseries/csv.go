package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

var (
	ErrMissingColumn  = errors.New("required column not found in header")
	ErrBadTimestamp   = errors.New("unparseable timestamp")
	ErrBadObservation = errors.New("unparseable observation value")
)

// CSVOptions describes how a long-format CSV maps onto series columns. An
// empty field falls back to the default electricity-style column names
// (unique_id, ds, y).
type CSVOptions struct {
	EntityCol string
	TimeCol   string
	ValueCol  string

	// Dynamic covariate columns to carry through, by kind.
	NumCovariateCols []string
	CatCovariateCols []string

	// StaticCovariate, when set, records the entity key itself under this
	// field name, e.g. "country".
	StaticCovariate string

	// TimeLayouts are tried in order when parsing the time column. Defaults
	// to RFC3339, "2006-01-02 15:04:05" and "2006-01-02".
	TimeLayouts []string
}

func (o CSVOptions) withDefaults() CSVOptions {
	if o.EntityCol == "" {
		o.EntityCol = "unique_id"
	}
	if o.TimeCol == "" {
		o.TimeCol = "ds"
	}
	if o.ValueCol == "" {
		o.ValueCol = "y"
	}
	if len(o.TimeLayouts) == 0 {
		o.TimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	}
	return o
}

// ReadCSVFile loads a long-format CSV from disk into a Collection.
func ReadCSVFile(path string, opt CSVOptions) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open series csv, %w", err)
	}
	defer f.Close()
	return ReadCSV(f, opt)
}

// ReadCSV parses long-format rows, one observation per row, grouped into one
// series per entity. Entities appear in the collection in the order their
// first row appears in the file.
func ReadCSV(r io.Reader, opt CSVOptions) (*Collection, error) {
	opt = opt.withDefaults()

	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read csv header, %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[name] = i
	}
	for _, required := range []string{opt.EntityCol, opt.TimeCol, opt.ValueCol} {
		if _, exists := colIdx[required]; !exists {
			return nil, fmt.Errorf("%s, %w", required, ErrMissingColumn)
		}
	}
	for _, name := range opt.NumCovariateCols {
		if _, exists := colIdx[name]; !exists {
			return nil, fmt.Errorf("%s, %w", name, ErrMissingColumn)
		}
	}
	for _, name := range opt.CatCovariateCols {
		if _, exists := colIdx[name]; !exists {
			return nil, fmt.Errorf("%s, %w", name, ErrMissingColumn)
		}
	}

	type columns struct {
		t   []time.Time
		y   []float64
		num map[string][]float64
		cat map[string][]string
	}
	byEntity := make(map[string]*columns)
	var order []string

	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to read csv record, %w", err)
		}
		line++

		entity := record[colIdx[opt.EntityCol]]
		cols, exists := byEntity[entity]
		if !exists {
			cols = &columns{
				num: make(map[string][]float64),
				cat: make(map[string][]string),
			}
			byEntity[entity] = cols
			order = append(order, entity)
		}

		ts, err := parseTime(record[colIdx[opt.TimeCol]], opt.TimeLayouts)
		if err != nil {
			return nil, fmt.Errorf("line %d, %w", line, err)
		}
		y, err := strconv.ParseFloat(record[colIdx[opt.ValueCol]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d value %q, %w", line, record[colIdx[opt.ValueCol]], ErrBadObservation)
		}
		cols.t = append(cols.t, ts)
		cols.y = append(cols.y, y)

		for _, name := range opt.NumCovariateCols {
			val, err := strconv.ParseFloat(record[colIdx[name]], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d covariate %q value %q, %w", line, name, record[colIdx[name]], ErrBadObservation)
			}
			cols.num[name] = append(cols.num[name], val)
		}
		for _, name := range opt.CatCovariateCols {
			cols.cat[name] = append(cols.cat[name], record[colIdx[name]])
		}
	}

	collection := NewCollection()
	for _, entity := range order {
		cols := byEntity[entity]
		s, err := NewSeries(entity, cols.t, cols.y)
		if err != nil {
			return nil, err
		}
		for _, name := range opt.NumCovariateCols {
			if err := s.AddNumCovariate(name, cols.num[name]); err != nil {
				return nil, err
			}
		}
		for _, name := range opt.CatCovariateCols {
			if err := s.AddCatCovariate(name, cols.cat[name]); err != nil {
				return nil, err
			}
		}
		if opt.StaticCovariate != "" {
			s.SetStaticCovariate(opt.StaticCovariate, entity)
		}
		if err := collection.Add(s); err != nil {
			return nil, err
		}
	}
	return collection, nil
}

func parseTime(val string, layouts []string) (time.Time, error) {
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, val); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q, %w", val, ErrBadTimestamp)
}
