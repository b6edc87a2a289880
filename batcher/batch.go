package batcher

import (
	"fmt"
	"time"
)

// Batch groups up to batch_size examples into parallel per-field columns, in
// example order. This is the shape the request payload builder consumes,
// field by field.
type Batch struct {
	Entities      []string
	Inputs        [][]float64
	Outputs       [][]float64
	Timestamps    [][]time.Time
	NumCovariates map[string][][]float64
	CatCovariates map[string][][]string
	Static        map[string][]string
}

// Len returns the number of examples in the batch.
func (b *Batch) Len() int {
	return len(b.Inputs)
}

// Partition slices the example stream into contiguous batches of batchSize,
// preserving order. The final batch holds the remainder when the stream does
// not divide evenly. Pure and deterministic.
func Partition(examples []Example, batchSize int) ([]Batch, error) {
	next, err := Batches(examples, batchSize)
	if err != nil {
		return nil, err
	}

	var batches []Batch
	for {
		b, ok := next()
		if !ok {
			break
		}
		batches = append(batches, b)
	}
	return batches, nil
}

// Batches returns a generator yielding one batch at a time so the downstream
// request builder can consume incrementally without materializing every
// batch. Calling Batches again restarts from the beginning.
func Batches(examples []Example, batchSize int) (func() (Batch, bool), error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch_size %d, %w", batchSize, ErrInvalidConfiguration)
	}

	i := 0
	next := func() (Batch, bool) {
		if i >= len(examples) {
			return Batch{}, false
		}
		end := i + batchSize
		if end > len(examples) {
			end = len(examples)
		}
		b := collate(examples[i:end])
		i = end
		return b, true
	}
	return next, nil
}

func collate(examples []Example) Batch {
	b := Batch{
		Entities:   make([]string, 0, len(examples)),
		Inputs:     make([][]float64, 0, len(examples)),
		Outputs:    make([][]float64, 0, len(examples)),
		Timestamps: make([][]time.Time, 0, len(examples)),
	}
	for _, ex := range examples {
		b.Entities = append(b.Entities, ex.Entity)
		b.Inputs = append(b.Inputs, ex.Context)
		b.Outputs = append(b.Outputs, ex.HorizonTruth)
		b.Timestamps = append(b.Timestamps, ex.ContextTimes)

		for name, vals := range ex.NumCovariates {
			if b.NumCovariates == nil {
				b.NumCovariates = make(map[string][][]float64)
			}
			b.NumCovariates[name] = append(b.NumCovariates[name], vals)
		}
		for name, vals := range ex.CatCovariates {
			if b.CatCovariates == nil {
				b.CatCovariates = make(map[string][][]string)
			}
			b.CatCovariates[name] = append(b.CatCovariates[name], vals)
		}
		for name, val := range ex.Static {
			if b.Static == nil {
				b.Static = make(map[string][]string)
			}
			b.Static[name] = append(b.Static[name], val)
		}
	}
	return b
}
