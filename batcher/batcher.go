// Package batcher turns raw per-entity time series into fixed-size
// (context, horizon) examples and groups them into bounded batches for the
// prediction endpoint. Windows within one entity are spaced exactly one
// horizon apart so evaluation horizons never overlap, while contexts may.
package batcher

import (
	"errors"
	"fmt"
	"time"

	"github.com/forecastops/go-timesfm-vertex/timeseries"
)

var (
	ErrInvalidConfiguration = errors.New("context, horizon, and batch size must be positive")
	ErrMalformedSeries      = errors.New("series columns are misaligned")
)

// Config fixes the window and batch geometry for one batching run.
type Config struct {
	ContextLen int
	HorizonLen int
	BatchSize  int
}

// Valid reports whether all window parameters are positive.
func (c Config) Valid() error {
	if c.ContextLen <= 0 || c.HorizonLen <= 0 || c.BatchSize <= 0 {
		return fmt.Errorf(
			"context_len %d, horizon_len %d, batch_size %d, %w",
			c.ContextLen, c.HorizonLen, c.BatchSize, ErrInvalidConfiguration,
		)
	}
	return nil
}

// Example is one immutable (context, horizon) window of a single entity's
// series. Dynamic covariates span the context plus the horizon since they are
// known in advance of the forecast; the context timestamps cover only the
// context.
type Example struct {
	Entity       string
	Context      []float64
	HorizonTruth []float64
	ContextTimes []time.Time

	NumCovariates map[string][]float64
	CatCovariates map[string][]string
	Static        map[string]string
}

// BuildExamples windows every entity of the collection at offsets
// 0, H, 2H, ... while offset+C+H fits within the series. Entities shorter
// than C+H contribute no examples. Output order is block sequential: all
// windows of the first entity in ascending offset order, then the next
// entity, following the collection's first-appearance order.
func BuildExamples(c *timeseries.Collection, contextLen, horizonLen int) ([]Example, error) {
	if contextLen <= 0 || horizonLen <= 0 {
		return nil, fmt.Errorf(
			"context_len %d, horizon_len %d, %w",
			contextLen, horizonLen, ErrInvalidConfiguration,
		)
	}

	var examples []Example
	for _, entity := range c.Entities() {
		s, err := c.Get(entity)
		if err != nil {
			return nil, err
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("%w, %w", ErrMalformedSeries, err)
		}

		n := s.Len()
		for start := 0; start+contextLen+horizonLen <= n; start += horizonLen {
			contextEnd := start + contextLen
			horizonEnd := contextEnd + horizonLen

			ex := Example{
				Entity:       entity,
				Context:      copyFloats(s.Y[start:contextEnd]),
				HorizonTruth: copyFloats(s.Y[contextEnd:horizonEnd]),
				ContextTimes: copyTimes(s.T[start:contextEnd]),
			}
			if len(s.NumCovariates) > 0 {
				ex.NumCovariates = make(map[string][]float64, len(s.NumCovariates))
				for name, vals := range s.NumCovariates {
					ex.NumCovariates[name] = copyFloats(vals[start:horizonEnd])
				}
			}
			if len(s.CatCovariates) > 0 {
				ex.CatCovariates = make(map[string][]string, len(s.CatCovariates))
				for name, vals := range s.CatCovariates {
					ex.CatCovariates[name] = copyStrings(vals[start:horizonEnd])
				}
			}
			if len(s.StaticCovariates) > 0 {
				ex.Static = make(map[string]string, len(s.StaticCovariates))
				for name, val := range s.StaticCovariates {
					ex.Static[name] = val
				}
			}
			examples = append(examples, ex)
		}
	}
	return examples, nil
}

func copyFloats(src []float64) []float64 {
	dst := make([]float64, len(src))
	copy(dst, src)
	return dst
}

func copyTimes(src []time.Time) []time.Time {
	dst := make([]time.Time, len(src))
	copy(dst, src)
	return dst
}

func copyStrings(src []string) []string {
	dst := make([]string, len(src))
	copy(dst, src)
	return dst
}
