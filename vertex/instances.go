package vertex

import (
	"errors"
	"fmt"
	"time"

	"github.com/forecastops/go-timesfm-vertex/batcher"
)

var (
	ErrNoInput           = errors.New("instance has no input values")
	ErrMismatchedColumns = errors.New("input and timestamp columns differ in length")
)

// Instance is one request object of a prediction call. The field layout
// matches the serving container's expected JSON.
type Instance struct {
	Input           []float64 `json:"input"`
	Horizon         int       `json:"horizon,omitempty"`
	Timestamp       []string  `json:"timestamp,omitempty"`
	TimestampFormat string    `json:"timestamp_format,omitempty"`

	DynamicNumericalCovariates   map[string][]float64 `json:"dynamic_numerical_covariates,omitempty"`
	DynamicCategoricalCovariates map[string][]string  `json:"dynamic_categorical_covariates,omitempty"`
	StaticCategoricalCovariates  map[string]string    `json:"static_categorical_covariates,omitempty"`
}

// Valid reports whether the instance can be sent to the endpoint.
func (i Instance) Valid() error {
	if len(i.Input) == 0 {
		return ErrNoInput
	}
	return nil
}

// InstancesFromBatch turns a collated batch into request objects, one per
// example, with context timestamps rendered as ISO-8601 strings. When
// withCovariates is set the batch's dynamic and static covariate columns are
// attached to each instance.
func InstancesFromBatch(b batcher.Batch, horizon int, withCovariates bool) []Instance {
	instances := make([]Instance, 0, b.Len())
	for j := 0; j < b.Len(); j++ {
		inst := Instance{
			Input:     b.Inputs[j],
			Horizon:   horizon,
			Timestamp: isoTimestamps(b.Timestamps[j]),
		}
		if withCovariates {
			if len(b.NumCovariates) > 0 {
				inst.DynamicNumericalCovariates = make(map[string][]float64, len(b.NumCovariates))
				for name, cols := range b.NumCovariates {
					inst.DynamicNumericalCovariates[name] = cols[j]
				}
			}
			if len(b.CatCovariates) > 0 {
				inst.DynamicCategoricalCovariates = make(map[string][]string, len(b.CatCovariates))
				for name, cols := range b.CatCovariates {
					inst.DynamicCategoricalCovariates[name] = cols[j]
				}
			}
			if len(b.Static) > 0 {
				inst.StaticCategoricalCovariates = make(map[string]string, len(b.Static))
				for name, cols := range b.Static {
					inst.StaticCategoricalCovariates[name] = cols[j]
				}
			}
		}
		instances = append(instances, inst)
	}
	return instances
}

// RawInstances builds plain instances from bare value slices, used for ad hoc
// invocations without timestamps or covariates.
func RawInstances(inputs [][]float64, horizon int) []Instance {
	instances := make([]Instance, 0, len(inputs))
	for _, input := range inputs {
		instances = append(instances, Instance{Input: input, Horizon: horizon})
	}
	return instances
}

// SlicedInstances builds instances from explicit (context, timestamp) slices
// with a custom timestamp render format, e.g. "%Y-%m-%d" style anomaly runs.
func SlicedInstances(inputs [][]float64, timestamps [][]time.Time, horizon int, layout, formatSpec string) ([]Instance, error) {
	if len(inputs) != len(timestamps) {
		return nil, fmt.Errorf(
			"have %d inputs but %d timestamp slices, %w",
			len(inputs), len(timestamps), ErrMismatchedColumns,
		)
	}

	instances := make([]Instance, 0, len(inputs))
	for j := range inputs {
		rendered := make([]string, 0, len(timestamps[j]))
		for _, ts := range timestamps[j] {
			rendered = append(rendered, ts.Format(layout))
		}
		instances = append(instances, Instance{
			Input:           inputs[j],
			Horizon:         horizon,
			Timestamp:       rendered,
			TimestampFormat: formatSpec,
		})
	}
	return instances, nil
}

func isoTimestamps(t []time.Time) []string {
	rendered := make([]string, 0, len(t))
	for _, ts := range t {
		rendered = append(rendered, ts.Format(time.RFC3339))
	}
	return rendered
}
