package vertex

import (
	"testing"
	"time"

	"github.com/forecastops/go-timesfm-vertex/batcher"
	"github.com/forecastops/go-timesfm-vertex/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genBatch(t *testing.T) batcher.Batch {
	t.Helper()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 10
	ts := make([]time.Time, 0, n)
	y := make([]float64, 0, n)
	gen := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		ts = append(ts, start.Add(time.Duration(i)*time.Hour))
		y = append(y, float64(i))
		gen = append(gen, float64(100+i))
	}
	s, err := timeseries.NewSeries("de", ts, y)
	require.NoError(t, err)
	require.NoError(t, s.AddNumCovariate("gen_forecast", gen))
	require.NoError(t, s.AddCatCovariate("week_day", timeseries.Weekday(ts)))
	s.SetStaticCovariate("country", "de")

	c := timeseries.NewCollection()
	require.NoError(t, c.Add(s))

	examples, err := batcher.BuildExamples(c, 5, 2)
	require.NoError(t, err)
	batches, err := batcher.Partition(examples, 128)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	return batches[0]
}

func TestInstancesFromBatch(t *testing.T) {
	b := genBatch(t)

	instances := InstancesFromBatch(b, 2, false)
	require.Len(t, instances, 2)

	assert.Equal(t, []float64{0, 1, 2, 3, 4}, instances[0].Input)
	assert.Equal(t, 2, instances[0].Horizon)
	require.Len(t, instances[0].Timestamp, 5)
	assert.Equal(t, "2024-01-01T00:00:00Z", instances[0].Timestamp[0])
	assert.Nil(t, instances[0].DynamicNumericalCovariates)
	assert.Nil(t, instances[0].StaticCategoricalCovariates)
}

func TestInstancesFromBatchWithCovariates(t *testing.T) {
	b := genBatch(t)

	instances := InstancesFromBatch(b, 2, true)
	require.Len(t, instances, 2)

	// dynamic covariates span context plus horizon
	assert.Equal(t, []float64{100, 101, 102, 103, 104, 105, 106}, instances[0].DynamicNumericalCovariates["gen_forecast"])
	assert.Len(t, instances[0].DynamicCategoricalCovariates["week_day"], 7)
	assert.Equal(t, map[string]string{"country": "de"}, instances[0].StaticCategoricalCovariates)
}

func TestRawInstances(t *testing.T) {
	instances := RawInstances([][]float64{{1, 2}, {3, 4, 5}}, 100)
	require.Len(t, instances, 2)
	assert.Equal(t, []float64{3, 4, 5}, instances[1].Input)
	assert.Equal(t, 100, instances[1].Horizon)
	assert.Empty(t, instances[1].Timestamp)
}

func TestSlicedInstances(t *testing.T) {
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	timestamps := [][]time.Time{{start, start.AddDate(0, 0, 1)}}

	instances, err := SlicedInstances([][]float64{{20.5, 21.0}}, timestamps, 100, "2006-01-02", "%Y-%m-%d")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, []string{"2017-01-01", "2017-01-02"}, instances[0].Timestamp)
	assert.Equal(t, "%Y-%m-%d", instances[0].TimestampFormat)

	_, err = SlicedInstances([][]float64{{1}}, nil, 100, "2006-01-02", "%Y-%m-%d")
	assert.ErrorIs(t, err, ErrMismatchedColumns)
}
