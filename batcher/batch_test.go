package batcher

import (
	"testing"

	"github.com/forecastops/go-timesfm-vertex/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genExamples(t *testing.T, total int) []Example {
	t.Helper()

	s := genSeries(t, "de", 5+2*total+1)
	require.NoError(t, s.AddNumCovariate("gen_forecast", make([]float64, s.Len())))
	s.SetStaticCovariate("country", "de")

	c := timeseries.NewCollection()
	require.NoError(t, c.Add(s))

	examples, err := BuildExamples(c, 5, 2)
	require.NoError(t, err)
	require.Len(t, examples, total)
	return examples
}

func TestPartitionSizes(t *testing.T) {
	testData := map[string]struct {
		total     int
		batchSize int
		sizes     []int
	}{
		"three into two": {3, 2, []int{2, 1}},
		"even split":     {4, 2, []int{2, 2}},
		"single batch":   {3, 128, []int{3}},
		"exact batch":    {5, 5, []int{5}},
		"one per batch":  {3, 1, []int{1, 1, 1}},
		"empty stream":   {0, 4, nil},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			batches, err := Partition(genExamples(t, td.total), td.batchSize)
			require.NoError(t, err)
			require.Len(t, batches, len(td.sizes))
			for i, b := range batches {
				assert.Equal(t, td.sizes[i], b.Len(), "batch %d", i)
			}
		})
	}
}

func TestPartitionRoundTrip(t *testing.T) {
	examples := genExamples(t, 7)
	batches, err := Partition(examples, 3)
	require.NoError(t, err)

	// concatenating batch columns reconstructs the flattened example stream
	var inputs [][]float64
	var entities []string
	var gen [][]float64
	var country []string
	for _, b := range batches {
		inputs = append(inputs, b.Inputs...)
		entities = append(entities, b.Entities...)
		gen = append(gen, b.NumCovariates["gen_forecast"]...)
		country = append(country, b.Static["country"]...)
	}

	require.Len(t, inputs, len(examples))
	for i, ex := range examples {
		assert.Equal(t, ex.Context, inputs[i], "input %d", i)
		assert.Equal(t, ex.Entity, entities[i], "entity %d", i)
		assert.Equal(t, ex.NumCovariates["gen_forecast"], gen[i], "covariate %d", i)
		assert.Equal(t, ex.Static["country"], country[i], "static %d", i)
	}
}

func TestPartitionDeterministic(t *testing.T) {
	examples := genExamples(t, 6)

	first, err := Partition(examples, 4)
	require.NoError(t, err)
	second, err := Partition(examples, 4)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPartitionInvalidBatchSize(t *testing.T) {
	_, err := Partition(genExamples(t, 3), 0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = Partition(genExamples(t, 3), -1)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestBatchesRestartable(t *testing.T) {
	examples := genExamples(t, 5)

	next, err := Batches(examples, 2)
	require.NoError(t, err)
	var consumed int
	for {
		b, ok := next()
		if !ok {
			break
		}
		consumed += b.Len()
	}
	assert.Equal(t, 5, consumed)

	// a fresh generator starts over
	next, err = Batches(examples, 2)
	require.NoError(t, err)
	b, ok := next()
	require.True(t, ok)
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, examples[0].Context, b.Inputs[0])
}
