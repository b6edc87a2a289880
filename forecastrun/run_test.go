package forecastrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastops/go-timesfm-vertex/batcher"
	"github.com/forecastops/go-timesfm-vertex/timeseries"
	"github.com/forecastops/go-timesfm-vertex/vertex"
)

// echoPredictor forecasts the last context value repeated across the horizon.
type echoPredictor struct {
	horizon int
	calls   [][]vertex.Instance
}

func (e *echoPredictor) Predict(_ context.Context, instances []vertex.Instance) ([]vertex.Forecast, error) {
	e.calls = append(e.calls, instances)

	forecasts := make([]vertex.Forecast, 0, len(instances))
	for _, inst := range instances {
		last := inst.Input[len(inst.Input)-1]
		point := make([]float64, e.horizon)
		lower := make([]float64, e.horizon)
		upper := make([]float64, e.horizon)
		for i := range point {
			point[i] = last
			lower[i] = last - 1
			upper[i] = last + 1
		}
		forecasts = append(forecasts, vertex.Forecast{
			PointForecast: point,
			Quantiles:     map[string][]float64{"p10": lower, "p90": upper},
		})
	}
	return forecasts, nil
}

func genCollection(t *testing.T, entities []string, n int) *timeseries.Collection {
	t.Helper()

	c := timeseries.NewCollection()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, entity := range entities {
		ts := make([]time.Time, 0, n)
		y := make([]float64, 0, n)
		gen := make([]float64, 0, n)
		for i := 0; i < n; i++ {
			ts = append(ts, start.Add(time.Duration(i)*time.Hour))
			y = append(y, float64(i))
			gen = append(gen, float64(i)*2)
		}
		s, err := timeseries.NewSeries(entity, ts, y)
		require.NoError(t, err)
		require.NoError(t, s.AddNumCovariate("gen_forecast", gen))
		s.SetStaticCovariate("country", entity)
		require.NoError(t, c.Add(s))
	}
	return c
}

func TestRun(t *testing.T) {
	outputDir := t.TempDir()
	predictor := &echoPredictor{horizon: 2}
	runner := NewRunner(predictor, logrus.New())

	res, err := runner.Run(context.Background(), genCollection(t, []string{"de", "fr"}, 11), Options{
		Window:         batcher.Config{ContextLen: 5, HorizonLen: 2, BatchSize: 3},
		WithCovariates: true,
		OutputDir:      outputDir,
	})
	require.NoError(t, err)

	// 3 examples per entity, batches of 3 -> 2 batches
	assert.Equal(t, 6, res.Examples)
	assert.Equal(t, 2, res.Batches)
	require.NotNil(t, res.RawScores)
	require.NotNil(t, res.CovScores)
	assert.Len(t, res.Panels, 6)
	assert.NotEmpty(t, res.Panels[0].Lower)

	// each batch predicted twice: without then with covariates
	require.Len(t, predictor.calls, 4)
	assert.Nil(t, predictor.calls[0][0].DynamicNumericalCovariates)
	assert.NotNil(t, predictor.calls[1][0].DynamicNumericalCovariates)
	assert.Len(t, predictor.calls[0], 3)
	assert.Len(t, predictor.calls[2], 3)

	// per-batch result files on disk
	for _, name := range []string{
		"raw_forecast_batch_1.json",
		"raw_forecast_batch_2.json",
		"cov_forecast_batch_1.json",
		"cov_forecast_batch_2.json",
	} {
		raw, err := os.ReadFile(filepath.Join(res.RunDir, name))
		require.NoError(t, err, name)

		var forecasts []vertex.Forecast
		require.NoError(t, json.Unmarshal(raw, &forecasts), name)
		assert.Len(t, forecasts, 3, name)
	}
}

func TestRunNoExamples(t *testing.T) {
	runner := NewRunner(&echoPredictor{horizon: 2}, logrus.New())

	res, err := runner.Run(context.Background(), genCollection(t, []string{"de"}, 6), Options{
		Window:    batcher.Config{ContextLen: 5, HorizonLen: 2, BatchSize: 3},
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Examples)
	assert.Equal(t, 0, res.Batches)
	assert.Nil(t, res.RawScores)
}

func TestRunInvalidWindow(t *testing.T) {
	runner := NewRunner(&echoPredictor{horizon: 2}, logrus.New())

	_, err := runner.Run(context.Background(), genCollection(t, []string{"de"}, 20), Options{
		Window:    batcher.Config{ContextLen: 0, HorizonLen: 2, BatchSize: 3},
		OutputDir: t.TempDir(),
	})
	assert.ErrorIs(t, err, batcher.ErrInvalidConfiguration)
}
