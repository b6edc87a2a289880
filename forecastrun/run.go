// Package forecastrun orchestrates one invocation of a deployed forecasting
// endpoint: window the input series into batches, build request payloads with
// and without covariates, collect predictions into per-batch result files,
// and score the forecasts against the held-out horizons.
package forecastrun

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/forecastops/go-timesfm-vertex/batcher"
	"github.com/forecastops/go-timesfm-vertex/timeseries"
	"github.com/forecastops/go-timesfm-vertex/vertex"
	"github.com/forecastops/go-timesfm-vertex/visualize"
)

// Predictor is the prediction boundary the run drives. Satisfied by
// vertex.Predictor.
type Predictor interface {
	Predict(ctx context.Context, instances []vertex.Instance) ([]vertex.Forecast, error)
}

// Options configures one run.
type Options struct {
	Window         batcher.Config
	WithCovariates bool
	OutputDir      string

	// Quantile field names used for the plotted forecast band when the
	// endpoint returns them.
	LowerQuantile string
	UpperQuantile string
}

func (o Options) withDefaults() Options {
	if o.LowerQuantile == "" {
		o.LowerQuantile = "p10"
	}
	if o.UpperQuantile == "" {
		o.UpperQuantile = "p90"
	}
	return o
}

// Result summarizes a completed run.
type Result struct {
	RunID    string
	RunDir   string
	Batches  int
	Examples int

	RawScores *Scores
	CovScores *Scores

	Panels []visualize.Panel
}

// Runner executes forecast runs against one predictor.
type Runner struct {
	predictor Predictor
	log       *logrus.Logger
}

// NewRunner returns a runner for the given predictor.
func NewRunner(predictor Predictor, log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		predictor: predictor,
		log:       log,
	}
}

// Run windows the collection, invokes the endpoint batch by batch, persists
// per-batch forecasts as JSON, and scores the run. When covariates are
// requested each batch is predicted twice, with and without them, matching
// the reference evaluation protocol.
func (r *Runner) Run(ctx context.Context, series *timeseries.Collection, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := opts.Window.Valid(); err != nil {
		return nil, err
	}

	examples, err := batcher.BuildExamples(series, opts.Window.ContextLen, opts.Window.HorizonLen)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:    uuid.NewString(),
		Examples: len(examples),
	}
	if len(examples) == 0 {
		r.log.Warn("no examples produced, nothing to forecast")
		return result, nil
	}

	result.RunDir = filepath.Join(opts.OutputDir, result.RunID)
	if err := os.MkdirAll(result.RunDir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create run directory %s, %w", result.RunDir, err)
	}

	next, err := batcher.Batches(examples, opts.Window.BatchSize)
	if err != nil {
		return nil, err
	}

	var rawPredicted, covPredicted, actual []float64
	for {
		b, ok := next()
		if !ok {
			break
		}
		result.Batches++

		r.log.WithFields(logrus.Fields{
			"batch":    result.Batches,
			"examples": b.Len(),
		}).Info("forecasting batch")

		rawForecasts, err := r.predictBatch(ctx, b, opts, false)
		if err != nil {
			return nil, fmt.Errorf("batch %d, %w", result.Batches, err)
		}
		if err := r.writeForecasts(result.RunDir, "raw", result.Batches, rawForecasts); err != nil {
			return nil, err
		}

		var covForecasts []vertex.Forecast
		if opts.WithCovariates {
			covForecasts, err = r.predictBatch(ctx, b, opts, true)
			if err != nil {
				return nil, fmt.Errorf("batch %d, %w", result.Batches, err)
			}
			if err := r.writeForecasts(result.RunDir, "cov", result.Batches, covForecasts); err != nil {
				return nil, err
			}
		}

		for j := 0; j < b.Len(); j++ {
			actual = append(actual, b.Outputs[j]...)
			rawPredicted = append(rawPredicted, clip(rawForecasts[j].PointForecast, len(b.Outputs[j]))...)
			if opts.WithCovariates {
				covPredicted = append(covPredicted, clip(covForecasts[j].PointForecast, len(b.Outputs[j]))...)
			}

			plotted := rawForecasts[j]
			if opts.WithCovariates {
				plotted = covForecasts[j]
			}
			panel := visualize.Panel{
				Title:       fmt.Sprintf("%s batch %d example %d", b.Entities[j], result.Batches, j+1),
				Context:     b.Inputs[j],
				Forecast:    plotted.PointForecast,
				GroundTruth: b.Outputs[j],
			}
			if lower, exists := plotted.Quantile(opts.LowerQuantile); exists {
				if upper, exists := plotted.Quantile(opts.UpperQuantile); exists {
					panel.Lower = lower
					panel.Upper = upper
				}
			}
			result.Panels = append(result.Panels, panel)
		}
	}

	result.RawScores, err = NewScores(rawPredicted, actual)
	if err != nil {
		return nil, err
	}
	fields := logrus.Fields{"raw_mae": result.RawScores.MAE}
	if opts.WithCovariates {
		result.CovScores, err = NewScores(covPredicted, actual)
		if err != nil {
			return nil, err
		}
		fields["cov_mae"] = result.CovScores.MAE
	}
	r.log.WithFields(fields).Info("run complete")
	return result, nil
}

func (r *Runner) predictBatch(ctx context.Context, b batcher.Batch, opts Options, withCovariates bool) ([]vertex.Forecast, error) {
	instances := vertex.InstancesFromBatch(b, opts.Window.HorizonLen, withCovariates)
	forecasts, err := r.predictor.Predict(ctx, instances)
	if err != nil {
		return nil, err
	}
	if len(forecasts) != len(instances) {
		return nil, fmt.Errorf(
			"endpoint returned %d predictions for %d instances, %w",
			len(forecasts), len(instances), ErrResLenMismatch,
		)
	}
	return forecasts, nil
}

func (r *Runner) writeForecasts(runDir, kind string, batchNum int, forecasts []vertex.Forecast) error {
	path := filepath.Join(runDir, fmt.Sprintf("%s_forecast_batch_%d.json", kind, batchNum))
	raw, err := json.MarshalIndent(forecasts, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal forecasts, %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("unable to write %s, %w", path, err)
	}
	r.log.WithField("file", path).Debug("wrote forecast batch")
	return nil
}

// clip trims a forecast to the horizon length so endpoints configured with a
// longer serving horizon still score against the available truth.
func clip(forecast []float64, n int) []float64 {
	if len(forecast) > n {
		return forecast[:n]
	}
	return forecast
}
