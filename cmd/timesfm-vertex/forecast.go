package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/forecastops/go-timesfm-vertex/batcher"
	"github.com/forecastops/go-timesfm-vertex/forecastrun"
	"github.com/forecastops/go-timesfm-vertex/registry"
	"github.com/forecastops/go-timesfm-vertex/timeseries"
	"github.com/forecastops/go-timesfm-vertex/vertex"
	"github.com/forecastops/go-timesfm-vertex/visualize"
)

func newForecastCmd(a *app) *cobra.Command {
	var (
		inputPath     string
		numCovariates []string
		catCovariates []string
		staticField   string
		covariates    bool
		visualizeOut  bool
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Invoke the deployed endpoint with windowed batches of a series csv",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			series, err := timeseries.ReadCSVFile(inputPath, timeseries.CSVOptions{
				NumCovariateCols: numCovariates,
				CatCovariateCols: catCovariates,
				StaticCovariate:  staticField,
			})
			if err != nil {
				return err
			}

			reg, err := registry.Load(a.cfg.Invoke.EndpointsFile)
			if err != nil {
				return err
			}
			endpointName, err := reg.First()
			if err != nil {
				return err
			}

			var opts []option.ClientOption
			if a.cfg.Project.CredentialsJSON != "" {
				opts = append(opts, option.WithCredentialsFile(a.cfg.Project.CredentialsJSON))
			}
			predictor, err := vertex.NewPredictor(ctx, endpointName, a.log, opts...)
			if err != nil {
				return err
			}
			defer predictor.Close()

			runner := forecastrun.NewRunner(predictor, a.log)
			res, err := runner.Run(ctx, series, forecastrun.Options{
				Window: batcher.Config{
					ContextLen: a.cfg.Invoke.ContextLen,
					HorizonLen: a.cfg.Invoke.HorizonLen,
					BatchSize:  a.cfg.Invoke.BatchSize,
				},
				WithCovariates: covariates,
				OutputDir:      a.cfg.Invoke.OutputDir,
			})
			if err != nil {
				return err
			}

			if visualizeOut && len(res.Panels) > 0 {
				htmlPath := filepath.Join(res.RunDir, "forecasts.html")
				if err := visualize.WritePage(htmlPath, res.Panels); err != nil {
					return err
				}
				a.log.WithField("file", htmlPath).Info("visualization written")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "./data/input/electricity.csv", "long-format series csv")
	cmd.Flags().StringSliceVar(&numCovariates, "num-covariates", []string{"gen_forecast"}, "numerical covariate columns")
	cmd.Flags().StringSliceVar(&catCovariates, "cat-covariates", []string{"week_day"}, "categorical covariate columns")
	cmd.Flags().StringVar(&staticField, "static-field", "country", "static covariate field name set to the entity key")
	cmd.Flags().BoolVar(&covariates, "covariates", false, "also forecast with covariates attached")
	cmd.Flags().BoolVar(&visualizeOut, "visualize", false, "write an html page of forecast charts")
	return cmd
}
