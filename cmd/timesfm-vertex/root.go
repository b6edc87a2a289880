// Command timesfm-vertex operates a hosted TimesFM forecasting model: mirror
// pretrained weights into object storage, deploy them as a prediction
// endpoint, invoke the endpoint with batched time series, and visualize the
// forecasts.
package main

import (
	"fmt"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forecastops/go-timesfm-vertex/config"
)

type app struct {
	cfg *config.Config
	log *logrus.Logger

	stopProfile func()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	var configPath string
	var profileMode bool

	cmd := &cobra.Command{
		Use:           "timesfm-vertex",
		Short:         "Operate a TimesFM forecasting model on a managed prediction platform",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg

			a.log = logrus.New()
			level, err := logrus.ParseLevel(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q, %w", cfg.LogLevel, err)
			}
			a.log.SetLevel(level)

			if profileMode {
				p := profile.Start(profile.CPUProfile, profile.ProfilePath("."))
				a.stopProfile = p.Stop
			}
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.stopProfile != nil {
				a.stopProfile()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config yaml (defaults to ./configs/config.yaml)")
	cmd.PersistentFlags().BoolVar(&profileMode, "profile", false, "write a cpu profile for this invocation")

	cmd.AddCommand(
		newModelsCmd(a),
		newDeployCmd(a),
		newForecastCmd(a),
		newEndpointsCmd(a),
	)
	return cmd
}
