package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/forecastops/go-timesfm-vertex/registry"
	"github.com/forecastops/go-timesfm-vertex/vertex"
)

func newDeployCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Upload the staged model and deploy it to a new prediction endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			serving := a.cfg.Serving

			var opts []option.ClientOption
			if a.cfg.Project.CredentialsJSON != "" {
				opts = append(opts, option.WithCredentialsFile(a.cfg.Project.CredentialsJSON))
			}
			deployer, err := vertex.NewDeployer(ctx, a.cfg.Project.ProjectID, a.cfg.Project.Region, a.log, opts...)
			if err != nil {
				return err
			}
			defer deployer.Close()

			artifactURI := serving.ModelLocation
			if artifactURI == "" {
				artifactURI = fmt.Sprintf("gs://%s/timesfm", a.cfg.Project.BucketName)
			}

			modelName, err := deployer.UploadModel(ctx, vertex.ModelSpec{
				DisplayName:  serving.ModelDisplayName,
				ArtifactURI:  artifactURI,
				ImageURI:     serving.ServeDockerURI,
				ModelID:      fmt.Sprintf("google/%s", serving.ModelName),
				DeploySource: serving.DeploySource,
				Backend:      serving.TimesFMBackend,
				Horizon:      serving.Horizon,
			})
			if err != nil {
				return err
			}

			endpointName, err := deployer.CreateEndpoint(ctx, serving.ModelDisplayName, serving.UseDedicatedEndpoint)
			if err != nil {
				return err
			}

			reg, err := registry.Load(a.cfg.Invoke.EndpointsFile)
			if err != nil {
				return err
			}
			reg.Append(endpointName)
			if err := reg.Save(a.cfg.Invoke.EndpointsFile); err != nil {
				return err
			}

			return deployer.DeployModel(ctx, endpointName, modelName, vertex.DeploySpec{
				MachineType:      serving.MachineType,
				AcceleratorType:  serving.AcceleratorType,
				AcceleratorCount: serving.AcceleratorCount,
				ServiceAccount:   serving.ServiceAccount,
				MinReplicas:      1,
				Timeout:          serving.DeployTimeout(),
			})
		},
	}
}
