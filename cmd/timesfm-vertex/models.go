package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forecastops/go-timesfm-vertex/gcs"
	"github.com/forecastops/go-timesfm-vertex/hub"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage model artifacts in object storage",
	}
	cmd.AddCommand(newModelsUploadCmd(a), newModelsStageCmd(a))
	return cmd
}

func newModelsUploadCmd(a *app) *cobra.Command {
	var keepLocal bool

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Download configured hub snapshots and upload them to the model bucket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			token, err := hub.LoadToken(a.cfg.Hub.TokenFile)
			if err != nil {
				return err
			}
			hubClient := hub.NewClient(token, a.log)

			storageClient, err := gcs.NewClient(
				ctx,
				a.cfg.Project.ProjectID,
				a.cfg.Project.Region,
				a.cfg.Project.CredentialsJSON,
				a.log,
			)
			if err != nil {
				return err
			}
			defer storageClient.Close()

			if err := storageClient.EnsureBucket(ctx, a.cfg.Project.BucketName); err != nil {
				return err
			}

			stagingDir, err := os.MkdirTemp("", "timesfm-models-")
			if err != nil {
				return fmt.Errorf("unable to create staging directory, %w", err)
			}
			if !keepLocal {
				defer os.RemoveAll(stagingDir)
			}

			for name, model := range a.cfg.Hub.Models {
				a.log.WithFields(logrus.Fields{
					"model": name,
					"repo":  model.RepoID,
				}).Info("mirroring model")

				localDir := filepath.Join(stagingDir, name)
				if err := hubClient.Snapshot(ctx, model.RepoID, localDir, []string{"*.lock"}); err != nil {
					return err
				}
				if err := storageClient.UploadDir(ctx, a.cfg.Project.BucketName, localDir, model.GCSPrefix); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepLocal, "keep-local", false, "keep the local staging directory after upload")
	return cmd
}

func newModelsStageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stage <source gs://uri> <destination gs://uri>",
		Short: "Copy model artifacts between object storage prefixes server side",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			storageClient, err := gcs.NewClient(
				ctx,
				a.cfg.Project.ProjectID,
				a.cfg.Project.Region,
				a.cfg.Project.CredentialsJSON,
				a.log,
			)
			if err != nil {
				return err
			}
			defer storageClient.Close()

			copied, err := storageClient.CopyPrefix(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			a.log.WithField("objects", copied).Info("staging complete")
			return nil
		},
	}
}
