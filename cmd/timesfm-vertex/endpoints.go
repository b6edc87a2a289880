package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forecastops/go-timesfm-vertex/registry"
)

func newEndpointsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "Inspect the endpoint registry",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered endpoint resource names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.Load(a.cfg.Invoke.EndpointsFile)
			if err != nil {
				return err
			}
			if len(reg.Endpoints) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no endpoints registered")
				return nil
			}
			for _, name := range reg.Endpoints {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})
	return cmd
}
