package main

import (
	"context"

	"github.com/spf13/cobra"

	"pulsaroutlier/adapters/api"
	"pulsaroutlier/internal/container"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs and outlier probabilities over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			c, err := container.New(cfg, logger)
			if err != nil {
				return err
			}
			if err := c.InitWithDatabase(cmd.Context()); err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			server := api.NewServer(c.ResultsRepo, logger)
			return server.Start(cmd.Context(), ":"+cfg.Server.Port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "8080", "Listen port")
	return cmd
}
