package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/publication-classification/pkg/api"
)

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the classification HTTP API",
		Long: `Run the classification HTTP API.

Routes:
  POST   /api/v1/classifications          submit a citation network
  GET    /api/v1/classifications          list jobs
  GET    /api/v1/classifications/{jobId}  job status and result
  DELETE /api/v1/classifications/{jobId}  cancel a job
  GET    /api/v1/health                   liveness
  GET    /metrics                         Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Logger = opts.logger(cmd.ErrOrStderr())
			return serve(cmd.Context(), opts)
		},
	}

	defaults := api.DefaultJobConfig()
	cmd.Flags().String("addr", ":8080", "Address to listen on")
	cmd.Flags().Int("max-workers", defaults.MaxWorkers, "Maximum number of concurrently running jobs")
	cmd.Flags().Duration("job-timeout", defaults.JobTimeout, "Maximum run time of a job")
	cmd.Flags().Duration("result-ttl", defaults.ResultTTL, "How long finished jobs are kept")
	opts.v.BindPFlag("server.address", cmd.Flags().Lookup("addr"))
	opts.v.BindPFlag("jobs.max_workers", cmd.Flags().Lookup("max-workers"))
	opts.v.BindPFlag("jobs.timeout", cmd.Flags().Lookup("job-timeout"))
	opts.v.BindPFlag("jobs.result_ttl", cmd.Flags().Lookup("result-ttl"))
	return cmd
}

func serve(ctx context.Context, opts *options) error {
	if opts.configFile != "" {
		opts.v.SetConfigFile(opts.configFile)
		if err := opts.v.ReadInConfig(); err != nil {
			return err
		}
	}

	jobConfig := api.DefaultJobConfig()
	jobConfig.MaxWorkers = opts.v.GetInt("jobs.max_workers")
	jobConfig.JobTimeout = opts.v.GetDuration("jobs.timeout")
	jobConfig.ResultTTL = opts.v.GetDuration("jobs.result_ttl")
	address := opts.v.GetString("server.address")

	log.Info().
		Str("address", address).
		Int("max_workers", jobConfig.MaxWorkers).
		Dur("job_timeout", jobConfig.JobTimeout).
		Msg("Configuration loaded")

	metrics, err := api.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	jobService := api.NewJobService(jobConfig, metrics)
	defer jobService.Close()

	server := &http.Server{
		Addr:         address,
		Handler:      api.NewRouter(api.NewHandlers(jobService), metrics),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("address", address).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("Server shutdown complete")
	return nil
}
