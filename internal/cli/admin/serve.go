package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/studyforge/internal/api/handlers"
	"github.com/cloo-solutions/studyforge/internal/jobs"
	"github.com/cloo-solutions/studyforge/internal/server"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the studyforge API server and the background index worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides STUDYFORGE_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the background index worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	a, err := newApp(ctx, appOptions{migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer a.Close()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		a.cfg.Port = port
	}

	var worker *jobs.Worker
	if noWorker, _ := cmd.Flags().GetBool("no-worker"); !noWorker {
		worker = jobs.NewWorker(a.indexWorker, a.cfg.WorkerPollInterval, a.log.With("component", "worker"))
		go worker.Start(ctx)
		a.log.Info("index worker started", "poll_interval", a.cfg.WorkerPollInterval)
	}

	router := server.NewRouter(server.RouterConfig{
		Logger:          a.log.With("component", "http"),
		MaxBodyBytes:    a.cfg.MaxRequestBytes,
		MaxUploadBytes:  a.cfg.MaxUploadBytes,
		DocumentHandler: handlers.NewDocumentHandler(a.documentSvc),
		SearchHandler:   handlers.NewSearchHandler(a.retriever),
		ArtifactHandler: handlers.NewArtifactHandler(a.generator, a.artifactSvc),
	})

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info("starting server", "port", a.cfg.Port, "providers", a.gateway.Chain(""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}
	a.log.Info("shutting down")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := a.index.Persist(shutdownCtx); err != nil {
		a.log.Warn("failed to persist index snapshot on shutdown", "error", err)
	}

	a.log.Info("server exited")
	return nil
}
