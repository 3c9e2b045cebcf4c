package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"studentapi/internal/config"
	"studentapi/internal/database"
	"studentapi/internal/handler"
	"studentapi/internal/initializer"
	"studentapi/internal/logger"
	"studentapi/internal/repository"
	"studentapi/internal/router"
	"studentapi/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:          "studentapi",
		Short:        "Student registry HTTP service",
		SilenceUsage: true,
		RunE:         serve,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and initialize the database in the background",
		RunE:  serve,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "init-db",
		Short: "Wait for the database and create the students table, then exit",
		RunE:  initDB,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.Config, zerolog.Logger, *database.Gateway, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	log := logger.New(cfg.Log)

	gw, err := database.New(cfg.DB, log)
	if err != nil {
		return nil, log, nil, err
	}
	return cfg, log, gw, nil
}

func initDB(cmd *cobra.Command, _ []string) error {
	cfg, log, gw, err := setup()
	if err != nil {
		return err
	}
	defer gw.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbInit := initializer.New(gw, cfg.Init, log)
	if err := dbInit.Run(ctx); err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	return nil
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, log, gw, err := setup()
	if err != nil {
		return err
	}
	defer gw.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbInit := initializer.New(gw, cfg.Init, log)
	go func() {
		// A failure is logged by the initializer; the server keeps serving.
		_ = dbInit.Run(ctx)
	}()

	studentService := service.NewStudentService(repository.NewStudentRepository(gw), log)
	importService := service.NewImportService(studentService, log)

	handlers := router.Handlers{
		Student:  handler.NewStudentHandler(studentService, log),
		Health:   handler.NewHealthHandler(dbInit),
		Import:   handler.NewImportHandler(importService, log),
		Progress: handler.NewProgressHandler(importService, log),
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           router.New(handlers, cfg.CORS.Origins(), log),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited gracefully")
	return nil
}
