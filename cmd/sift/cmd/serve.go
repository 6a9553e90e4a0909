package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/querylab/sift/internal/core/api"
	"github.com/querylab/sift/internal/core/auth"
	"github.com/querylab/sift/internal/core/config"
	"github.com/querylab/sift/internal/core/db"
	"github.com/querylab/sift/internal/core/server"
	"github.com/querylab/sift/internal/schema"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP search API service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "HTTP server host")
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
	serveCmd.Flags().String("schema", "", "schema definition file (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Port = port
	}
	if cmd.Flags().Changed("schema") {
		path, _ := cmd.Flags().GetString("schema")
		cfg.SchemaPath = path
	}

	if dbURL == "" {
		return fmt.Errorf("--db-url required")
	}
	database, err := db.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	statuses, err := db.MigrateStatus(database)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'sift migrate' first", s.ID)
		}
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	registry, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	var authenticator *auth.Authenticator
	if len(secrets) > 0 {
		authenticator = auth.NewAuthenticator(secrets, queries)
	} else {
		log.Warn().Msg("no HMAC secrets configured, API key authentication disabled")
	}

	service, err := api.NewService(database, queries, registry, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	httpServer, err := server.NewHTTPServer(cfg, service, authenticator, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info().Str("version", Version).Str("host", cfg.Host).Int("port", cfg.Port).Msg("starting sift search API")
	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	}
}
