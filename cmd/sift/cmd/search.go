package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/querylab/sift/internal/core/config"
	"github.com/querylab/sift/internal/core/db"
	"github.com/querylab/sift/internal/schema"
	"github.com/querylab/sift/internal/search"
	"github.com/querylab/sift/internal/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Execute a search request once and print the results as JSON",
	Long: `Reads a search request document from --request (or stdin with "-"),
compiles it against the schema, runs it and prints the result page.`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().String("request", "-", "request JSON file, or - for stdin")
	searchCmd.Flags().String("schema", "", "schema definition file (overrides config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("schema") {
		path, _ := cmd.Flags().GetString("schema")
		cfg.SchemaPath = path
	}

	requestPath, _ := cmd.Flags().GetString("request")
	var raw []byte
	if requestPath == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(requestPath)
	}
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}

	var req types.SearchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	if req.Namespace == "" {
		req.Namespace = cfg.Namespace
	}

	if dbURL == "" {
		return fmt.Errorf("--db-url required")
	}
	database, err := db.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	registry, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	s := search.New(database, registry,
		search.WithMaxFilterDepth(cfg.MaxFilterDepth),
		search.WithDefaultPerPage(cfg.DefaultPerPage))

	results, err := s.Results(context.Background(), req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
