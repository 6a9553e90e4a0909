// Package api provides HTTP handlers for the sift search API.
package api

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/querylab/sift/internal/core/config"
	"github.com/querylab/sift/internal/core/db"
	"github.com/querylab/sift/internal/schema"
	"github.com/querylab/sift/internal/search"
)

// Service implements the search API handlers.
// Thin orchestration layer delegating to the search facade and named queries.
type Service struct {
	db       *sqlx.DB
	queries  *db.Queries
	registry *schema.Registry
	search   *search.Search
	cfg      *config.ServerConfig
	log      zerolog.Logger
}

// NewService creates a service instance with dependencies.
func NewService(conn *sqlx.DB, queries *db.Queries, registry *schema.Registry, cfg *config.ServerConfig, log zerolog.Logger) (*Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("conn cannot be nil")
	}
	if queries == nil {
		return nil, fmt.Errorf("queries cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}

	s := search.New(conn, registry,
		search.WithMaxFilterDepth(cfg.MaxFilterDepth),
		search.WithDefaultPerPage(cfg.DefaultPerPage))

	return &Service{
		db:       conn,
		queries:  queries,
		registry: registry,
		search:   s,
		cfg:      cfg,
		log:      log,
	}, nil
}
