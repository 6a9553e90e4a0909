package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/querylab/sift/internal/types"
)

// savedSearchRow mirrors the saved_searches table.
type savedSearchRow struct {
	SearchID  string    `db:"search_id"`
	Name      string    `db:"name"`
	Request   string    `db:"request"`
	CreatedAt time.Time `db:"created_at"`
}

type savedSearchSummary struct {
	SearchID  string    `db:"search_id" json:"search_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type createSavedSearchRequest struct {
	Name    string          `json:"name"`
	Request json.RawMessage `json:"request"`
}

type savedSearchResponse struct {
	SearchID  string          `json:"search_id"`
	Name      string          `json:"name"`
	Request   json.RawMessage `json:"request,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreateSavedSearch handles POST /v1/searches. The request document is parsed
// through the full grammar before storage so saved searches are known-valid,
// but the stored bytes are the caller's own JSON, replayed verbatim later.
func (s *Service) CreateSavedSearch(w http.ResponseWriter, r *http.Request) {
	var body createSavedSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if body.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}
	if len(body.Request) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request is required"})
		return
	}

	var req types.SearchRequest
	if err := json.Unmarshal(body.Request, &req); err != nil {
		writeError(w, err)
		return
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body.Request); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	id := types.NewSearchID()
	now := time.Now().UTC()
	if _, err := s.queries.Exec("insert-saved-search", string(id), body.Name, compact.String(), now); err != nil {
		s.log.Error().Err(err).Str("name", body.Name).Msg("failed to insert saved search")
		writeError(w, err)
		return
	}

	s.log.Info().Str("search_id", string(id)).Str("name", body.Name).Msg("saved search created")
	writeJSON(w, http.StatusCreated, savedSearchResponse{
		SearchID:  string(id),
		Name:      body.Name,
		CreatedAt: now,
	})
}

// ListSavedSearches handles GET /v1/searches.
func (s *Service) ListSavedSearches(w http.ResponseWriter, r *http.Request) {
	var rows []savedSearchSummary
	if err := s.queries.Select("list-saved-searches", &rows); err != nil {
		s.log.Error().Err(err).Msg("failed to list saved searches")
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []savedSearchSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"searches": rows})
}

// GetSavedSearch handles GET /v1/searches/{searchID}.
func (s *Service) GetSavedSearch(w http.ResponseWriter, r *http.Request) {
	row, err := s.loadSavedSearch(chi.URLParam(r, "searchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, savedSearchResponse{
		SearchID:  row.SearchID,
		Name:      row.Name,
		Request:   json.RawMessage(row.Request),
		CreatedAt: row.CreatedAt,
	})
}

// DeleteSavedSearch handles DELETE /v1/searches/{searchID}.
func (s *Service) DeleteSavedSearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "searchID")
	res, err := s.queries.Exec("delete-saved-search", id)
	if err != nil {
		s.log.Error().Err(err).Str("search_id", id).Msg("failed to delete saved search")
		writeError(w, err)
		return
	}
	affected, err := res.RowsAffected()
	if err != nil {
		writeError(w, err)
		return
	}
	if affected == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// executeSavedSearchOverrides are the pagination knobs a caller may override
// when replaying a saved search. Pointers distinguish absent from zero.
type executeSavedSearchOverrides struct {
	Page    *int  `json:"page,omitempty"`
	PerPage *int  `json:"per_page,omitempty"`
	All     *bool `json:"all,omitempty"`
}

// ExecuteSavedSearch handles POST /v1/searches/{searchID}/results: replay a
// stored request document, optionally re-paginated by the caller.
func (s *Service) ExecuteSavedSearch(w http.ResponseWriter, r *http.Request) {
	row, err := s.loadSavedSearch(chi.URLParam(r, "searchID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req types.SearchRequest
	if err := json.Unmarshal([]byte(row.Request), &req); err != nil {
		// Stored requests are validated at creation; a parse failure here means
		// the schema of the grammar changed underneath stored data.
		s.log.Error().Err(err).Str("search_id", row.SearchID).Msg("stored request no longer parses")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "stored request is no longer valid"})
		return
	}

	if r.ContentLength != 0 {
		var overrides executeSavedSearchOverrides
		if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		if overrides.Page != nil {
			req.Page = *overrides.Page
		}
		if overrides.PerPage != nil {
			req.PerPage = *overrides.PerPage
		}
		if overrides.All != nil {
			req.All = *overrides.All
		}
	}

	s.executeSearch(w, r, req)
}

func (s *Service) loadSavedSearch(id string) (*savedSearchRow, error) {
	// A non-UUID id cannot exist in the table; treat it as absent rather than
	// handing arbitrary strings to the query layer.
	if _, err := types.ParseSearchID(id); err != nil {
		return nil, sql.ErrNoRows
	}
	var row savedSearchRow
	if err := s.queries.Get("get-saved-search", &row, id); err != nil {
		return nil, err
	}
	return &row, nil
}
