package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/querylab/sift/internal/types"
)

// Search handles POST /v1/search: parse the request body through the filter
// and ordering grammars, compile, execute, and return one page of results.
func (s *Service) Search(w http.ResponseWriter, r *http.Request) {
	var req types.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.executeSearch(w, r, req)
}

// executeSearch applies server-side defaults and limits, then runs the search.
// Shared by the ad-hoc and saved-search execution paths.
func (s *Service) executeSearch(w http.ResponseWriter, r *http.Request, req types.SearchRequest) {
	if req.Namespace == "" {
		req.Namespace = s.cfg.Namespace
	}
	if req.PerPage > s.cfg.MaxPerPage {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("per_page exceeds maximum of %d", s.cfg.MaxPerPage),
		})
		return
	}
	results, err := s.search.Results(r.Context(), req)
	if err != nil {
		s.log.Debug().Err(err).Strs("entities", req.Entities).Msg("search failed")
		writeError(w, err)
		return
	}

	s.log.Debug().
		Strs("entities", req.Entities).
		Int("count", results.Count).
		Int("rows", len(results.Data)).
		Msg("search executed")
	writeJSON(w, http.StatusOK, results)
}
