package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/weftware/weft/internal/api"
	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query      string `json:"query"`
	Project    string `json:"project"`
	SourceType string `json:"source_type"`
	Limit      int    `json:"limit"`
}

type SearchResultResponse struct {
	Fragment   *FragmentResponse `json:"fragment"`
	Similarity float64           `json:"similarity"`
}

type SearchResponse struct {
	Results []*SearchResultResponse `json:"results"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	input := service.SearchInput{
		Query:      req.Query,
		Project:    req.Project,
		SourceType: domain.SourceType(req.SourceType),
		Limit:      req.Limit,
	}

	results, err := h.svc.Search(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SearchResultResponse, len(results))
	for i, res := range results {
		responses[i] = &SearchResultResponse{
			Fragment:   fragmentToResponse(res.Fragment),
			Similarity: res.Similarity,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{Results: responses})
}
