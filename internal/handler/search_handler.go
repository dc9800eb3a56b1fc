package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/localgov/internal/query"
)

// SearchHandler は質問応答APIのHTTPハンドラー。
type SearchHandler struct {
	answerer query.Answerer
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(answerer query.Answerer) *SearchHandler {
	return &SearchHandler{answerer: answerer}
}

// searchRequest は質問応答リクエストのボディ。
type searchRequest struct {
	Query    string `json:"query"`
	Location string `json:"location"`
}

// searchResponse は質問応答のAPIレスポンス。
type searchResponse struct {
	Result string `json:"result"`
}

// Search は地域と質問から回答を生成する。
// POST /api/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	answer, err := h.answerer.Answer(r.Context(), req.Query, req.Location)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Result: answer})
}
