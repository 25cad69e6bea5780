package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/hive"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/proposals"
	"github.com/gin-gonic/gin"
)

type proposalPayload struct {
	ProposalID     string          `json:"proposal_id"`
	FormattedTitle string          `json:"formatted_title"`
	Snippet        string          `json:"snippet"`
	URL            string          `json:"url"`
	Tags           []string        `json:"tags"`
	Post           hive.PostRecord `json:"post"`
}

type proposalListPayload struct {
	Account   string            `json:"account,omitempty"`
	Proposals []proposalPayload `json:"proposals"`
}

func (h *httpHandler) handleTrending(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "limit must be a number"})
			return
		}
		limit = parsed
	}

	controller, err := h.controllerFor(c)
	if err != nil {
		h.respondError(c, "trending", err, nil)
		return
	}
	posts, err := controller.LoadTrending(c.Request.Context(), c.Query("tag"), limit)
	if err != nil {
		h.respondError(c, "trending", err, nil)
		return
	}

	c.JSON(http.StatusOK, newProposalList(controller.Account(), proposals.Search(posts, "")))
}

func (h *httpHandler) handleSearch(c *gin.Context) {
	controller, err := h.controllerFor(c)
	if err != nil {
		h.respondError(c, "search", err, nil)
		return
	}
	results, err := controller.Search(c.Request.Context(), c.Query("q"), c.Query("category"))
	if err != nil {
		h.respondError(c, "search", err, nil)
		return
	}

	c.JSON(http.StatusOK, newProposalList(controller.Account(), results))
}

func newProposalList(account string, results []proposals.SearchResult) proposalListPayload {
	response := proposalListPayload{
		Account:   account,
		Proposals: make([]proposalPayload, 0, len(results)),
	}
	for _, result := range results {
		response.Proposals = append(response.Proposals, proposalPayload{
			ProposalID:     result.ProposalID,
			FormattedTitle: result.FormattedTitle,
			Snippet:        result.Snippet,
			URL:            result.URL,
			Tags:           result.Post.Tags(),
			Post:           result.Post,
		})
	}
	return response
}
