package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/flow"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/keychain"
	"github.com/gin-gonic/gin"
)

type votePayload struct {
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
	Weight   *int   `json:"weight"`
}

type transferPayload struct {
	To       string `json:"to"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Memo     string `json:"memo"`
}

type delegationPayload struct {
	Delegatee string `json:"delegatee"`
	Amount    string `json:"amount"`
}

type powerPayload struct {
	Amount string `json:"amount"`
}

type postPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tags  string `json:"tags"`
}

type followPayload struct {
	Account string `json:"account"`
}

type reblogPayload struct {
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
}

type customJSONPayload struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

type profilePayload struct {
	Metadata map[string]any `json:"metadata"`
}

type actionResponsePayload struct {
	Status flow.ActionStatus `json:"status"`
}

type actionListPayload struct {
	Actions          []flow.ActionStatus `json:"actions"`
	VotingInProgress []string            `json:"voting_in_progress"`
}

type journalEntryPayload struct {
	EntryID    string `json:"entry_id"`
	Action     string `json:"action"`
	Outcome    string `json:"outcome"`
	Target     string `json:"target,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Late       bool   `json:"late"`
	RecordedAt int64  `json:"recorded_at_s"`
}

type actionFunc func(ctx context.Context, controller *flow.Controller) (flow.ActionStatus, error)

func (h *httpHandler) handleVote(c *gin.Context) {
	var request votePayload
	if !bindJSON(c, &request) {
		return
	}
	weight := keychain.MaxVoteWeight
	if request.Weight != nil {
		weight = *request.Weight
	}
	h.runAction(c, flow.ActionVote, func(ctx context.Context, controller *flow.Controller) (flow.ActionStatus, error) {
		return controller.Vote(ctx, strings.TrimSpace(request.Author), strings.TrimSpace(request.Permlink), weight)
	})
}

func (h *httpHandler) handleTransfer(c *gin.Context) {
	var request transferPayload
	if !bindJSON(c, &request) {
		return
	}
	h.runAction(c, flow.ActionTransfer, func(ctx context.Context, controller *flow.Controller) (flow.ActionStatus, error) {
		return controller.Transfer(ctx, keychain.TransferRequest{
			To:       strings.TrimSpace(request.To),
			Amount:   strings.TrimSpace(request.Amount),
			Currency: keychain.Currency(strings.ToUpper(strings.TrimSpace(request.Currency))),
			Memo:     request.Memo,
		})
	})
}

func (h *httpHandler) handleDelegation(c *gin.Context) {
	var request delegationPayload
	if !bindJSON(c, &request) {
		return
	}
	h.runAction(c, flow.ActionDelegate, func(ctx context.Context, controller *flow.Controller) (flow.ActionStatus, error) {
		return controller.Delegate(ctx, keychain.DelegationRequest{
			Delegatee: strings.TrimSpace(request.Delegatee),
			Amount:    strings.TrimSpace(request.Amount),
		})
	})
}

func (h *httpHandler) handlePowerUp(c *gin.Context) {
	var request powerPayload
	if !bindJSON(c, &request) {
		return
	}
	h.runAction(c, flow.ActionPowerUp, func(ctx context.Context, controller *flow.Controller) (flow.ActionStatus, error) {
		return controller.PowerUp(ctx, strings.TrimSpace(request.Amount))
	})
}

func (h *httpHandler) handlePowerDown(c *gin.Context) {
	var request powerPayload
	if !bindJSON(c, &request) {
		return
	}
	h.runAction(c, flow.ActionPowerDown, func(ctx context.Context, controller *flow.Controller) (flow.ActionStatus, error) {
		return controller.PowerDown(ctx, strings.TrimSpace(request.Amount))
	})
}

func (h *httpHandler) handleSubmitPost(c *gin.Context) {
	var request postPayload
	if !bindJSON(c, &request) {
		return
	}
	h.runAction(c, flow.ActionSubmitPost, func(ctx context.Context, controller *flow.Controller) (flow.ActionStatus, error) {
		return controller.SubmitPost(ctx, request.Title, request.Body, request.Tags)
	})
}

func (h *httpHandler) handleFollow(c *gin.Context) {
	var request followPayload
	if !bindJSON(c, &request) {
		return
	}
	h.runAction(c, flow.ActionFollow, func(ctx context.Context, controller *flow.Controller) (flow.ActionStatus, error) {
		return controller.Follow(ctx, request.Account)
	})
}

func (h *httpHandler) handleReblog(c *gin.Context) {
	var request reblogPayload
	if !bindJSON(c, &request) {
		return
	}
	h.runAction(c, flow.ActionReblog, func(ctx context.Context, controller *flow.Controller) (flow.ActionStatus, error) {
		return controller.Reblog(ctx, request.Author, request.Permlink)
	})
}

func (h *httpHandler) handleCustomJSON(c *gin.Context) {
	var request customJSONPayload
	if !bindJSON(c, &request) {
		return
	}
	var payload any
	if len(request.Payload) > 0 && string(request.Payload) != "null" {
		payload = request.Payload
	}
	h.runAction(c, flow.ActionCustomJSON, func(ctx context.Context, controller *flow.Controller) (flow.ActionStatus, error) {
		return controller.BroadcastCustomJSON(ctx, request.ID, payload)
	})
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var request profilePayload
	if !bindJSON(c, &request) {
		return
	}
	h.runAction(c, flow.ActionUpdateProfile, func(ctx context.Context, controller *flow.Controller) (flow.ActionStatus, error) {
		return controller.UpdateProfile(ctx, request.Metadata)
	})
}

// runAction resolves the session controller and reports the settled action. Failures
// that reached the signer carry the action status alongside the error.
func (h *httpHandler) runAction(c *gin.Context, action flow.Action, run actionFunc) {
	controller, err := h.registry.For(c.GetString(accountContextKey))
	if err != nil {
		h.respondError(c, string(action), err, nil)
		return
	}
	status, err := run(c.Request.Context(), controller)
	if err != nil {
		var attached *flow.ActionStatus
		if status.Attempt > 0 {
			attached = &status
		}
		h.respondError(c, string(action), err, attached)
		return
	}
	c.JSON(http.StatusOK, actionResponsePayload{Status: status})
}

func (h *httpHandler) handleActions(c *gin.Context) {
	controller, err := h.registry.For(c.GetString(accountContextKey))
	if err != nil {
		h.respondError(c, "actions", err, nil)
		return
	}
	voting := make([]string, 0)
	for target := range controller.VotingInProgress() {
		voting = append(voting, target)
	}
	sort.Strings(voting)
	c.JSON(http.StatusOK, actionListPayload{
		Actions:          controller.Actions(),
		VotingInProgress: voting,
	})
}

func (h *httpHandler) handleActionHistory(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "limit must be a number"})
			return
		}
		limit = parsed
	}
	entries, err := h.journal.List(c.Request.Context(), c.GetString(accountContextKey), limit)
	if err != nil {
		h.respondError(c, "history", err, nil)
		return
	}
	history := make([]journalEntryPayload, 0, len(entries))
	for _, entry := range entries {
		history = append(history, journalEntryPayload{
			EntryID:    entry.EntryID,
			Action:     entry.Action,
			Outcome:    string(entry.Outcome),
			Target:     entry.Target,
			Detail:     entry.Detail,
			Late:       entry.Late,
			RecordedAt: entry.RecordedAtSeconds,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": history})
}

func bindJSON(c *gin.Context, target any) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return false
	}
	return true
}
