package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/flow"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/hive"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/journal"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/keychain"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string             `json:"error"`
	Message string             `json:"message,omitempty"`
	Field   string             `json:"field,omitempty"`
	Status  *flow.ActionStatus `json:"status,omitempty"`
}

// classifyError maps domain errors onto an HTTP status and a stable error code.
func classifyError(err error) (int, string) {
	var validationErr *keychain.ValidationError
	var signerErr *keychain.UpstreamError
	var chainErr *hive.UpstreamError
	var networkErr *hive.NetworkError

	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, flow.ErrInvalidInput),
		errors.Is(err, hive.ErrInvalidQuery),
		errors.Is(err, users.ErrInvalidAccountName),
		errors.Is(err, journal.ErrInvalidAccount):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, flow.ErrNotAuthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, flow.ErrPostNotFound):
		return http.StatusNotFound, "post_not_found"
	case errors.Is(err, flow.ErrAlreadyVoted):
		return http.StatusConflict, "already_voted"
	case errors.Is(err, flow.ErrVoteInProgress), errors.Is(err, flow.ErrActionInProgress):
		return http.StatusConflict, "in_progress"
	case errors.Is(err, keychain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "keychain_unavailable"
	case errors.As(err, &signerErr):
		return http.StatusBadGateway, "keychain_rejected"
	case errors.As(err, &chainErr):
		return http.StatusBadGateway, "chain_error"
	case errors.As(err, &networkErr):
		return http.StatusGatewayTimeout, "chain_unreachable"
	case errors.Is(err, flow.ErrTimedOut):
		return http.StatusGatewayTimeout, "timed_out"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// errorMessage returns the user-facing text of err.
func errorMessage(err error) string {
	var validationErr *keychain.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Reason
	}
	var signerErr *keychain.UpstreamError
	if errors.As(err, &signerErr) {
		return signerErr.Message
	}
	return err.Error()
}

func (h *httpHandler) respondError(c *gin.Context, operation string, err error, status *flow.ActionStatus) {
	code, reason := classifyError(err)
	body := errorResponse{Error: reason, Status: status}
	var validationErr *keychain.ValidationError
	if errors.As(err, &validationErr) {
		body.Field = validationErr.Field
	}
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("operation", operation), zap.Error(err))
	} else {
		body.Message = errorMessage(err)
		h.logger.Debug("request rejected",
			zap.String("operation", operation),
			zap.Int("status", code),
			zap.Error(err))
	}
	c.JSON(code, body)
}
