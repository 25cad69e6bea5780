package keychain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/h2non/gentleman.v2"
)

const (
	relayRequestsPath     = "/requests"
	defaultRelayTimeout   = 2 * time.Minute
	relayTransportMessage = "signing relay unreachable"
)

// RelayConfig points a RelayProvider at a signing relay.
type RelayConfig struct {
	URL     string
	Timeout time.Duration
	Logger  *zap.Logger
}

// RelayProvider forwards signing requests to an HTTP relay that holds a keychain session
// for the account. Every request runs on its own goroutine and reports through the callback.
type RelayProvider struct {
	client  *gentleman.Client
	timeout time.Duration
	logger  *zap.Logger
}

type relayRequest struct {
	Type     string         `json:"type"`
	Username string         `json:"username"`
	Params   map[string]any `json:"params"`
}

// NewRelayProvider returns nil when no relay URL is configured.
func NewRelayProvider(cfg RelayConfig) *RelayProvider {
	url := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if url == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRelayTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &RelayProvider{
		client:  gentleman.New().URL(url),
		timeout: timeout,
		logger:  logger,
	}
}

func (p *RelayProvider) RequestVote(voter, permlink, author string, weight int, callback Callback) {
	p.send("vote", voter, map[string]any{"permlink": permlink, "author": author, "weight": weight}, callback)
}

func (p *RelayProvider) RequestTransfer(from, to, amount, memo, currency string, callback Callback) {
	p.send("transfer", from, map[string]any{"to": to, "amount": amount, "memo": memo, "currency": currency}, callback)
}

func (p *RelayProvider) RequestDelegation(delegator, delegatee, amount string, callback Callback) {
	p.send("delegation", delegator, map[string]any{"delegatee": delegatee, "amount": amount, "unit": "HP"}, callback)
}

func (p *RelayProvider) RequestCustomJSON(account, id string, authority Authority, payload, displayName string, callback Callback) {
	p.send("custom", account, map[string]any{
		"id":          id,
		"method":      string(authority),
		"json":        payload,
		"display_msg": displayName,
	}, callback)
}

func (p *RelayProvider) RequestPowerUp(account, amount string, callback Callback) {
	p.send("powerUp", account, map[string]any{"recipient": account, "steem": amount}, callback)
}

func (p *RelayProvider) RequestWithdrawVesting(account, amount string, callback Callback) {
	p.send("powerDown", account, map[string]any{"steem_power": amount}, callback)
}

func (p *RelayProvider) RequestBroadcast(account string, operations []Operation, authority Authority, callback Callback) {
	p.send("broadcast", account, map[string]any{"operations": operations, "method": string(authority)}, callback)
}

func (p *RelayProvider) RequestSignBuffer(account, message string, authority Authority, callback Callback) {
	p.send("signBuffer", account, map[string]any{"message": message, "method": string(authority)}, callback)
}

func (p *RelayProvider) send(requestType, username string, params map[string]any, callback Callback) {
	go func() {
		callback(p.exchange(relayRequest{Type: requestType, Username: username, Params: params}))
	}()
}

func (p *RelayProvider) exchange(payload relayRequest) Response {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	request := p.client.Request()
	request.AddPath(relayRequestsPath)
	request.Method("POST")
	request.JSON(payload)
	request.Context.SetCancelContext(ctx)

	response, err := request.Send()
	if err != nil {
		p.logger.Warn("signing relay request failed",
			zap.String("type", payload.Type),
			zap.String("username", payload.Username),
			zap.Error(err))
		return Response{Success: false, Message: relayTransportMessage}
	}

	var decoded Response
	if decodeErr := json.Unmarshal(response.Bytes(), &decoded); decodeErr != nil {
		decoded = Response{Message: strings.TrimSpace(response.String())}
	}
	if !response.Ok {
		decoded.Success = false
		if decoded.Message == "" {
			decoded.Message = fmt.Sprintf("signing relay responded with status %d", response.StatusCode)
		}
	}
	return decoded
}
