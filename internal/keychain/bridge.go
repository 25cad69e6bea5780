package keychain

import (
	"context"
	"strings"
	"sync"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/metrics"
	"go.uber.org/zap"
)

const (
	OpVote                  = "vote"
	OpTransfer              = "transfer"
	OpDelegate              = "delegate"
	OpCustomJSON            = "custom_json"
	OpPowerUp               = "power_up"
	OpPowerDown             = "power_down"
	OpSubmitPost            = "submit_post"
	OpSignBuffer            = "sign_buffer"
	OpFollow                = "follow"
	OpReblog                = "reblog"
	OpUpdateAccountMetadata = "update_account_metadata"

	followCustomJSONID         = "follow"
	accountUpdateCustomJSONID  = "account_update"
	customJSONDisplayName      = "Hive Explorer"
	signBufferDefaultAuthority = AuthorityPosting
)

var (
	defaultFailureMessages = map[string]string{
		OpVote:                  "Failed to vote",
		OpTransfer:              "Failed to transfer tokens",
		OpDelegate:              "Failed to delegate HP",
		OpCustomJSON:            "Failed to broadcast custom JSON",
		OpPowerUp:               "Failed to power up",
		OpPowerDown:             "Failed to power down",
		OpSubmitPost:            "Failed to publish post",
		OpSignBuffer:            "Failed to sign message",
		OpFollow:                "Failed to follow account",
		OpReblog:                "Failed to reblog post",
		OpUpdateAccountMetadata: "Failed to update account metadata",
	}
	noOpLogger = zap.NewNop()
)

// BridgeConfig wires a Bridge to its signing provider.
type BridgeConfig struct {
	Provider Provider
	Logger   *zap.Logger
}

// Bridge turns callback-style provider requests into blocking calls with uniform
// validation and error reporting.
type Bridge struct {
	provider Provider
	logger   *zap.Logger
}

// NewBridge constructs a bridge. A nil provider is allowed; every request then fails
// with ErrProviderUnavailable.
func NewBridge(cfg BridgeConfig) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Bridge{provider: cfg.Provider, logger: logger}
}

// Available reports whether a signing provider is configured.
func (b *Bridge) Available() bool {
	return b != nil && b.provider != nil
}

// Vote casts a weighted vote.
func (b *Bridge) Vote(ctx context.Context, request VoteRequest) (Response, error) {
	if !b.Available() {
		return b.unavailable(OpVote)
	}
	if err := request.Validate(); err != nil {
		return Response{}, err
	}
	return b.await(ctx, OpVote, false, func(callback Callback) {
		b.provider.RequestVote(request.Voter, request.Permlink, request.Author, request.Weight, callback)
	})
}

// Transfer sends liquid HIVE or HBD.
func (b *Bridge) Transfer(ctx context.Context, request TransferRequest) (Response, error) {
	if !b.Available() {
		return b.unavailable(OpTransfer)
	}
	amount, err := request.Validate()
	if err != nil {
		return Response{}, err
	}
	return b.await(ctx, OpTransfer, true, func(callback Callback) {
		b.provider.RequestTransfer(request.From, request.To, amount, request.Memo, string(request.Currency), callback)
	})
}

// Delegate lends Hive Power.
func (b *Bridge) Delegate(ctx context.Context, request DelegationRequest) (Response, error) {
	if !b.Available() {
		return b.unavailable(OpDelegate)
	}
	amount, err := request.Validate()
	if err != nil {
		return Response{}, err
	}
	return b.await(ctx, OpDelegate, true, func(callback Callback) {
		b.provider.RequestDelegation(request.Delegator, request.Delegatee, amount, callback)
	})
}

// BroadcastCustomJSON broadcasts an application payload with the authority its
// required auths imply.
func (b *Bridge) BroadcastCustomJSON(ctx context.Context, request CustomJSONRequest) (Response, error) {
	return b.customJSON(ctx, OpCustomJSON, request)
}

// PowerUp converts liquid HIVE into Hive Power.
func (b *Bridge) PowerUp(ctx context.Context, request PowerRequest) (Response, error) {
	if !b.Available() {
		return b.unavailable(OpPowerUp)
	}
	amount, err := request.Validate()
	if err != nil {
		return Response{}, err
	}
	return b.await(ctx, OpPowerUp, true, func(callback Callback) {
		b.provider.RequestPowerUp(request.Account, amount, callback)
	})
}

// PowerDown starts withdrawing Hive Power.
func (b *Bridge) PowerDown(ctx context.Context, request PowerRequest) (Response, error) {
	if !b.Available() {
		return b.unavailable(OpPowerDown)
	}
	amount, err := request.Validate()
	if err != nil {
		return Response{}, err
	}
	return b.await(ctx, OpPowerDown, true, func(callback Callback) {
		b.provider.RequestWithdrawVesting(request.Account, amount, callback)
	})
}

// SubmitPost broadcasts a comment operation signed with the posting key.
func (b *Bridge) SubmitPost(ctx context.Context, request PostRequest) (Response, error) {
	if !b.Available() {
		return b.unavailable(OpSubmitPost)
	}
	if err := request.Validate(); err != nil {
		return Response{}, err
	}
	return b.await(ctx, OpSubmitPost, false, func(callback Callback) {
		b.provider.RequestBroadcast(request.Author, []Operation{request.operation()}, AuthorityPosting, callback)
	})
}

// SignBuffer asks the account to sign message, proving control of the account.
func (b *Bridge) SignBuffer(ctx context.Context, account, message string, authority Authority) (Response, error) {
	if !b.Available() {
		return b.unavailable(OpSignBuffer)
	}
	if err := requireAccount("account", account); err != nil {
		return Response{}, err
	}
	if strings.TrimSpace(message) == "" {
		return Response{}, invalid("message", "message is required")
	}
	if authority == "" {
		authority = signBufferDefaultAuthority
	}
	return b.await(ctx, OpSignBuffer, authority == AuthorityActive, func(callback Callback) {
		b.provider.RequestSignBuffer(account, message, authority, callback)
	})
}

// Follow makes follower follow following.
func (b *Bridge) Follow(ctx context.Context, follower, following string) (Response, error) {
	if !b.Available() {
		return b.unavailable(OpFollow)
	}
	if err := requireAccount("following", following); err != nil {
		return Response{}, err
	}
	return b.customJSON(ctx, OpFollow, CustomJSONRequest{
		Account:              follower,
		ID:                   followCustomJSONID,
		RequiredPostingAuths: []string{follower},
		Payload: []any{"follow", map[string]any{
			"follower":  follower,
			"following": following,
			"what":      []string{"blog"},
		}},
	})
}

// Reblog shares author/permlink on account's blog.
func (b *Bridge) Reblog(ctx context.Context, account, author, permlink string) (Response, error) {
	if !b.Available() {
		return b.unavailable(OpReblog)
	}
	if err := requireAccount("author", author); err != nil {
		return Response{}, err
	}
	if strings.TrimSpace(permlink) == "" {
		return Response{}, invalid("permlink", "permlink is required")
	}
	return b.customJSON(ctx, OpReblog, CustomJSONRequest{
		Account:              account,
		ID:                   followCustomJSONID,
		RequiredPostingAuths: []string{account},
		Payload: []any{"reblog", map[string]any{
			"account":  account,
			"author":   author,
			"permlink": permlink,
		}},
	})
}

// UpdateAccountMetadata replaces the account's posting metadata.
func (b *Bridge) UpdateAccountMetadata(ctx context.Context, account string, metadata map[string]any) (Response, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return b.customJSON(ctx, OpUpdateAccountMetadata, CustomJSONRequest{
		Account:              account,
		ID:                   accountUpdateCustomJSONID,
		RequiredPostingAuths: []string{account},
		Payload: map[string]any{
			"account":               account,
			"posting_json_metadata": metadata,
		},
	})
}

func (b *Bridge) customJSON(ctx context.Context, operation string, request CustomJSONRequest) (Response, error) {
	if !b.Available() {
		return b.unavailable(operation)
	}
	payload, err := request.Validate()
	if err != nil {
		return Response{}, err
	}
	authority := request.Authority()
	return b.await(ctx, operation, authority == AuthorityActive, func(callback Callback) {
		b.provider.RequestCustomJSON(request.Account, request.ID, authority, payload, customJSONDisplayName, callback)
	})
}

func (b *Bridge) unavailable(operation string) (Response, error) {
	metrics.KeychainRequest(operation, metrics.OutcomeUnavailable)
	return Response{}, ErrProviderUnavailable
}

// await issues exactly one provider request and waits for its first completion.
// Cancelling ctx stops the wait only; the provider is never told.
func (b *Bridge) await(ctx context.Context, operation string, activeAuthority bool, issue func(Callback)) (Response, error) {
	completions := make(chan Response, 1)
	var once sync.Once
	issue(func(response Response) {
		delivered := false
		once.Do(func() {
			completions <- response
			delivered = true
		})
		if !delivered {
			b.logger.Debug("duplicate keychain callback ignored", zap.String("operation", operation))
		}
	})

	select {
	case response := <-completions:
		return b.complete(operation, activeAuthority, response)
	case <-ctx.Done():
		metrics.KeychainRequest(operation, metrics.OutcomeCanceled)
		return Response{}, ctx.Err()
	}
}

func (b *Bridge) complete(operation string, activeAuthority bool, response Response) (Response, error) {
	if response.Success {
		metrics.KeychainRequest(operation, metrics.OutcomeSuccess)
		return response, nil
	}
	message := strings.TrimSpace(response.Message)
	if message == "" {
		message = defaultFailureMessages[operation]
	}
	if activeAuthority && mentionsMissingActiveKey(message) {
		message = ActiveKeyGuidance
	}
	metrics.KeychainRequest(operation, metrics.OutcomeFailed)
	b.logger.Info("keychain request rejected",
		zap.String("operation", operation),
		zap.String("message", message))
	return response, &UpstreamError{Operation: operation, Message: message}
}
