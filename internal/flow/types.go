package flow

import (
	"context"
	"time"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/hive"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/journal"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/keychain"
)

// Action names a transactional user action.
type Action string

const (
	ActionVote          Action = "vote"
	ActionTransfer      Action = "transfer"
	ActionDelegate      Action = "delegate"
	ActionPowerUp       Action = "power_up"
	ActionPowerDown     Action = "power_down"
	ActionSubmitPost    Action = "submit_post"
	ActionFollow        Action = "follow"
	ActionReblog        Action = "reblog"
	ActionCustomJSON    Action = "custom_json"
	ActionUpdateProfile Action = "update_profile"
)

// State is the lifecycle position of an action.
type State string

const (
	StateIdle     State = "idle"
	StateInFlight State = "in_flight"
	StateSuccess  State = "success"
	StateFailed   State = "failed"
	StateTimedOut State = "timed_out"
)

// ActionStatus is a snapshot of one entry in the action state table. Terminal states are
// surfaced through LastOutcome while State returns to idle.
type ActionStatus struct {
	Action      Action    `json:"action"`
	Target      string    `json:"target,omitempty"`
	State       State     `json:"state"`
	LastOutcome State     `json:"last_outcome,omitempty"`
	Message     string    `json:"message,omitempty"`
	Attempt     uint64    `json:"attempt"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NotificationKind classifies a notification for display.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationInfo    NotificationKind = "info"
)

// Notification is a transient message surfaced to the account.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
	Expiry    time.Time        `json:"expiry"`
}

// ChainReader fetches posts from the chain read API.
type ChainReader interface {
	FetchTrendingProposals(ctx context.Context, tag string, limit int) ([]hive.PostRecord, error)
	FetchDiscussions(ctx context.Context, tag string, limit int) ([]hive.PostRecord, error)
}

// Signer issues signed write requests.
type Signer interface {
	Available() bool
	Vote(ctx context.Context, request keychain.VoteRequest) (keychain.Response, error)
	Transfer(ctx context.Context, request keychain.TransferRequest) (keychain.Response, error)
	Delegate(ctx context.Context, request keychain.DelegationRequest) (keychain.Response, error)
	PowerUp(ctx context.Context, request keychain.PowerRequest) (keychain.Response, error)
	PowerDown(ctx context.Context, request keychain.PowerRequest) (keychain.Response, error)
	SubmitPost(ctx context.Context, request keychain.PostRequest) (keychain.Response, error)
	Follow(ctx context.Context, follower, following string) (keychain.Response, error)
	Reblog(ctx context.Context, account, author, permlink string) (keychain.Response, error)
	BroadcastCustomJSON(ctx context.Context, request keychain.CustomJSONRequest) (keychain.Response, error)
	UpdateAccountMetadata(ctx context.Context, account string, metadata map[string]any) (keychain.Response, error)
}

// Recorder persists action outcomes.
type Recorder interface {
	Record(ctx context.Context, request journal.RecordRequest) (journal.Entry, error)
}

// Publisher fans notifications out to live subscribers of an account.
type Publisher interface {
	Publish(account string, notification Notification)
}
