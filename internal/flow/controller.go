package flow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/hive"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/journal"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/keychain"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/metrics"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/proposals"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds how long an action waits for the signer.
	DefaultTimeout = 30 * time.Second
	// DefaultNotificationTTL is how long a notification stays visible.
	DefaultNotificationTTL = 5 * time.Second
	// DefaultTrendingTag and DefaultTrendingLimit describe the landing feed.
	DefaultTrendingTag   = "hive"
	DefaultTrendingLimit = 10
	// SearchLimit bounds the posts fetched for a search.
	SearchLimit = 30

	maxNotifications = 50
	timeoutMessage   = "Request timed out. Please check Hive Keychain and try again."
	journalTimeout   = 5 * time.Second
)

var (
	errMissingChain  = errors.New("flow: chain reader is required")
	errMissingSigner = errors.New("flow: signer is required")
	noOpLogger       = zap.NewNop()
)

// ControllerConfig wires a Controller for one logged-in account.
type ControllerConfig struct {
	Account         string
	Chain           ChainReader
	Signer          Signer
	Recorder        Recorder
	Publisher       Publisher
	Timeout         time.Duration
	NotificationTTL time.Duration
	Clock           func() time.Time
	After           func(time.Duration) <-chan time.Time
	Logger          *zap.Logger
}

// Controller owns the post list, the action state table and the notification queue of
// one account, and drives every write action through idle, in flight and a terminal state.
type Controller struct {
	account   string
	chain     ChainReader
	signer    Signer
	recorder  Recorder
	publisher Publisher
	timeout   time.Duration
	ttl       time.Duration
	clock     func() time.Time
	after     func(time.Duration) <-chan time.Time
	logger    *zap.Logger

	mu            sync.Mutex
	posts         []hive.PostRecord
	actions       map[string]*actionEntry
	notifications []Notification
	sequence      uint64
	pending       sync.WaitGroup
	running       atomic.Int64
}

type actionEntry struct {
	status  ActionStatus
	current *attempt
}

// attempt is the cancellation token of one submission. Whichever of completion and
// timeout finalizes it first decides the outcome; the other becomes a no-op.
type attempt struct {
	key       string
	number    uint64
	finalized bool
	status    ActionStatus
	err       error
	done      chan struct{}
}

// plan describes one action run.
type plan struct {
	action    Action
	target    string
	guard     func() error
	invoke    func(context.Context) (keychain.Response, error)
	onSuccess func() string
	failure   string
	conflict  error
}

// NewController constructs a controller for cfg.Account.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Chain == nil {
		return nil, errMissingChain
	}
	if cfg.Signer == nil {
		return nil, errMissingSigner
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ttl := cfg.NotificationTTL
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	after := cfg.After
	if after == nil {
		after = time.After
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	account := strings.ToLower(strings.TrimSpace(cfg.Account))
	return &Controller{
		account:   account,
		chain:     cfg.Chain,
		signer:    cfg.Signer,
		recorder:  cfg.Recorder,
		publisher: cfg.Publisher,
		timeout:   timeout,
		ttl:       ttl,
		clock:     clock,
		after:     after,
		logger:    logger.With(zap.String("account", account)),
		actions:   make(map[string]*actionEntry),
	}, nil
}

// Account returns the account the controller acts for.
func (c *Controller) Account() string {
	return c.account
}

// LoadTrending replaces the post list with the trending proposals for tag.
func (c *Controller) LoadTrending(ctx context.Context, tag string, limit int) ([]hive.PostRecord, error) {
	if strings.TrimSpace(tag) == "" {
		tag = DefaultTrendingTag
	}
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	posts, err := c.chain.FetchTrendingProposals(ctx, tag, limit)
	if err != nil {
		c.logger.Warn("trending fetch failed", zap.String("tag", tag), zap.Error(err))
		return nil, err
	}
	c.mu.Lock()
	c.posts = clonePosts(posts)
	c.mu.Unlock()
	return clonePosts(posts), nil
}

// Search fetches up to SearchLimit posts for category and keeps those matching term.
// The matches become the post list.
func (c *Controller) Search(ctx context.Context, term, category string) ([]proposals.SearchResult, error) {
	term = strings.TrimSpace(term)
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = proposals.CategoryAll
	}
	if term == "" && category == proposals.CategoryAll {
		return nil, fmt.Errorf("%w: please enter a search term or select a category", ErrInvalidInput)
	}

	posts, err := c.chain.FetchDiscussions(ctx, proposals.SearchTag(category), SearchLimit)
	if err != nil {
		c.logger.Warn("search fetch failed", zap.String("category", category), zap.Error(err))
		return nil, err
	}
	results := proposals.Search(proposals.FilterByCategory(posts, category), term)

	feed := make([]hive.PostRecord, 0, len(results))
	for _, result := range results {
		feed = append(feed, result.Post)
	}
	c.mu.Lock()
	c.posts = clonePosts(feed)
	c.mu.Unlock()
	return results, nil
}

// Posts returns a copy of the current post list.
func (c *Controller) Posts() []hive.PostRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clonePosts(c.posts)
}

// Vote upvotes or downvotes a post from the current list. On success the list is updated
// optimistically with the new vote.
func (c *Controller) Vote(ctx context.Context, author, permlink string, weight int) (ActionStatus, error) {
	if err := c.ready(); err != nil {
		return ActionStatus{}, err
	}
	request := keychain.VoteRequest{Voter: c.account, Author: author, Permlink: permlink, Weight: weight}
	if err := request.Validate(); err != nil {
		return ActionStatus{}, err
	}

	target := postTarget(author, permlink)
	return c.execute(ctx, plan{
		action: ActionVote,
		target: target,
		guard: func() error {
			index := c.findPostLocked(author, permlink)
			if index < 0 {
				return ErrPostNotFound
			}
			if c.posts[index].HasVoted(c.account) {
				return ErrAlreadyVoted
			}
			return nil
		},
		invoke: func(ctx context.Context) (keychain.Response, error) {
			return c.signer.Vote(ctx, request)
		},
		onSuccess: func() string {
			c.applyVoteLocked(author, permlink, weight)
			return "Vote successful!"
		},
		failure:  "Vote failed: ",
		conflict: ErrVoteInProgress,
	})
}

// Transfer sends liquid tokens from the account to request.To.
func (c *Controller) Transfer(ctx context.Context, request keychain.TransferRequest) (ActionStatus, error) {
	if err := c.ready(); err != nil {
		return ActionStatus{}, err
	}
	request.From = c.account
	amount, err := request.Validate()
	if err != nil {
		return ActionStatus{}, err
	}
	return c.execute(ctx, plan{
		action: ActionTransfer,
		invoke: func(ctx context.Context) (keychain.Response, error) {
			return c.signer.Transfer(ctx, request)
		},
		onSuccess: func() string {
			return fmt.Sprintf("Successfully sent %s %s to @%s", amount, request.Currency, request.To)
		},
		failure: "Transfer failed: ",
	})
}

// Delegate lends Hive Power from the account to request.Delegatee.
func (c *Controller) Delegate(ctx context.Context, request keychain.DelegationRequest) (ActionStatus, error) {
	if err := c.ready(); err != nil {
		return ActionStatus{}, err
	}
	request.Delegator = c.account
	amount, err := request.Validate()
	if err != nil {
		return ActionStatus{}, err
	}
	return c.execute(ctx, plan{
		action: ActionDelegate,
		invoke: func(ctx context.Context) (keychain.Response, error) {
			return c.signer.Delegate(ctx, request)
		},
		onSuccess: func() string {
			return fmt.Sprintf("Successfully delegated %s HP to @%s", amount, request.Delegatee)
		},
		failure: "Delegation failed: ",
	})
}

// PowerUp converts the account's liquid HIVE into Hive Power.
func (c *Controller) PowerUp(ctx context.Context, amount string) (ActionStatus, error) {
	if err := c.ready(); err != nil {
		return ActionStatus{}, err
	}
	request := keychain.PowerRequest{Account: c.account, Amount: amount}
	formatted, err := request.Validate()
	if err != nil {
		return ActionStatus{}, err
	}
	return c.execute(ctx, plan{
		action: ActionPowerUp,
		invoke: func(ctx context.Context) (keychain.Response, error) {
			return c.signer.PowerUp(ctx, request)
		},
		onSuccess: func() string {
			return fmt.Sprintf("Successfully powered up %s HIVE", formatted)
		},
		failure: "Power up failed: ",
	})
}

// PowerDown starts withdrawing the account's Hive Power.
func (c *Controller) PowerDown(ctx context.Context, amount string) (ActionStatus, error) {
	if err := c.ready(); err != nil {
		return ActionStatus{}, err
	}
	request := keychain.PowerRequest{Account: c.account, Amount: amount}
	formatted, err := request.Validate()
	if err != nil {
		return ActionStatus{}, err
	}
	return c.execute(ctx, plan{
		action: ActionPowerDown,
		invoke: func(ctx context.Context) (keychain.Response, error) {
			return c.signer.PowerDown(ctx, request)
		},
		onSuccess: func() string {
			return fmt.Sprintf("Power down of %s HP started", formatted)
		},
		failure: "Power down failed: ",
	})
}

// SubmitPost publishes a proposal authored by the account.
func (c *Controller) SubmitPost(ctx context.Context, title, body, rawTags string) (ActionStatus, error) {
	if err := c.ready(); err != nil {
		return ActionStatus{}, err
	}
	draft, err := proposals.NewDraft(c.account, title, body, rawTags, c.clock())
	if err != nil {
		return ActionStatus{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	metadata, err := draft.JSONMetadata()
	if err != nil {
		return ActionStatus{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	request := keychain.PostRequest{
		Author:         draft.Author,
		Permlink:       draft.Permlink,
		ParentPermlink: draft.ParentPermlink(),
		Title:          draft.Title,
		Body:           draft.Body,
		JSONMetadata:   metadata,
	}
	if err := request.Validate(); err != nil {
		return ActionStatus{}, err
	}
	return c.execute(ctx, plan{
		action: ActionSubmitPost,
		invoke: func(ctx context.Context) (keychain.Response, error) {
			return c.signer.SubmitPost(ctx, request)
		},
		onSuccess: func() string {
			return "Post published successfully!"
		},
		failure: "Failed to publish post: ",
	})
}

// Follow subscribes the account to following's blog.
func (c *Controller) Follow(ctx context.Context, following string) (ActionStatus, error) {
	if err := c.ready(); err != nil {
		return ActionStatus{}, err
	}
	following = strings.ToLower(strings.TrimSpace(following))
	if following == "" {
		return ActionStatus{}, fmt.Errorf("%w: account to follow is required", ErrInvalidInput)
	}
	return c.execute(ctx, plan{
		action: ActionFollow,
		target: following,
		invoke: func(ctx context.Context) (keychain.Response, error) {
			return c.signer.Follow(ctx, c.account, following)
		},
		onSuccess: func() string {
			return fmt.Sprintf("Now following @%s", following)
		},
		failure: "Follow failed: ",
	})
}

// Reblog shares author/permlink on the account's blog.
func (c *Controller) Reblog(ctx context.Context, author, permlink string) (ActionStatus, error) {
	if err := c.ready(); err != nil {
		return ActionStatus{}, err
	}
	author = strings.TrimSpace(author)
	permlink = strings.TrimSpace(permlink)
	if author == "" || permlink == "" {
		return ActionStatus{}, fmt.Errorf("%w: author and permlink are required", ErrInvalidInput)
	}
	return c.execute(ctx, plan{
		action: ActionReblog,
		target: postTarget(author, permlink),
		invoke: func(ctx context.Context) (keychain.Response, error) {
			return c.signer.Reblog(ctx, c.account, author, permlink)
		},
		onSuccess: func() string {
			return fmt.Sprintf("Reblogged @%s/%s", author, permlink)
		},
		failure: "Reblog failed: ",
	})
}

// BroadcastCustomJSON broadcasts an application payload under id with the account's
// posting authority.
func (c *Controller) BroadcastCustomJSON(ctx context.Context, id string, payload any) (ActionStatus, error) {
	if err := c.ready(); err != nil {
		return ActionStatus{}, err
	}
	request := keychain.CustomJSONRequest{
		Account:              c.account,
		ID:                   strings.TrimSpace(id),
		RequiredPostingAuths: []string{c.account},
		Payload:              payload,
	}
	if _, err := request.Validate(); err != nil {
		return ActionStatus{}, err
	}
	return c.execute(ctx, plan{
		action: ActionCustomJSON,
		target: request.ID,
		invoke: func(ctx context.Context) (keychain.Response, error) {
			return c.signer.BroadcastCustomJSON(ctx, request)
		},
		onSuccess: func() string {
			return fmt.Sprintf("Broadcast %s", request.ID)
		},
		failure: "Broadcast failed: ",
	})
}

// UpdateProfile replaces the account's posting metadata.
func (c *Controller) UpdateProfile(ctx context.Context, metadata map[string]any) (ActionStatus, error) {
	if err := c.ready(); err != nil {
		return ActionStatus{}, err
	}
	if len(metadata) == 0 {
		return ActionStatus{}, fmt.Errorf("%w: profile metadata is required", ErrInvalidInput)
	}
	return c.execute(ctx, plan{
		action: ActionUpdateProfile,
		target: c.account,
		invoke: func(ctx context.Context) (keychain.Response, error) {
			return c.signer.UpdateAccountMetadata(ctx, c.account, metadata)
		},
		onSuccess: func() string {
			return "Profile updated"
		},
		failure: "Profile update failed: ",
	})
}

// Busy reports whether a signer call is still outstanding, including completions that
// arrive after their attempt timed out.
func (c *Controller) Busy() bool {
	return c.running.Load() > 0
}

// Actions returns a snapshot of the action state table.
func (c *Controller) Actions() []ActionStatus {
	c.mu.Lock()
	statuses := make([]ActionStatus, 0, len(c.actions))
	for _, entry := range c.actions {
		statuses = append(statuses, entry.status)
	}
	c.mu.Unlock()
	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].Action != statuses[j].Action {
			return statuses[i].Action < statuses[j].Action
		}
		return statuses[i].Target < statuses[j].Target
	})
	return statuses
}

// VotingInProgress lists the posts with a vote awaiting the signer, keyed author/permlink.
func (c *Controller) VotingInProgress() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	voting := make(map[string]bool)
	for _, entry := range c.actions {
		if entry.status.Action == ActionVote && entry.current != nil {
			voting[entry.status.Target] = true
		}
	}
	return voting
}

// Drain waits until every outstanding signer call has completed or ctx ends.
func (c *Controller) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) ready() error {
	if c.account == "" {
		return ErrNotAuthenticated
	}
	if !c.signer.Available() {
		return keychain.ErrProviderUnavailable
	}
	return nil
}

// execute moves the action to in flight, issues the signer call in the background and
// waits for completion, the timeout or ctx, whichever comes first. Leaving on ctx does
// not abandon the attempt: its completion is still applied.
func (c *Controller) execute(ctx context.Context, p plan) (ActionStatus, error) {
	c.mu.Lock()
	current, err := c.beginLocked(p)
	c.mu.Unlock()
	if err != nil {
		return ActionStatus{}, err
	}
	metrics.FlowTransition(string(p.action), string(StateInFlight))

	c.pending.Add(1)
	c.running.Add(1)
	go func() {
		defer c.pending.Done()
		defer c.running.Add(-1)
		response, err := p.invoke(context.Background())
		c.settle(current, p, response, err)
	}()

	select {
	case <-current.done:
	case <-c.after(c.timeout):
		c.expire(current, p)
	case <-ctx.Done():
		return c.statusOf(current.key), ctx.Err()
	}
	<-current.done
	return current.status, current.err
}

// beginLocked runs the plan's guard and claims the action key in one critical section,
// so a vote settled by a concurrent attempt is seen before a second one starts.
func (c *Controller) beginLocked(p plan) (*attempt, error) {
	if p.guard != nil {
		if err := p.guard(); err != nil {
			return nil, err
		}
	}
	key := actionKey(p.action, p.target)
	entry, ok := c.actions[key]
	if !ok {
		entry = &actionEntry{status: ActionStatus{Action: p.action, Target: p.target, State: StateIdle}}
		c.actions[key] = entry
	}
	if entry.current != nil {
		if p.conflict != nil {
			return nil, p.conflict
		}
		return nil, ErrActionInProgress
	}
	c.sequence++
	current := &attempt{key: key, number: c.sequence, done: make(chan struct{})}
	entry.current = current
	entry.status.State = StateInFlight
	entry.status.Message = ""
	entry.status.Attempt = current.number
	entry.status.UpdatedAt = c.clock().UTC()
	return current, nil
}

// settle applies a signer completion unless the attempt already timed out, in which case
// the completion is only journaled as late. done closes once the outcome is published
// and journaled.
func (c *Controller) settle(current *attempt, p plan, response keychain.Response, err error) {
	outcome := StateSuccess
	if err != nil {
		outcome = StateFailed
	}

	c.mu.Lock()
	if current.finalized {
		c.mu.Unlock()
		c.logger.Info("late signer completion ignored",
			zap.String("action", string(p.action)),
			zap.String("target", p.target),
			zap.String("outcome", string(outcome)))
		c.record(p, outcome, describe(response, err), true)
		return
	}

	var message string
	kind := NotificationSuccess
	if err == nil {
		message = p.onSuccess()
	} else {
		kind = NotificationError
		message = p.failure + failureMessage(err)
	}
	c.finalizeLocked(current, outcome, message, err)
	notification := c.pushLocked(kind, message)
	c.mu.Unlock()

	metrics.FlowTransition(string(p.action), string(outcome))
	c.publish(notification)
	c.record(p, outcome, describe(response, err), false)
	close(current.done)
}

// expire times the attempt out if it is still outstanding.
func (c *Controller) expire(current *attempt, p plan) {
	c.mu.Lock()
	if current.finalized {
		c.mu.Unlock()
		return
	}
	c.finalizeLocked(current, StateTimedOut, timeoutMessage, ErrTimedOut)
	notification := c.pushLocked(NotificationError, timeoutMessage)
	c.mu.Unlock()

	c.logger.Warn("signer request timed out",
		zap.String("action", string(p.action)),
		zap.String("target", p.target),
		zap.Duration("timeout", c.timeout))
	metrics.FlowTransition(string(p.action), string(StateTimedOut))
	c.publish(notification)
	c.record(p, StateTimedOut, timeoutMessage, false)
	close(current.done)
}

func (c *Controller) finalizeLocked(current *attempt, outcome State, message string, err error) {
	current.finalized = true
	entry := c.actions[current.key]
	if entry != nil && entry.current == current {
		entry.current = nil
		entry.status.State = StateIdle
		entry.status.LastOutcome = outcome
		entry.status.Message = message
		entry.status.UpdatedAt = c.clock().UTC()
		current.status = entry.status
	}
	current.err = err
}

func (c *Controller) statusOf(key string) ActionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.actions[key]; ok {
		return entry.status
	}
	return ActionStatus{State: StateIdle}
}

func (c *Controller) findPostLocked(author, permlink string) int {
	for index, post := range c.posts {
		if post.Author == author && post.Permlink == permlink {
			return index
		}
	}
	return -1
}

func (c *Controller) applyVoteLocked(author, permlink string, weight int) {
	index := c.findPostLocked(author, permlink)
	if index < 0 || c.posts[index].HasVoted(c.account) {
		return
	}
	post := c.posts[index]
	post.NetVotes++
	post.ActiveVotes = append(append([]hive.ActiveVote(nil), post.ActiveVotes...), hive.ActiveVote{
		Voter:   c.account,
		Percent: int64(weight),
	})
	c.posts[index] = post
}

func (c *Controller) record(p plan, outcome State, detail string, late bool) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	_, err := c.recorder.Record(ctx, journal.RecordRequest{
		Account: c.account,
		Action:  string(p.action),
		Outcome: journalOutcome(outcome),
		Target:  p.target,
		Detail:  detail,
		Late:    late,
	})
	if err != nil {
		c.logger.Warn("journal record failed", zap.String("action", string(p.action)), zap.Error(err))
	}
}

func (c *Controller) publish(notification Notification) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(c.account, notification)
}

func journalOutcome(state State) journal.Outcome {
	switch state {
	case StateSuccess:
		return journal.OutcomeSuccess
	case StateTimedOut:
		return journal.OutcomeTimedOut
	default:
		return journal.OutcomeFailed
	}
}

func failureMessage(err error) string {
	var upstreamErr *keychain.UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Message
	}
	if errors.Is(err, keychain.ErrProviderUnavailable) {
		return "Please install Hive Keychain extension"
	}
	return err.Error()
}

func describe(response keychain.Response, err error) string {
	if err != nil {
		return failureMessage(err)
	}
	if response.RequestID != "" {
		return "request " + response.RequestID
	}
	return strings.TrimSpace(response.Message)
}

func actionKey(action Action, target string) string {
	if target == "" {
		return string(action)
	}
	return string(action) + ":" + target
}

func postTarget(author, permlink string) string {
	return author + "/" + permlink
}

func clonePosts(posts []hive.PostRecord) []hive.PostRecord {
	cloned := make([]hive.PostRecord, len(posts))
	for index, post := range posts {
		post.ActiveVotes = append([]hive.ActiveVote(nil), post.ActiveVotes...)
		cloned[index] = post
	}
	return cloned
}

func newNotificationID() string {
	if value, err := uuid.NewV7(); err == nil {
		return value.String()
	}
	return uuid.NewString()
}
