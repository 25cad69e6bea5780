package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/hive"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/journal"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/keychain"
)

type fakeChain struct {
	mu      sync.Mutex
	posts   []hive.PostRecord
	err     error
	lastTag string
	limit   int
}

func (f *fakeChain) FetchTrendingProposals(_ context.Context, tag string, limit int) ([]hive.PostRecord, error) {
	return f.fetch(tag, limit)
}

func (f *fakeChain) FetchDiscussions(_ context.Context, tag string, limit int) ([]hive.PostRecord, error) {
	return f.fetch(tag, limit)
}

func (f *fakeChain) fetch(tag string, limit int) ([]hive.PostRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTag = tag
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return clonePosts(f.posts), nil
}

type fakeSigner struct {
	mu          sync.Mutex
	unavailable bool
	calls       []string
	err         error
	release     chan struct{}
	lastPost    keychain.PostRequest
	lastVote    keychain.VoteRequest
}

func (s *fakeSigner) do(operation string) (keychain.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, operation)
	release := s.release
	err := s.err
	s.mu.Unlock()
	if release != nil {
		<-release
	}
	if err != nil {
		return keychain.Response{}, err
	}
	return keychain.Response{Success: true, RequestID: operation + "-1"}, nil
}

func (s *fakeSigner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeSigner) Available() bool {
	return !s.unavailable
}

func (s *fakeSigner) Vote(_ context.Context, request keychain.VoteRequest) (keychain.Response, error) {
	s.mu.Lock()
	s.lastVote = request
	s.mu.Unlock()
	return s.do(keychain.OpVote)
}

func (s *fakeSigner) Transfer(context.Context, keychain.TransferRequest) (keychain.Response, error) {
	return s.do(keychain.OpTransfer)
}

func (s *fakeSigner) Delegate(context.Context, keychain.DelegationRequest) (keychain.Response, error) {
	return s.do(keychain.OpDelegate)
}

func (s *fakeSigner) PowerUp(context.Context, keychain.PowerRequest) (keychain.Response, error) {
	return s.do(keychain.OpPowerUp)
}

func (s *fakeSigner) PowerDown(context.Context, keychain.PowerRequest) (keychain.Response, error) {
	return s.do(keychain.OpPowerDown)
}

func (s *fakeSigner) SubmitPost(_ context.Context, request keychain.PostRequest) (keychain.Response, error) {
	s.mu.Lock()
	s.lastPost = request
	s.mu.Unlock()
	return s.do(keychain.OpSubmitPost)
}

func (s *fakeSigner) Follow(context.Context, string, string) (keychain.Response, error) {
	return s.do(keychain.OpFollow)
}

func (s *fakeSigner) Reblog(context.Context, string, string, string) (keychain.Response, error) {
	return s.do(keychain.OpReblog)
}

func (s *fakeSigner) BroadcastCustomJSON(context.Context, keychain.CustomJSONRequest) (keychain.Response, error) {
	return s.do(keychain.OpCustomJSON)
}

func (s *fakeSigner) UpdateAccountMetadata(context.Context, string, map[string]any) (keychain.Response, error) {
	return s.do(keychain.OpUpdateAccountMetadata)
}

type memoryRecorder struct {
	mu      sync.Mutex
	entries []journal.RecordRequest
}

func (r *memoryRecorder) Record(_ context.Context, request journal.RecordRequest) (journal.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, request)
	return journal.Entry{Account: request.Account, Action: request.Action, Outcome: request.Outcome, Late: request.Late}, nil
}

func (r *memoryRecorder) snapshot() []journal.RecordRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]journal.RecordRequest(nil), r.entries...)
}

type memoryPublisher struct {
	mu        sync.Mutex
	published []Notification
}

func (p *memoryPublisher) Publish(_ string, notification Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, notification)
}

func (p *memoryPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type controllerFixture struct {
	controller *Controller
	chain      *fakeChain
	signer     *fakeSigner
	recorder   *memoryRecorder
	publisher  *memoryPublisher
	timeouts   chan time.Time
	clock      *manualClock
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(step time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(step)
}

func newControllerFixture(t *testing.T, account string) controllerFixture {
	t.Helper()
	fixture := controllerFixture{
		chain: &fakeChain{posts: []hive.PostRecord{
			{Author: "bob", Permlink: "budget-2025", Title: "Budget 2025", Body: "Water and roads", NetVotes: 3},
			{Author: "carol", Permlink: "roads", Title: "Roads", Body: "Pave them", ActiveVotes: []hive.ActiveVote{{Voter: "alice", Percent: 10000}}},
		}},
		signer:    &fakeSigner{},
		recorder:  &memoryRecorder{},
		publisher: &memoryPublisher{},
		timeouts:  make(chan time.Time),
		clock:     &manualClock{now: time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)},
	}
	controller, err := NewController(ControllerConfig{
		Account:   account,
		Chain:     fixture.chain,
		Signer:    fixture.signer,
		Recorder:  fixture.recorder,
		Publisher: fixture.publisher,
		Clock:     fixture.clock.Now,
		After:     func(time.Duration) <-chan time.Time { return fixture.timeouts },
	})
	if err != nil {
		t.Fatalf("failed to construct controller: %v", err)
	}
	fixture.controller = controller
	if _, err := controller.LoadTrending(context.Background(), "", 0); err != nil {
		t.Fatalf("failed to load trending: %v", err)
	}
	return fixture
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLoadTrendingUsesDefaults(t *testing.T) {
	fixture := newControllerFixture(t, "alice")
	if fixture.chain.lastTag != DefaultTrendingTag || fixture.chain.limit != DefaultTrendingLimit {
		t.Fatalf("unexpected trending query %s/%d", fixture.chain.lastTag, fixture.chain.limit)
	}
	if len(fixture.controller.Posts()) != 2 {
		t.Fatalf("expected two posts in the list")
	}
}

func TestVoteSuccessUpdatesListOptimistically(t *testing.T) {
	fixture := newControllerFixture(t, "Alice")

	status, err := fixture.controller.Vote(context.Background(), "bob", "budget-2025", keychain.MaxVoteWeight)
	if err != nil {
		t.Fatalf("unexpected vote error: %v", err)
	}
	if status.State != StateIdle || status.LastOutcome != StateSuccess || status.Message != "Vote successful!" {
		t.Fatalf("unexpected status %+v", status)
	}

	post := fixture.controller.Posts()[0]
	if post.NetVotes != 4 || !post.HasVoted("alice") {
		t.Fatalf("expected optimistic vote, got %+v", post)
	}
	if fixture.signer.lastVote.Voter != "alice" {
		t.Fatalf("expected normalized voter, got %q", fixture.signer.lastVote.Voter)
	}

	notifications := fixture.controller.Notifications()
	if len(notifications) != 1 || notifications[0].Kind != NotificationSuccess {
		t.Fatalf("unexpected notifications %+v", notifications)
	}
	if fixture.publisher.count() != 1 {
		t.Fatalf("expected one published notification")
	}
	entries := fixture.recorder.snapshot()
	if len(entries) != 1 || entries[0].Outcome != journal.OutcomeSuccess || entries[0].Target != "bob/budget-2025" {
		t.Fatalf("unexpected journal %+v", entries)
	}
}

func TestVoteRejectsDuplicateWithoutSignerCall(t *testing.T) {
	fixture := newControllerFixture(t, "alice")

	_, err := fixture.controller.Vote(context.Background(), "carol", "roads", keychain.MaxVoteWeight)
	if !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	if fixture.signer.callCount() != 0 {
		t.Fatalf("expected no signer call")
	}
	if post := fixture.controller.Posts()[1]; post.NetVotes != 0 || len(post.ActiveVotes) != 1 {
		t.Fatalf("expected list untouched, got %+v", post)
	}
}

func TestVoteGuards(t *testing.T) {
	fixture := newControllerFixture(t, "alice")
	if _, err := fixture.controller.Vote(context.Background(), "dave", "missing", 100); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
	var validationErr *keychain.ValidationError
	if _, err := fixture.controller.Vote(context.Background(), "bob", "budget-2025", 20000); !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	anonymous := newControllerFixture(t, " ")
	if _, err := anonymous.controller.Vote(context.Background(), "bob", "budget-2025", 100); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	fixture.signer.unavailable = true
	if _, err := fixture.controller.Vote(context.Background(), "bob", "budget-2025", 100); !errors.Is(err, keychain.ErrProviderUnavailable) {
		t.Fatalf("expected provider unavailable, got %v", err)
	}
	if fixture.signer.callCount() != 0 {
		t.Fatalf("expected no signer call")
	}
}

func TestVoteInProgressBlocksSecondAttempt(t *testing.T) {
	fixture := newControllerFixture(t, "alice")
	fixture.signer.release = make(chan struct{})

	results := make(chan error, 1)
	go func() {
		_, err := fixture.controller.Vote(context.Background(), "bob", "budget-2025", 100)
		results <- err
	}()
	waitFor(t, func() bool { return fixture.controller.VotingInProgress()["bob/budget-2025"] })

	if _, err := fixture.controller.Vote(context.Background(), "bob", "budget-2025", 100); !errors.Is(err, ErrVoteInProgress) {
		t.Fatalf("expected ErrVoteInProgress, got %v", err)
	}

	close(fixture.signer.release)
	if err := <-results; err != nil {
		t.Fatalf("unexpected first vote error: %v", err)
	}
	if len(fixture.controller.VotingInProgress()) != 0 {
		t.Fatalf("expected voting map to clear")
	}
	if fixture.signer.callCount() != 1 {
		t.Fatalf("expected a single signer call, got %d", fixture.signer.callCount())
	}
}

func TestConcurrentVotesSignOnce(t *testing.T) {
	fixture := newControllerFixture(t, "alice")

	const voters = 16
	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fixture.controller.Vote(context.Background(), "bob", "budget-2025", 100)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyVoted), errors.Is(err, ErrVoteInProgress):
		default:
			t.Fatalf("unexpected vote error: %v", err)
		}
	}
	if succeeded != 1 || fixture.signer.callCount() != 1 {
		t.Fatalf("expected exactly one signed vote, got %d successes and %d signer calls", succeeded, fixture.signer.callCount())
	}
	if post := fixture.controller.Posts()[0]; post.NetVotes != 4 {
		t.Fatalf("expected a single optimistic vote, got %+v", post)
	}
}

func TestTimeoutPublishesBeforeReturning(t *testing.T) {
	fixture := newControllerFixture(t, "alice")
	fixture.signer.release = make(chan struct{})
	defer close(fixture.signer.release)

	results := make(chan error, 1)
	go func() {
		_, err := fixture.controller.Follow(context.Background(), "bob")
		results <- err
	}()
	fixture.timeouts <- time.Now()

	if err := <-results; !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if fixture.publisher.count() != 1 {
		t.Fatalf("expected the timeout notification published before return, got %d", fixture.publisher.count())
	}
	entries := fixture.recorder.snapshot()
	if len(entries) != 1 || entries[0].Outcome != journal.OutcomeTimedOut {
		t.Fatalf("expected the timeout journaled before return, got %+v", entries)
	}
}

func TestTimeoutThenLateSuccessDoesNotDoubleApply(t *testing.T) {
	fixture := newControllerFixture(t, "alice")
	fixture.signer.release = make(chan struct{})

	results := make(chan error, 1)
	go func() {
		_, err := fixture.controller.Vote(context.Background(), "bob", "budget-2025", 100)
		results <- err
	}()
	fixture.timeouts <- time.Now()

	if err := <-results; !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	statuses := fixture.controller.Actions()
	if len(statuses) != 1 || statuses[0].LastOutcome != StateTimedOut || statuses[0].State != StateIdle {
		t.Fatalf("unexpected statuses %+v", statuses)
	}

	close(fixture.signer.release)
	if err := fixture.controller.Drain(context.Background()); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	post := fixture.controller.Posts()[0]
	if post.NetVotes != 3 || post.HasVoted("alice") {
		t.Fatalf("late completion mutated the list: %+v", post)
	}
	notifications := fixture.controller.Notifications()
	if len(notifications) != 1 || notifications[0].Message != timeoutMessage {
		t.Fatalf("expected only the timeout notification, got %+v", notifications)
	}
	if statuses := fixture.controller.Actions(); statuses[0].LastOutcome != StateTimedOut {
		t.Fatalf("late completion changed the action state: %+v", statuses[0])
	}

	entries := fixture.recorder.snapshot()
	if len(entries) != 2 {
		t.Fatalf("expected timeout and late entries, got %+v", entries)
	}
	if entries[0].Outcome != journal.OutcomeTimedOut || entries[0].Late {
		t.Fatalf("unexpected timeout entry %+v", entries[0])
	}
	if entries[1].Outcome != journal.OutcomeSuccess || !entries[1].Late {
		t.Fatalf("unexpected late entry %+v", entries[1])
	}

	fixture.signer.release = nil
	if _, err := fixture.controller.Vote(context.Background(), "bob", "budget-2025", 100); err != nil {
		t.Fatalf("expected retry after timeout to succeed, got %v", err)
	}
	if post := fixture.controller.Posts()[0]; post.NetVotes != 4 {
		t.Fatalf("expected exactly one applied vote, got %d", post.NetVotes)
	}
}

func TestTransferTinyAmountRejectedLocally(t *testing.T) {
	fixture := newControllerFixture(t, "alice")
	_, err := fixture.controller.Transfer(context.Background(), keychain.TransferRequest{To: "bob", Amount: "0.0001", Currency: keychain.CurrencyHive})
	var validationErr *keychain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if fixture.signer.callCount() != 0 {
		t.Fatalf("expected no signer call")
	}
	if len(fixture.controller.Actions()) != 0 {
		t.Fatalf("expected no state transition")
	}
}

func TestTransferFailureSurfacesMessage(t *testing.T) {
	fixture := newControllerFixture(t, "alice")
	fixture.signer.err = &keychain.UpstreamError{Operation: keychain.OpTransfer, Message: keychain.ActiveKeyGuidance}

	status, err := fixture.controller.Transfer(context.Background(), keychain.TransferRequest{To: "bob", Amount: "1", Currency: keychain.CurrencyHBD})
	var upstreamErr *keychain.UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if status.LastOutcome != StateFailed || status.Message != "Transfer failed: "+keychain.ActiveKeyGuidance {
		t.Fatalf("unexpected status %+v", status)
	}
	notifications := fixture.controller.Notifications()
	if len(notifications) != 1 || notifications[0].Kind != NotificationError {
		t.Fatalf("unexpected notifications %+v", notifications)
	}
	if fixture.controller.Posts()[0].NetVotes != 3 {
		t.Fatalf("expected list untouched")
	}
}

func TestTransferSuccessMessage(t *testing.T) {
	fixture := newControllerFixture(t, "alice")
	status, err := fixture.controller.Transfer(context.Background(), keychain.TransferRequest{To: "bob", Amount: "1.5", Currency: keychain.CurrencyHive})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Message != "Successfully sent 1.500 HIVE to @bob" {
		t.Fatalf("unexpected message %q", status.Message)
	}
}

func TestWalletActions(t *testing.T) {
	fixture := newControllerFixture(t, "alice")
	ctx := context.Background()

	if status, err := fixture.controller.Delegate(ctx, keychain.DelegationRequest{Delegatee: "bob", Amount: "10"}); err != nil || status.Message != "Successfully delegated 10.000 HP to @bob" {
		t.Fatalf("unexpected delegate outcome %+v %v", status, err)
	}
	if status, err := fixture.controller.PowerUp(ctx, "2"); err != nil || status.Message != "Successfully powered up 2.000 HIVE" {
		t.Fatalf("unexpected power up outcome %+v %v", status, err)
	}
	if status, err := fixture.controller.PowerDown(ctx, "3"); err != nil || status.Message != "Power down of 3.000 HP started" {
		t.Fatalf("unexpected power down outcome %+v %v", status, err)
	}
	if status, err := fixture.controller.Follow(ctx, "Bob"); err != nil || status.Target != "bob" {
		t.Fatalf("unexpected follow outcome %+v %v", status, err)
	}
	if status, err := fixture.controller.Reblog(ctx, "bob", "budget-2025"); err != nil || status.Message != "Reblogged @bob/budget-2025" {
		t.Fatalf("unexpected reblog outcome %+v %v", status, err)
	}
	if _, err := fixture.controller.Follow(ctx, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty follow target, got %v", err)
	}
	if fixture.signer.callCount() != 5 {
		t.Fatalf("expected five signer calls, got %d", fixture.signer.callCount())
	}
	if len(fixture.controller.Actions()) != 5 {
		t.Fatalf("expected five action entries, got %d", len(fixture.controller.Actions()))
	}
}

func TestCustomJSONAndProfileActions(t *testing.T) {
	fixture := newControllerFixture(t, "alice")
	ctx := context.Background()

	status, err := fixture.controller.BroadcastCustomJSON(ctx, " community ", map[string]any{"subscribe": "hive-1"})
	if err != nil || status.Target != "community" || status.Message != "Broadcast community" {
		t.Fatalf("unexpected custom json outcome %+v %v", status, err)
	}
	var validationErr *keychain.ValidationError
	if _, err := fixture.controller.BroadcastCustomJSON(ctx, "community", nil); !errors.As(err, &validationErr) || validationErr.Field != "payload" {
		t.Fatalf("expected payload validation error, got %v", err)
	}

	status, err = fixture.controller.UpdateProfile(ctx, map[string]any{"profile": map[string]any{"name": "Alice"}})
	if err != nil || status.Target != "alice" || status.Message != "Profile updated" {
		t.Fatalf("unexpected profile outcome %+v %v", status, err)
	}
	if _, err := fixture.controller.UpdateProfile(ctx, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty metadata, got %v", err)
	}

	if fixture.signer.callCount() != 2 {
		t.Fatalf("expected two signer calls, got %d", fixture.signer.callCount())
	}
	entries := fixture.recorder.snapshot()
	if len(entries) != 2 || entries[0].Action != string(ActionCustomJSON) || entries[1].Action != string(ActionUpdateProfile) {
		t.Fatalf("unexpected journal %+v", entries)
	}
}

func TestSubmitPostBuildsCommentOperation(t *testing.T) {
	fixture := newControllerFixture(t, "alice")

	status, err := fixture.controller.SubmitPost(context.Background(), "Clean Water Act", "Fund <b>clean</b> water", "water policy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Message != "Post published successfully!" {
		t.Fatalf("unexpected status %+v", status)
	}
	post := fixture.signer.lastPost
	if post.Author != "alice" || post.ParentPermlink != "governance" {
		t.Fatalf("unexpected post request %+v", post)
	}
	if !strings.HasSuffix(post.Permlink, "-clean-water-act") {
		t.Fatalf("unexpected permlink %q", post.Permlink)
	}
	if !strings.Contains(post.JSONMetadata, `"tags":["governance","water","policy"]`) {
		t.Fatalf("unexpected metadata %s", post.JSONMetadata)
	}

	if _, err := fixture.controller.SubmitPost(context.Background(), "", "body", "tags"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSearchRequiresTermOrCategory(t *testing.T) {
	fixture := newControllerFixture(t, "alice")
	if _, err := fixture.controller.Search(context.Background(), " ", "all"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	results, err := fixture.controller.Search(context.Background(), "water", "")
	if err != nil {
		t.Fatalf("unexpected search error: %v", err)
	}
	if fixture.chain.lastTag != "hive" || fixture.chain.limit != SearchLimit {
		t.Fatalf("unexpected search query %s/%d", fixture.chain.lastTag, fixture.chain.limit)
	}
	if len(results) != 1 || results[0].Post.Author != "bob" {
		t.Fatalf("unexpected results %+v", results)
	}
	if posts := fixture.controller.Posts(); len(posts) != 1 || posts[0].Permlink != "budget-2025" {
		t.Fatalf("expected search results to become the list, got %+v", posts)
	}

	if _, err := fixture.controller.Search(context.Background(), "", "finance"); err != nil {
		t.Fatalf("category-only search failed: %v", err)
	}
	if fixture.chain.lastTag != "finance" {
		t.Fatalf("expected category tag, got %s", fixture.chain.lastTag)
	}
}

func TestLoadTrendingPropagatesChainErrors(t *testing.T) {
	fixture := newControllerFixture(t, "alice")
	fixture.chain.err = &hive.NetworkError{Operation: "discussions_by_trending", Err: context.DeadlineExceeded}

	if _, err := fixture.controller.LoadTrending(context.Background(), "hive", 10); err == nil {
		t.Fatalf("expected chain error")
	}
	if len(fixture.controller.Posts()) != 2 {
		t.Fatalf("expected previous list kept after failure")
	}
}

func TestNotificationsExpireAndDismiss(t *testing.T) {
	fixture := newControllerFixture(t, "alice")
	ctx := context.Background()

	if _, err := fixture.controller.Follow(ctx, "bob"); err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	fixture.clock.Advance(DefaultNotificationTTL / 2)
	if _, err := fixture.controller.Follow(ctx, "carol"); err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	if len(fixture.controller.Notifications()) != 2 {
		t.Fatalf("expected two live notifications")
	}

	fixture.clock.Advance(DefaultNotificationTTL/2 + time.Millisecond)
	notifications := fixture.controller.Notifications()
	if len(notifications) != 1 || notifications[0].Message != "Now following @carol" {
		t.Fatalf("expected the first notification to expire, got %+v", notifications)
	}
	if !fixture.controller.Dismiss(notifications[0].ID) {
		t.Fatalf("expected dismiss to succeed")
	}
	if len(fixture.controller.Notifications()) != 0 {
		t.Fatalf("expected empty queue after dismiss")
	}
}

func TestExecuteReturnsOnContextCancellation(t *testing.T) {
	fixture := newControllerFixture(t, "alice")
	fixture.signer.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	status, err := fixture.controller.Follow(ctx, "bob")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if status.State != StateInFlight {
		t.Fatalf("expected action to remain in flight, got %+v", status)
	}

	close(fixture.signer.release)
	if err := fixture.controller.Drain(context.Background()); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if statuses := fixture.controller.Actions(); statuses[0].LastOutcome != StateSuccess {
		t.Fatalf("expected completion applied after caller left, got %+v", statuses[0])
	}
}
