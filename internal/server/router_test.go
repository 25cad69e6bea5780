package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/auth"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/flow"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/hive"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/journal"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/keychain"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	testSigningSecret = "test-signing-secret"
	testCookieName    = "hive_explorer_session"
)

type stubChain struct {
	posts []hive.PostRecord
	err   error
}

func (s *stubChain) FetchTrendingProposals(context.Context, string, int) ([]hive.PostRecord, error) {
	return s.posts, s.err
}

func (s *stubChain) FetchDiscussions(context.Context, string, int) ([]hive.PostRecord, error) {
	return s.posts, s.err
}

type stubSigner struct {
	mu          sync.Mutex
	unavailable bool
	failWith    error
	calls       []string
	lastVote    keychain.VoteRequest
}

func (s *stubSigner) record(operation string) (keychain.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, operation)
	if s.failWith != nil {
		return keychain.Response{}, s.failWith
	}
	return keychain.Response{Success: true}, nil
}

func (s *stubSigner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubSigner) Available() bool {
	return !s.unavailable
}

func (s *stubSigner) Vote(_ context.Context, request keychain.VoteRequest) (keychain.Response, error) {
	s.mu.Lock()
	s.lastVote = request
	s.mu.Unlock()
	return s.record(keychain.OpVote)
}

func (s *stubSigner) Transfer(context.Context, keychain.TransferRequest) (keychain.Response, error) {
	return s.record(keychain.OpTransfer)
}

func (s *stubSigner) Delegate(context.Context, keychain.DelegationRequest) (keychain.Response, error) {
	return s.record(keychain.OpDelegate)
}

func (s *stubSigner) PowerUp(context.Context, keychain.PowerRequest) (keychain.Response, error) {
	return s.record(keychain.OpPowerUp)
}

func (s *stubSigner) PowerDown(context.Context, keychain.PowerRequest) (keychain.Response, error) {
	return s.record(keychain.OpPowerDown)
}

func (s *stubSigner) SubmitPost(context.Context, keychain.PostRequest) (keychain.Response, error) {
	return s.record(keychain.OpSubmitPost)
}

func (s *stubSigner) Follow(context.Context, string, string) (keychain.Response, error) {
	return s.record(keychain.OpFollow)
}

func (s *stubSigner) Reblog(context.Context, string, string, string) (keychain.Response, error) {
	return s.record(keychain.OpReblog)
}

func (s *stubSigner) BroadcastCustomJSON(context.Context, keychain.CustomJSONRequest) (keychain.Response, error) {
	return s.record(keychain.OpCustomJSON)
}

func (s *stubSigner) UpdateAccountMetadata(context.Context, string, map[string]any) (keychain.Response, error) {
	return s.record(keychain.OpUpdateAccountMetadata)
}

type stubVerifier struct {
	err error
}

func (s stubVerifier) Verify(_ context.Context, account string) (auth.LoginClaims, error) {
	if s.err != nil {
		return auth.LoginClaims{}, s.err
	}
	return auth.LoginClaims{Account: account, Method: auth.LoginMethodKeychain, Signature: "sig"}, nil
}

type memoryAccounts struct {
	mu     sync.Mutex
	logins []string
}

func (m *memoryAccounts) RecordLogin(_ context.Context, rawName, method string) (users.Account, error) {
	name, err := users.NormalizeAccountName(rawName)
	if err != nil {
		return users.Account{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins = append(m.logins, name)
	return users.Account{Name: name, LoginMethod: method, LoginCount: int64(len(m.logins))}, nil
}

type memoryJournal struct {
	entries []journal.Entry
}

func (m *memoryJournal) List(_ context.Context, account string, _ int) ([]journal.Entry, error) {
	if account == "" {
		return nil, journal.ErrInvalidAccount
	}
	var matched []journal.Entry
	for _, entry := range m.entries {
		if entry.Account == account {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}

type routerFixture struct {
	handler    http.Handler
	signer     *stubSigner
	accounts   *memoryAccounts
	issuer     *auth.TokenIssuer
	dispatcher *NotificationDispatcher
}

type fixtureOptions struct {
	verifier  LoginVerifier
	writeRate string
	journal   *memoryJournal
}

func newRouterFixture(t *testing.T, options fixtureOptions) routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	chain := &stubChain{posts: []hive.PostRecord{{
		Author:   "bob",
		Permlink: "budget-proposal",
		Title:    "Budget proposal",
		Body:     "Fund the parliament library.",
		Category: "budget",
	}}}
	signer := &stubSigner{}
	dispatcher := NewNotificationDispatcher()
	registry, err := flow.NewRegistry(flow.RegistryConfig{
		Chain:     chain,
		Signer:    signer,
		Publisher: dispatcher,
		Timeout:   time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to construct registry: %v", err)
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		TokenTTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to construct issuer: %v", err)
	}
	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    testCookieName,
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}

	verifier := options.verifier
	if verifier == nil {
		verifier = stubVerifier{}
	}
	history := options.journal
	if history == nil {
		history = &memoryJournal{}
	}
	writeRate := options.writeRate
	if writeRate == "" {
		writeRate = "1000-M"
	}
	accounts := &memoryAccounts{}

	handler, err := NewHTTPHandler(Dependencies{
		Verifier:   verifier,
		Tokens:     issuer,
		Sessions:   validator,
		Accounts:   accounts,
		Registry:   registry,
		Journal:    history,
		Dispatcher: dispatcher,
		WriteRate:  writeRate,
		Heartbeat:  time.Minute,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}

	return routerFixture{
		handler:    handler,
		signer:     signer,
		accounts:   accounts,
		issuer:     issuer,
		dispatcher: dispatcher,
	}
}

func (f routerFixture) token(t *testing.T, account string) string {
	t.Helper()
	token, _, err := f.issuer.Issue(context.Background(), auth.LoginClaims{Account: account, Method: auth.LoginMethodKeychain})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func (f routerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	request := httptest.NewRequest(method, path, &payload)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); !errors.Is(err, errMissingLoginVerifier) {
		t.Fatalf("expected missing verifier error, got %v", err)
	}
	if _, err := NewHTTPHandler(Dependencies{Verifier: stubVerifier{}}); !errors.Is(err, errMissingSessionIssuer) {
		t.Fatalf("expected missing issuer error, got %v", err)
	}
}

func TestKeychainLoginIssuesSession(t *testing.T) {
	fixture := newRouterFixture(t, fixtureOptions{})

	recorder := fixture.do(t, http.MethodPost, "/auth/keychain", "", gin.H{"account": "@Alice"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	var response loginResponsePayload
	decodeBody(t, recorder, &response)
	if response.AccessToken == "" || response.TokenType != "Bearer" {
		t.Fatalf("unexpected login response %#v", response)
	}
	if response.Account != "alice" {
		t.Fatalf("expected canonical account, got %q", response.Account)
	}
	if response.ExpiresIn <= 0 {
		t.Fatalf("expected positive expiry, got %d", response.ExpiresIn)
	}

	var sessionCookie *http.Cookie
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == testCookieName {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil || sessionCookie.Value != response.AccessToken || !sessionCookie.HttpOnly {
		t.Fatalf("expected http-only session cookie, got %#v", sessionCookie)
	}
	if len(fixture.accounts.logins) != 1 || fixture.accounts.logins[0] != "alice" {
		t.Fatalf("expected login to be recorded, got %v", fixture.accounts.logins)
	}

	cookieRequest := httptest.NewRequest(http.MethodGet, "/actions", http.NoBody)
	cookieRequest.AddCookie(sessionCookie)
	cookieRecorder := httptest.NewRecorder()
	fixture.handler.ServeHTTP(cookieRecorder, cookieRequest)
	if cookieRecorder.Code != http.StatusOK {
		t.Fatalf("expected cookie session to authorize, got %d", cookieRecorder.Code)
	}
}

func TestKeychainLoginFailures(t *testing.T) {
	testCases := []struct {
		name     string
		verifier LoginVerifier
		account  string
		want     int
	}{
		{name: "declined signature", verifier: stubVerifier{err: fmt.Errorf("%w: user declined", auth.ErrLoginRejected)}, account: "alice", want: http.StatusUnauthorized},
		{name: "keychain missing", verifier: stubVerifier{err: keychain.ErrProviderUnavailable}, account: "alice", want: http.StatusServiceUnavailable},
		{name: "malformed account", verifier: stubVerifier{}, account: "ab", want: http.StatusBadRequest},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			fixture := newRouterFixture(t, fixtureOptions{verifier: testCase.verifier})
			recorder := fixture.do(t, http.MethodPost, "/auth/keychain", "", gin.H{"account": testCase.account})
			if recorder.Code != testCase.want {
				t.Fatalf("expected status %d, got %d: %s", testCase.want, recorder.Code, recorder.Body.String())
			}
			if len(fixture.accounts.logins) != 0 {
				t.Fatalf("expected no recorded logins, got %v", fixture.accounts.logins)
			}
		})
	}
}

func TestTrendingServesAnonymousReaders(t *testing.T) {
	fixture := newRouterFixture(t, fixtureOptions{})

	recorder := fixture.do(t, http.MethodGet, "/proposals/trending?tag=hive&limit=5", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	var response proposalListPayload
	decodeBody(t, recorder, &response)
	if response.Account != "" {
		t.Fatalf("expected anonymous listing, got account %q", response.Account)
	}
	if len(response.Proposals) != 1 {
		t.Fatalf("expected one proposal, got %d", len(response.Proposals))
	}
	if response.Proposals[0].URL != "https://hive.blog/@bob/budget-proposal" {
		t.Fatalf("unexpected url %q", response.Proposals[0].URL)
	}

	if bad := fixture.do(t, http.MethodGet, "/proposals/trending?limit=ten", "", nil); bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric limit, got %d", bad.Code)
	}
}

func TestSearchRequiresTermOrCategory(t *testing.T) {
	fixture := newRouterFixture(t, fixtureOptions{})

	recorder := fixture.do(t, http.MethodGet, "/proposals/search?category=all", "", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}

	found := fixture.do(t, http.MethodGet, "/proposals/search?q=library", "", nil)
	if found.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", found.Code, found.Body.String())
	}
	var response proposalListPayload
	decodeBody(t, found, &response)
	if len(response.Proposals) != 1 || response.Proposals[0].Post.Permlink != "budget-proposal" {
		t.Fatalf("unexpected search results %#v", response.Proposals)
	}
}

func TestVoteFlowOverHTTP(t *testing.T) {
	fixture := newRouterFixture(t, fixtureOptions{})
	token := fixture.token(t, "alice")

	if recorder := fixture.do(t, http.MethodGet, "/proposals/trending", token, nil); recorder.Code != http.StatusOK {
		t.Fatalf("failed to load trending list: %d", recorder.Code)
	}

	recorder := fixture.do(t, http.MethodPost, "/votes", token, gin.H{"author": "bob", "permlink": "budget-proposal"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected vote status %d: %s", recorder.Code, recorder.Body.String())
	}
	var response actionResponsePayload
	decodeBody(t, recorder, &response)
	if response.Status.LastOutcome != flow.StateSuccess || response.Status.State != flow.StateIdle {
		t.Fatalf("unexpected vote status %#v", response.Status)
	}
	if fixture.signer.lastVote.Weight != keychain.MaxVoteWeight || fixture.signer.lastVote.Voter != "alice" {
		t.Fatalf("unexpected vote request %#v", fixture.signer.lastVote)
	}

	duplicate := fixture.do(t, http.MethodPost, "/votes", token, gin.H{"author": "bob", "permlink": "budget-proposal"})
	if duplicate.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate vote, got %d", duplicate.Code)
	}
	var conflict errorResponse
	decodeBody(t, duplicate, &conflict)
	if conflict.Error != "already_voted" {
		t.Fatalf("unexpected conflict code %q", conflict.Error)
	}
	if fixture.signer.callCount() != 1 {
		t.Fatalf("expected a single signer call, got %d", fixture.signer.callCount())
	}

	missing := fixture.do(t, http.MethodPost, "/votes", token, gin.H{"author": "carol", "permlink": "unknown"})
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown post, got %d", missing.Code)
	}

	notifications := fixture.do(t, http.MethodGet, "/notifications", token, nil)
	var listed struct {
		Notifications []flow.Notification `json:"notifications"`
	}
	decodeBody(t, notifications, &listed)
	if len(listed.Notifications) != 1 || listed.Notifications[0].Message != "Vote successful!" {
		t.Fatalf("unexpected notifications %#v", listed.Notifications)
	}

	dismissed := fixture.do(t, http.MethodDelete, "/notifications/"+listed.Notifications[0].ID, token, nil)
	if dismissed.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on dismiss, got %d", dismissed.Code)
	}
	again := fixture.do(t, http.MethodDelete, "/notifications/"+listed.Notifications[0].ID, token, nil)
	if again.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second dismiss, got %d", again.Code)
	}
}

func TestWriteRoutesRequireSession(t *testing.T) {
	fixture := newRouterFixture(t, fixtureOptions{})

	for _, path := range []string{"/votes", "/transfers", "/delegations", "/power-up", "/power-down", "/posts", "/follows", "/reblogs", "/custom-json"} {
		recorder := fixture.do(t, http.MethodPost, path, "", gin.H{})
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s, got %d", path, recorder.Code)
		}
	}
	if recorder := fixture.do(t, http.MethodPut, "/account/metadata", "", gin.H{}); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for profile update, got %d", recorder.Code)
	}
	if fixture.signer.callCount() != 0 {
		t.Fatalf("expected no signer calls")
	}
}

func TestCustomJSONAndProfileRoutes(t *testing.T) {
	fixture := newRouterFixture(t, fixtureOptions{})
	token := fixture.token(t, "alice")

	broadcast := fixture.do(t, http.MethodPost, "/custom-json", token, gin.H{"id": "community", "payload": gin.H{"subscribe": "hive-1"}})
	if broadcast.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", broadcast.Code, broadcast.Body.String())
	}
	var settled actionResponsePayload
	decodeBody(t, broadcast, &settled)
	if settled.Status.Action != flow.ActionCustomJSON || settled.Status.Message != "Broadcast community" {
		t.Fatalf("unexpected custom json status %+v", settled.Status)
	}

	missing := fixture.do(t, http.MethodPost, "/custom-json", token, gin.H{"id": "community", "payload": nil})
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing payload, got %d", missing.Code)
	}

	profile := fixture.do(t, http.MethodPut, "/account/metadata", token, gin.H{"metadata": gin.H{"profile": gin.H{"name": "Alice"}}})
	if profile.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", profile.Code, profile.Body.String())
	}
	var updated actionResponsePayload
	decodeBody(t, profile, &updated)
	if updated.Status.Action != flow.ActionUpdateProfile || updated.Status.Message != "Profile updated" {
		t.Fatalf("unexpected profile status %+v", updated.Status)
	}

	if fixture.signer.callCount() != 2 {
		t.Fatalf("expected two signer calls, got %d", fixture.signer.callCount())
	}
}

func TestTransferValidationAndFailures(t *testing.T) {
	fixture := newRouterFixture(t, fixtureOptions{})
	token := fixture.token(t, "alice")

	tiny := fixture.do(t, http.MethodPost, "/transfers", token, gin.H{"to": "bob", "amount": "0.0001", "currency": "hive"})
	if tiny.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for tiny transfer, got %d", tiny.Code)
	}
	var invalid errorResponse
	decodeBody(t, tiny, &invalid)
	if invalid.Field != "amount" {
		t.Fatalf("expected amount field, got %#v", invalid)
	}
	if fixture.signer.callCount() != 0 {
		t.Fatalf("expected no signer call for an invalid amount")
	}

	ok := fixture.do(t, http.MethodPost, "/transfers", token, gin.H{"to": "bob", "amount": "1.5", "currency": "hive"})
	if ok.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", ok.Code, ok.Body.String())
	}
	var settled actionResponsePayload
	decodeBody(t, ok, &settled)
	if settled.Status.Message != "Successfully sent 1.500 HIVE to @bob" {
		t.Fatalf("unexpected message %q", settled.Status.Message)
	}

	fixture.signer.failWith = &keychain.UpstreamError{Operation: keychain.OpTransfer, Message: keychain.ActiveKeyGuidance}
	rejected := fixture.do(t, http.MethodPost, "/transfers", token, gin.H{"to": "bob", "amount": "2", "currency": "HBD"})
	if rejected.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rejected.Code)
	}
	var failure errorResponse
	decodeBody(t, rejected, &failure)
	if failure.Status == nil || failure.Status.LastOutcome != flow.StateFailed {
		t.Fatalf("expected failed status to be attached, got %#v", failure.Status)
	}
	if failure.Message != keychain.ActiveKeyGuidance {
		t.Fatalf("unexpected failure message %q", failure.Message)
	}
}

func TestSignerUnavailableReturnsServiceUnavailable(t *testing.T) {
	fixture := newRouterFixture(t, fixtureOptions{})
	fixture.signer.unavailable = true
	token := fixture.token(t, "alice")

	recorder := fixture.do(t, http.MethodPost, "/power-up", token, gin.H{"amount": "10"})
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", recorder.Code)
	}
}

func TestActionsAndHistory(t *testing.T) {
	history := &memoryJournal{entries: []journal.Entry{
		{EntryID: "e-1", Account: "alice", Action: "follow", Outcome: journal.OutcomeSuccess, Target: "bob", RecordedAtSeconds: 1700000000},
		{EntryID: "e-2", Account: "carol", Action: "vote", Outcome: journal.OutcomeFailed},
	}}
	fixture := newRouterFixture(t, fixtureOptions{journal: history})
	token := fixture.token(t, "alice")

	if recorder := fixture.do(t, http.MethodPost, "/follows", token, gin.H{"account": "bob"}); recorder.Code != http.StatusOK {
		t.Fatalf("unexpected follow status %d: %s", recorder.Code, recorder.Body.String())
	}

	actions := fixture.do(t, http.MethodGet, "/actions", token, nil)
	var listed actionListPayload
	decodeBody(t, actions, &listed)
	if len(listed.Actions) != 1 || listed.Actions[0].Action != flow.ActionFollow || listed.Actions[0].Target != "bob" {
		t.Fatalf("unexpected actions %#v", listed.Actions)
	}
	if len(listed.VotingInProgress) != 0 {
		t.Fatalf("expected no votes in progress, got %v", listed.VotingInProgress)
	}

	recorder := fixture.do(t, http.MethodGet, "/actions/history?limit=10", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected history status %d", recorder.Code)
	}
	var response struct {
		Entries []journalEntryPayload `json:"entries"`
	}
	decodeBody(t, recorder, &response)
	if len(response.Entries) != 1 || response.Entries[0].EntryID != "e-1" {
		t.Fatalf("unexpected history %#v", response.Entries)
	}
}

func TestWriteRoutesAreRateLimited(t *testing.T) {
	fixture := newRouterFixture(t, fixtureOptions{writeRate: "1-M"})
	token := fixture.token(t, "alice")

	first := fixture.do(t, http.MethodPost, "/follows", token, gin.H{"account": "bob"})
	if first.Code != http.StatusOK {
		t.Fatalf("unexpected first status %d", first.Code)
	}
	second := fixture.do(t, http.MethodPost, "/follows", token, gin.H{"account": "carol"})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if reads := fixture.do(t, http.MethodGet, "/actions", token, nil); reads.Code != http.StatusOK {
		t.Fatalf("expected reads to stay unthrottled, got %d", reads.Code)
	}
}

func TestInvalidWriteRateRejected(t *testing.T) {
	if _, err := writeRateLimiter("often"); err == nil {
		t.Fatalf("expected an error for a malformed rate")
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	fixture := newRouterFixture(t, fixtureOptions{})

	if recorder := fixture.do(t, http.MethodGet, "/healthz", "", nil); recorder.Code != http.StatusOK {
		t.Fatalf("unexpected health status %d", recorder.Code)
	}
	if recorder := fixture.do(t, http.MethodPost, "/follows", fixture.token(t, "alice"), gin.H{"account": "bob"}); recorder.Code != http.StatusOK {
		t.Fatalf("unexpected follow status %d", recorder.Code)
	}
	recorder := fixture.do(t, http.MethodGet, "/metrics", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected metrics status %d", recorder.Code)
	}
	if !bytes.Contains(recorder.Body.Bytes(), []byte("hive_explorer_")) {
		t.Fatalf("expected explorer metrics in exposition")
	}
}
