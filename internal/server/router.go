package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/auth"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/flow"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/journal"
	"github.com/MarcoPoloResearchLab/hive-explorer/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

const (
	accountContextKey = "hive_explorer_account"
	defaultWriteRate  = "30-M"
)

var (
	errMissingLoginVerifier  = errors.New("login verifier dependency required")
	errMissingSessionIssuer  = errors.New("session issuer dependency required")
	errMissingSessionChecker = errors.New("session validator dependency required")
	errMissingAccounts       = errors.New("account service dependency required")
	errMissingRegistry       = errors.New("controller registry dependency required")
	errMissingJournal        = errors.New("journal dependency required")
	errMissingDispatcher     = errors.New("notification dispatcher dependency required")
	errTooManyRequests       = errors.New("rate limit exceeded")
)

// LoginVerifier proves that the caller controls a Hive account.
type LoginVerifier interface {
	Verify(ctx context.Context, account string) (auth.LoginClaims, error)
}

// SessionIssuer mints session tokens for verified logins.
type SessionIssuer interface {
	Issue(ctx context.Context, login auth.LoginClaims) (string, time.Time, error)
}

// SessionChecker validates the session carried by a request.
type SessionChecker interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	CookieName() string
}

// AccountRecorder tracks account logins.
type AccountRecorder interface {
	RecordLogin(ctx context.Context, rawName, method string) (users.Account, error)
}

// ControllerRegistry hands out flow controllers.
type ControllerRegistry interface {
	For(account string) (*flow.Controller, error)
	Guest() *flow.Controller
}

// JournalReader lists persisted action outcomes.
type JournalReader interface {
	List(ctx context.Context, account string, limit int) ([]journal.Entry, error)
}

// Dependencies wires the HTTP surface.
type Dependencies struct {
	Verifier   LoginVerifier
	Tokens     SessionIssuer
	Sessions   SessionChecker
	Accounts   AccountRecorder
	Registry   ControllerRegistry
	Journal    JournalReader
	Dispatcher *NotificationDispatcher
	WriteRate  string
	Heartbeat  time.Duration
	Logger     *zap.Logger
}

// NewHTTPHandler builds the gin router serving the explorer API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Verifier == nil {
		return nil, errMissingLoginVerifier
	}
	if deps.Tokens == nil {
		return nil, errMissingSessionIssuer
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionChecker
	}
	if deps.Accounts == nil {
		return nil, errMissingAccounts
	}
	if deps.Registry == nil {
		return nil, errMissingRegistry
	}
	if deps.Journal == nil {
		return nil, errMissingJournal
	}
	if deps.Dispatcher == nil {
		return nil, errMissingDispatcher
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	writeLimiter, err := writeRateLimiter(deps.WriteRate)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		verifier:   deps.Verifier,
		tokens:     deps.Tokens,
		sessions:   deps.Sessions,
		accounts:   deps.Accounts,
		registry:   deps.Registry,
		journal:    deps.Journal,
		dispatcher: deps.Dispatcher,
		heartbeat:  heartbeat,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/auth/keychain", writeLimiter, handler.handleKeychainLogin)

	reads := router.Group("/proposals")
	reads.Use(handler.identifyRequest)
	reads.GET("/trending", handler.handleTrending)
	reads.GET("/search", handler.handleSearch)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/notifications", handler.handleNotifications)
	protected.DELETE("/notifications/:id", handler.handleDismissNotification)
	protected.GET("/notifications/stream", handler.handleNotificationStream)
	protected.GET("/actions", handler.handleActions)
	protected.GET("/actions/history", handler.handleActionHistory)

	writes := protected.Group("/")
	writes.Use(writeLimiter)
	writes.POST("/votes", handler.handleVote)
	writes.POST("/transfers", handler.handleTransfer)
	writes.POST("/delegations", handler.handleDelegation)
	writes.POST("/power-up", handler.handlePowerUp)
	writes.POST("/power-down", handler.handlePowerDown)
	writes.POST("/posts", handler.handleSubmitPost)
	writes.POST("/follows", handler.handleFollow)
	writes.POST("/reblogs", handler.handleReblog)
	writes.POST("/custom-json", handler.handleCustomJSON)
	writes.PUT("/account/metadata", handler.handleUpdateProfile)

	return router, nil
}

type httpHandler struct {
	verifier   LoginVerifier
	tokens     SessionIssuer
	sessions   SessionChecker
	accounts   AccountRecorder
	registry   ControllerRegistry
	journal    JournalReader
	dispatcher *NotificationDispatcher
	heartbeat  time.Duration
	logger     *zap.Logger
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// writeRateLimiter throttles write routes per client IP. rate uses the "<limit>-<period>"
// form, for example "30-M".
func writeRateLimiter(rate string) (gin.HandlerFunc, error) {
	if rate == "" {
		rate = defaultWriteRate
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid write rate %q: %w", rate, err)
	}
	store := memory.NewStore()
	return mgin.NewMiddleware(limiter.New(store, parsed),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": errTooManyRequests.Error()})
		}),
		mgin.WithKeyGetter(func(c *gin.Context) string {
			return c.ClientIP()
		}),
	), nil
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type loginRequestPayload struct {
	Account string `json:"account"`
}

type loginResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Account     string `json:"account"`
}

func (h *httpHandler) handleKeychainLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	account, err := users.NormalizeAccountName(request.Account)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_account", "message": err.Error()})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), account)
	if err != nil {
		if errors.Is(err, auth.ErrLoginRejected) {
			h.logger.Info("keychain login rejected", zap.String("account", account), zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.respondError(c, "login", err, nil)
		return
	}

	if _, err := h.accounts.RecordLogin(c.Request.Context(), claims.Account, claims.Method); err != nil {
		if errors.Is(err, users.ErrInvalidAccountName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_account", "message": err.Error()})
			return
		}
		h.logger.Error("failed to record login", zap.String("account", claims.Account), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	token, expiresAt, err := h.tokens.Issue(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	expiresIn := int64(time.Until(expiresAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), token, int(expiresIn), "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, loginResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		Account:     claims.Account,
	})
}

// identifyRequest attaches the session account when one is present. Anonymous requests
// pass through.
func (h *httpHandler) identifyRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err == nil {
		c.Set(accountContextKey, claims.Account)
	}
	c.Next()
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(accountContextKey, claims.Account)
	c.Next()
}

// controllerFor returns the session account's controller, or the guest controller for
// anonymous readers.
func (h *httpHandler) controllerFor(c *gin.Context) (*flow.Controller, error) {
	account := c.GetString(accountContextKey)
	if account == "" {
		return h.registry.Guest(), nil
	}
	return h.registry.For(account)
}
