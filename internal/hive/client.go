package hive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/metrics"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"gopkg.in/h2non/gentleman.v2"
)

const (
	// DefaultAPIURL is the public Hive API node.
	DefaultAPIURL = "https://api.hive.blog"

	methodDiscussionsByTrending = "condenser_api.get_discussions_by_trending"
	opDiscussionsByTrending     = "discussions_by_trending"
	defaultRequestTimeout       = 10 * time.Second
	maxDiscussionLimit          = 100
)

var noOpLogger = zap.NewNop()

// ClientConfig describes how the chain client reaches the remote read API.
type ClientConfig struct {
	Endpoint       string
	RequestTimeout time.Duration
	CategoryTags   []string
	Cache          ResponseCache
	Logger         *zap.Logger
	Clock          func() time.Time
}

// Client queries the Hive read API and normalizes its responses.
type Client struct {
	rpc          *gentleman.Client
	endpoint     string
	timeout      time.Duration
	categoryTags []string
	cache        ResponseCache
	logger       *zap.Logger
	clock        func() time.Time
}

// NewClient constructs a chain client.
func NewClient(cfg ClientConfig) *Client {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultAPIURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Client{
		rpc:          gentleman.New().URL(endpoint),
		endpoint:     endpoint,
		timeout:      timeout,
		categoryTags: append([]string(nil), cfg.CategoryTags...),
		cache:        cfg.Cache,
		logger:       logger,
		clock:        clock,
	}
}

// FetchTrendingProposals returns trending posts for tag, preferring posts tagged with a
// recognized category and falling back to everything returned.
func (c *Client) FetchTrendingProposals(ctx context.Context, tag string, limit int) ([]PostRecord, error) {
	records, err := c.FetchDiscussions(ctx, tag, limit)
	if err != nil {
		return nil, err
	}
	if len(c.categoryTags) == 0 {
		return records, nil
	}
	return FilterByTags(records, c.categoryTags, limit), nil
}

// FetchDiscussions returns the trending discussions for tag without category filtering.
func (c *Client) FetchDiscussions(ctx context.Context, tag string, limit int) ([]PostRecord, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, fmt.Errorf("%w: tag is required", ErrInvalidQuery)
	}
	if limit <= 0 || limit > maxDiscussionLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidQuery, maxDiscussionLimit)
	}

	cacheKey := fmt.Sprintf("trending:%s:%d", tag, limit)
	if c.cache != nil {
		if cached, err := c.cache.Get(cacheKey); err == nil {
			return NormalizePosts(cached, c.clock()), nil
		}
	}

	result, err := c.call(ctx, opDiscussionsByTrending, methodDiscussionsByTrending, []any{
		map[string]any{"tag": tag, "limit": limit},
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(cacheKey, result); err != nil {
			c.logger.Debug("discussion cache store failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return NormalizePosts(result, c.clock()), nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

// call performs one JSON-RPC request and returns the raw "result" member.
func (c *Client) call(ctx context.Context, operation, method string, params any) ([]byte, error) {
	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request := c.rpc.Request()
	request.Method("POST")
	request.JSON(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: c.clock().UnixNano()})
	request.Context.SetCancelContext(requestCtx)

	response, err := request.Send()
	if err != nil {
		if ctxErr := requestCtx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		c.logger.Warn("hive request failed",
			zap.String("operation", operation),
			zap.String("endpoint", c.endpoint),
			zap.Error(err))
		metrics.ChainRead(operation, metrics.OutcomeFailed)
		return nil, &NetworkError{Operation: operation, Err: err}
	}

	body := response.Bytes()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		message := strings.TrimSpace(gjson.GetBytes(body, "error.message").String())
		if message == "" {
			message = strings.TrimSpace(string(body))
		}
		metrics.ChainRead(operation, metrics.OutcomeRejected)
		return nil, &UpstreamError{Operation: operation, StatusCode: response.StatusCode, Message: message}
	}

	if rpcErr := gjson.GetBytes(body, "error"); rpcErr.Exists() && rpcErr.Type != gjson.Null {
		message := rpcErr.Get("message").String()
		if message == "" {
			message = rpcErr.Raw
		}
		metrics.ChainRead(operation, metrics.OutcomeRejected)
		return nil, &UpstreamError{Operation: operation, Code: rpcErr.Get("code").Int(), Message: message}
	}

	metrics.ChainRead(operation, metrics.OutcomeSuccess)
	result := gjson.GetBytes(body, "result")
	if !result.Exists() {
		c.logger.Debug("hive response without result", zap.String("operation", operation))
		return []byte("null"), nil
	}
	return []byte(result.Raw), nil
}
