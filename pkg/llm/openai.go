package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentic-project/agentic/pkg/config"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// maxAttempts is the total request budget per call: one primary attempt
// plus fallbacks, cycling through endpoints when fewer exist.
const maxAttempts = 4

// backoffSchedule is the sleep before each retry attempt.
var backoffSchedule = []time.Duration{
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// placeholderAPIKey is sent when no API key is configured. Local
// OpenAI-compatible servers ignore the Authorization header but some
// client stacks require a non-empty value.
const placeholderAPIKey = "not-needed"

// previewLen bounds logged message/response previews.
const previewLen = 500

// Client is the dual-endpoint LLM client. Safe for concurrent use.
type Client struct {
	cfg       *config.LLMConfig
	endpoints []*endpoint
	rr        atomic.Uint64
	wg        sync.WaitGroup
}

// compile-time interface check
var _ Chat = (*Client)(nil)

// NewClient builds a client from the configured endpoint pool.
func NewClient(cfg *config.LLMConfig) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("llm: no endpoints configured")
	}

	endpoints := make([]*endpoint, 0, len(cfg.Endpoints))
	for _, epCfg := range cfg.Endpoints {
		apiKey := ""
		if epCfg.APIKeyEnv != "" {
			apiKey = os.Getenv(epCfg.APIKeyEnv)
		}
		if apiKey == "" {
			apiKey = placeholderAPIKey
		}

		clientCfg := openai.DefaultConfig(apiKey)
		clientCfg.BaseURL = epCfg.URL
		clientCfg.HTTPClient = &http.Client{Timeout: epCfg.Timeout()}

		endpoints = append(endpoints, &endpoint{
			cfg:    epCfg,
			api:    openai.NewClientWithConfig(clientCfg),
			status: StatusHealthy,
		})
	}

	slog.Info("LLM client configured",
		"endpoints", len(endpoints),
		"mode", cfg.Mode,
		"model", cfg.ModelName)

	return &Client{cfg: cfg, endpoints: endpoints}, nil
}

// Close waits for the health check loop to stop. Callers cancel the
// context passed to StartHealthChecks first.
func (c *Client) Close() error {
	c.wg.Wait()
	return nil
}

// Health returns a snapshot of every endpoint's health.
func (c *Client) Health() []EndpointHealth {
	out := make([]EndpointHealth, len(c.endpoints))
	for i, ep := range c.endpoints {
		out[i] = ep.snapshot()
	}
	return out
}

// ChatCompletion sends the conversation and returns the full response text.
// Transient failures rotate through the endpoint pool with exponential
// backoff; ErrUnavailable is returned only when every endpoint is unhealthy
// and the retry budget is spent.
func (c *Client) ChatCompletion(ctx context.Context, req Request) (string, error) {
	requestID, err := c.validateAndLog(req)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt-1); err != nil {
				return "", err
			}
		}

		ep := c.pickEndpoint(attempt)
		start := time.Now()
		resp, err := ep.api.CreateChatCompletion(ctx, c.buildRequest(req, false))
		if err != nil {
			lastErr = err
			if !isTransient(err) {
				return "", fmt.Errorf("llm request %s failed on %s: %w", requestID, ep.cfg.Name, err)
			}
			c.noteFailure(ep, requestID, err)
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("%w: empty choices", ErrInvalidResponse)
			c.noteFailure(ep, requestID, lastErr)
			continue
		}

		ep.recordSuccess(time.Since(start))
		content := resp.Choices[0].Message.Content
		slog.Info("LLM response",
			"request_id", requestID,
			"endpoint", ep.cfg.Name,
			"latency_ms", time.Since(start).Milliseconds(),
			"preview", preview(content))
		return content, nil
	}

	return "", c.exhausted(requestID, lastErr)
}

// ChatCompletionStream opens a streaming completion. Retry/failover covers
// establishing the stream; mid-stream errors are delivered as the final
// chunk. The returned channel is closed when the stream ends.
func (c *Client) ChatCompletionStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	requestID, err := c.validateAndLog(req)
	if err != nil {
		return nil, err
	}

	var stream *openai.ChatCompletionStream
	var ep *endpoint
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt-1); err != nil {
				return nil, err
			}
		}

		ep = c.pickEndpoint(attempt)
		stream, lastErr = ep.api.CreateChatCompletionStream(ctx, c.buildRequest(req, true))
		if lastErr == nil {
			break
		}
		if !isTransient(lastErr) {
			return nil, fmt.Errorf("llm stream %s failed on %s: %w", requestID, ep.cfg.Name, lastErr)
		}
		c.noteFailure(ep, requestID, lastErr)
		stream = nil
	}
	if stream == nil {
		return nil, c.exhausted(requestID, lastErr)
	}

	chunks := make(chan StreamChunk, 64)
	start := time.Now()

	go func() {
		defer close(chunks)
		defer func() { _ = stream.Close() }()

		var total strings.Builder
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				ep.recordSuccess(time.Since(start))
				slog.Info("LLM stream complete",
					"request_id", requestID,
					"endpoint", ep.cfg.Name,
					"preview", preview(total.String()))
				return
			}
			if err != nil {
				c.noteFailure(ep, requestID, err)
				select {
				case chunks <- StreamChunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			total.WriteString(delta)
			select {
			case chunks <- StreamChunk{Content: delta}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return chunks, nil
}

// validateAndLog fails fast on an empty message list and logs the request
// at INFO with role/content previews. Returns the request ID.
func (c *Client) validateAndLog(req Request) (string, error) {
	if len(req.Messages) == 0 {
		slog.Warn("LLM request rejected: no messages")
		return "", ErrNoMessages
	}

	requestID := uuid.NewString()[:8]
	attrs := make([]any, 0, 2+len(req.Messages)*2)
	attrs = append(attrs, "request_id", requestID)
	for i, msg := range req.Messages {
		attrs = append(attrs,
			fmt.Sprintf("msg%d", i),
			msg.Role+": "+preview(msg.Content))
	}
	slog.Info("LLM request", attrs...)
	return requestID, nil
}

// buildRequest maps a Request onto the OpenAI wire format, applying
// configured defaults for unset tuning fields.
func (c *Client) buildRequest(req Request, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	out := openai.ChatCompletionRequest{
		Model:       c.cfg.ModelName,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        c.cfg.TopP,
		Stream:      stream,
	}

	if req.Schema != nil {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Schema: req.Schema.Schema,
				Strict: true,
			},
		}
	}

	return out
}

// pickEndpoint returns the current best endpoint: lowest health rank,
// then priority (primary-secondary) or average latency (active-active),
// with a rotating round-robin tie-break. Failed attempts degrade an
// endpoint's rank, so re-picking after a failure lands on the next best.
func (c *Client) pickEndpoint(int) *endpoint {
	n := len(c.endpoints)
	rr := int(c.rr.Add(1))

	type candidate struct {
		ep   *endpoint
		rank int
		tie  int
	}
	candidates := make([]candidate, n)
	for i, ep := range c.endpoints {
		candidates[i] = candidate{ep: ep, rank: ep.statusRank(), tie: (i + rr) % n}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if c.cfg.Mode == config.ModePrimarySecondary {
			return a.ep.cfg.Priority < b.ep.cfg.Priority
		}
		la, lb := a.ep.avgLatencyMs(), b.ep.avgLatencyMs()
		if la != lb {
			return la < lb
		}
		return a.tie < b.tie
	})

	return candidates[0].ep
}

// noteFailure records a failure on the endpoint and logs any resulting
// health transition exactly once.
func (c *Client) noteFailure(ep *endpoint, requestID string, err error) {
	if prev := ep.recordFailure(); prev != "" {
		slog.Warn("LLM endpoint health changed",
			"request_id", requestID,
			"endpoint", ep.cfg.Name,
			"from", prev,
			"to", ep.snapshot().Status,
			"error", err)
	}
}

// exhausted builds the terminal error after the retry budget is spent.
func (c *Client) exhausted(requestID string, lastErr error) error {
	allUnhealthy := true
	for _, ep := range c.endpoints {
		if ep.snapshot().Status != StatusUnhealthy {
			allUnhealthy = false
			break
		}
	}
	if allUnhealthy {
		return fmt.Errorf("%w (request %s): %v; is the LLM server running?",
			ErrUnavailable, requestID, lastErr)
	}
	return fmt.Errorf("llm request %s exhausted retries: %w", requestID, lastErr)
}

// sleepBackoff waits the scheduled backoff for the given retry index,
// honoring cancellation.
func sleepBackoff(ctx context.Context, retry int) error {
	if retry >= len(backoffSchedule) {
		retry = len(backoffSchedule) - 1
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoffSchedule[retry]):
		return nil
	}
}

// isTransient reports whether an error warrants failover: network errors,
// timeouts, rate limiting, and 5xx server responses.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= 500
	}
	// go-openai wraps unexpected status codes in RequestError.
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests ||
			reqErr.HTTPStatusCode >= 500
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "EOF")
}

// preview truncates content for logging. Absent content logs as empty.
func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen] + "..."
}
