package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentic-project/agentic/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// disableBackoff zeroes the retry sleep schedule for the duration of a test.
func disableBackoff(t *testing.T) {
	t.Helper()
	saved := backoffSchedule
	backoffSchedule = []time.Duration{0, 0, 0, 0}
	t.Cleanup(func() { backoffSchedule = saved })
}

// completionResponse is a minimal OpenAI-compatible chat completion body.
func completionResponse(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":     "cmpl-test",
		"object": "chat.completion",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	})
	return body
}

// newTestServer returns an httptest server that responds to chat completions
// with the given handler and to /models with an empty list.
func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	})
	mux.HandleFunc("/v1/chat/completions", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func endpointConfig(name, baseURL string, priority int) config.EndpointConfig {
	return config.EndpointConfig{
		Name:           name,
		URL:            baseURL + "/v1",
		TimeoutSeconds: 5,
		MaxRetries:     3,
		Priority:       priority,
	}
}

func newTestClient(t *testing.T, mode config.EndpointMode, endpoints ...config.EndpointConfig) *Client {
	t.Helper()
	client, err := NewClient(&config.LLMConfig{
		Mode:      mode,
		ModelName: "test-model",
		Endpoints: endpoints,
		MaxTokens: 128,
	})
	require.NoError(t, err)
	return client
}

func TestChatCompletion_Success(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(completionResponse("hello there"))
	})

	client := newTestClient(t, config.ModeActiveActive, endpointConfig("only", srv.URL, 1))

	out, err := client.ChatCompletion(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	health := client.Health()
	require.Len(t, health, 1)
	assert.Equal(t, StatusHealthy, health[0].Status)
	assert.Positive(t, health[0].AvgResponseMs)
}

func TestChatCompletion_NoMessages(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request should be sent")
	})
	client := newTestClient(t, config.ModeActiveActive, endpointConfig("only", srv.URL, 1))

	_, err := client.ChatCompletion(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestChatCompletion_FailoverToSecondary(t *testing.T) {
	disableBackoff(t)

	var primaryCalls atomic.Int32
	primary := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		primaryCalls.Add(1)
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	})
	secondary := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(completionResponse("from secondary"))
	})

	client := newTestClient(t, config.ModePrimarySecondary,
		endpointConfig("primary", primary.URL, 1),
		endpointConfig("secondary", secondary.URL, 2))

	out, err := client.ChatCompletion(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "from secondary", out)
	assert.Equal(t, int32(1), primaryCalls.Load())

	// Primary degraded after its failure; secondary stays healthy.
	for _, h := range client.Health() {
		switch h.Name {
		case "primary":
			assert.Equal(t, StatusDegraded, h.Status)
		case "secondary":
			assert.Equal(t, StatusHealthy, h.Status)
		}
	}
}

func TestChatCompletion_SingleEndpointCyclesRetries(t *testing.T) {
	disableBackoff(t)

	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(completionResponse("third time lucky"))
	})

	client := newTestClient(t, config.ModeActiveActive, endpointConfig("only", srv.URL, 1))

	out, err := client.ChatCompletion(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestChatCompletion_AllEndpointsDown(t *testing.T) {
	disableBackoff(t)

	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	client := newTestClient(t, config.ModeActiveActive, endpointConfig("only", srv.URL, 1))

	_, err := client.ChatCompletion(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	health := client.Health()
	require.Len(t, health, 1)
	assert.Equal(t, StatusUnhealthy, health[0].Status)
	assert.GreaterOrEqual(t, health[0].ConsecutiveFailures, unhealthyAfter)
}

func TestChatCompletion_NonTransientNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
	})
	client := newTestClient(t, config.ModeActiveActive, endpointConfig("only", srv.URL, 1))

	_, err := client.ChatCompletion(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEndpointHealthTransitions(t *testing.T) {
	ep := &endpoint{status: StatusHealthy}

	assert.Equal(t, StatusHealthy, ep.recordFailure())
	assert.Equal(t, StatusDegraded, ep.snapshot().Status)

	// Stays degraded until the third consecutive failure.
	assert.Equal(t, HealthStatus(""), ep.recordFailure())
	assert.Equal(t, StatusDegraded, ep.recordFailure())
	assert.Equal(t, StatusUnhealthy, ep.snapshot().Status)

	// Any state recovers on success.
	assert.Equal(t, StatusUnhealthy, ep.recordSuccess(100*time.Millisecond))
	snap := ep.snapshot()
	assert.Equal(t, StatusHealthy, snap.Status)
	assert.Zero(t, snap.ConsecutiveFailures)
}

func TestProbeUpdatesHealth(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {})
	client := newTestClient(t, config.ModeActiveActive, endpointConfig("only", srv.URL, 1))

	// Force the endpoint unhealthy, then probe it back to healthy.
	ep := client.endpoints[0]
	ep.recordFailure()
	ep.recordFailure()
	ep.recordFailure()
	require.Equal(t, StatusUnhealthy, ep.snapshot().Status)

	client.probe(context.Background(), ep)
	assert.Equal(t, StatusHealthy, ep.snapshot().Status)
}

func TestChatCompletionStream(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{"Hel", "lo"}
		for _, c := range chunks {
			delta, _ := json.Marshal(map[string]any{
				"id":     "cmpl-test",
				"object": "chat.completion.chunk",
				"choices": []map[string]any{
					{"index": 0, "delta": map[string]string{"content": c}},
				},
			})
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(delta)
			_, _ = w.Write([]byte("\n\n"))
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	})

	client := newTestClient(t, config.ModeActiveActive, endpointConfig("only", srv.URL, 1))

	chunks, err := client.ChatCompletionStream(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	var got string
	for chunk := range chunks {
		require.NoError(t, chunk.Err)
		got += chunk.Content
	}
	assert.Equal(t, "Hello", got)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))

	long := make([]byte, previewLen+10)
	for i := range long {
		long[i] = 'a'
	}
	got := preview(string(long))
	assert.Len(t, got, previewLen+3)
	assert.Equal(t, "...", got[previewLen:])
}
