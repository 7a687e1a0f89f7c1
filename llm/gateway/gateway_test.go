package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sunflowermm/XRK-Yunzai-sub003/internal/metrics"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/factory"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/providers"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/retry"
)

// =============================================================================
// Gateway Tests
// =============================================================================

func fastPolicy(attempts int, kinds ...retry.Kind) retry.Policy {
	return retry.Policy{
		Enabled:     true,
		MaxAttempts: attempts,
		Delay:       time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2,
		RetryOn:     kinds,
	}
}

func compatConfig(url string) config.ProviderConfig {
	return config.ProviderConfig{Provider: "openai_compat", BaseURL: url, APIKey: "sk-test", MaxToolRounds: 1}
}

func newGateway(policy retry.Policy, opts ...Option) *Gateway {
	f := factory.NewDefault(providers.Deps{Logger: zap.NewNop()})
	return New(f, policy, append([]Option{WithLogger(zap.NewNop())}, opts...)...)
}

func counterSum(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metricLoop:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metricLoop
				}
			}
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

func TestChat_RateLimitedTwiceThenSuccess(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"finally"}}]}`))
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	g := newGateway(fastPolicy(3, retry.KindRateLimit),
		WithMetrics(metrics.NewCollector("gw", reg, zap.NewNop())))

	reply, ok, err := g.Chat(context.Background(), compatConfig(server.URL),
		[]llm.Message{llm.UserMessage("hi")}, llm.Overrides{})

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "finally", reply)
	assert.EqualValues(t, 3, hits.Load())
	assert.Equal(t, 2.0, counterSum(t, reg, "gw_llm_retries_total", map[string]string{"kind": "rate_limit"}))
}

func TestChat_RetryBoundReturnsSentinel(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	g := newGateway(fastPolicy(4, retry.Kind5xx),
		WithMetrics(metrics.NewCollector("gw", reg, zap.NewNop())))

	reply, ok, err := g.Chat(context.Background(), compatConfig(server.URL),
		[]llm.Message{llm.UserMessage("hi")}, llm.Overrides{})

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, reply)
	assert.EqualValues(t, 4, hits.Load())
	assert.Equal(t, 1.0, counterSum(t, reg, "gw_llm_calls_total",
		map[string]string{"mode": "chat", "outcome": OutcomeExhausted}))
}

func TestChat_AuthShortCircuit(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
			}))
			defer server.Close()

			reg := prometheus.NewRegistry()
			g := newGateway(fastPolicy(5, retry.KindAll), WithMetrics(metrics.NewCollector("gw", reg, zap.NewNop())))
			_, ok, err := g.Chat(context.Background(), compatConfig(server.URL),
				[]llm.Message{llm.UserMessage("hi")}, llm.Overrides{})

			require.NoError(t, err)
			assert.False(t, ok)
			assert.EqualValues(t, 1, hits.Load())
			assert.Equal(t, 1.0, counterSum(t, reg, "gw_llm_calls_total",
				map[string]string{"mode": "chat", "outcome": OutcomeFailed}))
			assert.Zero(t, counterSum(t, reg, "gw_llm_calls_total",
				map[string]string{"outcome": OutcomeExhausted}))
		})
	}
}

func TestChat_NonRetryableKindTriesOnce(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	g := newGateway(fastPolicy(3, retry.KindRateLimit))
	_, ok, err := g.Chat(context.Background(), compatConfig(server.URL),
		[]llm.Message{llm.UserMessage("hi")}, llm.Overrides{})

	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, 1, hits.Load())
}

func TestChat_ConfigErrorsAreReturned(t *testing.T) {
	g := newGateway(fastPolicy(3, retry.KindAll))

	t.Run("unknown provider", func(t *testing.T) {
		_, ok, err := g.Chat(context.Background(), config.ProviderConfig{Provider: "nope"}, nil, llm.Overrides{})
		assert.False(t, ok)
		assert.True(t, llm.IsConfigError(err))
	})

	t.Run("missing base url", func(t *testing.T) {
		_, ok, err := g.Chat(context.Background(), config.ProviderConfig{Provider: "openai_compat", APIKey: "k"}, nil, llm.Overrides{})
		assert.False(t, ok)
		var cfgErr *llm.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "openai_compat", cfgErr.Provider)
	})

	t.Run("stream surfaces config error", func(t *testing.T) {
		var deltas []string
		err := g.ChatStream(context.Background(), config.ProviderConfig{Provider: "openai_compat"}, nil,
			func(text string, _ *llm.DeltaMetadata) { deltas = append(deltas, text) }, llm.Overrides{})
		assert.True(t, llm.IsConfigError(err))
		assert.Empty(t, deltas)
	})
}

func TestChat_ContextCredentialPassesCheck(t *testing.T) {
	var auth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	g := newGateway(fastPolicy(1))
	ctx := llm.WithCredentialOverride(context.Background(), llm.CredentialOverride{APIKey: "ctx-key"})
	reply, ok, err := g.Chat(ctx, config.ProviderConfig{Provider: "openai_compat", BaseURL: server.URL, MaxToolRounds: 1},
		[]llm.Message{llm.UserMessage("hi")}, llm.Overrides{})

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, "Bearer ctx-key", auth.Load())
}

func TestChatStream_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	g := newGateway(fastPolicy(3, retry.KindAll))
	var deltas []string
	err := g.ChatStream(context.Background(), compatConfig(server.URL), []llm.Message{llm.UserMessage("hi")},
		func(text string, _ *llm.DeltaMetadata) { deltas = append(deltas, text) }, llm.Overrides{})

	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
}

func TestChatStream_ExhaustedEmitsErrorDelta(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer server.Close()

	g := newGateway(fastPolicy(2, retry.Kind5xx))
	var deltas []string
	err := g.ChatStream(context.Background(), compatConfig(server.URL), []llm.Message{llm.UserMessage("hi")},
		func(text string, _ *llm.DeltaMetadata) { deltas = append(deltas, text) }, llm.Overrides{})

	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
	assert.Equal(t, []string{"[ERROR] boom"}, deltas)
}

func TestChatStream_PartialOutputIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"stream broke\"}}\n\n")
	}))
	defer server.Close()

	g := newGateway(fastPolicy(3, retry.KindAll))
	var deltas []string
	err := g.ChatStream(context.Background(), compatConfig(server.URL), []llm.Message{llm.UserMessage("hi")},
		func(text string, _ *llm.DeltaMetadata) { deltas = append(deltas, text) }, llm.Overrides{})

	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())
	require.Len(t, deltas, 2)
	assert.Equal(t, "par", deltas[0])
	assert.Contains(t, deltas[1], ErrorPrefix)
	assert.Contains(t, deltas[1], "stream broke")
}

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Equal(t, "quota", Message(&retry.ExhaustedError{Attempts: 2, Err: &llm.Error{Message: "quota", HTTPStatus: 429}}))
	assert.Equal(t, "dial tcp: refused", Message(&retry.ExhaustedError{Attempts: 3, Err: errors.New("dial tcp: refused")}))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}

func TestPolicy_Normalized(t *testing.T) {
	g := newGateway(retry.Policy{Enabled: false, MaxAttempts: 9})
	assert.Equal(t, 1, g.Policy().MaxAttempts)
	assert.NotNil(t, g.Factory())
}
