package domain_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/modelarena/internal/domain"
)

// fakeAdapter settles each call with a scripted outcome, optionally after a
// delay or once released through a gate channel.
type fakeAdapter struct {
	provider string
	calls    atomic.Int64

	mu      sync.Mutex
	outcome func(model domain.ModelID, prompt string, cb domain.StreamCallbacks) domain.ModelResult
	gate    <-chan struct{}
}

func (f *fakeAdapter) ProviderName() string { return f.provider }

func (f *fakeAdapter) Stream(
	_ context.Context,
	model domain.ModelID,
	prompt string,
	cb domain.StreamCallbacks,
) (domain.ModelResult, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	outcome := f.outcome
	f.mu.Unlock()

	result := outcome(model, prompt, cb)
	return result, nil
}

func succeedWith(result domain.ModelResult) func(domain.ModelID, string, domain.StreamCallbacks) domain.ModelResult {
	return func(_ domain.ModelID, _ string, cb domain.StreamCallbacks) domain.ModelResult {
		if cb.OnChunk != nil {
			cb.OnChunk(result.Response)
		}
		if cb.OnComplete != nil {
			cb.OnComplete(result)
		}
		return result
	}
}

func failWith(message string) func(domain.ModelID, string, domain.StreamCallbacks) domain.ModelResult {
	return func(_ domain.ModelID, _ string, cb domain.StreamCallbacks) domain.ModelResult {
		if cb.OnError != nil {
			cb.OnError(message)
		}
		return domain.ModelResult{Error: message}
	}
}

// fakeRegistry resolves catalog ids against a fixed provider->adapter map.
type fakeRegistry struct {
	adapters map[string]domain.Adapter
}

func (r *fakeRegistry) Resolve(_ context.Context, id domain.ModelID) (domain.Adapter, domain.ModelMetadata, error) {
	meta, ok := domain.Lookup(id)
	if !ok {
		return nil, domain.ModelMetadata{}, fmt.Errorf("%w: %s", domain.ErrUnknownModel, id)
	}
	adapter, ok := r.adapters[meta.Provider]
	if !ok {
		return nil, domain.ModelMetadata{}, fmt.Errorf("%w: no adapter for provider %s", domain.ErrUnknownModel, meta.Provider)
	}
	return adapter, meta, nil
}

// recordingEvents captures published events in order.
type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	name    string
	payload map[string]any
}

func (e *recordingEvents) Publish(_ context.Context, _ string, event string, payload map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{name: event, payload: payload})
}

func (e *recordingEvents) count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev.name == name {
			n++
		}
	}
	return n
}

// memoryComparisonStore keeps saved records in memory; failNext forces the
// next Save to error.
type memoryComparisonStore struct {
	mu       sync.Mutex
	saved    []*domain.Comparison
	failNext bool
}

func (s *memoryComparisonStore) Save(_ context.Context, c *domain.Comparison) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return "", errors.New("disk full")
	}
	s.saved = append(s.saved, c)
	return fmt.Sprintf("cmp-%d", len(s.saved)), nil
}

func (s *memoryComparisonStore) FindBySession(context.Context, string, int) ([]*domain.Comparison, error) {
	return nil, nil
}
func (s *memoryComparisonStore) FindAll(context.Context, int) ([]*domain.Comparison, error) {
	return nil, nil
}
func (s *memoryComparisonStore) FindByUser(context.Context, string, int) ([]*domain.Comparison, error) {
	return nil, nil
}
func (s *memoryComparisonStore) FindByID(context.Context, string) (*domain.Comparison, error) {
	return nil, domain.ErrNotFound
}
func (s *memoryComparisonStore) DeleteByID(context.Context, string) error { return nil }
func (s *memoryComparisonStore) DeleteByOwner(context.Context, string) (int64, error) {
	return 0, nil
}

// memorySessionStore is an in-memory SessionStore; failing makes every call
// error.
type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	failing  bool
	upserts  int
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]*domain.Session)}
}

func (s *memorySessionStore) FindBySessionID(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errors.New("connection refused")
	}
	return s.sessions[sessionID], nil
}

func (s *memorySessionStore) Upsert(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("connection refused")
	}
	s.upserts++
	s.sessions[session.SessionID] = session
	return nil
}

type fixture struct {
	service   *domain.ComparisonService
	openai    *fakeAdapter
	anthropic *fakeAdapter
	xai       *fakeAdapter
	events    *recordingEvents
	store     *memoryComparisonStore
	sessions  *memorySessionStore
}

func newFixture() *fixture {
	f := &fixture{
		openai:    &fakeAdapter{provider: domain.ProviderOpenAI},
		anthropic: &fakeAdapter{provider: domain.ProviderAnthropic},
		xai:       &fakeAdapter{provider: domain.ProviderXAI},
		events:    &recordingEvents{},
		store:     &memoryComparisonStore{},
		sessions:  newMemorySessionStore(),
	}
	for _, a := range []*fakeAdapter{f.openai, f.anthropic, f.xai} {
		a.outcome = succeedWith(domain.ModelResult{Response: "ok", TimeTakenMs: 100})
	}
	f.service = domain.NewComparisonService(
		&fakeRegistry{adapters: map[string]domain.Adapter{
			domain.ProviderOpenAI:    f.openai,
			domain.ProviderAnthropic: f.anthropic,
			domain.ProviderXAI:       f.xai,
		}},
		f.events,
		f.store,
		f.sessions,
	)
	return f
}

func TestSubmit(t *testing.T) {
	t.Run("should produce one result entry per submitted model", func(t *testing.T) {
		f := newFixture()

		comparison, err := f.service.Submit(context.Background(), domain.SubmitRequest{
			SessionID: "s1",
			Prompt:    "hello",
			Models: []domain.ModelID{
				domain.ModelOpenAIGPT4o,
				domain.ModelClaude35Sonnet,
				domain.ModelGrok3Beta,
			},
		})

		require.NoError(t, err)
		require.Equal(t, 3, comparison.Results.Len())
		require.ElementsMatch(t, []string{
			"OpenAI-GPT-4o",
			"Anthropic-Claude 3.5 Sonnet",
			"xAI-Grok 3 Beta",
		}, comparison.Results.Keys())
	})

	t.Run("should use default models when none are given", func(t *testing.T) {
		f := newFixture()

		comparison, err := f.service.Submit(context.Background(), domain.SubmitRequest{
			SessionID: "s1",
			Prompt:    "hello",
		})

		require.NoError(t, err)
		require.Equal(t, len(domain.DefaultModels()), comparison.Results.Len())
		require.Equal(t, int64(1), f.openai.calls.Load())
		require.Equal(t, int64(1), f.anthropic.calls.Load())
		require.Equal(t, int64(1), f.xai.calls.Load())
	})

	t.Run("should resolve with error entries and zero sums when every model fails", func(t *testing.T) {
		f := newFixture()
		for _, a := range []*fakeAdapter{f.openai, f.anthropic, f.xai} {
			a.outcome = failWith("provider down")
		}

		comparison, err := f.service.Submit(context.Background(), domain.SubmitRequest{
			SessionID: "s1",
			Prompt:    "hello",
			Models: []domain.ModelID{
				domain.ModelOpenAIGPT4o,
				domain.ModelClaude4Opus,
				domain.ModelGrok2,
			},
		})

		require.NoError(t, err)
		require.Equal(t, 3, comparison.Results.Len())
		for _, key := range comparison.Results.Keys() {
			result, ok := comparison.Results.Get(key)
			require.True(t, ok)
			require.Equal(t, "provider down", result.Error)
		}
		require.Zero(t, comparison.TotalTokens)
		require.Zero(t, comparison.TotalCostUSD)
		require.Zero(t, comparison.AvgResponseTimeMs)
		require.Len(t, f.store.saved, 1)
	})

	t.Run("should exclude failed entries from the response time average", func(t *testing.T) {
		f := newFixture()
		f.openai.outcome = succeedWith(domain.ModelResult{Response: "ok", TimeTakenMs: 1000})
		f.anthropic.outcome = failWith("auth rejected")

		comparison, err := f.service.Submit(context.Background(), domain.SubmitRequest{
			SessionID: "s1",
			Prompt:    "hello",
			Models:    []domain.ModelID{domain.ModelOpenAIGPT4o, domain.ModelClaude35Sonnet},
		})

		require.NoError(t, err)
		require.InDelta(t, 1000.0, comparison.AvgResponseTimeMs, 0.001)
	})

	t.Run("should aggregate tokens and cost from successful entries only", func(t *testing.T) {
		f := newFixture()
		f.openai.outcome = succeedWith(domain.ModelResult{
			Response:        "recursion is when a function calls itself",
			Tokens:          &domain.TokenUsage{PromptTokens: 10, CompletionTokens: 40, TotalTokens: 50},
			TimeTakenMs:     800,
			CostEstimateUSD: 0.0005,
		})
		f.anthropic.outcome = failWith("overloaded")

		comparison, err := f.service.Submit(context.Background(), domain.SubmitRequest{
			SessionID: "s1",
			Prompt:    "Explain recursion",
			Models:    []domain.ModelID{domain.ModelOpenAIGPT4o, domain.ModelClaude35Sonnet},
		})

		require.NoError(t, err)
		require.Equal(t, 50, comparison.TotalTokens)
		require.InDelta(t, 0.0005, comparison.TotalCostUSD, 1e-9)
		require.InDelta(t, 800.0, comparison.AvgResponseTimeMs, 0.001)

		success, ok := comparison.Results.Get("OpenAI-GPT-4o")
		require.True(t, ok)
		require.Empty(t, success.Error)
		require.NotNil(t, success.Tokens)

		failed, ok := comparison.Results.Get("Anthropic-Claude 3.5 Sonnet")
		require.True(t, ok)
		require.Equal(t, "overloaded", failed.Error)
		require.Empty(t, failed.Response)
	})

	t.Run("should reject unknown models before any adapter or store work", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.Submit(context.Background(), domain.SubmitRequest{
			SessionID: "s1",
			Prompt:    "hello",
			Models:    []domain.ModelID{domain.ModelOpenAIGPT4o, "openai-gpt99"},
		})

		require.ErrorIs(t, err, domain.ErrUnknownModel)
		require.Zero(t, f.openai.calls.Load())
		require.Empty(t, f.store.saved)
		require.Zero(t, f.events.count(domain.EventPromptReceived))
	})

	t.Run("should reject empty session id and empty prompt", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.Submit(context.Background(), domain.SubmitRequest{Prompt: "hello"})
		require.Error(t, err)

		_, err = f.service.Submit(context.Background(), domain.SubmitRequest{SessionID: "s1"})
		require.Error(t, err)

		require.Empty(t, f.store.saved)
	})

	t.Run("should order result entries by completion, not submission", func(t *testing.T) {
		f := newFixture()
		openaiGate := make(chan struct{})
		f.openai.gate = openaiGate
		f.openai.outcome = func(_ domain.ModelID, _ string, cb domain.StreamCallbacks) domain.ModelResult {
			// Settles well after the sibling's settlement sequence was taken.
			time.Sleep(50 * time.Millisecond)
			result := domain.ModelResult{Response: "slow", TimeTakenMs: 60}
			cb.OnComplete(result)
			return result
		}
		f.anthropic.outcome = func(_ domain.ModelID, _ string, cb domain.StreamCallbacks) domain.ModelResult {
			result := domain.ModelResult{Response: "fast", TimeTakenMs: 5}
			cb.OnComplete(result)
			// The slow sibling is released only after this model settled.
			close(openaiGate)
			return result
		}

		comparison, err := f.service.Submit(context.Background(), domain.SubmitRequest{
			SessionID: "s1",
			Prompt:    "hello",
			Models:    []domain.ModelID{domain.ModelOpenAIGPT4o, domain.ModelClaude35Sonnet},
		})

		require.NoError(t, err)
		require.Equal(t, []string{"Anthropic-Claude 3.5 Sonnet", "OpenAI-GPT-4o"}, comparison.Results.Keys())
	})

	t.Run("should keep total cost independent of completion order", func(t *testing.T) {
		costs := map[string]float64{
			domain.ProviderOpenAI:    0.0011,
			domain.ProviderAnthropic: 0.0023,
			domain.ProviderXAI:       0.0007,
		}
		models := []domain.ModelID{
			domain.ModelOpenAIGPT4o,
			domain.ModelClaude35Sonnet,
			domain.ModelGrok3Beta,
		}

		for run := 0; run < 10; run++ {
			f := newFixture()
			for _, a := range []*fakeAdapter{f.openai, f.anthropic, f.xai} {
				cost := costs[a.provider]
				delay := time.Duration(rand.Intn(5)) * time.Millisecond
				a.outcome = func(_ domain.ModelID, _ string, cb domain.StreamCallbacks) domain.ModelResult {
					time.Sleep(delay)
					result := domain.ModelResult{Response: "ok", TimeTakenMs: 10, CostEstimateUSD: cost}
					cb.OnComplete(result)
					return result
				}
			}

			comparison, err := f.service.Submit(context.Background(), domain.SubmitRequest{
				SessionID: "s1",
				Prompt:    "hello",
				Models:    models,
			})

			require.NoError(t, err)
			require.InDelta(t, 0.0041, comparison.TotalCostUSD, 1e-9)
		}
	})

	t.Run("should publish the full event sequence for a submission", func(t *testing.T) {
		f := newFixture()

		_, err := f.service.Submit(context.Background(), domain.SubmitRequest{
			SessionID: "s1",
			Prompt:    "hello",
			Models:    []domain.ModelID{domain.ModelOpenAIGPT4o, domain.ModelClaude35Sonnet},
		})

		require.NoError(t, err)
		require.Equal(t, 1, f.events.count(domain.EventPromptReceived))
		require.Equal(t, 2, f.events.count(domain.EventModelTyping))
		require.Equal(t, 2, f.events.count(domain.EventModelStream))
		require.Equal(t, 2, f.events.count(domain.EventModelComplete))
		require.Equal(t, 1, f.events.count(domain.EventComparisonComplete))

		f.events.mu.Lock()
		first := f.events.events[0].name
		last := f.events.events[len(f.events.events)-1].name
		f.events.mu.Unlock()
		require.Equal(t, domain.EventPromptReceived, first)
		require.Equal(t, domain.EventComparisonComplete, last)
	})

	t.Run("should return PersistenceError and suppress completion event when save fails", func(t *testing.T) {
		f := newFixture()
		f.store.failNext = true

		_, err := f.service.Submit(context.Background(), domain.SubmitRequest{
			SessionID: "s1",
			Prompt:    "hello",
			Models:    []domain.ModelID{domain.ModelOpenAIGPT4o},
		})

		var perr *domain.PersistenceError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, int64(1), f.openai.calls.Load())
		require.Zero(t, f.events.count(domain.EventComparisonComplete))
	})

	t.Run("should upsert the session and preserve its name on later submissions", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()

		_, err := f.service.Submit(ctx, domain.SubmitRequest{
			SessionID: "s1",
			Prompt:    "first",
			Models:    []domain.ModelID{domain.ModelOpenAIGPT4o},
		})
		require.NoError(t, err)

		created := f.sessions.sessions["s1"]
		require.NotNil(t, created)
		require.NotEmpty(t, created.Name)
		require.True(t, created.IsActive)

		f.sessions.sessions["s1"].Name = "My experiments"

		_, err = f.service.Submit(ctx, domain.SubmitRequest{
			SessionID: "s1",
			Prompt:    "second",
			Models:    []domain.ModelID{domain.ModelClaude35Sonnet},
		})
		require.NoError(t, err)

		require.Equal(t, "My experiments", f.sessions.sessions["s1"].Name)
		require.Equal(t, []domain.ModelID{domain.ModelClaude35Sonnet}, f.sessions.sessions["s1"].SelectedModels)
		require.Equal(t, 2, f.sessions.upserts)
	})

	t.Run("should complete the comparison even when the session store fails", func(t *testing.T) {
		f := newFixture()
		f.sessions.failing = true

		comparison, err := f.service.Submit(context.Background(), domain.SubmitRequest{
			SessionID: "s1",
			Prompt:    "hello",
			Models:    []domain.ModelID{domain.ModelOpenAIGPT4o},
		})

		require.NoError(t, err)
		require.Equal(t, 1, comparison.Results.Len())
		require.Len(t, f.store.saved, 1)
	})

	t.Run("should settle from the terminal callback, not the return value", func(t *testing.T) {
		f := newFixture()
		f.openai.outcome = func(_ domain.ModelID, _ string, cb domain.StreamCallbacks) domain.ModelResult {
			settled := domain.ModelResult{Response: "callback value", TimeTakenMs: 40}
			cb.OnComplete(settled)
			return domain.ModelResult{Response: "stale return value"}
		}

		comparison, err := f.service.Submit(context.Background(), domain.SubmitRequest{
			SessionID: "s1",
			Prompt:    "hello",
			Models:    []domain.ModelID{domain.ModelOpenAIGPT4o},
		})

		require.NoError(t, err)
		result, ok := comparison.Results.Get("OpenAI-GPT-4o")
		require.True(t, ok)
		require.Equal(t, "callback value", result.Response)
		require.Equal(t, int64(40), result.TimeTakenMs)
	})

	t.Run("should isolate an adapter contract violation as that model's error", func(t *testing.T) {
		f := newFixture()
		f.openai.outcome = succeedWith(domain.ModelResult{Response: "ok", TimeTakenMs: 50})
		broken := &brokenAdapter{provider: domain.ProviderAnthropic}
		f.service = domain.NewComparisonService(
			&fakeRegistry{adapters: map[string]domain.Adapter{
				domain.ProviderOpenAI:    f.openai,
				domain.ProviderAnthropic: broken,
			}},
			f.events,
			f.store,
			f.sessions,
		)

		comparison, err := f.service.Submit(context.Background(), domain.SubmitRequest{
			SessionID: "s1",
			Prompt:    "hello",
			Models:    []domain.ModelID{domain.ModelOpenAIGPT4o, domain.ModelClaude35Sonnet},
		})

		require.NoError(t, err)
		require.Equal(t, 2, comparison.Results.Len())
		result, ok := comparison.Results.Get("Anthropic-Claude 3.5 Sonnet")
		require.True(t, ok)
		require.Contains(t, result.Error, "wired incorrectly")
	})
}

// brokenAdapter returns a contract-violation error instead of settling.
type brokenAdapter struct {
	provider string
}

func (b *brokenAdapter) ProviderName() string { return b.provider }

func (b *brokenAdapter) Stream(
	context.Context, domain.ModelID, string, domain.StreamCallbacks,
) (domain.ModelResult, error) {
	return domain.ModelResult{}, errors.New("adapter wired incorrectly")
}
