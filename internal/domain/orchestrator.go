package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davidbz/modelarena/internal/observability"
)

// Event names emitted onto a session topic during a submission.
const (
	EventPromptReceived     = "prompt_received"
	EventModelTyping        = "model_typing"
	EventModelStream        = "model_stream"
	EventModelComplete      = "model_complete"
	EventComparisonComplete = "comparison_complete"
	EventPromptError        = "prompt_error"
)

// progressCeiling is the fixed heuristic denominator for stream progress.
// The true response length is unknown until completion, so progress is a
// cosmetic indicator only.
const progressCeiling = 1000

// ComparisonService fans one prompt out to N provider streams, relays their
// partial output to the session topic, and persists a single aggregate
// record once every stream has settled.
type ComparisonService struct {
	registry    AdapterRegistry
	events      SessionEvents
	comparisons ComparisonStore
	sessions    SessionStore
}

// NewComparisonService creates the orchestrator (DI constructor).
func NewComparisonService(
	registry AdapterRegistry,
	events SessionEvents,
	comparisons ComparisonStore,
	sessions SessionStore,
) *ComparisonService {
	return &ComparisonService{
		registry:    registry,
		events:      events,
		comparisons: comparisons,
		sessions:    sessions,
	}
}

// dispatch pairs one resolved model with its adapter for the fan-out phase.
type dispatch struct {
	id      ModelID
	adapter Adapter
	meta    ModelMetadata
}

// modelSlot is one goroutine's private result slot. Each model task writes
// its own slot exactly once, so the fan-out needs no lock; seq records
// settlement order for the final fold.
type modelSlot struct {
	key    string
	result ModelResult
	seq    int64
}

// Submit drives one full comparison: resolve models, upsert the session,
// stream all models concurrently, aggregate, persist once, announce.
//
// It rejects before any adapter work on an unknown model id, and after
// dispatch only on a failed persistence write. Every other failure is
// isolated into that model's result entry.
func (s *ComparisonService) Submit(ctx context.Context, req SubmitRequest) (*Comparison, error) {
	if req.SessionID == "" {
		return nil, errors.New("session id cannot be empty")
	}
	if req.Prompt == "" {
		return nil, errors.New("prompt cannot be empty")
	}

	models := req.Models
	if len(models) == 0 {
		models = DefaultModels()
	}

	// Fail fast: every id must resolve before any adapter is invoked.
	dispatches := make([]dispatch, 0, len(models))
	for _, id := range models {
		adapter, meta, err := s.registry.Resolve(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("model resolution failed: %w", err)
		}
		dispatches = append(dispatches, dispatch{id: id, adapter: adapter, meta: meta})
	}

	ctx = observability.WithSessionID(ctx, req.SessionID)
	logger := observability.FromContext(ctx)
	logger.Info("starting concurrent comparison",
		observability.Int("models", len(dispatches)),
		observability.String("user_id", req.UserID),
	)

	if err := s.ensureSession(ctx, req.SessionID, models); err != nil {
		// The session registry is advisory; a failed upsert must not
		// reject a submission that can still produce a record.
		logger.Warn("session upsert failed", observability.Error(err))
	}

	createdAt := time.Now().UTC()
	s.events.Publish(ctx, req.SessionID, EventPromptReceived, map[string]any{
		"sessionId": req.SessionID,
		"prompt":    req.Prompt,
	})

	slots := make([]modelSlot, len(dispatches))
	var settleSeq atomic.Int64
	var wg sync.WaitGroup
	for i, d := range dispatches {
		wg.Add(1)
		go func(i int, d dispatch) {
			defer wg.Done()
			slots[i] = s.runModel(ctx, req.SessionID, req.Prompt, d, &settleSeq)
		}(i, d)
	}
	// Wait-all semantics: every stream settles, success or isolated failure.
	wg.Wait()

	ordered := make([]modelSlot, len(slots))
	copy(ordered, slots)
	sort.Slice(ordered, func(a, b int) bool { return ordered[a].seq < ordered[b].seq })

	var results ResultSet
	for _, slot := range ordered {
		results.Set(slot.key, slot.result)
	}

	totalTokens, totalCost, avgMs := aggregateMetrics(slots)

	comparison := &Comparison{
		SessionID:         req.SessionID,
		Prompt:            req.Prompt,
		Results:           results,
		CreatedAt:         createdAt,
		CompletedAt:       time.Now().UTC(),
		UserID:            req.UserID,
		UserEmail:         req.UserEmail,
		TotalTokens:       totalTokens,
		TotalCostUSD:      totalCost,
		AvgResponseTimeMs: avgMs,
	}

	id, err := s.comparisons.Save(ctx, comparison)
	if err != nil {
		logger.Error("failed to persist comparison", observability.Error(err))
		return nil, &PersistenceError{Err: err}
	}
	comparison.ID = id

	s.events.Publish(ctx, req.SessionID, EventComparisonComplete, map[string]any{
		"record": comparison,
	})

	logger.Info("comparison completed",
		observability.String("comparison_id", id),
		observability.Int("total_tokens", totalTokens),
		observability.Float64("total_cost_usd", totalCost),
		observability.Float64("avg_response_time_ms", avgMs),
	)
	return comparison, nil
}

// runModel executes one model's full stream lifecycle: typing event, chunk
// relay, terminal settlement, completion event. It always returns a settled
// slot; failures become the slot's error entry.
func (s *ComparisonService) runModel(
	ctx context.Context,
	sessionID, prompt string,
	d dispatch,
	settleSeq *atomic.Int64,
) modelSlot {
	key := d.meta.ResultKey()
	modelCtx := observability.WithModel(observability.WithProvider(ctx, d.meta.Provider), string(d.id))
	logger := observability.FromContext(modelCtx)

	s.events.Publish(ctx, sessionID, EventModelTyping, map[string]any{
		"model":    key,
		"isTyping": true,
	})

	var streamed int // cumulative chunk length; touched by one goroutine only
	var settled ModelResult
	cb := StreamCallbacks{
		OnChunk: func(text string) {
			streamed += len(text)
			s.events.Publish(ctx, sessionID, EventModelStream, map[string]any{
				"model":    key,
				"chunk":    text,
				"progress": Progress{Current: streamed, Total: progressCeiling},
			})
		},
		OnComplete: func(result ModelResult) {
			settled = result
		},
		OnError: func(message string) {
			settled = ModelResult{Error: message}
		},
	}

	// The terminal callback delivers the settled value; the return value is
	// only inspected for contract violations, so the two cannot diverge.
	if _, err := d.adapter.Stream(modelCtx, d.id, prompt, cb); err != nil {
		// Contract violation by the adapter. Isolate it as this model's
		// failure; sibling streams keep running.
		logger.Error("adapter stream failed", observability.Error(err))
		settled = ModelResult{Error: err.Error()}
	}

	payload := map[string]any{
		"model":         key,
		"finalResponse": settled.Response,
		"timeTakenMs":   settled.TimeTakenMs,
	}
	if settled.Tokens != nil {
		payload["tokens"] = settled.Tokens
	}
	if settled.CostEstimateUSD > 0 {
		payload["costEstimateUsd"] = settled.CostEstimateUSD
	}
	if settled.Error != "" {
		payload["error"] = settled.Error
	}
	s.events.Publish(ctx, sessionID, EventModelComplete, payload)

	logger.Info("model settled",
		observability.Int64("time_taken_ms", settled.TimeTakenMs),
		observability.Bool("errored", settled.Error != ""),
	)

	return modelSlot{key: key, result: settled, seq: settleSeq.Add(1)}
}

// ensureSession creates the session on first sight and refreshes its
// activity timestamp and model selection otherwise.
func (s *ComparisonService) ensureSession(ctx context.Context, sessionID string, models []ModelID) error {
	existing, err := s.sessions.FindBySessionID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session lookup failed: %w", err)
	}

	session := &Session{
		SessionID:      sessionID,
		SelectedModels: models,
		IsActive:       true,
		LastActivity:   time.Now().UTC(),
	}
	if existing != nil {
		session.Name = existing.Name
	} else {
		session.Name = "Session " + time.Now().Format("2006-01-02 15:04:05")
	}

	if err := s.sessions.Upsert(ctx, session); err != nil {
		return fmt.Errorf("session upsert failed: %w", err)
	}
	return nil
}

// aggregateMetrics folds the settled slots into the record-level sums.
// Token and cost sums are purely additive; the response-time average
// excludes entries that never ran (TimeTakenMs == 0).
func aggregateMetrics(slots []modelSlot) (totalTokens int, totalCost float64, avgMs float64) {
	var elapsedSum int64
	var timed int
	for _, slot := range slots {
		if slot.result.Tokens != nil {
			totalTokens += slot.result.Tokens.TotalTokens
		}
		totalCost += slot.result.CostEstimateUSD
		if slot.result.TimeTakenMs > 0 {
			elapsedSum += slot.result.TimeTakenMs
			timed++
		}
	}
	if timed > 0 {
		avgMs = float64(elapsedSum) / float64(timed)
	}
	return totalTokens, totalCost, avgMs
}
