// Package history exposes comparison browsing over the persisted records.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/davidbz/modelarena/internal/domain"
	"github.com/davidbz/modelarena/internal/observability"
)

const (
	sessionHistoryLimit = 50
	userHistoryLimit    = 50
	allHistoryLimit     = 100
)

// Item is one history entry shaped for listing: the full record plus a few
// derived fields the list view needs.
type Item struct {
	ID                string           `json:"id"`
	SessionID         string           `json:"sessionId"`
	Prompt            string           `json:"prompt"`
	Results           domain.ResultSet `json:"results"`
	CreatedAt         time.Time        `json:"createdAt"`
	CompletedAt       time.Time        `json:"completedAt"`
	ModelCount        int              `json:"modelCount"`
	Models            []string         `json:"models"`
	TotalTokens       int              `json:"totalTokens"`
	TotalCostUSD      float64          `json:"totalCost"`
	AvgResponseTimeMs float64          `json:"averageResponseTime"`
}

// Service reads and prunes comparison history.
type Service struct {
	store domain.ComparisonStore
}

// NewService creates the history service (DI constructor).
func NewService(store domain.ComparisonStore) *Service {
	return &Service{store: store}
}

// SessionHistory lists one session's comparisons, newest first.
func (s *Service) SessionHistory(ctx context.Context, sessionID string) ([]Item, error) {
	comparisons, err := s.store.FindBySession(ctx, sessionID, sessionHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}
	return toItems(comparisons), nil
}

// UserHistory lists one owner's comparisons, newest first.
func (s *Service) UserHistory(ctx context.Context, userID string) ([]Item, error) {
	comparisons, err := s.store.FindByUser(ctx, userID, userHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load user history: %w", err)
	}
	return toItems(comparisons), nil
}

// AllHistory lists comparisons across all sessions, newest first.
func (s *Service) AllHistory(ctx context.Context) ([]Item, error) {
	comparisons, err := s.store.FindAll(ctx, allHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return toItems(comparisons), nil
}

// Item returns one history entry, enforcing ownership: records owned by a
// different user surface as ErrForbidden.
func (s *Service) Item(ctx context.Context, id, userID string) (*Item, error) {
	comparison, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comparison.UserID != "" && comparison.UserID != userID {
		return nil, fmt.Errorf("history item %s: %w", id, domain.ErrForbidden)
	}

	item := toItem(comparison)
	return &item, nil
}

// Delete removes one history entry after an ownership check.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	comparison, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if comparison.UserID != "" && comparison.UserID != userID {
		return fmt.Errorf("history item %s: %w", id, domain.ErrForbidden)
	}

	if err := s.store.DeleteByID(ctx, id); err != nil {
		return err
	}

	observability.FromContext(ctx).Info("history item deleted",
		observability.String("comparison_id", id),
		observability.String("user_id", userID),
	)
	return nil
}

// DeleteAll removes every history entry owned by userID.
func (s *Service) DeleteAll(ctx context.Context, userID string) (int64, error) {
	count, err := s.store.DeleteByOwner(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user history: %w", err)
	}

	observability.FromContext(ctx).Info("user history cleared",
		observability.String("user_id", userID),
		observability.Int64("deleted", count),
	)
	return count, nil
}

func toItems(comparisons []*domain.Comparison) []Item {
	items := make([]Item, 0, len(comparisons))
	for _, c := range comparisons {
		items = append(items, toItem(c))
	}
	return items
}

func toItem(c *domain.Comparison) Item {
	return Item{
		ID:                c.ID,
		SessionID:         c.SessionID,
		Prompt:            c.Prompt,
		Results:           c.Results,
		CreatedAt:         c.CreatedAt,
		CompletedAt:       c.CompletedAt,
		ModelCount:        c.Results.Len(),
		Models:            c.Results.Keys(),
		TotalTokens:       c.TotalTokens,
		TotalCostUSD:      c.TotalCostUSD,
		AvgResponseTimeMs: c.AvgResponseTimeMs,
	}
}
