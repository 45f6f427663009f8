package domain

import "time"

// TokenUsage tracks token consumption for one model call. When a provider
// reports no usage data the fields carry the documented character-count
// estimate instead.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelResult is the settled outcome of one adapter invocation.
// Error set means Response is empty or a clearly labeled synthetic
// substitution. TimeTakenMs is never negative, error or not.
type ModelResult struct {
	Response        string      `json:"response"`
	Tokens          *TokenUsage `json:"tokens,omitempty"`
	TimeTakenMs     int64       `json:"timeTakenMs"`
	CostEstimateUSD float64     `json:"costEstimateUsd,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// Comparison captures one prompt's concurrent results across N models.
// It is constructed in memory while results accumulate and written exactly
// once, after every model call has settled.
type Comparison struct {
	ID                string    `json:"id,omitempty"`
	SessionID         string    `json:"sessionId"`
	Prompt            string    `json:"prompt"`
	Results           ResultSet `json:"results"`
	CreatedAt         time.Time `json:"createdAt"`
	CompletedAt       time.Time `json:"completedAt"`
	UserID            string    `json:"userId,omitempty"`
	UserEmail         string    `json:"userEmail,omitempty"`
	TotalTokens       int       `json:"totalTokens"`
	TotalCostUSD      float64   `json:"totalCost"`
	AvgResponseTimeMs float64   `json:"averageResponseTime"`
}

// Session groups successive comparisons sharing a client-chosen identifier
// and a default model set.
type Session struct {
	SessionID      string    `json:"sessionId"`
	SelectedModels []ModelID `json:"selectedModels"`
	Name           string    `json:"name,omitempty"`
	IsActive       bool      `json:"isActive"`
	LastActivity   time.Time `json:"lastActivity"`
}

// SubmitRequest carries one prompt submission. Models may be empty, in which
// case the default set applies. UserID and UserEmail are optional; anonymous
// comparisons are allowed.
type SubmitRequest struct {
	SessionID string    `json:"sessionId"`
	Prompt    string    `json:"prompt"`
	Models    []ModelID `json:"models,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	UserEmail string    `json:"userEmail,omitempty"`
}

// Progress is a cosmetic stream progress indicator. Total is a fixed
// heuristic ceiling, not the real response length.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}
