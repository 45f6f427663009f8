package domain

import "context"

// StreamCallbacks receives incremental output from exactly one adapter
// invocation. OnChunk fires zero or more times, strictly before the terminal
// callback; exactly one of OnComplete or OnError fires per invocation.
type StreamCallbacks struct {
	// OnChunk receives one incremental text fragment in upstream order.
	OnChunk func(text string)

	// OnComplete receives the accumulated result. Mutually exclusive with OnError.
	OnComplete func(result ModelResult)

	// OnError receives a terminal failure message. Mutually exclusive with OnComplete.
	OnError func(message string)
}

// Adapter translates one provider's streaming API into the uniform callback
// contract. Adapters are stateless with respect to conversation history;
// every call is single-turn.
type Adapter interface {
	// ProviderName returns the provider identifier this adapter serves.
	ProviderName() string

	// Stream drives one upstream streaming call to completion. Per-call
	// upstream failures (missing credentials, auth rejection, transport
	// errors) are reported through the callbacks and the returned
	// ModelResult, never through the error return. A non-nil error means
	// the adapter was invoked outside its contract, e.g. with a model id
	// belonging to a different provider.
	Stream(ctx context.Context, model ModelID, prompt string, cb StreamCallbacks) (ModelResult, error)
}

// AdapterRegistry resolves model ids to adapters and their metadata.
type AdapterRegistry interface {
	// Resolve returns the adapter and metadata for a model id, or
	// ErrUnknownModel before any adapter is touched.
	Resolve(ctx context.Context, id ModelID) (Adapter, ModelMetadata, error)
}

// SessionEvents multiplexes named events to every subscriber currently
// joined to a session topic. Delivery is best-effort and at-most-once:
// no replay for late joiners, and a dropped subscriber never cancels the
// work that produced the event.
type SessionEvents interface {
	Publish(ctx context.Context, sessionID, event string, payload map[string]any)
}

// ComparisonStore persists comparison records.
type ComparisonStore interface {
	// Save writes one complete record and returns its id.
	Save(ctx context.Context, c *Comparison) (string, error)

	// FindBySession returns a session's records, newest first.
	FindBySession(ctx context.Context, sessionID string, limit int) ([]*Comparison, error)

	// FindAll returns records across all sessions, newest first.
	FindAll(ctx context.Context, limit int) ([]*Comparison, error)

	// FindByUser returns one owner's records, newest first.
	FindByUser(ctx context.Context, userID string, limit int) ([]*Comparison, error)

	// FindByID returns one record or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Comparison, error)

	// DeleteByID removes one record or returns ErrNotFound.
	DeleteByID(ctx context.Context, id string) error

	// DeleteByOwner removes every record owned by userID and reports how many.
	DeleteByOwner(ctx context.Context, userID string) (int64, error)
}

// SessionStore tracks which models were last used per session id.
// Implementations must tolerate concurrent upserts on the same session.
type SessionStore interface {
	// FindBySessionID returns the session record, or nil when unseen.
	FindBySessionID(ctx context.Context, sessionID string) (*Session, error)

	// Upsert creates or refreshes a session record.
	Upsert(ctx context.Context, s *Session) error
}
