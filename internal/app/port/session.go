package port

import (
	"context"
	"time"

	"wallet_session/internal/domain/entity"
)

// SessionStore is the single source of truth for the wallet connection state.
// Operations never fail visibly: failures are encoded in the session's Error field.
type SessionStore interface {
	// Connect requests account access and refreshes address, balance and chain.
	Connect(ctx context.Context)

	// Disconnect resets the session to its initial state.
	Disconnect()

	// SilentReconnect restores a previously authorized session without prompting the user.
	SilentReconnect(ctx context.Context)

	// Snapshot returns a copy of the current session.
	Snapshot() entity.WalletSession

	// Watch delivers every committed session to ch until the subscription is released.
	Watch(ch chan<- entity.WalletSession) Subscription

	// Bind subscribes the store to provider account and chain events.
	Bind() (Subscription, error)
}

// SessionMetrics records store activity.
type SessionMetrics interface {
	ObserveConnect(result string, duration time.Duration)
	ObserveProviderEvent(name string)
	SetConnected(connected bool)
}
