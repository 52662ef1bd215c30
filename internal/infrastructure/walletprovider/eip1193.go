package walletprovider

import (
	"context"

	"github.com/ethereum/go-ethereum/event"
)

// Provider event names (EIP-1193).
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejectedRequest = 4001
	CodeUnauthorized        = 4100
	CodeUnsupportedMethod   = 4200
	CodeDisconnected        = 4900
	CodeChainDisconnected   = 4901
)

// ProviderEvent is an event emitted by the wallet.
// Accounts is set for accountsChanged, ChainID for chainChanged.
type ProviderEvent struct {
	Name     string
	Accounts []string
	ChainID  uint64
}

// Provider is the EIP-1193 surface of a wallet: JSON-RPC requests plus an event stream.
type Provider interface {
	// Request performs a JSON-RPC call and decodes the result into result.
	Request(ctx context.Context, result any, method string, params ...any) error

	// SubscribeEvents delivers wallet events to ch until the subscription is released.
	SubscribeEvents(ch chan<- ProviderEvent) event.Subscription
}
