package port

import (
	"context"
	"math/big"
)

// Subscription is a handle on a registered listener.
// Unsubscribe must be called exactly once the listener is no longer needed; further calls are no-ops.
type Subscription interface {
	Unsubscribe()
}

// WalletProvider isolates all interaction with the injected wallet.
type WalletProvider interface {
	// IsAvailable reports whether a wallet provider is present.
	IsAvailable() bool

	// RequestAccounts asks the wallet for account access and returns the first authorized address.
	// Blocks until the user approves or rejects in the wallet UI.
	RequestAccounts(ctx context.Context) (string, error)

	// GetAuthorizedAccounts returns already authorized accounts without prompting.
	GetAuthorizedAccounts(ctx context.Context) ([]string, error)

	// GetBalance returns the native balance of address in wei.
	GetBalance(ctx context.Context, address string) (*big.Int, error)

	// GetNetwork returns the chain ID the wallet is currently connected to.
	GetNetwork(ctx context.Context) (uint64, error)

	// Subscribe registers listeners for account and chain changes.
	Subscribe(onAccountsChanged func(accounts []string), onChainChanged func(chainID uint64)) (Subscription, error)
}
