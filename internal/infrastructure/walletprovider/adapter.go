package walletprovider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"wallet_session/internal/app/port"
	"wallet_session/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
)

// adapter implements port.WalletProvider on top of an EIP-1193 Provider.
type adapter struct {
	provider               Provider
	logger                 port.Logger
	callTimeout            time.Duration
	requestAccountsTimeout time.Duration
}

// NewAdapter wraps provider. A nil provider yields an adapter that reports itself unavailable.
// Zero timeouts leave request deadlines to the caller's context.
func NewAdapter(provider Provider, logger port.Logger, callTimeout, requestAccountsTimeout time.Duration) port.WalletProvider {
	return &adapter{
		provider:               provider,
		logger:                 logger,
		callTimeout:            callTimeout,
		requestAccountsTimeout: requestAccountsTimeout,
	}
}

func (a *adapter) IsAvailable() bool {
	return a.provider != nil
}

// RequestAccounts asks the wallet for authorization and returns the first account.
func (a *adapter) RequestAccounts(ctx context.Context) (string, error) {
	const method = "eth_requestAccounts"

	var accounts []string
	if err := a.request(ctx, a.requestAccountsTimeout, &accounts, method); err != nil {
		return "", err
	}
	accounts, err := normalizeAccounts(accounts)
	if err != nil {
		return "", &entity.RequestError{Kind: entity.ErrProvider, Method: method, Message: err.Error()}
	}
	if len(accounts) == 0 {
		return "", &entity.RequestError{Kind: entity.ErrProvider, Method: method, Message: "wallet returned no accounts"}
	}
	return accounts[0], nil
}

// GetAuthorizedAccounts returns accounts already authorized for this application without prompting.
func (a *adapter) GetAuthorizedAccounts(ctx context.Context) ([]string, error) {
	const method = "eth_accounts"

	var accounts []string
	if err := a.request(ctx, a.callTimeout, &accounts, method); err != nil {
		return nil, err
	}
	accounts, err := normalizeAccounts(accounts)
	if err != nil {
		return nil, &entity.RequestError{Kind: entity.ErrProvider, Method: method, Message: err.Error()}
	}
	return accounts, nil
}

func (a *adapter) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}

	var balance hexutil.Big
	if err := a.request(ctx, a.callTimeout, &balance, "eth_getBalance", common.HexToAddress(address), "latest"); err != nil {
		return nil, err
	}
	return balance.ToInt(), nil
}

func (a *adapter) GetNetwork(ctx context.Context) (uint64, error) {
	var chainID hexutil.Uint64
	if err := a.request(ctx, a.callTimeout, &chainID, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(chainID), nil
}

// Subscribe dispatches provider events to the handlers on a dedicated goroutine.
// Handlers run one at a time in event order.
func (a *adapter) Subscribe(onAccountsChanged func([]string), onChainChanged func(uint64)) (port.Subscription, error) {
	if a.provider == nil {
		return nil, entity.ErrProviderUnavailable
	}

	events := make(chan ProviderEvent, 16)
	d := &dispatcher{
		sub:    a.provider.SubscribeEvents(events),
		logger: a.logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go d.loop(events, onAccountsChanged, onChainChanged)
	return d, nil
}

func (a *adapter) request(ctx context.Context, timeout time.Duration, result any, method string, params ...any) error {
	if a.provider == nil {
		return entity.ErrProviderUnavailable
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := a.provider.Request(callCtx, result, method, params...)
	if err == nil {
		return nil
	}
	a.logger.Debug("Wallet request failed", "method", method, "error", err)
	return classifyRequestError(ctx, method, err)
}

// classifyRequestError maps a provider failure onto the entity error kinds.
// Cancellation by the caller is passed through untouched.
func classifyRequestError(ctx context.Context, method string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s cancelled: %w", method, ctx.Err())
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		kind, message := entity.ErrProvider, rpcErr.Error()
		switch rpcErr.ErrorCode() {
		case CodeUserRejectedRequest:
			kind = entity.ErrUserRejected
		case CodeUnauthorized:
			message = "wallet has not authorized " + method + " for this site"
		case CodeUnsupportedMethod:
			message = "wallet does not support " + method
		case CodeDisconnected, CodeChainDisconnected:
			kind = entity.ErrNetwork
		}
		return &entity.RequestError{Kind: kind, Method: method, Code: rpcErr.ErrorCode(), Message: message}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &entity.RequestError{Kind: entity.ErrNetwork, Method: method, Message: method + " timed out"}
	}
	return &entity.RequestError{Kind: entity.ErrNetwork, Method: method, Message: fmt.Sprintf("%s failed: %v", method, err)}
}

// normalizeAccounts validates addresses and converts them to checksum form.
func normalizeAccounts(accounts []string) ([]string, error) {
	out := make([]string, 0, len(accounts))
	for _, account := range accounts {
		if !common.IsHexAddress(account) {
			return nil, fmt.Errorf("malformed account %q", account)
		}
		out = append(out, common.HexToAddress(account).Hex())
	}
	return out, nil
}

type dispatcher struct {
	sub    event.Subscription
	logger port.Logger
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (d *dispatcher) loop(events <-chan ProviderEvent, onAccountsChanged func([]string), onChainChanged func(uint64)) {
	defer close(d.done)
	for {
		select {
		case <-d.quit:
			return
		case err, ok := <-d.sub.Err():
			if ok && err != nil {
				d.logger.Error("Wallet event subscription failed", "error", err)
			}
			return
		case ev := <-events:
			switch ev.Name {
			case EventAccountsChanged:
				accounts, err := normalizeAccounts(ev.Accounts)
				if err != nil {
					d.logger.Warn("Ignoring accountsChanged with malformed accounts", "error", err)
					continue
				}
				onAccountsChanged(accounts)
			case EventChainChanged:
				onChainChanged(ev.ChainID)
			default:
				d.logger.Debug("Ignoring wallet event", "event", ev.Name)
			}
		}
	}
}

// Unsubscribe stops dispatching and waits for the handler in progress to return.
func (d *dispatcher) Unsubscribe() {
	d.once.Do(func() {
		d.sub.Unsubscribe()
		close(d.quit)
		<-d.done
	})
}
