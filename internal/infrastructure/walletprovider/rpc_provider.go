package walletprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet_session/internal/app/port"
	"wallet_session/internal/infrastructure/configloader"
	"wallet_session/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// errSubscriptionsUnsupported marks a wallet that cannot push events over eth_subscribe.
var errSubscriptionsUnsupported = errors.New("wallet does not support event subscriptions")

// RPCProviderConfig configures an RPCProvider.
type RPCProviderConfig struct {
	Endpoint     string
	DialTimeout  time.Duration
	EventMode    string // configloader.EventModeAuto | EventModeSubscribe | EventModePoll
	PollInterval time.Duration
	PollBurst    int
}

// RPCProvider implements Provider over a go-ethereum JSON-RPC client.
// Events come from eth_subscribe notifications when the wallet supports them,
// otherwise from polling eth_accounts and eth_chainId.
type RPCProvider struct {
	client  *rpc.Client
	cfg     RPCProviderConfig
	logger  port.Logger
	feed    event.Feed
	limiter *rate.Limiter
}

// DialRPCProvider connects to the wallet endpoint.
func DialRPCProvider(ctx context.Context, cfg RPCProviderConfig, logger port.Logger) (*RPCProvider, error) {
	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	client, err := rpc.DialContext(dialCtx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to wallet provider %s: %w", cfg.Endpoint, err)
	}
	logger.Info("Connected to wallet provider", "endpoint", cfg.Endpoint)
	return NewRPCProvider(client, cfg, logger), nil
}

// NewRPCProvider wraps an existing client. The provider takes ownership of client.
func NewRPCProvider(client *rpc.Client, cfg RPCProviderConfig, logger port.Logger) *RPCProvider {
	if cfg.EventMode == "" {
		cfg.EventMode = configloader.EventModeAuto
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollBurst <= 0 {
		cfg.PollBurst = 1
	}
	return &RPCProvider{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(cfg.PollInterval), cfg.PollBurst),
	}
}

// Request implements Provider.
func (p *RPCProvider) Request(ctx context.Context, result any, method string, params ...any) error {
	return p.client.CallContext(ctx, result, method, params...)
}

// SubscribeEvents implements Provider.
func (p *RPCProvider) SubscribeEvents(ch chan<- ProviderEvent) event.Subscription {
	return p.feed.Subscribe(ch)
}

// Run drives the event source until ctx is done. It returns nil on cancellation.
func (p *RPCProvider) Run(ctx context.Context) error {
	switch p.cfg.EventMode {
	case configloader.EventModePoll:
		return p.runPolling(ctx)
	case configloader.EventModeSubscribe:
		return p.runSubscriptions(ctx)
	default:
		err := p.runSubscriptions(ctx)
		if errors.Is(err, errSubscriptionsUnsupported) {
			p.logger.Info("Wallet event subscriptions unavailable, falling back to polling",
				"reason", err, "interval", p.cfg.PollInterval.String())
			return p.runPolling(ctx)
		}
		return err
	}
}

// Close closes the underlying client.
func (p *RPCProvider) Close() {
	p.client.Close()
}

func (p *RPCProvider) runSubscriptions(ctx context.Context) error {
	accountsCh := make(chan json.RawMessage, 8)
	chainCh := make(chan json.RawMessage, 8)

	accountsSub, err := p.client.EthSubscribe(ctx, accountsCh, EventAccountsChanged)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errSubscriptionsUnsupported, EventAccountsChanged, err)
	}
	defer accountsSub.Unsubscribe()

	chainSub, err := p.client.EthSubscribe(ctx, chainCh, EventChainChanged)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errSubscriptionsUnsupported, EventChainChanged, err)
	}
	defer chainSub.Unsubscribe()

	p.logger.Info("Subscribed to wallet events")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-accountsSub.Err():
			return fmt.Errorf("%s subscription failed: %w", EventAccountsChanged, err)
		case err := <-chainSub.Err():
			return fmt.Errorf("%s subscription failed: %w", EventChainChanged, err)
		case raw := <-accountsCh:
			accounts, err := decodeAccounts(raw)
			if err != nil {
				p.logger.Warn("Ignoring malformed accountsChanged notification", "payload", string(raw), "error", err)
				continue
			}
			p.feed.Send(ProviderEvent{Name: EventAccountsChanged, Accounts: accounts})
		case raw := <-chainCh:
			chainID, err := decodeChainID(raw)
			if err != nil {
				p.logger.Warn("Ignoring malformed chainChanged notification", "payload", string(raw), "error", err)
				continue
			}
			p.feed.Send(ProviderEvent{Name: EventChainChanged, ChainID: chainID})
		}
	}
}

// pollState holds the last observation; the first observation is the baseline and emits nothing.
type pollState struct {
	accounts     []string
	haveAccounts bool
	chainID      uint64
	haveChain    bool
}

func (p *RPCProvider) runPolling(ctx context.Context) error {
	p.logger.Info("Polling wallet for account and chain changes", "interval", p.cfg.PollInterval.String())
	var state pollState
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("poll limiter: %w", err)
		}
		p.pollOnce(ctx, &state)
	}
}

func (p *RPCProvider) pollOnce(ctx context.Context, state *pollState) {
	var accounts []string
	if err := p.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		if ctx.Err() == nil {
			p.logger.Debug("Polling eth_accounts failed", "error", err)
		}
	} else {
		accounts, err = normalizeAccounts(accounts)
		switch {
		case err != nil:
			p.logger.Warn("Wallet returned malformed accounts", "error", err)
		case !state.haveAccounts:
			state.accounts, state.haveAccounts = accounts, true
		case !utils.EqualFoldStrings(state.accounts, accounts):
			state.accounts = accounts
			p.feed.Send(ProviderEvent{Name: EventAccountsChanged, Accounts: accounts})
		}
	}

	var chainID hexutil.Uint64
	if err := p.client.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		if ctx.Err() == nil {
			p.logger.Debug("Polling eth_chainId failed", "error", err)
		}
		return
	}
	switch {
	case !state.haveChain:
		state.chainID, state.haveChain = uint64(chainID), true
	case state.chainID != uint64(chainID):
		state.chainID = uint64(chainID)
		p.feed.Send(ProviderEvent{Name: EventChainChanged, ChainID: uint64(chainID)})
	}
}

func decodeAccounts(raw json.RawMessage) ([]string, error) {
	var accounts []string
	if err := jsonAPI.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return normalizeAccounts(accounts)
}

// decodeChainID accepts the hex string wallets send ("0x1") as well as a plain number.
func decodeChainID(raw json.RawMessage) (uint64, error) {
	var hexID string
	if err := jsonAPI.Unmarshal(raw, &hexID); err == nil {
		if !strings.HasPrefix(hexID, "0x") {
			return 0, fmt.Errorf("chain id %q is not hex encoded", hexID)
		}
		return hexutil.DecodeUint64(hexID)
	}
	var numeric uint64
	if err := jsonAPI.Unmarshal(raw, &numeric); err != nil {
		return 0, fmt.Errorf("decode chain id: %w", err)
	}
	return numeric, nil
}
