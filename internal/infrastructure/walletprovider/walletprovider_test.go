package walletprovider

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"wallet_session/internal/domain/entity"
	"wallet_session/internal/infrastructure/configloader"
	"wallet_session/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	addrA = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	addrB = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
)

// codedError is a JSON-RPC error carrying an EIP-1193 code.
type codedError struct {
	code int
	msg  string
}

func (e *codedError) Error() string  { return e.msg }
func (e *codedError) ErrorCode() int { return e.code }

// walletService is an in-process wallet served under the eth namespace.
type walletService struct {
	mu            sync.Mutex
	accounts      []string
	chainID       uint64
	balance       *big.Int
	reject        bool
	accountsCalls int
}

func newWalletService() *walletService {
	balance, _ := new(big.Int).SetString("2500000000000000000", 10)
	return &walletService{
		accounts: []string{strings.ToLower(addrA)},
		chainID:  1,
		balance:  balance,
	}
}

func (s *walletService) RequestAccounts() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return nil, &codedError{code: CodeUserRejectedRequest, msg: "User rejected the request."}
	}
	return append([]string(nil), s.accounts...), nil
}

func (s *walletService) Accounts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountsCalls++
	return append([]string{}, s.accounts...)
}

func (s *walletService) GetBalance(address common.Address, block string) (*hexutil.Big, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if block != "latest" {
		return nil, errors.New("unsupported block tag")
	}
	return (*hexutil.Big)(new(big.Int).Set(s.balance)), nil
}

func (s *walletService) ChainId() hexutil.Uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return hexutil.Uint64(s.chainID)
}

func (s *walletService) setAccounts(accounts ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = accounts
}

func (s *walletService) setChain(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chainID = id
}

func (s *walletService) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountsCalls
}

// subscribingWallet additionally pushes accountsChanged and chainChanged notifications.
type subscribingWallet struct {
	*walletService

	subMu    sync.Mutex
	notifier *rpc.Notifier
	subs     map[string]rpc.ID
	ready    chan struct{}
}

func newSubscribingWallet() *subscribingWallet {
	return &subscribingWallet{
		walletService: newWalletService(),
		subs:          make(map[string]rpc.ID),
		ready:         make(chan struct{}),
	}
}

func (w *subscribingWallet) AccountsChanged(ctx context.Context) (*rpc.Subscription, error) {
	return w.subscribe(ctx, EventAccountsChanged)
}

func (w *subscribingWallet) ChainChanged(ctx context.Context) (*rpc.Subscription, error) {
	return w.subscribe(ctx, EventChainChanged)
}

func (w *subscribingWallet) subscribe(ctx context.Context, name string) (*rpc.Subscription, error) {
	notifier, ok := rpc.NotifierFromContext(ctx)
	if !ok {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	sub := notifier.CreateSubscription()

	w.subMu.Lock()
	defer w.subMu.Unlock()
	w.notifier = notifier
	w.subs[name] = sub.ID
	if len(w.subs) == 2 {
		close(w.ready)
	}
	return sub, nil
}

func (w *subscribingWallet) notify(name string, data any) error {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	return w.notifier.Notify(w.subs[name], data)
}

func dialInProc(t *testing.T, svc any) *rpc.Client {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", svc))
	client := rpc.DialInProc(server)
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return client
}

// funcProvider is a Provider driven by a request function and a local event feed.
type funcProvider struct {
	request func(ctx context.Context, result any, method string) error
	feed    event.Feed
}

func (p *funcProvider) Request(ctx context.Context, result any, method string, _ ...any) error {
	return p.request(ctx, result, method)
}

func (p *funcProvider) SubscribeEvents(ch chan<- ProviderEvent) event.Subscription {
	return p.feed.Subscribe(ch)
}

func TestAdapterAgainstWallet(t *testing.T) {
	svc := newWalletService()
	provider := NewRPCProvider(dialInProc(t, svc), RPCProviderConfig{}, logger.NewSlogAdapter())
	wallet := NewAdapter(provider, logger.NewSlogAdapter(), time.Second, time.Second)
	ctx := context.Background()

	require.True(t, wallet.IsAvailable())

	account, err := wallet.RequestAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, addrA, account, "accounts are returned in checksum form")

	authorized, err := wallet.GetAuthorizedAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{addrA}, authorized)

	balance, err := wallet.GetBalance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, "2500000000000000000", balance.String())

	svc.setChain(5777)
	chainID, err := wallet.GetNetwork(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5777), chainID)
}

func TestAdapterUserRejection(t *testing.T) {
	svc := newWalletService()
	svc.reject = true
	provider := NewRPCProvider(dialInProc(t, svc), RPCProviderConfig{}, logger.NewSlogAdapter())
	wallet := NewAdapter(provider, logger.NewSlogAdapter(), time.Second, time.Second)

	_, err := wallet.RequestAccounts(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrUserRejected)
	assert.Equal(t, entity.UserRejected, entity.ClassifyError(err))
	assert.Equal(t, "User rejected the request.", entity.UserMessage(err))

	var reqErr *entity.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, CodeUserRejectedRequest, reqErr.Code)
	assert.Equal(t, "eth_requestAccounts", reqErr.Method)
}

func TestAdapterNoAccounts(t *testing.T) {
	svc := newWalletService()
	svc.setAccounts()
	provider := NewRPCProvider(dialInProc(t, svc), RPCProviderConfig{}, logger.NewSlogAdapter())
	wallet := NewAdapter(provider, logger.NewSlogAdapter(), time.Second, time.Second)

	_, err := wallet.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, entity.ErrProvider)

	authorized, err := wallet.GetAuthorizedAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, authorized)
}

func TestAdapterErrorMapping(t *testing.T) {
	t.Run("transport failure", func(t *testing.T) {
		p := &funcProvider{request: func(context.Context, any, string) error {
			return errors.New("dial tcp 127.0.0.1:1248: connection refused")
		}}
		wallet := NewAdapter(p, logger.NewSlogAdapter(), time.Second, time.Second)

		_, err := wallet.GetNetwork(context.Background())
		assert.ErrorIs(t, err, entity.ErrNetwork)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("rpc error", func(t *testing.T) {
		p := &funcProvider{request: func(context.Context, any, string) error {
			return &codedError{code: -32603, msg: "internal error"}
		}}
		wallet := NewAdapter(p, logger.NewSlogAdapter(), time.Second, time.Second)

		_, err := wallet.GetBalance(context.Background(), addrA)
		assert.ErrorIs(t, err, entity.ErrProvider)
		assert.Equal(t, "internal error", entity.UserMessage(err))
	})

	t.Run("unauthorized and unsupported", func(t *testing.T) {
		for code, want := range map[int]string{
			CodeUnauthorized:      "wallet has not authorized eth_chainId for this site",
			CodeUnsupportedMethod: "wallet does not support eth_chainId",
		} {
			p := &funcProvider{request: func(context.Context, any, string) error {
				return &codedError{code: code, msg: "raw provider text"}
			}}
			wallet := NewAdapter(p, logger.NewSlogAdapter(), time.Second, time.Second)

			_, err := wallet.GetNetwork(context.Background())
			assert.ErrorIs(t, err, entity.ErrProvider)
			assert.Equal(t, want, entity.UserMessage(err))

			var reqErr *entity.RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, code, reqErr.Code)
		}
	})

	t.Run("disconnected wallet", func(t *testing.T) {
		p := &funcProvider{request: func(context.Context, any, string) error {
			return &codedError{code: CodeDisconnected, msg: "disconnected"}
		}}
		wallet := NewAdapter(p, logger.NewSlogAdapter(), time.Second, time.Second)

		_, err := wallet.GetNetwork(context.Background())
		assert.ErrorIs(t, err, entity.ErrNetwork)
	})

	t.Run("timeout", func(t *testing.T) {
		p := &funcProvider{request: func(ctx context.Context, _ any, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		}}
		wallet := NewAdapter(p, logger.NewSlogAdapter(), 20*time.Millisecond, time.Second)

		_, err := wallet.GetNetwork(context.Background())
		assert.ErrorIs(t, err, entity.ErrNetwork)
		assert.Equal(t, entity.NetworkError, entity.ClassifyError(err))
	})

	t.Run("caller cancellation passes through", func(t *testing.T) {
		p := &funcProvider{request: func(ctx context.Context, _ any, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		}}
		wallet := NewAdapter(p, logger.NewSlogAdapter(), time.Second, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := wallet.RequestAccounts(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, entity.ErrNetwork)
	})

	t.Run("malformed account", func(t *testing.T) {
		p := &funcProvider{request: func(_ context.Context, result any, _ string) error {
			*(result.(*[]string)) = []string{"not-an-address"}
			return nil
		}}
		wallet := NewAdapter(p, logger.NewSlogAdapter(), time.Second, time.Second)

		_, err := wallet.RequestAccounts(context.Background())
		assert.ErrorIs(t, err, entity.ErrProvider)
	})

	t.Run("invalid balance address", func(t *testing.T) {
		p := &funcProvider{request: func(context.Context, any, string) error { return nil }}
		wallet := NewAdapter(p, logger.NewSlogAdapter(), time.Second, time.Second)

		_, err := wallet.GetBalance(context.Background(), "0x123")
		assert.Error(t, err)
		assert.Equal(t, entity.UnexpectedError, entity.ClassifyError(err))
	})
}

func TestAdapterWithoutProvider(t *testing.T) {
	wallet := NewAdapter(nil, logger.NewSlogAdapter(), time.Second, time.Second)

	assert.False(t, wallet.IsAvailable())

	_, err := wallet.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, entity.ErrProviderUnavailable)

	_, err = wallet.Subscribe(func([]string) {}, func(uint64) {})
	assert.ErrorIs(t, err, entity.ErrProviderUnavailable)
}

func TestAdapterSubscribeDispatchesEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &funcProvider{}
	wallet := NewAdapter(p, logger.NewSlogAdapter(), time.Second, time.Second)

	accountsCh := make(chan []string, 4)
	chainCh := make(chan uint64, 4)
	sub, err := wallet.Subscribe(
		func(accounts []string) { accountsCh <- accounts },
		func(id uint64) { chainCh <- id },
	)
	require.NoError(t, err)

	p.feed.Send(ProviderEvent{Name: EventAccountsChanged, Accounts: []string{strings.ToLower(addrB)}})
	p.feed.Send(ProviderEvent{Name: "message"})
	p.feed.Send(ProviderEvent{Name: EventChainChanged, ChainID: 137})
	p.feed.Send(ProviderEvent{Name: EventAccountsChanged, Accounts: []string{}})

	assert.Equal(t, []string{addrB}, <-accountsCh)
	assert.Equal(t, uint64(137), <-chainCh)
	assert.Empty(t, <-accountsCh)

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, p.feed.Send(ProviderEvent{Name: EventChainChanged, ChainID: 1}),
		"no listeners remain after unsubscribe")
}

func runProvider(t *testing.T, p *RPCProvider) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	return func() error {
		stop()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			return errors.New("provider did not stop")
		}
	}
}

func receive(t *testing.T, ch <-chan ProviderEvent) ProviderEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for provider event")
		return ProviderEvent{}
	}
}

func TestRPCProviderPolling(t *testing.T) {
	for _, mode := range []string{configloader.EventModePoll, configloader.EventModeAuto} {
		t.Run(mode, func(t *testing.T) {
			svc := newWalletService()
			provider := NewRPCProvider(dialInProc(t, svc), RPCProviderConfig{
				EventMode:    mode,
				PollInterval: 5 * time.Millisecond,
			}, logger.NewSlogAdapter())

			events := make(chan ProviderEvent, 8)
			sub := provider.SubscribeEvents(events)
			defer sub.Unsubscribe()

			stop := runProvider(t, provider)

			// the first poll only records a baseline
			require.Eventually(t, func() bool { return svc.calls() >= 2 }, 2*time.Second, time.Millisecond)
			assert.Empty(t, events)

			svc.setAccounts(strings.ToLower(addrB))
			ev := receive(t, events)
			assert.Equal(t, EventAccountsChanged, ev.Name)
			assert.Equal(t, []string{addrB}, ev.Accounts)

			svc.setChain(10)
			ev = receive(t, events)
			assert.Equal(t, EventChainChanged, ev.Name)
			assert.Equal(t, uint64(10), ev.ChainID)

			svc.setAccounts()
			ev = receive(t, events)
			assert.Equal(t, EventAccountsChanged, ev.Name)
			assert.Empty(t, ev.Accounts)

			assert.NoError(t, stop())
		})
	}
}

func TestRPCProviderSubscriptions(t *testing.T) {
	wallet := newSubscribingWallet()
	provider := NewRPCProvider(dialInProc(t, wallet), RPCProviderConfig{
		EventMode: configloader.EventModeSubscribe,
	}, logger.NewSlogAdapter())

	events := make(chan ProviderEvent, 8)
	sub := provider.SubscribeEvents(events)
	defer sub.Unsubscribe()

	stop := runProvider(t, provider)

	select {
	case <-wallet.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("provider did not subscribe")
	}

	require.NoError(t, wallet.notify(EventAccountsChanged, []string{strings.ToLower(addrB)}))
	ev := receive(t, events)
	assert.Equal(t, EventAccountsChanged, ev.Name)
	assert.Equal(t, []string{addrB}, ev.Accounts)

	require.NoError(t, wallet.notify(EventChainChanged, "0x89"))
	ev = receive(t, events)
	assert.Equal(t, EventChainChanged, ev.Name)
	assert.Equal(t, uint64(137), ev.ChainID)

	// malformed payloads are dropped
	require.NoError(t, wallet.notify(EventChainChanged, "mainnet"))
	require.NoError(t, wallet.notify(EventChainChanged, 1))
	ev = receive(t, events)
	assert.Equal(t, uint64(1), ev.ChainID)

	assert.NoError(t, stop())
}

func TestRPCProviderSubscribeModeRequiresSupport(t *testing.T) {
	provider := NewRPCProvider(dialInProc(t, newWalletService()), RPCProviderConfig{
		EventMode: configloader.EventModeSubscribe,
	}, logger.NewSlogAdapter())

	err := provider.Run(context.Background())
	assert.ErrorIs(t, err, errSubscriptionsUnsupported)
}

func TestDecodeChainID(t *testing.T) {
	id, err := decodeChainID([]byte(`"0x1"`))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	id, err = decodeChainID([]byte(`5777`))
	require.NoError(t, err)
	assert.Equal(t, uint64(5777), id)

	_, err = decodeChainID([]byte(`"1"`))
	assert.Error(t, err)

	_, err = decodeChainID([]byte(`{}`))
	assert.Error(t, err)
}
