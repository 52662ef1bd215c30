package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"wallet_session/internal/app/port"
	"wallet_session/internal/domain/entity"
	"wallet_session/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/event"
)

// Connect results reported to port.SessionMetrics.
const (
	ConnectResultSuccess    = "success"
	ConnectResultSuperseded = "superseded"
	ConnectResultCancelled  = "cancelled"
)

// ErrAlreadyBound is returned by Bind while a previous binding is still active.
var ErrAlreadyBound = errors.New("session store is already bound to provider events")

// SessionStoreOptions tunes store policy.
type SessionStoreOptions struct {
	// ClearOnFailure resets address, balance and chain when a connect attempt fails.
	// By default the previous values are kept and only the error is set.
	ClearOnFailure bool
}

type accountResolver func(ctx context.Context) (string, error)

// sessionStoreImpl implements port.SessionStore.
//
// Every mutation replaces the whole record under mu. Connect attempts are
// serialized by generation: starting an attempt, or disconnecting, cancels the
// in-flight attempt and bumps the generation, and an attempt commits only
// while its generation is still current.
type sessionStoreImpl struct {
	provider port.WalletProvider
	logger   port.Logger
	metrics  port.SessionMetrics
	opts     SessionStoreOptions

	mu             sync.Mutex
	session        entity.WalletSession
	generation     uint64
	cancelInFlight context.CancelFunc

	// current is the last committed record, readable without mu.
	current atomic.Pointer[entity.WalletSession]

	// notifyMu keeps watcher notifications in commit order.
	notifyMu sync.Mutex
	feed     event.Feed

	bindMu  sync.Mutex
	binding *providerBinding
}

// NewSessionStore creates a store in the disconnected state. metrics may be nil.
func NewSessionStore(
	provider port.WalletProvider,
	logger port.Logger,
	metrics port.SessionMetrics,
	opts SessionStoreOptions,
) port.SessionStore {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &sessionStoreImpl{
		provider: provider,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// Snapshot implements port.SessionStore.
func (s *sessionStoreImpl) Snapshot() entity.WalletSession {
	if current := s.current.Load(); current != nil {
		return *current
	}
	return entity.WalletSession{}
}

// Watch implements port.SessionStore. Sends block until every watcher has received
// the record, so ch should be buffered and must not be drained by code that mutates the store.
// A watcher that stops draining stalls further commits; Snapshot keeps answering
// with the latest committed record.
func (s *sessionStoreImpl) Watch(ch chan<- entity.WalletSession) port.Subscription {
	return s.feed.Subscribe(ch)
}

// Connect implements port.SessionStore.
func (s *sessionStoreImpl) Connect(ctx context.Context) {
	if !s.provider.IsAvailable() {
		s.logger.Warn("Connect requested but no wallet provider is available")
		s.mu.Lock()
		s.abortInFlightLocked()
		next := s.session
		next.IsConnecting = false
		next.Error = entity.ProviderUnavailableMessage
		s.commitAndUnlock(next)
		s.metrics.ObserveConnect(entity.ProviderUnavailable.String(), 0)
		return
	}
	s.run(ctx, s.provider.RequestAccounts, false)
}

// Disconnect implements port.SessionStore.
func (s *sessionStoreImpl) Disconnect() {
	s.mu.Lock()
	s.abortInFlightLocked()
	s.commitAndUnlock(entity.WalletSession{})
	s.logger.Info("Wallet session disconnected")
}

// SilentReconnect implements port.SessionStore.
func (s *sessionStoreImpl) SilentReconnect(ctx context.Context) {
	if !s.provider.IsAvailable() {
		s.logger.Debug("Silent reconnect skipped: no wallet provider")
		return
	}

	accounts, err := s.provider.GetAuthorizedAccounts(ctx)
	if err != nil {
		s.logger.Warn("Silent reconnect failed to query authorized accounts", "error", err)
		return
	}
	if len(accounts) == 0 {
		s.logger.Info("No previously authorized accounts, session stays disconnected")
		return
	}

	account := accounts[0]
	s.logger.Info("Previously authorized account found, reconnecting", "address", account)
	s.run(ctx, func(context.Context) (string, error) { return account, nil }, true)
}

// run executes one connect attempt. Silent attempts never write an error into the session.
func (s *sessionStoreImpl) run(ctx context.Context, resolve accountResolver, silent bool) {
	start := time.Now()

	s.mu.Lock()
	s.abortInFlightLocked()
	gen := s.generation
	attemptCtx, cancel := context.WithCancel(ctx)
	s.cancelInFlight = cancel
	next := s.session
	next.IsConnecting = true
	next.Error = ""
	s.commitAndUnlock(next)
	defer cancel()

	s.logger.Debug("Connect attempt started", "generation", gen, "silent", silent)

	var (
		balance string
		chainID uint64
		wei     *big.Int
	)
	// адрес нужен раньше баланса и сети: оба запроса идут для только что полученного аккаунта
	address, err := resolve(attemptCtx)
	if err == nil {
		wei, err = s.provider.GetBalance(attemptCtx, address)
	}
	if err == nil {
		balance, err = utils.WeiToEther(wei)
	}
	if err == nil {
		chainID, err = s.provider.GetNetwork(attemptCtx)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("Discarding result of superseded connect attempt", "generation", gen, "error", err)
		s.metrics.ObserveConnect(ConnectResultSuperseded, time.Since(start))
		return
	}
	s.cancelInFlight = nil

	if err == nil {
		s.commitAndUnlock(entity.WalletSession{
			Address: address,
			Balance: balance,
			ChainID: chainID,
		})
		s.logger.Info("Wallet connected", "address", address, "chain_id", chainID, "balance", balance)
		s.metrics.ObserveConnect(ConnectResultSuccess, time.Since(start))
		return
	}

	failed := s.session
	if s.opts.ClearOnFailure {
		failed = entity.WalletSession{}
	}
	failed.IsConnecting = false

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		// вызывающий ушёл сам, это не ошибка подключения
		s.commitAndUnlock(failed)
		s.logger.Info("Connect attempt cancelled by caller", "generation", gen)
		s.metrics.ObserveConnect(ConnectResultCancelled, time.Since(start))
	case silent:
		s.commitAndUnlock(failed)
		s.logger.Warn("Silent reconnect failed", "error", err)
		s.metrics.ObserveConnect(entity.ClassifyError(err).String(), time.Since(start))
	default:
		kind := entity.ClassifyError(err)
		failed.Error = entity.UserMessage(err)
		s.commitAndUnlock(failed)
		if kind == entity.UnexpectedError {
			s.logger.Error("Connect attempt failed unexpectedly", "error", err)
		} else {
			s.logger.Warn("Connect attempt failed", "kind", kind.String(), "error", err)
		}
		s.metrics.ObserveConnect(kind.String(), time.Since(start))
	}
}

// abortInFlightLocked cancels the in-flight attempt and invalidates its generation.
func (s *sessionStoreImpl) abortInFlightLocked() {
	if s.cancelInFlight != nil {
		s.cancelInFlight()
		s.cancelInFlight = nil
	}
	s.generation++
}

// commitAndUnlock replaces the record, releases s.mu and notifies watchers.
// Must be called with s.mu held.
func (s *sessionStoreImpl) commitAndUnlock(next entity.WalletSession) {
	s.session = next
	s.current.Store(&next)
	s.metrics.SetConnected(next.IsConnected())

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	s.feed.Send(next)
}

// Bind implements port.SessionStore.
func (s *sessionStoreImpl) Bind() (port.Subscription, error) {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()

	if s.binding != nil {
		return nil, ErrAlreadyBound
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &providerBinding{store: s, ctx: ctx, cancel: cancel}

	sub, err := s.provider.Subscribe(b.onAccountsChanged, b.onChainChanged)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to provider events: %w", err)
	}
	b.providerSub = sub
	s.binding = b

	s.logger.Info("Session store bound to provider events")
	return b, nil
}

// providerBinding maps provider events onto store operations.
type providerBinding struct {
	store       *sessionStoreImpl
	providerSub port.Subscription

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
}

func (b *providerBinding) onAccountsChanged(accounts []string) {
	b.store.metrics.ObserveProviderEvent("accountsChanged")
	if len(accounts) == 0 {
		b.store.logger.Info("Wallet reported no accounts, disconnecting")
		b.store.Disconnect()
		return
	}
	b.store.logger.Info("Wallet accounts changed, reconnecting", "address", accounts[0])
	b.spawnConnect()
}

func (b *providerBinding) onChainChanged(chainID uint64) {
	b.store.metrics.ObserveProviderEvent("chainChanged")
	b.store.logger.Info("Wallet chain changed, reconnecting", "chain_id", chainID)
	b.spawnConnect()
}

// spawnConnect runs Connect off the provider's dispatch goroutine so a newer
// event can supersede an attempt that is still waiting on the provider.
func (b *providerBinding) spawnConnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.store.Connect(b.ctx)
	}()
}

// Unsubscribe releases the provider listeners and waits for event-driven connects to finish.
func (b *providerBinding) Unsubscribe() {
	b.once.Do(func() {
		b.providerSub.Unsubscribe()

		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		b.cancel()
		b.wg.Wait()

		b.store.bindMu.Lock()
		if b.store.binding == b {
			b.store.binding = nil
		}
		b.store.bindMu.Unlock()

		b.store.logger.Info("Session store unbound from provider events")
	})
}

type noopMetrics struct{}

func (noopMetrics) ObserveConnect(string, time.Duration) {}
func (noopMetrics) ObserveProviderEvent(string)          {}
func (noopMetrics) SetConnected(bool)                    {}
