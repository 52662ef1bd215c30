package restapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wallet_session/internal/app/port"
	"wallet_session/internal/domain/entity"
	"wallet_session/internal/pkg/utils"

	"github.com/gin-gonic/gin"
)

// DisplayBalancePlaces is the number of fractional digits in SessionView.DisplayBalance.
const DisplayBalancePlaces = 4

// SessionView определяет структуру ответа для эндпоинтов сессии.
type SessionView struct {
	Address        string `json:"address"`
	ShortAddress   string `json:"shortAddress"`
	Balance        string `json:"balance"`
	DisplayBalance string `json:"displayBalance"`
	ChainID        uint64 `json:"chainId"`
	ChainName      string `json:"chainName"`
	NativeSymbol   string `json:"nativeSymbol,omitempty"`
	ExplorerURL    string `json:"explorerUrl,omitempty"`
	IsConnecting   bool   `json:"isConnecting"`
	Error          string `json:"error,omitempty"`
	State          string `json:"state"`
}

// SessionHandler обрабатывает HTTP запросы, связанные с сессией кошелька.
type SessionHandler struct {
	store    port.SessionStore
	networks port.NetworkDefinitionProvider
	logger   port.Logger
}

// NewSessionHandler создает новый экземпляр SessionHandler.
func NewSessionHandler(store port.SessionStore, networks port.NetworkDefinitionProvider, logger port.Logger) *SessionHandler {
	return &SessionHandler{
		store:    store,
		networks: networks,
		logger:   logger,
	}
}

// View renders a session record for API clients.
func (h *SessionHandler) View(s entity.WalletSession) SessionView {
	view := SessionView{
		Address:      s.Address,
		ShortAddress: utils.FormatAddress(s.Address),
		Balance:      s.Balance,
		ChainID:      s.ChainID,
		ChainName:    h.networks.ChainName(s.ChainID),
		IsConnecting: s.IsConnecting,
		Error:        s.Error,
		State:        s.State().String(),
	}
	if s.Balance != "" {
		view.DisplayBalance = utils.FormatBalance(s.Balance, DisplayBalancePlaces)
	}
	if def, ok := h.networks.GetNetworkDefinitionByChainID(s.ChainID); ok {
		view.NativeSymbol = def.NativeSymbol
		if def.BlockExplorerURL != "" && s.Address != "" {
			view.ExplorerURL = fmt.Sprintf("%s/address/%s", strings.TrimRight(def.BlockExplorerURL, "/"), s.Address)
		}
	}
	return view
}

// ListNetworks returns the chains the service can name.
func (h *SessionHandler) ListNetworks(c *gin.Context) {
	c.JSON(http.StatusOK, h.networks.GetAllNetworkDefinitions())
}

// GetSession returns the current session.
func (h *SessionHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.View(h.store.Snapshot()))
}

// Connect runs a connect attempt and returns the resulting session.
// The request stays open while the wallet waits for the user; failures are reported in the error field.
func (h *SessionHandler) Connect(c *gin.Context) {
	h.store.Connect(c.Request.Context())
	c.JSON(http.StatusOK, h.View(h.store.Snapshot()))
}

// Disconnect resets the session.
func (h *SessionHandler) Disconnect(c *gin.Context) {
	h.store.Disconnect()
	c.JSON(http.StatusOK, h.View(h.store.Snapshot()))
}

// StreamEvents sends the current session and then every update as server-sent events.
// A client that reads slower than the store commits skips to the latest record.
func (h *SessionHandler) StreamEvents(c *gin.Context) {
	// поток живёт дольше WriteTimeout сервера
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("Failed to clear write deadline for event stream", "error", err)
	}

	latest := make(chan entity.WalletSession, 1)
	done := make(chan struct{})
	defer close(done)

	updates := make(chan entity.WalletSession, 16)
	sub := h.store.Watch(updates)
	defer sub.Unsubscribe()
	go relayLatest(updates, latest, done)

	h.logger.Debug("Session event stream opened", "request_id", c.GetString("requestID"), "remote", c.ClientIP())
	c.SSEvent("session", h.View(h.store.Snapshot()))
	c.Writer.Flush()

	c.Stream(func(io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case s := <-latest:
			c.SSEvent("session", h.View(s))
			return true
		}
	})
	h.logger.Debug("Session event stream closed", "request_id", c.GetString("requestID"))
}

// relayLatest drains updates so the store never waits on a slow HTTP client,
// keeping only the newest record in latest.
func relayLatest(updates <-chan entity.WalletSession, latest chan entity.WalletSession, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case s := <-updates:
			select {
			case <-latest:
			default:
			}
			latest <- s
		}
	}
}

// Health reports liveness together with the session state.
func (h *SessionHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"state":  h.store.Snapshot().State().String(),
	})
}
