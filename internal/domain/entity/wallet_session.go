package entity

// SessionState is the derived state of a WalletSession.
type SessionState int

const (
	// StateDisconnected means no account is attached to the session.
	StateDisconnected SessionState = iota
	// StateConnecting means a connect attempt is in flight.
	StateConnecting
	// StateConnected means an account, its balance and chain are known.
	StateConnected
	// StateError means the last connect attempt failed.
	StateError
)

// String returns the string representation of a SessionState.
func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// WalletSession holds the connection state of the wallet.
// Empty strings and a zero ChainID mean "not known".
type WalletSession struct {
	Address      string `json:"address,omitempty" yaml:"address,omitempty"` // checksummed hex
	Balance      string `json:"balance,omitempty" yaml:"balance,omitempty"` // native balance in ether
	ChainID      uint64 `json:"chainId,omitempty" yaml:"chainId,omitempty"`
	IsConnecting bool   `json:"isConnecting" yaml:"isConnecting"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

// IsConnected reports whether an account is attached to the session.
func (s WalletSession) IsConnected() bool {
	return s.Address != ""
}

// State derives the state machine state from the record.
// A connected record carrying an error overlay reports StateError.
func (s WalletSession) State() SessionState {
	switch {
	case s.IsConnecting:
		return StateConnecting
	case s.Error != "":
		return StateError
	case s.Address != "":
		return StateConnected
	default:
		return StateDisconnected
	}
}
