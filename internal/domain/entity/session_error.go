package entity

import (
	"context"
	"errors"
)

// Error messages shown to the user.
const (
	ProviderUnavailableMessage = "please install a wallet extension"
	GenericConnectMessage      = "failed to connect wallet"
)

var (
	// ErrProviderUnavailable is returned when no wallet provider is present.
	ErrProviderUnavailable = errors.New(ProviderUnavailableMessage)
	// ErrUserRejected is returned when the user declines the permission prompt.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrNetwork is returned when an RPC call to the provider or node cannot complete.
	ErrNetwork = errors.New("network error")
	// ErrProvider is returned when the provider answers with an error of its own.
	ErrProvider = errors.New("provider error")
)

// ErrorKind classifies connect failures.
type ErrorKind int

const (
	UnexpectedError ErrorKind = iota
	ProviderUnavailable
	UserRejected
	NetworkError
	ProviderError
)

// String returns the string representation of an ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case ProviderUnavailable:
		return "provider_unavailable"
	case UserRejected:
		return "user_rejected"
	case NetworkError:
		return "network_error"
	case ProviderError:
		return "provider_error"
	default:
		return "unexpected_error"
	}
}

// ClassifyError maps an error returned by the wallet provider to its kind.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return UnexpectedError
	case errors.Is(err, ErrProviderUnavailable):
		return ProviderUnavailable
	case errors.Is(err, ErrUserRejected):
		return UserRejected
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return NetworkError
	case errors.Is(err, ErrProvider):
		return ProviderError
	default:
		return UnexpectedError
	}
}

// UserMessage returns the message stored in WalletSession.Error for err.
// Unclassified failures get a generic message so internals do not leak into the UI.
func UserMessage(err error) string {
	switch ClassifyError(err) {
	case ProviderUnavailable:
		return ProviderUnavailableMessage
	case UnexpectedError:
		return GenericConnectMessage
	default:
		return err.Error()
	}
}

// RequestError describes a failed provider request.
// Kind is one of the sentinel errors above and is reachable through errors.Is.
type RequestError struct {
	Kind    error
	Method  string
	Code    int
	Message string
}

// Error returns the provider's own message, falling back to the kind.
func (e *RequestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

// Unwrap returns the sentinel kind.
func (e *RequestError) Unwrap() error {
	return e.Kind
}
