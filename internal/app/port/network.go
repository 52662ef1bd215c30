package port

import "wallet_session/internal/domain/entity"

// NetworkDefinitionProvider defines the interface for providing network definitions.
type NetworkDefinitionProvider interface {
	// GetAllNetworkDefinitions returns all known network definitions.
	GetAllNetworkDefinitions() []entity.NetworkDefinition

	// GetNetworkDefinitionByChainID returns the definition for chainID and true, or false if unknown.
	GetNetworkDefinitionByChainID(chainID uint64) (entity.NetworkDefinition, bool)

	// ChainName returns a display name for chainID.
	ChainName(chainID uint64) string
}
