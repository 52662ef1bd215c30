package networkdefinition

import (
	"fmt"
	"sort"

	"wallet_session/internal/app/port"
	"wallet_session/internal/domain/entity"
)

// Predefined network definitions
var ( //nolint:gochecknoglobals // Global for definitions
	Ethereum = entity.NetworkDefinition{
		ChainID:          1,
		Name:             "Ethereum Mainnet",
		Identifier:       "ethereum",
		NativeSymbol:     "ETH",
		Decimals:         18,
		BlockExplorerURL: "https://etherscan.io",
	}
	Optimism = entity.NetworkDefinition{
		ChainID:          10,
		Name:             "OP Mainnet",
		Identifier:       "optimism",
		NativeSymbol:     "ETH",
		Decimals:         18,
		BlockExplorerURL: "https://optimistic.etherscan.io",
	}
	BSC = entity.NetworkDefinition{
		ChainID:          56,
		Name:             "BNB Smart Chain",
		Identifier:       "bsc",
		NativeSymbol:     "BNB",
		Decimals:         18,
		BlockExplorerURL: "https://bscscan.com",
	}
	Polygon = entity.NetworkDefinition{
		ChainID:          137,
		Name:             "Polygon PoS",
		Identifier:       "polygon",
		NativeSymbol:     "POL",
		Decimals:         18,
		BlockExplorerURL: "https://polygonscan.com",
	}
	Base = entity.NetworkDefinition{
		ChainID:          8453,
		Name:             "Base Mainnet",
		Identifier:       "base",
		NativeSymbol:     "ETH",
		Decimals:         18,
		BlockExplorerURL: "https://basescan.org",
	}
	Arbitrum = entity.NetworkDefinition{
		ChainID:          42161,
		Name:             "Arbitrum One",
		Identifier:       "arbitrum",
		NativeSymbol:     "ETH",
		Decimals:         18,
		BlockExplorerURL: "https://arbiscan.io",
	}
	Avalanche = entity.NetworkDefinition{
		ChainID:          43114,
		Name:             "Avalanche C-Chain",
		Identifier:       "avalanche",
		NativeSymbol:     "AVAX",
		Decimals:         18,
		BlockExplorerURL: "https://snowtrace.io",
	}
	Sepolia = entity.NetworkDefinition{
		ChainID:          11155111,
		Name:             "Sepolia",
		Identifier:       "sepolia",
		NativeSymbol:     "ETH",
		Decimals:         18,
		BlockExplorerURL: "https://sepolia.etherscan.io",
		Testnet:          true,
	}
	Holesky = entity.NetworkDefinition{
		ChainID:          17000,
		Name:             "Holesky",
		Identifier:       "holesky",
		NativeSymbol:     "ETH",
		Decimals:         18,
		BlockExplorerURL: "https://holesky.etherscan.io",
		Testnet:          true,
	}
	// Ganache и Hardhat используют эти ID для локальной разработки.
	Localhost = entity.NetworkDefinition{
		ChainID:      1337,
		Name:         "Localhost",
		Identifier:   "localhost",
		NativeSymbol: "ETH",
		Decimals:     18,
		Testnet:      true,
	}
	Hardhat = entity.NetworkDefinition{
		ChainID:      31337,
		Name:         "Hardhat",
		Identifier:   "hardhat",
		NativeSymbol: "ETH",
		Decimals:     18,
		Testnet:      true,
	}
	Ganache = entity.NetworkDefinition{
		ChainID:      5777,
		Name:         "Ganache",
		Identifier:   "ganache",
		NativeSymbol: "ETH",
		Decimals:     18,
		Testnet:      true,
	}
)

// allKnownDefinitions is a helper to quickly access all hardcoded definitions.
var allKnownDefinitions = []entity.NetworkDefinition{
	Ethereum, Optimism, BSC, Polygon, Base, Arbitrum, Avalanche,
	Sepolia, Holesky, Localhost, Hardhat, Ganache,
}

// NetworkDefinitionProvider resolves chain IDs reported by the wallet to network definitions.
type NetworkDefinitionProvider struct {
	logger  port.Logger
	byChain map[uint64]entity.NetworkDefinition
}

// NewNetworkDefinitionProvider creates a new NetworkDefinitionProvider.
// Extra definitions override the built-in ones with the same chain ID.
func NewNetworkDefinitionProvider(log port.Logger, extra []entity.NetworkDefinition) *NetworkDefinitionProvider {
	p := &NetworkDefinitionProvider{
		logger:  log,
		byChain: make(map[uint64]entity.NetworkDefinition, len(allKnownDefinitions)+len(extra)),
	}
	for _, def := range allKnownDefinitions {
		p.byChain[def.ChainID] = def
	}
	for _, def := range extra {
		if def.ChainID == 0 {
			p.logger.Warn("Skipping network definition without chain ID", "name", def.Name)
			continue
		}
		if def.Decimals == 0 {
			def.Decimals = 18
		}
		if _, exists := p.byChain[def.ChainID]; exists {
			p.logger.Debug(fmt.Sprintf("Network definition for chain %d overridden by config", def.ChainID), "name", def.Name)
		}
		p.byChain[def.ChainID] = def
	}
	p.logger.Info("NetworkDefinitionProvider initialized", "networks", len(p.byChain))
	return p
}

// GetAllNetworkDefinitions returns all known definitions ordered by chain ID.
func (p *NetworkDefinitionProvider) GetAllNetworkDefinitions() []entity.NetworkDefinition {
	if p == nil {
		return []entity.NetworkDefinition{}
	}
	defs := make([]entity.NetworkDefinition, 0, len(p.byChain))
	for _, def := range p.byChain {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ChainID < defs[j].ChainID })
	return defs
}

// GetNetworkDefinitionByChainID returns a specific network definition by its chain ID.
func (p *NetworkDefinitionProvider) GetNetworkDefinitionByChainID(chainID uint64) (entity.NetworkDefinition, bool) {
	if p == nil {
		return entity.NetworkDefinition{}, false
	}
	def, ok := p.byChain[chainID]
	return def, ok
}

// ChainName returns a display name for chainID, "Chain <id>" for unknown chains
// and an empty string when no chain is known.
func (p *NetworkDefinitionProvider) ChainName(chainID uint64) string {
	if chainID == 0 {
		return ""
	}
	if def, ok := p.GetNetworkDefinitionByChainID(chainID); ok && def.Name != "" {
		return def.Name
	}
	return fmt.Sprintf("Chain %d", chainID)
}
