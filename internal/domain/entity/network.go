package entity

// NetworkDefinition describes a chain the wallet may be connected to.
// Only what the session view displays is kept here.
type NetworkDefinition struct {
	ChainID          uint64 `json:"chainId" yaml:"chainId"`
	Name             string `json:"name" yaml:"name"`
	Identifier       string `json:"identifier" yaml:"identifier"` // e.g. "ethereum", "bsc"
	NativeSymbol     string `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals         uint8  `json:"decimals" yaml:"decimals"` // native token decimals
	BlockExplorerURL string `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
	Testnet          bool   `json:"testnet,omitempty" yaml:"testnet,omitempty"`
}
