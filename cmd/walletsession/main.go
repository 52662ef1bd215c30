package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"wallet_session/internal/app/port"
	"wallet_session/internal/app/service"
	"wallet_session/internal/infrastructure/configloader"
	networkdefinition "wallet_session/internal/infrastructure/network/definition"
	"wallet_session/internal/infrastructure/walletprovider"
	"wallet_session/internal/pkg/logger"
	"wallet_session/internal/pkg/utils"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/config.yml"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "walletsession",
	Short:         "Wallet session service",
	Long:          "Keeps the connection state of an EIP-1193 wallet (account, balance, chain) and serves it over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		utils.GetEnv("WALLET_SESSION_CONFIG", defaultConfigPath), "path to the YAML configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session bundles the wallet side of the service.
type session struct {
	rpc      *walletprovider.RPCProvider // nil when the wallet endpoint is unreachable
	store    port.SessionStore
	networks *networkdefinition.NetworkDefinitionProvider
}

// openSession dials the wallet and builds the session store on top of it.
// An unreachable wallet is not an error: the store then reports the provider as missing.
func openSession(ctx context.Context, cfg *configloader.Config, metrics port.SessionMetrics) *session {
	providerLog := logger.Named("walletprovider")

	if cfg.Provider.Probe {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.Provider.DialTimeout())
		version, err := walletprovider.Probe(probeCtx, cfg.Provider.Endpoint, cfg.Provider.DialTimeout())
		cancel()
		switch {
		case err == nil:
			providerLog.Info("Wallet endpoint answered probe", "client", version)
		case errors.Is(err, walletprovider.ErrProbeUnsupported):
			providerLog.Debug("Probe skipped for non-HTTP endpoint", "endpoint", cfg.Provider.Endpoint)
		default:
			providerLog.Warn("Wallet endpoint probe failed", "error", err)
		}
	}

	s := &session{
		networks: networkdefinition.NewNetworkDefinitionProvider(logger.Named("networks"), cfg.Networks),
	}

	var provider walletprovider.Provider
	rpcProvider, err := walletprovider.DialRPCProvider(ctx, walletprovider.RPCProviderConfig{
		Endpoint:     cfg.Provider.Endpoint,
		DialTimeout:  cfg.Provider.DialTimeout(),
		EventMode:    cfg.Provider.EventMode,
		PollInterval: cfg.Provider.PollInterval(),
		PollBurst:    cfg.Provider.PollBurst,
	}, providerLog)
	if err != nil {
		providerLog.Warn("Wallet provider unavailable, connect requests will report it as missing", "error", err)
	} else {
		s.rpc = rpcProvider
		provider = rpcProvider
	}

	wallet := walletprovider.NewAdapter(provider, providerLog,
		cfg.Provider.CallTimeout(), cfg.Provider.RequestAccountsTimeout())
	s.store = service.NewSessionStore(wallet, logger.Named("session"), metrics, service.SessionStoreOptions{
		ClearOnFailure: cfg.Session.ClearOnFailure,
	})
	return s
}

func (s *session) Close() {
	if s.rpc != nil {
		s.rpc.Close()
	}
}

func loadConfig() (*configloader.Config, error) {
	cfg, err := configloader.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
