package main

import (
	"context"
	"fmt"
	"time"

	"wallet_session/internal/infrastructure/restapi"
	"wallet_session/internal/pkg/logger"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var statusTimeout time.Duration

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Restore a previously authorized session and print it",
	Long:  "Queries the wallet for already authorized accounts without prompting and prints the resulting session as JSON.",
	Example: `  walletsession status
  walletsession status --timeout 10s`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 30*time.Second, "overall timeout of the status query")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	zapLogger, err := logger.InitZap(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()

	s := openSession(ctx, cfg, nil)
	defer s.Close()

	s.store.SilentReconnect(ctx)

	view := restapi.NewSessionHandler(s.store, s.networks, logger.Named("status")).View(s.store.Snapshot())
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(view, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
