package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"smash-rewards/internal/ads"
	"smash-rewards/internal/chain"
	"smash-rewards/internal/config"
	"smash-rewards/internal/eligibility"
	"smash-rewards/internal/handler"
	"smash-rewards/internal/pkg/db"
	"smash-rewards/internal/pkg/lock"
	"smash-rewards/internal/server"
	"smash-rewards/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	b, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()
	if err := b.migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	checks := map[string]handler.Check{"store": b.check}

	var locker lock.Locker = lock.NewUserLock()
	if cfg.Redis.Addr != "" {
		client, err := db.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		locker = lock.NewRedisLock(client, cfg.Redis.LockTTL)
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	chainClient, err := chain.Dial(ctx, cfg.Chain.RPCEndpoint)
	if err != nil {
		return err
	}
	defer chainClient.Close()
	if id, err := chainClient.ChainID(ctx); err != nil {
		log.Warn().Err(err).Msg("Chain RPC unreachable at startup")
	} else if id != cfg.Chain.ChainID {
		return fmt.Errorf("rpc endpoint serves chain %d, expected %d", id, cfg.Chain.ChainID)
	}

	handlers, err := buildHandlers(cfg, b, locker, chainClient)
	if err != nil {
		return err
	}
	handlers.Health = handler.NewHealthHandler(version, checks)

	gin.SetMode(cfg.Server.Mode)
	srv := server.New(&cfg.Server, server.NewRouter(*handlers))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	}

	if err := srv.Shutdown(context.Background()); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Info().Msg("Server stopped gracefully")
	return nil
}

// buildHandlers wires services over the store, locker and chain client.
func buildHandlers(cfg *config.Config, b *backend, locker lock.Locker, chainClient *chain.Client) (*server.Handlers, error) {
	auth, err := server.NewAuthenticator(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}
	direct, indirect, err := cfg.Protocol.Rates()
	if err != nil {
		return nil, err
	}
	fee, err := chain.ToWei(cfg.Chain.MiningFee)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Quiz.Location()
	if err != nil {
		return nil, err
	}

	policy := eligibility.Policy{
		MiningCycle:  cfg.Protocol.MiningCycle,
		ChainID:      cfg.Chain.ChainID,
		AdDailyCap:   cfg.Ads.DailyCap,
		AdWindow:     cfg.Ads.Window,
		QuizLocation: loc,
	}

	var provider ads.Provider
	if cfg.Ads.Provider == "mock" {
		provider = &ads.MockProvider{Delay: cfg.Ads.MockDelay}
	}

	resolver, err := service.NewReferralResolver(b.store, cfg.Protocol.CodeCacheSize)
	if err != nil {
		return nil, err
	}
	processor := service.NewEarningProcessor(b.store, direct, indirect)
	processor.SetLedger(b.ledger)

	accounts := service.NewAccountService(b.store, chainClient, locker, policy)
	accounts.SetLedger(b.ledger)
	activation := service.NewActivationService(b.store, resolver, locker, service.ActivationConfig{
		MasterCode:   cfg.Protocol.MasterCode,
		Bonus:        cfg.Protocol.ActivationBonus,
		CodeAttempts: cfg.Protocol.CodeRetryAttempts,
	})
	activation.SetLedger(b.ledger)
	mining := service.NewMiningService(b.store, processor, chainClient, locker, policy, service.MiningConfig{
		Reward:   cfg.Protocol.MiningReward,
		Treasury: cfg.Chain.TreasuryAddress,
		Fee:      fee,
	})
	adsService := service.NewAdsService(b.store, processor, provider, locker, policy, cfg.Ads.BaseReward)
	quiz := service.NewQuizService(b.store, processor, locker, policy, service.QuizConfig{
		RewardPerAnswer: cfg.Quiz.RewardPerAnswer,
		QuestionCount:   cfg.Quiz.QuestionCount,
		StreakBonus:     cfg.Quiz.StreakBonus,
		StreakBonusDays: cfg.Quiz.StreakBonusDays,
	})

	timeout := cfg.Server.RequestTimeout
	return &server.Handlers{
		Auth:     auth,
		Accounts: handler.NewAccountHandler(accounts, activation, timeout),
		Actions:  handler.NewActionHandler(mining, adsService, quiz, timeout),
		Rankings: handler.NewRankingHandler(service.NewRankingService(b.store)),
	}, nil
}
