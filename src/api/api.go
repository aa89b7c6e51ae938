package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/modelarena/arena/src/achievements"
	"github.com/modelarena/arena/src/ai/core"
	"github.com/modelarena/arena/src/ai/providers"
	"github.com/modelarena/arena/src/api/config"
	"github.com/modelarena/arena/src/api/data"
	"github.com/modelarena/arena/src/api/types"
	"github.com/modelarena/arena/src/api/webserver"
	"github.com/modelarena/arena/src/consensus"
	"github.com/modelarena/arena/src/rewards"
	"github.com/modelarena/arena/src/scoring"
	"github.com/modelarena/arena/src/treasury"
	"github.com/modelarena/arena/src/x402"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	db := data.MustMySQL(cfg.MySQLDSN)
	if err := data.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	seedDefaults(db)

	rdb := data.MustRedis(cfg.RedisURL)

	pool := providers.NewPool(core.FactoryConfig{
		OpenAIKey: cfg.OpenAIKey,
		ClaudeKey: cfg.ClaudeKey,
	})
	engine := scoring.NewEngine(buildJudge(cfg, pool))

	treasuryClient := buildTreasury(cfg, db)

	sessions := x402.NewSessionManager([]byte(cfg.SessionSecret), time.Hour)
	chatRoute := x402.RouteConfig{
		PriceUSD:    cfg.ChatPriceUSD,
		Network:     cfg.Network,
		Description: "one model arena chat round",
	}
	gate, err := x402.NewGate(x402.GateConfig{
		Routes: map[string]x402.RouteConfig{
			"/arena/chat":        chatRoute,
			"/arena/chat/stream": chatRoute,
		},
		Sessions:       sessions,
		Settler:        treasuryClient,
		ChainID:        cfg.ChainID,
		TokenAddress:   cfg.TokenAddress,
		PayToAddress:   cfg.PayToAddress,
		FacilitatorURL: cfg.FacilitatorURL,
	})
	if err != nil {
		log.Fatalf("x402 gate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gate.Start(ctx)

	startJobs(ctx, cfg, db, treasuryClient)

	router := webserver.New(cfg, webserver.Deps{
		DB:           db,
		RDB:          rdb,
		Gate:         gate,
		Engine:       engine,
		Pool:         pool,
		Treasury:     treasuryClient,
		Achievements: buildAchievements(db, treasuryClient),
	})

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown: %v", err)
	}
}

// buildJudge returns the reference judge used to score votes. An
// unreachable provider degrades to the offline heuristic instead of
// refusing to boot.
func buildJudge(cfg config.Config, pool *providers.Pool) scoring.Judge {
	if cfg.JudgeProvider == "" || cfg.JudgeProvider == "heuristic" {
		return scoring.HeuristicJudge{}
	}
	client, err := pool.Client(cfg.JudgeProvider)
	if err != nil {
		log.Printf("judge provider %s unavailable, using heuristic: %v", cfg.JudgeProvider, err)
		return scoring.HeuristicJudge{}
	}
	return scoring.NewRefereeJudge(client, cfg.JudgeModel)
}

// buildTreasury wires the payment client. Without a treasury key the
// client runs in simulated mode: authorizations are recorded but no
// transaction is submitted.
func buildTreasury(cfg config.Config, db *gorm.DB) *treasury.Client {
	price, err := treasury.USDToMinorUnits(cfg.ChatPriceUSD)
	if err != nil {
		log.Fatalf("CHAT_PRICE_USD: %v", err)
	}

	var chain treasury.Chain
	var signer *treasury.VoucherSigner
	if cfg.TreasuryKey != "" {
		chain, err = treasury.NewEthChain(cfg.ChainRPCURL, cfg.TreasuryAddress, cfg.TokenAddress, cfg.TreasuryKey, cfg.ChainID)
		if err != nil {
			log.Fatalf("treasury chain: %v", err)
		}
		signer, err = treasury.NewVoucherSigner(cfg.TreasuryKey)
		if err != nil {
			log.Fatalf("voucher signer: %v", err)
		}
	} else {
		log.Printf("TREASURY_PRIVATE_KEY not set, payments run in simulated mode")
	}
	return treasury.NewClient(chain, treasury.NewGormAuthStore(db), signer, price)
}

func buildAchievements(db *gorm.DB, t *treasury.Client) *achievements.Service {
	return achievements.NewService(achievements.NewGormRecords(db), t)
}

// startJobs runs the consensus batch and the weekly reward distribution
// on a shared scheduler. The reward job fires hourly but distributes at
// most once per week via its persisted period marker.
func startJobs(ctx context.Context, cfg config.Config, db *gorm.DB, t *treasury.Client) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(time.Duration(cfg.ConsensusInterval)*time.Second),
		gocron.NewTask(func() {
			stats, err := consensus.Recompute(ctx, consensus.NewGormStore(db))
			if err != nil {
				log.Printf("consensus: %v", err)
				return
			}
			if stats.Updated > 0 || stats.Failed > 0 {
				log.Printf("consensus: %d matches, %d votes updated, %d failed", stats.Matches, stats.Updated, stats.Failed)
			}
		}),
	)
	if err != nil {
		log.Fatalf("consensus job: %v", err)
	}

	rewardJob := rewards.NewJob(db, t, cfg.RewardTopN)
	_, err = sched.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			if err := rewardJob.Run(ctx); err != nil {
				log.Printf("rewards: %v", err)
			}
		}),
	)
	if err != nil {
		log.Fatalf("reward job: %v", err)
	}

	sched.Start()
	go func() {
		<-ctx.Done()
		_ = sched.Shutdown()
	}()
}

// seedDefaults makes a fresh database usable: a pair of mock contestants
// so the arena can run without provider keys, and the standard
// achievement set.
func seedDefaults(db *gorm.DB) {
	var modelCount int64
	db.Model(&types.Model{}).Count(&modelCount)
	if modelCount == 0 {
		defaults := []types.Model{
			{Name: "mock-alpha", Provider: "mock", ModelKey: "mock-alpha"},
			{Name: "mock-beta", Provider: "mock", ModelKey: "mock-beta"},
		}
		for _, m := range defaults {
			if err := db.Create(&m).Error; err != nil {
				log.Printf("seed model %s: %v", m.Name, err)
			}
		}
	}

	var achievementCount int64
	db.Model(&types.Achievement{}).Count(&achievementCount)
	if achievementCount == 0 {
		defaults := []types.Achievement{
			{Name: "First Share", Description: "Share your first prompt", Condition: `{"type":"shared_prompts_count","count":1}`, RewardAmount: "1000000"},
			{Name: "Prolific Author", Description: "Share ten prompts", Condition: `{"type":"shared_prompts_count","count":10}`, RewardAmount: "5000000"},
			{Name: "Crowd Pleaser", Description: "Collect 25 likes across your prompts", Condition: `{"type":"total_likes","count":25}`, RewardAmount: "10000000"},
			{Name: "Hit Maker", Description: "Get 10 likes on a single prompt", Condition: `{"type":"top_prompt_likes","count":10}`, RewardAmount: "10000000"},
			{Name: "Explorer", Description: "Share prompts in 5 different categories", Condition: `{"type":"distinct_categories","count":5}`, RewardAmount: "5000000"},
		}
		for _, a := range defaults {
			if err := db.Create(&a).Error; err != nil {
				log.Printf("seed achievement %s: %v", a.Name, err)
			}
		}
	}
}
