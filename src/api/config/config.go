package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	MySQLDSN      string
	RedisURL      string
	Port          string
	SessionSecret string

	// Chain / treasury
	ChainRPCURL     string
	ChainID         int64
	TokenAddress    string // USDC contract
	TreasuryAddress string // arena treasury contract
	PayToAddress    string // recipient of settlements
	TreasuryKey     string // hex private key; empty means simulated mode
	Network         string
	FacilitatorURL  string

	// Pricing
	ChatPriceUSD string

	// AI providers
	OpenAIKey     string
	ClaudeKey     string
	JudgeProvider string
	JudgeModel    string

	// Jobs
	ConsensusInterval int // seconds
	RewardTopN        int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		if def == "" {
			log.Fatalf("missing env %s", key)
		}
		return def
	}
	return v
}

func getint(key string, def int) int {
	v, err := strconv.Atoi(getenv(key, strconv.Itoa(def)))
	if err != nil {
		log.Fatalf("env %s: %v", key, err)
	}
	return v
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	chainID, err := strconv.ParseInt(getenv("CHAIN_ID", "84532"), 10, 64)
	if err != nil {
		log.Fatalf("env CHAIN_ID: %v", err)
	}

	return Config{
		MySQLDSN:      getenv("MYSQL_DSN", "arena:arena@tcp(localhost:3306)/arena?parseTime=true"),
		RedisURL:      getenv("REDIS_URL", "redis://localhost:6379/0"),
		Port:          getenv("PORT", "8080"),
		SessionSecret: getenv("SESSION_SECRET", ""),

		ChainRPCURL:     getenv("CHAIN_RPC_URL", "https://sepolia.base.org"),
		ChainID:         chainID,
		TokenAddress:    getenv("USDC_ADDRESS", "0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		TreasuryAddress: getenv("TREASURY_ADDRESS", "0x0000000000000000000000000000000000000000"),
		PayToAddress:    getenv("PAY_TO_ADDRESS", "0x0000000000000000000000000000000000000000"),
		TreasuryKey:     os.Getenv("TREASURY_PRIVATE_KEY"),
		Network:         getenv("NETWORK", "base-sepolia"),
		FacilitatorURL:  getenv("FACILITATOR_URL", "https://x402.org/facilitator"),

		ChatPriceUSD: getenv("CHAT_PRICE_USD", "0.01"),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		ClaudeKey:     os.Getenv("ANTHROPIC_API_KEY"),
		JudgeProvider: getenv("JUDGE_PROVIDER", "heuristic"),
		JudgeModel:    getenv("JUDGE_MODEL", "gpt-4o-mini"),

		ConsensusInterval: getint("CONSENSUS_INTERVAL", 300),
		RewardTopN:        getint("REWARD_TOP_N", 10),
	}
}
