package params

import (
	"os"

	"github.com/joho/godotenv"
)

type Server struct {
	Listen  string
	LogFile string
}

type Exchange struct {
	DataDir string // empty runs the engine in memory only
	// AdminAddress gates market creation and share issuance. Empty means
	// unrestricted, which is only sensible on a devnet.
	AdminAddress string
	// DeferredSettlement switches new markets to pool-based settlement:
	// sellers accrue payouts and claim them explicitly instead of being
	// paid on every fill.
	DeferredSettlement bool
}

type Config struct {
	Server   Server
	Exchange Exchange
}

func Default() Config {
	return Config{
		Server: Server{
			Listen: ":8080",
		},
		Exchange: Exchange{
			DataDir: "data",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Server.Listen = getEnv("DM_LISTEN", cfg.Server.Listen)
	cfg.Server.LogFile = getEnv("DM_LOG_FILE", cfg.Server.LogFile)
	cfg.Exchange.DataDir = getEnv("DM_DATA_DIR", cfg.Exchange.DataDir)
	cfg.Exchange.AdminAddress = getEnv("DM_ADMIN_ADDRESS", cfg.Exchange.AdminAddress)
	if v := os.Getenv("DM_DEFERRED_SETTLEMENT"); v != "" {
		cfg.Exchange.DeferredSettlement = v == "true" || v == "1"
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
