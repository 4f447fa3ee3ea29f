// Package config loads the ingestor's environment-style configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the ingestor accepts, all overridable via
// environment variables. Defaults match the reference implementation.
type Config struct {
	CacheURL   string // durable buffer backend (redis URL)
	StoreURL   string // time-series document store connection string
	StoreDB    string // store database name

	DiscoveryInterval time.Duration // default 20s
	ZombieTimeout     time.Duration // default 180s

	ChatBatchSize  int           // default 500
	GiftBatchSize  int           // default 500
	StatBatchSize  int           // default 100
	BufferTimeout  time.Duration // default 5s

	GiftFlushPopCount int // default 1000, gifts bulk-pop cap
	StatFlushPopCount int // default 500

	DedupTTL           time.Duration // default 600s
	DedupLocalCapacity int           // default 1000

	ComboTimeout    time.Duration // default 10s
	ComboMaxBuffer  int           // default 10000
	ComboEvictEvery time.Duration // default 1s

	HeartbeatInterval time.Duration // default 10s
	ThrottleInterval  time.Duration // default 2s

	CredentialPoolPath string // JSON file backing the credential pool
	UserAgent          string

	PlatformBaseURL string // REST base URL for discovery/room-detail
	PushBaseURL     string // websocket base URL for the push channel
	OracleURL       string // external signing oracle endpoint
	SecUserID       string // the authenticated account's own sec_uid

	StatusServerBasePort int // start of the port-scan range for the local status HTTP server

	LogLevel  string // zerolog level name
	LogFormat string // "json" or "console"
}

// Load reads a .env file if present (development convenience) and then
// layers real OS environment variables on top, matching the teacher's
// env-var-first bootstrap posture.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		CacheURL:           getenv("LIVEPULSE_CACHE_URL", "redis://127.0.0.1:6379/0"),
		StoreURL:           getenv("LIVEPULSE_STORE_URL", "mongodb://127.0.0.1:27017"),
		StoreDB:            getenv("LIVEPULSE_STORE_DB", "livepulse"),
		DiscoveryInterval:  getDuration("LIVEPULSE_DISCOVERY_INTERVAL", 20*time.Second),
		ZombieTimeout:      getDuration("LIVEPULSE_ZOMBIE_TIMEOUT", 180*time.Second),
		ChatBatchSize:      getInt("LIVEPULSE_CHAT_BATCH_SIZE", 500),
		GiftBatchSize:      getInt("LIVEPULSE_GIFT_BATCH_SIZE", 500),
		StatBatchSize:      getInt("LIVEPULSE_STAT_BATCH_SIZE", 100),
		BufferTimeout:      getDuration("LIVEPULSE_BUFFER_TIMEOUT", 5*time.Second),
		GiftFlushPopCount:  getInt("LIVEPULSE_GIFT_FLUSH_POP_COUNT", 1000),
		StatFlushPopCount:  getInt("LIVEPULSE_STAT_FLUSH_POP_COUNT", 500),
		DedupTTL:           getDuration("LIVEPULSE_DEDUP_TTL", 600*time.Second),
		DedupLocalCapacity: getInt("LIVEPULSE_DEDUP_LOCAL_CAPACITY", 1000),
		ComboTimeout:       getDuration("LIVEPULSE_COMBO_TIMEOUT", 10*time.Second),
		ComboMaxBuffer:     getInt("LIVEPULSE_COMBO_MAX_BUFFER", 10000),
		ComboEvictEvery:    getDuration("LIVEPULSE_COMBO_EVICT_EVERY", 1*time.Second),
		HeartbeatInterval:  getDuration("LIVEPULSE_HEARTBEAT_INTERVAL", 10*time.Second),
		ThrottleInterval:   getDuration("LIVEPULSE_THROTTLE_INTERVAL", 2*time.Second),
		CredentialPoolPath: getenv("LIVEPULSE_CREDENTIAL_POOL_PATH", "./data/credentials.json"),
		UserAgent:          getenv("LIVEPULSE_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
		PlatformBaseURL:    getenv("LIVEPULSE_PLATFORM_BASE_URL", "https://webcast.example.com"),
		PushBaseURL:        getenv("LIVEPULSE_PUSH_BASE_URL", "wss://webcast-push.example.com/webcast/im/push/v2/"),
		OracleURL:          getenv("LIVEPULSE_ORACLE_URL", "http://127.0.0.1:9090/sign"),
		SecUserID:            getenv("LIVEPULSE_SEC_USER_ID", ""),
		StatusServerBasePort: getInt("LIVEPULSE_STATUS_PORT", 3000),
		LogLevel:             getenv("LIVEPULSE_LOG_LEVEL", "info"),
		LogFormat:            getenv("LIVEPULSE_LOG_FORMAT", "json"),
	}

	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("config: LIVEPULSE_STORE_URL must not be empty")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
