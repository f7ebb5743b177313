package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// KeyLength is the required encryption key size: 32 bytes for AES-256.
const KeyLength = 32

// Server captures process level configuration. It is built once at startup
// and passed by injection so leaf packages never read ambient environment
// state.
type Server struct {
	Addr       string
	AdminToken string

	// EncryptionKey is the 32-byte AES-256 key for PII at rest. Absence or a
	// wrong length is a fatal startup condition, not a per-call error.
	EncryptionKey []byte

	Datapro    ProviderConfig
	Verifydata ProviderConfig

	// PostgresURL enables the Postgres audit/usage-log stores when set.
	PostgresURL string

	Redis RedisConfig
	Kafka KafkaConfig

	Verify VerifyConfig
}

// ProviderConfig holds one external verification service's endpoint and
// credential.
type ProviderConfig struct {
	BaseURL    string
	Credential string
}

// RedisConfig mirrors the connection tuning knobs we actually use.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the optional audit event sink when Brokers is set.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// VerifyConfig tunes the bulk verification pipeline.
type VerifyConfig struct {
	BatchSize      int
	BatchDelay     time.Duration
	RequestTimeout time.Duration
	MaxRetries     int
	RateLimit      int
	RateWindow     time.Duration
	LinkTTL        time.Duration
	LinkSigningKey string
	MonthlyCallCap int
	AlertThreshold int
}

// Load builds a Server config from environment variables so main stays lean.
// It fails when the encryption key is missing or malformed; everything else
// falls back to development defaults.
func Load() (Server, error) {
	key, err := parseEncryptionKey(os.Getenv("ENCRYPTION_KEY"))
	if err != nil {
		return Server{}, err
	}

	cfg := Server{
		Addr:          envOr("REMEDIA_ADDR", ":8080"),
		AdminToken:    os.Getenv("REMEDIA_ADMIN_TOKEN"),
		EncryptionKey: key,
		Datapro: ProviderConfig{
			BaseURL:    envOr("DATAPRO_API_URL", "https://api.datapronigeria.com"),
			Credential: os.Getenv("DATAPRO_SERVICE_ID"),
		},
		Verifydata: ProviderConfig{
			BaseURL:    envOr("VERIFYDATA_API_URL", "https://vapi.verifydata.ng"),
			Credential: os.Getenv("VERIFYDATA_SECRET_KEY"),
		},
		PostgresURL: os.Getenv("REMEDIA_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REMEDIA_REDIS_URL"),
			PoolSize:     envInt("REMEDIA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REMEDIA_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("REMEDIA_KAFKA_BROKERS")),
			Topic:   envOr("REMEDIA_KAFKA_AUDIT_TOPIC", "verification-audit-logs"),
		},
		Verify: VerifyConfig{
			BatchSize:      envInt("REMEDIA_BATCH_SIZE", 10),
			BatchDelay:     envDuration("REMEDIA_BATCH_DELAY", 12*time.Second),
			RequestTimeout: envDuration("REMEDIA_PROVIDER_TIMEOUT", 30*time.Second),
			MaxRetries:     envInt("REMEDIA_PROVIDER_RETRIES", 3),
			RateLimit:      envInt("REMEDIA_PROVIDER_RATE_LIMIT", 50),
			RateWindow:     time.Minute,
			LinkTTL:        envDuration("REMEDIA_LINK_TTL", 72*time.Hour),
			// Use a default for development - should be overridden in production
			LinkSigningKey: envOr("REMEDIA_LINK_SIGNING_KEY", "dev-secret-key-change-in-production"),
			MonthlyCallCap: envInt("REMEDIA_MONTHLY_CALL_CAP", 10000),
			AlertThreshold: envInt("REMEDIA_ALERT_THRESHOLD", 80),
		},
	}
	return cfg, nil
}

func parseEncryptionKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not set; generate one with the keygen command")
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(key) != KeyLength {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be %d bytes (%d hex characters), got %d bytes", KeyLength, KeyLength*2, len(key))
	}
	return key, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
