package config

import (
	"fmt"
	"strings"
	"time"
)

// Environment variable slots scanned for provider accounts.
const maxAccountSlots = 5

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment          string
	Addr                 string
	StateFile            string
	ProviderAPIURL       string
	DeployRequestTimeout time.Duration
	DeployPollInterval   time.Duration
	DeployPollAttempts   int
	AdminPassword        string
	AdminPasswordHash    string
	JWTSecret            string
	AdminTokenTTL        time.Duration
	CredEncryptionKey    string
	DefaultMaxDeploys    int
	RateLimitRedisAddr   string
	RateLimitRedisPass   string
	RateLimitRedisDB     int
	WSWriteBuffer        int
	LogLevel             string
}

// AccountConfig describes one provider account sourced from the environment.
type AccountConfig struct {
	ID             string
	Credential     string
	TeamID         string
	MaxDeployments int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:          GetString("APP_ENV", "development"),
		Addr:                 GetString("API_ADDR", ":4000"),
		StateFile:            GetString("STATE_FILE", "data/deployment-stats.json"),
		ProviderAPIURL:       GetString("PROVIDER_API_URL", "https://api.vercel.com"),
		DeployRequestTimeout: time.Duration(GetInt("DEPLOY_REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		DeployPollInterval:   time.Duration(GetInt("DEPLOY_POLL_SECONDS", 10)) * time.Second,
		DeployPollAttempts:   GetInt("DEPLOY_POLL_MAX_ATTEMPTS", 30),
		AdminPassword:        GetString("ADMIN_PASSWORD", ""),
		AdminPasswordHash:    GetString("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:            GetString("JWT_SECRET", "supersecuresecret"),
		AdminTokenTTL:        time.Duration(GetInt("ADMIN_TOKEN_TTL_MIN", 60)) * time.Minute,
		CredEncryptionKey:    GetString("CRED_ENCRYPTION_KEY", "supersecuresecret"),
		DefaultMaxDeploys:    GetInt("VERCEL_MAX_DEPLOYMENTS", 100),
		RateLimitRedisAddr:   GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass:   GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:     GetInt("RATE_LIMIT_REDIS_DB", 0),
		WSWriteBuffer:        GetInt("WS_WRITE_BUFFER", 100),
		LogLevel:             GetString("LOG_LEVEL", "info"),
	}
}

// LoadAccounts reads the numbered VERCEL_TOKEN_n / VERCEL_TEAM_n slots.
// Slots without a token still produce an account entry so that persisted
// usage survives a temporarily unset credential; the selector filters
// credential-less accounts out.
func LoadAccounts(defaultMax int) []AccountConfig {
	if defaultMax <= 0 {
		defaultMax = 100
	}
	accounts := make([]AccountConfig, 0, maxAccountSlots)
	for i := 1; i <= maxAccountSlots; i++ {
		token := strings.TrimSpace(GetString(fmt.Sprintf("VERCEL_TOKEN_%d", i), ""))
		team := strings.TrimSpace(GetString(fmt.Sprintf("VERCEL_TEAM_%d", i), ""))
		accounts = append(accounts, AccountConfig{
			ID:             fmt.Sprintf("account%d", i),
			Credential:     token,
			TeamID:         team,
			MaxDeployments: GetInt(fmt.Sprintf("VERCEL_MAX_DEPLOYMENTS_%d", i), defaultMax),
		})
	}
	return accounts
}
