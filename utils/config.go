package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven setting of the service.
type Config struct {
	Port           string
	DatabaseURL    string
	ServiceToken   string
	AllowedOrigins []string
	LogLevel       string
	LogJSON        bool

	StorageDriver   string // "r2" or "local"
	LocalUploadDir  string
	LocalPublicURL  string
	R2AccountID     string
	R2AccessKeyID   string
	R2AccessSecret  string
	R2Bucket        string
	CDNBaseURL      string
	MaxUploadBytes  int64

	OracleProvider     string // "openrouter" or "gemini"
	OpenRouterAPIKey   string
	OpenRouterBaseURL  string
	OpenRouterModel    string
	OpenRouterSiteURL  string
	OpenRouterSiteName string
	GeminiAPIKey       string
	GeminiModel        string
	OracleTimeout      time.Duration
	OracleMaxRetries   int

	RedisURL          string
	ChallengeCacheTTL time.Duration

	SyncServiceURL    string
	ProfileSyncPeriod time.Duration
	AuthServiceURL    string

	ReconcileInterval   time.Duration
	ReconcileGrace      time.Duration
	VerifiedXP          int
	VerifiedStreakDelta int
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "5200"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		ServiceToken: os.Getenv("SERVICE_TOKEN"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogJSON:      getEnvBool("LOG_JSON", true),

		StorageDriver:  strings.ToLower(getEnv("STORAGE_DRIVER", "r2")),
		LocalUploadDir: getEnv("LOCAL_UPLOAD_DIR", "uploads"),
		LocalPublicURL: getEnv("LOCAL_PUBLIC_URL", "/uploads"),
		R2AccountID:    os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:  os.Getenv("R2_ACCESS_KEY_ID"),
		R2AccessSecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
		R2Bucket:       getEnv("R2_BUCKET_NAME", "challenge-proof"),
		CDNBaseURL:     os.Getenv("CDN_BASE_URL"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10*1024*1024)),

		OracleProvider:     strings.ToLower(getEnv("ORACLE_PROVIDER", "openrouter")),
		OpenRouterAPIKey:   os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL:  getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:    getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		OpenRouterSiteURL:  os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterSiteName: getEnv("OPENROUTER_SITE_NAME", "EcoSkill"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OracleTimeout:      getEnvDuration("ORACLE_TIMEOUT", 45*time.Second),
		OracleMaxRetries:   getEnvInt("ORACLE_MAX_RETRIES", 2),

		RedisURL:          os.Getenv("REDIS_URL"),
		ChallengeCacheTTL: getEnvDuration("CHALLENGE_CACHE_TTL", 30*time.Second),

		SyncServiceURL:    os.Getenv("SYNC_SERVICE_URL"),
		ProfileSyncPeriod: getEnvDuration("PROFILE_SYNC_INTERVAL", time.Minute),
		AuthServiceURL:    os.Getenv("AUTH_SERVICE_URL"),

		ReconcileInterval:   getEnvDuration("RECONCILE_INTERVAL", 2*time.Minute),
		ReconcileGrace:      getEnvDuration("RECONCILE_GRACE", 30*time.Second),
		VerifiedXP:          getEnvInt("VERIFIED_XP", 20),
		VerifiedStreakDelta: getEnvInt("VERIFIED_STREAK_DELTA", 1),
	}

	origins := getEnv("ALLOWED_ORIGINS", "http://localhost:3000")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	return cfg, cfg.Validate()
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.ServiceToken == "" {
		errs = append(errs, errors.New("SERVICE_TOKEN is required"))
	}
	switch c.StorageDriver {
	case "r2":
		if c.R2AccountID == "" || c.R2AccessKeyID == "" || c.R2AccessSecret == "" {
			errs = append(errs, errors.New("CLOUDFLARE_ACCOUNT_ID, R2_ACCESS_KEY_ID and R2_ACCESS_KEY_SECRET are required for STORAGE_DRIVER=r2"))
		}
	case "local":
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	switch c.OracleProvider {
	case "openrouter":
		if c.OpenRouterAPIKey == "" {
			errs = append(errs, errors.New("OPENROUTER_API_KEY is required for ORACLE_PROVIDER=openrouter"))
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for ORACLE_PROVIDER=gemini"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ORACLE_PROVIDER %q", c.OracleProvider))
	}
	if c.ReconcileInterval <= 0 || c.ProfileSyncPeriod <= 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL and PROFILE_SYNC_INTERVAL must be positive"))
	}
	if c.VerifiedXP < 0 || c.VerifiedStreakDelta < 0 {
		errs = append(errs, errors.New("VERIFIED_XP and VERIFIED_STREAK_DELTA must not be negative"))
	}
	if c.OracleMaxRetries < 0 {
		errs = append(errs, errors.New("ORACLE_MAX_RETRIES must not be negative"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
