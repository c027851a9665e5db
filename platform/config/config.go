// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for admin middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler/worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// OutreachConfig provides settings for the engagement-platform client.
type OutreachConfig interface {
	GetOutreachBaseURL() string
	GetOutreachAPIKey() string
	GetOutreachTimeout() time.Duration
	IsOutreachEnabled() bool
}

// CRMConfig provides settings for the CRM client.
type CRMConfig interface {
	GetCRMBaseURL() string
	GetCRMAPIKey() string
	GetCRMTimeout() time.Duration
	IsCRMEnabled() bool
}

// SyncConfig provides settings for the sync engine itself.
type SyncConfig interface {
	GetCrossCampaignDedup() bool
	GetFreemailCompanyName() string
	GetCleanupGraceWindow() time.Duration
	GetBackfillBatchSize() int
	GetBackfillMaxLeads() int
	GetBackfillLeadDelay() time.Duration
	GetBackfillDeadline() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	OutreachBaseURL string
	OutreachAPIKey  string
	OutreachTimeout time.Duration

	CRMBaseURL string
	CRMAPIKey  string
	CRMTimeout time.Duration

	CrossCampaignDedup  bool
	FreemailCompanyName string
	CleanupGraceWindow  time.Duration
	BackfillBatchSize   int
	BackfillMaxLeads    int
	BackfillLeadDelay   time.Duration
	BackfillDeadline    time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// OutreachConfig implementation
func (c *Config) GetOutreachBaseURL() string        { return c.OutreachBaseURL }
func (c *Config) GetOutreachAPIKey() string         { return c.OutreachAPIKey }
func (c *Config) GetOutreachTimeout() time.Duration { return c.OutreachTimeout }
func (c *Config) IsOutreachEnabled() bool           { return c.OutreachBaseURL != "" && c.OutreachAPIKey != "" }

// CRMConfig implementation
func (c *Config) GetCRMBaseURL() string        { return c.CRMBaseURL }
func (c *Config) GetCRMAPIKey() string         { return c.CRMAPIKey }
func (c *Config) GetCRMTimeout() time.Duration { return c.CRMTimeout }
func (c *Config) IsCRMEnabled() bool           { return c.CRMBaseURL != "" && c.CRMAPIKey != "" }

// SyncConfig implementation
func (c *Config) GetCrossCampaignDedup() bool         { return c.CrossCampaignDedup }
func (c *Config) GetFreemailCompanyName() string      { return c.FreemailCompanyName }
func (c *Config) GetCleanupGraceWindow() time.Duration { return c.CleanupGraceWindow }
func (c *Config) GetBackfillBatchSize() int           { return c.BackfillBatchSize }
func (c *Config) GetBackfillMaxLeads() int            { return c.BackfillMaxLeads }
func (c *Config) GetBackfillLeadDelay() time.Duration { return c.BackfillLeadDelay }
func (c *Config) GetBackfillDeadline() time.Duration  { return c.BackfillDeadline }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    corsAllowAll,
		CORSOrigins:     corsOrigins,
		CORSAllowCreds:  strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		OutreachBaseURL: getEnv("OUTREACH_API_URL", ""),
		OutreachAPIKey:  getEnv("OUTREACH_API_KEY", ""),
		OutreachTimeout: mustDuration(getEnv("OUTREACH_TIMEOUT", "15s")),

		CRMBaseURL: getEnv("CRM_API_URL", ""),
		CRMAPIKey:  getEnv("CRM_API_KEY", ""),
		CRMTimeout: mustDuration(getEnv("CRM_TIMEOUT", "15s")),

		CrossCampaignDedup:  strings.EqualFold(getEnv("SYNC_CROSS_CAMPAIGN_DEDUP", "true"), "true"),
		FreemailCompanyName: getEnv("SYNC_FREEMAIL_COMPANY_NAME", ""),
		CleanupGraceWindow:  mustDuration(getEnv("SYNC_CLEANUP_GRACE_WINDOW", "240h")),
		BackfillBatchSize:   mustInt(getEnv("BACKFILL_BATCH_SIZE", "50")),
		BackfillMaxLeads:    mustInt(getEnv("BACKFILL_MAX_LEADS", "0")),
		BackfillLeadDelay:   mustDuration(getEnv("BACKFILL_LEAD_DELAY", "300ms")),
		BackfillDeadline:    mustDuration(getEnv("BACKFILL_DEADLINE", "25m")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.BackfillBatchSize < 1 {
		return nil, fmt.Errorf("BACKFILL_BATCH_SIZE must be at least 1")
	}
	if cfg.CleanupGraceWindow <= 0 {
		return nil, fmt.Errorf("SYNC_CLEANUP_GRACE_WINDOW must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
