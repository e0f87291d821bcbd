package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/voicepartnerai/platform/internal/analytics"
	"github.com/voicepartnerai/platform/internal/audit"
	"github.com/voicepartnerai/platform/internal/auth"
	"github.com/voicepartnerai/platform/internal/cache"
	"github.com/voicepartnerai/platform/internal/calls"
	"github.com/voicepartnerai/platform/internal/config"
	"github.com/voicepartnerai/platform/internal/credits"
	"github.com/voicepartnerai/platform/internal/keys"
	"github.com/voicepartnerai/platform/internal/limits"
	"github.com/voicepartnerai/platform/internal/observability"
	"github.com/voicepartnerai/platform/internal/providers"
	"github.com/voicepartnerai/platform/internal/storage/blob"
	"github.com/voicepartnerai/platform/internal/storage/recordings"
	"github.com/voicepartnerai/platform/internal/store"
	"github.com/voicepartnerai/platform/internal/usagelog"
)

// Container aggregates runtime dependencies for handlers and services.
type Container struct {
	Config *config.Config
	DBPool *pgxpool.Pool
	Redis  *redis.Client
	Store  *store.Store
	Logger *slog.Logger

	Auth        *auth.Service
	Keys        *keys.Service
	Calls       *calls.Service
	Webhooks    *calls.WebhookHandler
	RateLimiter *limits.RateLimiter
	Usage       *usagelog.Recorder
	Sweeper     *usagelog.Sweeper
	Audit       *audit.Recorder
	Analytics   *analytics.Service
	Calculator  *credits.Calculator

	Telephony  *providers.Telephony
	LLM        *providers.LLM
	Speech     *providers.Speech
	Recordings *recordings.Archiver

	Observability *observability.Provider
}

// NewContainer builds a dependency container from the provided primitives.
func NewContainer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *slog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("db pool is required")
	}
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	st := store.New(pool)

	tokenManager, err := auth.NewTokenManager(
		cfg.Session.JWTSecret,
		cfg.Session.AccessTokenTTL,
		cfg.Session.RefreshTokenTTL,
		"voicepartner-platform",
	)
	if err != nil {
		return nil, fmt.Errorf("init token manager: %w", err)
	}
	authSvc := auth.NewService(st, tokenManager)

	auditRec := audit.NewRecorder(st, logger)

	keySvc := keys.NewService(st, auditRec, keys.Defaults{
		RequestsPerMinute: cfg.RateLimits.DefaultRequestsPerMinute,
		RequestsPerHour:   cfg.RateLimits.DefaultRequestsPerHour,
		RequestsPerDay:    cfg.RateLimits.DefaultRequestsPerDay,
	})

	calculator := credits.NewCalculator()
	callSvc := calls.NewService(st, calculator)

	obsProvider, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setup observability: %w", err)
	}

	container := &Container{
		Config:        cfg,
		DBPool:        pool,
		Redis:         redisClient,
		Store:         st,
		Logger:        logger,
		Auth:          authSvc,
		Keys:          keySvc,
		Calls:         callSvc,
		RateLimiter:   limits.NewRateLimiter(st),
		Usage:         usagelog.NewRecorder(st),
		Audit:         auditRec,
		Analytics:     analytics.NewService(st),
		Calculator:    calculator,
		Observability: obsProvider,
	}

	if cfg.Retention.UsageEventDays > 0 {
		retention := time.Duration(cfg.Retention.UsageEventDays) * 24 * time.Hour
		container.Sweeper = usagelog.NewSweeper(st, retention, cfg.Retention.SweepInterval, logger)
	}

	if err := container.initProviders(ctx, cfg); err != nil {
		return nil, err
	}

	dedup := cache.NewWebhookDedup(redisClient, cfg.Webhooks.DedupTTL)
	var analyzer *calls.Analyzer
	if container.LLM != nil {
		analyzer = calls.NewAnalyzer(container.LLM)
	}
	container.Webhooks = calls.NewWebhookHandler(callSvc, dedup, container.Recordings, analyzer, logger)

	return container, nil
}

// initProviders wires the optional outbound integrations. Each one is skipped
// when its credentials are absent so local development works without accounts.
func (c *Container) initProviders(ctx context.Context, cfg *config.Config) error {
	if cfg.Providers.OpenAIKey != "" {
		llm, err := providers.NewLLM(providers.LLMOptions{
			APIKey:  cfg.Providers.OpenAIKey,
			BaseURL: cfg.Providers.OpenAIBaseURL,
			Model:   cfg.Providers.LLMModel,
			Timeout: cfg.Providers.LLMTimeout,
		})
		if err != nil {
			return fmt.Errorf("init llm provider: %w", err)
		}
		c.LLM = llm

		speech, err := providers.NewSpeech(providers.SpeechOptions{
			APIKey:  cfg.Providers.OpenAIKey,
			BaseURL: cfg.Providers.OpenAIBaseURL,
			Voice:   cfg.Providers.TTSVoice,
			Timeout: cfg.Providers.SpeechTimeout,
		})
		if err != nil {
			return fmt.Errorf("init speech provider: %w", err)
		}
		c.Speech = speech
	}

	if cfg.Providers.Telephony.AccountSID != "" {
		telephony, err := providers.NewTelephony(providers.TelephonyOptions{
			AccountSID: cfg.Providers.Telephony.AccountSID,
			AuthToken:  cfg.Providers.Telephony.AuthToken,
			BaseURL:    cfg.Providers.Telephony.BaseURL,
			Timeout:    cfg.Providers.Telephony.Timeout,
		})
		if err != nil {
			return fmt.Errorf("init telephony provider: %w", err)
		}
		c.Telephony = telephony

		blobStore, err := blob.New(ctx, cfg.Recordings)
		if err != nil {
			return fmt.Errorf("init recordings storage: %w", err)
		}
		c.Recordings = recordings.NewArchiver(telephony, blobStore, c.Logger)
	}

	return nil
}
