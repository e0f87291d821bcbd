package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config captures the runtime configuration for the voice platform service.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Session       SessionConfig       `mapstructure:"session"`
	RateLimits    RateLimitConfig     `mapstructure:"rate_limits"`
	Retention     RetentionConfig     `mapstructure:"retention"`
	Recordings    RecordingsConfig    `mapstructure:"recordings"`
	Providers     ProviderConfig      `mapstructure:"providers"`
	Webhooks      WebhookConfig       `mapstructure:"webhooks"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	BodyLimitMB           int           `mapstructure:"body_limit_mb"`
	ReadHeaderTimeout     time.Duration `mapstructure:"read_header_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type SessionConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// RateLimitConfig holds the ceilings stamped onto new API keys when the
// creator does not override them.
type RateLimitConfig struct {
	DefaultRequestsPerMinute int `mapstructure:"default_requests_per_minute"`
	DefaultRequestsPerHour   int `mapstructure:"default_requests_per_hour"`
	DefaultRequestsPerDay    int `mapstructure:"default_requests_per_day"`
}

type RetentionConfig struct {
	UsageEventDays int           `mapstructure:"usage_event_days"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

type RecordingsConfig struct {
	Storage       string                `mapstructure:"storage"`
	EncryptionKey string                `mapstructure:"encryption_key"`
	S3            RecordingsS3Config    `mapstructure:"s3"`
	Local         RecordingsLocalConfig `mapstructure:"local"`
}

type RecordingsS3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

type RecordingsLocalConfig struct {
	Directory string `mapstructure:"directory"`
}

type ProviderConfig struct {
	OpenAIKey     string          `mapstructure:"openai_key"`
	OpenAIBaseURL string          `mapstructure:"openai_base_url"`
	LLMModel      string          `mapstructure:"llm_model"`
	LLMTimeout    time.Duration   `mapstructure:"llm_timeout"`
	TTSVoice      string          `mapstructure:"tts_voice"`
	SpeechTimeout time.Duration   `mapstructure:"speech_timeout"`
	Telephony     TelephonyConfig `mapstructure:"telephony"`
}

type TelephonyConfig struct {
	AccountSID string        `mapstructure:"account_sid"`
	AuthToken  string        `mapstructure:"auth_token"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type WebhookConfig struct {
	DedupTTL time.Duration `mapstructure:"dedup_ttl"`
}

type ObservabilityConfig struct {
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	EnableOTLP    bool   `mapstructure:"enable_otlp"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else if cfg := os.Getenv("VOICE_CONFIG_FILE"); cfg != "" {
		v.SetConfigFile(cfg)
		explicitFile = true
	}

	if !explicitFile {
		// Allow standard lookup locations when no explicit file is provided.
		v.SetConfigName("voiced")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("VOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(timeStringToDurationHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required values are set.
func (c *Config) Validate() error {
	var missing []string

	if c.Database.URL == "" {
		missing = append(missing, "VOICE_DATABASE_URL")
	}
	if c.Redis.URL == "" {
		missing = append(missing, "VOICE_REDIS_URL")
	}
	if c.Session.JWTSecret == "" {
		missing = append(missing, "VOICE_SESSION_JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Session.AccessTokenTTL <= 0 {
		return fmt.Errorf("session.access_token_ttl must be > 0")
	}
	if c.Session.RefreshTokenTTL <= 0 {
		return fmt.Errorf("session.refresh_token_ttl must be > 0")
	}

	if c.RateLimits.DefaultRequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limits.default_requests_per_minute must be > 0")
	}
	if c.RateLimits.DefaultRequestsPerHour <= 0 {
		return fmt.Errorf("rate_limits.default_requests_per_hour must be > 0")
	}
	if c.RateLimits.DefaultRequestsPerDay <= 0 {
		return fmt.Errorf("rate_limits.default_requests_per_day must be > 0")
	}

	if c.Retention.UsageEventDays < 0 {
		return fmt.Errorf("retention.usage_event_days must be >= 0")
	}
	if c.Database.RunMigrations && c.Database.MigrationsDir == "" {
		return fmt.Errorf("database.migrations_dir must be provided when run_migrations is true")
	}
	if c.Database.MaxConns < 0 {
		return fmt.Errorf("database.max_conns must be >= 0")
	}
	if c.Redis.PoolSize < 0 {
		return fmt.Errorf("redis.pool_size must be >= 0")
	}

	if err := c.Recordings.validate(); err != nil {
		return err
	}
	return nil
}

func (r *RecordingsConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(r.Storage)) {
	case "", "local":
		r.Storage = "local"
	case "s3":
		r.Storage = "s3"
		if r.S3.Bucket == "" {
			return fmt.Errorf("recordings.s3.bucket must be provided for s3 storage")
		}
	default:
		return fmt.Errorf("recordings.storage must be local or s3")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.body_limit_mb", 10)
	v.SetDefault("server.read_header_timeout", "5s")
	v.SetDefault("server.graceful_shutdown_delay", "5s")

	// Empty defaults register the required keys with viper so they resolve
	// from the environment without a config file.
	v.SetDefault("database.url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("session.jwt_secret", "")

	v.SetDefault("database.run_migrations", true)
	v.SetDefault("database.migrations_dir", "./migrations")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("session.access_token_ttl", "15m")
	v.SetDefault("session.refresh_token_ttl", "24h")

	v.SetDefault("rate_limits.default_requests_per_minute", 60)
	v.SetDefault("rate_limits.default_requests_per_hour", 1_000)
	v.SetDefault("rate_limits.default_requests_per_day", 10_000)

	v.SetDefault("retention.usage_event_days", 90)
	v.SetDefault("retention.sweep_interval", "1h")

	v.SetDefault("recordings.storage", "local")
	v.SetDefault("recordings.local.directory", "./data/recordings")
	v.SetDefault("recordings.encryption_key", "")
	v.SetDefault("recordings.s3.bucket", "")
	v.SetDefault("recordings.s3.prefix", "")
	v.SetDefault("recordings.s3.region", "")
	v.SetDefault("recordings.s3.endpoint", "")
	v.SetDefault("recordings.s3.use_path_style", false)

	v.SetDefault("providers.openai_key", "")
	v.SetDefault("providers.openai_base_url", "")
	v.SetDefault("providers.llm_model", "")
	v.SetDefault("providers.telephony.account_sid", "")
	v.SetDefault("providers.telephony.auth_token", "")
	v.SetDefault("providers.telephony.base_url", "")

	v.SetDefault("providers.llm_timeout", "30s")
	v.SetDefault("providers.speech_timeout", "60s")
	v.SetDefault("providers.tts_voice", "alloy")
	v.SetDefault("providers.telephony.timeout", "15s")

	v.SetDefault("webhooks.dedup_ttl", "24h")

	v.SetDefault("observability.enable_otlp", true)
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.otlp_endpoint", "http://localhost:4317")
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
