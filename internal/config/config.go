package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Anthropic AnthropicConfig
	Browser   BrowserConfig
	Storage   StorageConfig
	Pipeline  PipelineConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	CORSOrigins string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	ClonePerHour int
}

type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

type BrowserConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type PipelineConfig struct {
	StageTimeout    int // seconds per stage, 0 disables
	SessionTTLHours int // retention of finished sessions in Redis, 0 keeps forever
	Concurrency     int // worker concurrency for clone jobs
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("ANTHROPIC_API_KEY")
	readSecret("STORAGE_SECRET_ACCESS_KEY")
	readSecret("JWT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.cors_origins", "CORS_ORIGINS")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("ratelimit.clone_per_hour", "RATELIMIT_CLONE_PER_HOUR")
	_ = viper.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	_ = viper.BindEnv("anthropic.base_url", "ANTHROPIC_BASE_URL")
	_ = viper.BindEnv("anthropic.model", "ANTHROPIC_MODEL")
	_ = viper.BindEnv("anthropic.max_tokens", "ANTHROPIC_MAX_TOKENS")
	_ = viper.BindEnv("browser.service_url", "BROWSER_SERVICE_URL")
	_ = viper.BindEnv("browser.timeout", "BROWSER_SERVICE_TIMEOUT")
	_ = viper.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = viper.BindEnv("storage.region", "STORAGE_REGION")
	_ = viper.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.bucket_name", "STORAGE_BUCKET_NAME")
	_ = viper.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = viper.BindEnv("pipeline.stage_timeout", "PIPELINE_STAGE_TIMEOUT")
	_ = viper.BindEnv("pipeline.session_ttl_hours", "PIPELINE_SESSION_TTL_HOURS")
	_ = viper.BindEnv("pipeline.concurrency", "PIPELINE_CONCURRENCY")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.cors_origins", "http://localhost:3000")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("ratelimit.clone_per_hour", 10)

	// Anthropic defaults (generation constants match what the front end
	// was tuned against)
	viper.SetDefault("anthropic.base_url", "https://api.anthropic.com")
	viper.SetDefault("anthropic.model", "claude-3-5-sonnet-20241022")
	viper.SetDefault("anthropic.max_tokens", 8000)

	// Browser sidecar defaults
	viper.SetDefault("browser.timeout", 60)

	// Storage defaults
	viper.SetDefault("storage.region", "auto")

	// Pipeline defaults
	viper.SetDefault("pipeline.stage_timeout", 300)
	viper.SetDefault("pipeline.session_ttl_hours", 24)
	viper.SetDefault("pipeline.concurrency", 4)

	// Config file is optional
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("server.port"),
			Env:         viper.GetString("server.env"),
			LogLevel:    viper.GetString("server.log_level"),
			CORSOrigins: viper.GetString("server.cors_origins"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			ClonePerHour: viper.GetInt("ratelimit.clone_per_hour"),
		},
		Anthropic: AnthropicConfig{
			APIKey:    viper.GetString("anthropic.api_key"),
			BaseURL:   viper.GetString("anthropic.base_url"),
			Model:     viper.GetString("anthropic.model"),
			MaxTokens: viper.GetInt("anthropic.max_tokens"),
		},
		Browser: BrowserConfig{
			ServiceURL: viper.GetString("browser.service_url"),
			Timeout:    viper.GetInt("browser.timeout"),
		},
		Storage: StorageConfig{
			Endpoint:        viper.GetString("storage.endpoint"),
			Region:          viper.GetString("storage.region"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			BucketName:      viper.GetString("storage.bucket_name"),
			PublicURL:       viper.GetString("storage.public_url"),
		},
		Pipeline: PipelineConfig{
			StageTimeout:    viper.GetInt("pipeline.stage_timeout"),
			SessionTTLHours: viper.GetInt("pipeline.session_ttl_hours"),
			Concurrency:     viper.GetInt("pipeline.concurrency"),
		},
	}

	return cfg, nil
}
