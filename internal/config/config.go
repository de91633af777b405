// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Storage   StorageConfig   `koanf:"storage"`
	JWT       JWTConfig       `koanf:"jwt"`
	Payment   PaymentConfig   `koanf:"payment"`
	AI        AIConfig        `koanf:"ai"`
	Worker    WorkerConfig    `koanf:"worker"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	Migrate         bool          `koanf:"migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type StorageConfig struct {
	Endpoint      string        `koanf:"endpoint"`
	AccessKey     string        `koanf:"access_key"`
	SecretKey     string        `koanf:"secret_key"`
	Bucket        string        `koanf:"bucket"`
	UseSSL        bool          `koanf:"use_ssl"`
	PresignExpiry time.Duration `koanf:"presign_expiry"`
}

type JWTConfig struct {
	PrivateKeyPath    string        `koanf:"private_key_path"`
	PublicKeyPath     string        `koanf:"public_key_path"`
	AccessTokenExpire time.Duration `koanf:"access_token_expire"`
	Issuer            string        `koanf:"issuer"`
	Audience          string        `koanf:"audience"`
}

type PaymentConfig struct {
	KeyID     string `koanf:"key_id"`
	KeySecret string `koanf:"key_secret"`
	BaseURL   string `koanf:"base_url"`
}

type AIConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

type WorkerConfig struct {
	Size       int `koanf:"size"`
	QueueDepth int `koanf:"queue_depth"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		k := koanf.New(".")

		if err := loadDefaults(k); err != nil {
			loadErr = fmt.Errorf("load defaults: %w", err)
			return
		}

		if configPath != "" {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				loadErr = fmt.Errorf("load config file: %w", err)
				return
			}
		}

		if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
			loadErr = fmt.Errorf("load env vars: %w", err)
			return
		}

		cfg = &Config{}
		if err := k.Unmarshal("", cfg); err != nil {
			loadErr = fmt.Errorf("unmarshal config: %w", err)
			return
		}

		if err := validate(cfg); err != nil {
			loadErr = fmt.Errorf("validate config: %w", err)
			return
		}
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "EDA Platform Backend",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",
		"server.max_upload_bytes": 50 * 1024 * 1024,

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.migrate":            true,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"storage.bucket":         "eda-artifacts",
		"storage.use_ssl":        false,
		"storage.presign_expiry": "1h",

		"jwt.access_token_expire": "30m",
		"jwt.issuer":              "eda-backend",
		"jwt.audience":            "eda-backend-api",
		"jwt.private_key_path":    "keys/private.pem",
		"jwt.public_key_path":     "keys/public.pem",

		"payment.base_url": "https://api.razorpay.com",

		"ai.base_url": "https://generativelanguage.googleapis.com",
		"ai.model":    "gemini-2.5-flash",
		"ai.timeout":  "60s",

		"worker.size":        4,
		"worker.queue_depth": 64,

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "eda-backend",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":            "database.url",
	"DATABASE_MIGRATE":        "database.migrate",
	"REDIS_URL":               "redis.url",
	"ENVIRONMENT":             "app.environment",
	"HOST":                    "server.host",
	"PORT":                    "server.port",
	"LOG_LEVEL":               "log.level",
	"LOG_FORMAT":              "log.format",
	"STORAGE_ENDPOINT":        "storage.endpoint",
	"STORAGE_ACCESS_KEY":      "storage.access_key",
	"STORAGE_SECRET_KEY":      "storage.secret_key",
	"STORAGE_BUCKET":          "storage.bucket",
	"STORAGE_USE_SSL":         "storage.use_ssl",
	"JWT_PRIVATE_KEY_PATH":    "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":     "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE": "jwt.access_token_expire",
	"JWT_ISSUER":              "jwt.issuer",
	"JWT_AUDIENCE":            "jwt.audience",
	"RAZORPAY_KEY_ID":         "payment.key_id",
	"RAZORPAY_KEY_SECRET":     "payment.key_secret",
	"AI_SERVICE_API_KEY":      "ai.api_key",
	"AI_SERVICE_MODEL":        "ai.model",
	"WORKER_SIZE":             "worker.size",
	"WORKER_QUEUE_DEPTH":      "worker.queue_depth",
	"RATE_LIMIT_REQUESTS":     "rate_limit.requests",
	"RATE_LIMIT_WINDOW":       "rate_limit.window",
	"RATE_LIMIT_BURST":        "rate_limit.burst",
	"OTEL_ENDPOINT":           "otel.endpoint",
	"OTEL_SERVICE_NAME":       "otel.service_name",
	"OTEL_ENABLED":            "otel.enabled",
	"OTEL_INSECURE":           "otel.insecure",
	"OTEL_SAMPLE_RATE":        "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Storage.Endpoint == "" {
		return fmt.Errorf("STORAGE_ENDPOINT is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.Worker.Size < 1 {
		return fmt.Errorf("worker.size must be positive")
	}

	if c.Worker.QueueDepth < 1 {
		return fmt.Errorf("worker.queue_depth must be positive")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Payment.KeySecret == "" {
			return fmt.Errorf("RAZORPAY_KEY_SECRET is required in production")
		}
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
