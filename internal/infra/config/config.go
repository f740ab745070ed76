package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Directory DirectorySettings `mapstructure:"directory"`
	Auth      AuthSettings      `mapstructure:"auth"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the session store connection and TLS.
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

// KafkaSettings configures the security-event producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// DirectorySettings configures the external user/member directory client.
type DirectorySettings struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BootstrapRetries int           `mapstructure:"bootstrap_retries"`
	BootstrapDelay   time.Duration `mapstructure:"bootstrap_delay"`
	AdminToken       string        `mapstructure:"admin_token"`
}

// AuthSettings configures token issuance and session policy.
type AuthSettings struct {
	SigningSecret         string        `mapstructure:"signing_secret"`
	AccessTokenTTL        time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL       time.Duration `mapstructure:"refresh_token_ttl"`
	SessionTTL            time.Duration `mapstructure:"session_ttl"`
	MaxConcurrentSessions int           `mapstructure:"max_concurrent_sessions"`
	LockoutThreshold      int           `mapstructure:"lockout_threshold"`
	LockoutWindow         time.Duration `mapstructure:"lockout_window"`
	RefreshLeeway         time.Duration `mapstructure:"refresh_leeway"`
	DeviceRetention       time.Duration `mapstructure:"device_retention"`
	DeviceHistoryLimit    int           `mapstructure:"device_history_limit"`
	ImpersonationMaxTTL   time.Duration `mapstructure:"impersonation_max_ttl"`
}

// RateLimitSettings configures the HTTP sliding-window limits.
type RateLimitSettings struct {
	WindowDuration   time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts int           `mapstructure:"login_max_attempts"`
	RequestMax       int           `mapstructure:"request_max"`
	RequestWindow    time.Duration `mapstructure:"request_window"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTH")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"directory.base_url",
		"directory.timeout",
		"directory.bootstrap_retries",
		"directory.bootstrap_delay",
		"directory.admin_token",
		"auth.signing_secret",
		"auth.access_token_ttl",
		"auth.refresh_token_ttl",
		"auth.session_ttl",
		"auth.max_concurrent_sessions",
		"auth.lockout_threshold",
		"auth.lockout_window",
		"auth.refresh_leeway",
		"auth.device_retention",
		"auth.device_history_limit",
		"auth.impersonation_max_ttl",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.request_max",
		"rate_limit.request_window",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "admin-platform-auth")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "auth")
	v.SetDefault("postgres.password", "auth_password")
	v.SetDefault("postgres.database", "auth")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "auth")
	v.SetDefault("kafka.async", true)

	v.SetDefault("directory.base_url", "http://localhost:8090")
	v.SetDefault("directory.timeout", "10s")
	v.SetDefault("directory.bootstrap_retries", 5)
	v.SetDefault("directory.bootstrap_delay", "3s")

	v.SetDefault("auth.signing_secret", "")
	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl", "168h")
	v.SetDefault("auth.session_ttl", "24h")
	v.SetDefault("auth.max_concurrent_sessions", 3)
	v.SetDefault("auth.lockout_threshold", 5)
	v.SetDefault("auth.lockout_window", "15m")
	v.SetDefault("auth.refresh_leeway", "5m")
	v.SetDefault("auth.device_retention", "720h")
	v.SetDefault("auth.device_history_limit", 5)
	v.SetDefault("auth.impersonation_max_ttl", "1h")

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 5)
	v.SetDefault("rate_limit.request_max", 100)
	v.SetDefault("rate_limit.request_window", "1m")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AUTH_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
