// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// 実行環境
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// defaultDotenvPath はDOTENV_PATH未指定時に読み込むdotenvファイル。
const defaultDotenvPath = ".env"

var (
	validEnvs      = []string{EnvDevelopment, EnvTest, EnvProduction}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL    string `env:"DATABASE_URL,required,notEmpty"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`

	// Environment
	AppEnv string `env:"APP_ENV" envDefault:"development"`

	// Auth
	JWKSURI     string `env:"JWKS_URI"`
	JWTIssuer   string `env:"JWT_ISSUER"`
	JWTAudience string `env:"JWT_AUDIENCE"`
	// JWKSAllowPrivateNetwork は本番環境でも社内ネットワーク上のJWKS_URIを許可する。
	JWKSAllowPrivateNetwork bool `env:"JWKS_ALLOW_PRIVATE_NETWORK" envDefault:"false"`
	// MockAuth がfalseの場合、開発環境でもモックトークンを受け付けない。
	MockAuth bool `env:"MOCK_AUTH" envDefault:"true"`

	// Server
	ServerPort        string        `env:"SERVER_PORT" envDefault:"3000"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSAllowedOrigin string        `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:5173"`
	ExternalAuthURL   string        `env:"EXTERNAL_AUTH_URL" envDefault:"https://auth.example.com/login"`
	StaticDir         string        `env:"STATIC_DIR" envDefault:"../frontend/dist"`

	// Rate Limit
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitCreate  int `env:"RATE_LIMIT_CREATE" envDefault:"30"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Cleanup
	AnonymousRetentionDays int `env:"ANONYMOUS_RETENTION_DAYS" envDefault:"365"`
}

// Load は環境変数からConfigを読み込む。
// DOTENV_PATH（デフォルト .env）のファイルが存在すれば先に読み込むが、
// 同名の環境変数が設定されている場合はそちらを優先する。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	path := os.Getenv("DOTENV_PATH")
	if path == "" {
		path = defaultDotenvPath
	}

	environ, err := mergeDotenv(path, env.ToMap(os.Environ()))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeDotenv はdotenvファイルの値の上にプロセス環境変数を重ねたマップを返す。
// ファイルが存在しない場合はプロセス環境変数のみを返す。
func mergeDotenv(path string, environ map[string]string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return environ, nil
		}
		return nil, fmt.Errorf("failed to read dotenv file %s: %w", path, err)
	}

	for k, v := range environ {
		values[k] = v
	}
	return values, nil
}

func (c *Config) validate() error {
	var errs []error

	if !slices.Contains(validEnvs, c.AppEnv) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of %v, got %q", validEnvs, c.AppEnv))
	}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of %v, got %q", validLogLevels, c.LogLevel))
	}
	if c.RateLimitGeneral <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_GENERAL must be positive, got %d", c.RateLimitGeneral))
	}
	if c.RateLimitCreate <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_CREATE must be positive, got %d", c.RateLimitCreate))
	}
	if c.DBMaxOpenConns <= 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.DBMaxOpenConns))
	}
	if c.AnonymousRetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("ANONYMOUS_RETENTION_DAYS must be positive, got %d", c.AnonymousRetentionDays))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction は本番環境かどうかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// MockAuthEnabled はモックトークンを受け付けるかどうかを返す。
// 本番環境ではMOCK_AUTHの値に関わらず常にfalse。
func (c *Config) MockAuthEnabled() bool {
	return c.MockAuth && !c.IsProduction()
}

// CookieSecure は匿名CookieにSecure属性を付けるかどうかを返す。
func (c *Config) CookieSecure() bool {
	return c.IsProduction()
}

// JWTConfigured は実トークンの検証に必要な設定が揃っているかどうかを返す。
func (c *Config) JWTConfigured() bool {
	return c.JWKSURI != ""
}

// RestrictJWKSEgress はJWKS取得先をパブリックなhttpsに限定するかどうかを返す。
func (c *Config) RestrictJWKSEgress() bool {
	return c.IsProduction() && !c.JWKSAllowPrivateNetwork
}
