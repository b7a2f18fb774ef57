package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jurimate/casedraft-backend/pkg/logger"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	CORS     CORSConfig     `yaml:"cors"`
	Draft    DraftConfig    `yaml:"draft"`
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

// DatabaseConfig MySQL 설정
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
}

// RedisConfig Redis 설정
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// JWTConfig 토큰 설정
type JWTConfig struct {
	Secret    string        `yaml:"secret"`
	ExpiresIn time.Duration `yaml:"expires_in"`
	RefreshIn time.Duration `yaml:"refresh_in"`
}

// CORSConfig 허용 오리진 설정
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins"` // 쉼표 구분
}

// DraftConfig 초안 협업 세션 동작 파라미터
type DraftConfig struct {
	HistoryLimit     int           `yaml:"history_limit"`
	ChangeLogLimit   int           `yaml:"changelog_limit"`
	SnippetLimit     int           `yaml:"snippet_limit"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
	DebounceDelay    time.Duration `yaml:"debounce_delay"`
	Heartbeat        time.Duration `yaml:"heartbeat"`
	SessionIdleTTL   time.Duration `yaml:"session_idle_ttl"`
}

// Load reads the yaml config file and applies environment overrides.
// 민감한 값(DB 비밀번호, JWT 시크릿)은 환경 변수가 항상 우선한다.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// 파일이 없으면 기본값 + 환경 변수로 동작한다
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: "8082", Mode: "debug"},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    3306,
			User:    "casedraft",
			Name:    "casedraft",
			Charset: "utf8mb4",
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379, PoolSize: 10},
		JWT: JWTConfig{
			ExpiresIn: 24 * time.Hour,
			RefreshIn: 7 * 24 * time.Hour,
		},
		Draft: DraftConfig{
			HistoryLimit:     20,
			ChangeLogLimit:   50,
			SnippetLimit:     80,
			AutosaveInterval: 30 * time.Second,
			DebounceDelay:    1500 * time.Millisecond,
			Heartbeat:        10 * time.Second,
			SessionIdleTTL:   30 * time.Minute,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		cfg.Server.Mode = v
	}

	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}

	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = v
	}
}

// DSN builds the MySQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Name, c.Charset)
}

// LogResolved logs the effective configuration without secrets
func LogResolved(cfg *Config) {
	logger.Info("server: port=%s mode=%s", cfg.Server.Port, cfg.Server.Mode)
	logger.Info("database: host=%s port=%d name=%s user=%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name, cfg.Database.User)
	logger.Info("redis: host=%s port=%d db=%d", cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.DB)
	logger.Info("draft: history=%d changelog=%d autosave=%s debounce=%s idle_ttl=%s",
		cfg.Draft.HistoryLimit, cfg.Draft.ChangeLogLimit,
		cfg.Draft.AutosaveInterval, cfg.Draft.DebounceDelay, cfg.Draft.SessionIdleTTL)
}
