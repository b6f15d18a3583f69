package main

import (
	"fmt"
	"os"
	"strconv"

	"eduoj/internal/admin"
	"eduoj/internal/common/cache"
	"eduoj/internal/common/db"
	"eduoj/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultAddr       = ":8080"
	defaultJudgeURL   = "http://localhost:2358"
	defaultUploadRoot = "./upload"

	defaultCPUTimeMs  = 10000
	defaultWallTimeMs = 15000
	defaultMemoryKB   = 102400
	defaultLanguageID = 71
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// JudgeConfig holds the judging provider settings. Time limits are in
// milliseconds, the memory limit in KB.
type JudgeConfig struct {
	URL            string `yaml:"url"`
	LanguageID     int    `yaml:"languageId"`
	CPUTimeMs      int    `yaml:"cpuTimeLimitMs"`
	WallTimeMs     int    `yaml:"wallTimeLimitMs"`
	MemoryKB       int    `yaml:"memoryLimitKb"`
	SourceEncoding string `yaml:"sourceEncoding"`
}

// AppConfig is the whole server configuration.
type AppConfig struct {
	Server     ServerConfig      `yaml:"server"`
	Logger     logger.Config     `yaml:"logger"`
	Database   db.PostgresConfig `yaml:"database"`
	Redis      cache.RedisConfig `yaml:"redis"`
	Judge      JudgeConfig       `yaml:"judge"`
	UploadRoot string            `yaml:"uploadRoot"`
	Admin      admin.AuthConfig  `yaml:"admin"`
}

// loadAppConfig reads the YAML config file, fills defaults and applies
// environment overrides. A missing file is not an error; defaults plus
// environment carry a local setup.
func loadAppConfig(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	if cfg.Judge.URL == "" {
		cfg.Judge.URL = defaultJudgeURL
	}
	if cfg.Judge.LanguageID == 0 {
		cfg.Judge.LanguageID = defaultLanguageID
	}
	if cfg.Judge.CPUTimeMs == 0 {
		cfg.Judge.CPUTimeMs = defaultCPUTimeMs
	}
	if cfg.Judge.WallTimeMs == 0 {
		cfg.Judge.WallTimeMs = defaultWallTimeMs
	}
	if cfg.Judge.MemoryKB == 0 {
		cfg.Judge.MemoryKB = defaultMemoryKB
	}
	if cfg.UploadRoot == "" {
		cfg.UploadRoot = defaultUploadRoot
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := os.Getenv("JUDGER_URL"); v != "" {
		cfg.Judge.URL = v
	}
	if v, ok := getenvInt("JUDGE_CPU_TIME_LIMIT_MS"); ok {
		cfg.Judge.CPUTimeMs = v
	}
	if v, ok := getenvInt("JUDGE_WALL_TIME_LIMIT_MS"); ok {
		cfg.Judge.WallTimeMs = v
	}
	if v, ok := getenvInt("JUDGE_MEMORY_LIMIT_KB"); ok {
		cfg.Judge.MemoryKB = v
	}
	if v := os.Getenv("UPLOAD_ROOT"); v != "" {
		cfg.UploadRoot = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}
}

func getenvInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
