package config

import (
	"log"
	"time"

	"fibreflow/pkg/config"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DB     config.DBConfig     `yaml:"db"`
	MQ     config.MQConfig     `yaml:"mq"`
	Redis  config.RedisConfig  `yaml:"redis"`
	Server config.ServerConfig `yaml:"server"`
	Cache  struct {
		ProgressTTLSeconds int `yaml:"progress_ttl_seconds"`
	} `yaml:"cache"`
}

// ProgressTTL returns the configured progress-cache TTL, defaulting to
// five minutes.
func (c *Config) ProgressTTL() time.Duration {
	if c.Cache.ProgressTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Cache.ProgressTTLSeconds) * time.Second
}

func Load() *Config {
	// 使用统一配置中心
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 转换为 Config 结构
	var cfg Config
	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		log.Fatalf("failed to marshal config: %v", err)
	}
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideServerFromEnv(&cfg.Server)

	return &cfg
}
