package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CreateDefaultConfig 创建默认配置文件
func CreateDefaultConfig(filePath string) error {
	return os.WriteFile(filePath, []byte(DefaultConfigContent), 0644)
}

// LoadConfig 从 YAML 文件加载配置，文件不存在时自动创建默认配置
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := CreateDefaultConfig(filePath); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
		data = []byte(DefaultConfigContent)
	}

	return Parse(data)
}

// Parse 解析 YAML 配置并填充默认值
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaultValues(&cfg, data)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	cfg, err := Parse([]byte(DefaultConfigContent))
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if c.WebUI.ListenPort < 1 || c.WebUI.ListenPort > 65535 {
		return fmt.Errorf("invalid webui.listen_port: %d", c.WebUI.ListenPort)
	}

	switch c.Rules.ImportMode {
	case ImportModeMerge, ImportModeReplace:
	default:
		return fmt.Errorf("invalid rules.import_mode: %q (expected merge or replace)", c.Rules.ImportMode)
	}
	if c.Rules.UpdateIntervalHours < 0 {
		return fmt.Errorf("invalid rules.update_interval_hours: %d", c.Rules.UpdateIntervalHours)
	}
	if c.Rules.ImportTimeoutSeconds < 0 || c.Rules.MaxConcurrentImports < 0 {
		return fmt.Errorf("rules.import_timeout_seconds and rules.max_concurrent_imports must not be negative")
	}

	if c.Cache.ResultCacheSize < 0 {
		return fmt.Errorf("invalid cache.result_cache_size: %d", c.Cache.ResultCacheSize)
	}

	switch strings.ToLower(c.System.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("invalid system.log_level: %q", c.System.LogLevel)
	}
	switch strings.ToLower(c.System.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid system.log_format: %q", c.System.LogFormat)
	}
	return nil
}
