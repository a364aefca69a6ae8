package config

import (
	"gopkg.in/yaml.v3"
)

// setDefaultValues 设置配置文件中缺失字段的默认值
func setDefaultValues(cfg *Config, rawData []byte) {
	setWebUIDefaults(cfg, rawData)

	if cfg.Store.Path == "" {
		cfg.Store.Path = "./envbadge_rules.yaml"
	}

	setRulesDefaults(cfg)

	if cfg.Cache.ResultCacheSize == 0 {
		cfg.Cache.ResultCacheSize = 1024
	}

	if cfg.System.LogLevel == "" {
		cfg.System.LogLevel = "info"
	}
	if cfg.System.LogFormat == "" {
		cfg.System.LogFormat = "text"
	}
}

// setWebUIDefaults 未写 webui.enabled 时默认启用，显式 false 保持不变
func setWebUIDefaults(cfg *Config, rawData []byte) {
	if cfg.WebUI.ListenPort == 0 {
		cfg.WebUI.ListenPort = 8787
	}
	if !cfg.WebUI.Enabled && !hasKey(rawData, "webui", "enabled") {
		cfg.WebUI.Enabled = true
	}
}

// setRulesDefaults 设置规则来源的默认值
func setRulesDefaults(cfg *Config) {
	if cfg.Rules.ImportMode == "" {
		cfg.Rules.ImportMode = ImportModeMerge
	}
	if cfg.Rules.ImportTimeoutSeconds == 0 {
		cfg.Rules.ImportTimeoutSeconds = 15
	}
	if cfg.Rules.MaxConcurrentImports == 0 {
		cfg.Rules.MaxConcurrentImports = 5
	}
}

// hasKey 判断原始 YAML 中 section.key 是否存在
func hasKey(rawData []byte, section, key string) bool {
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(rawData, &raw); err != nil {
		return false
	}
	_, ok := raw[section][key]
	return ok
}
