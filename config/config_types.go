package config

// Config 主配置结构
type Config struct {
	WebUI  WebUIConfig  `yaml:"webui" json:"webui"`
	Store  StoreConfig  `yaml:"store" json:"store"`
	Rules  RulesConfig  `yaml:"rules" json:"rules"`
	Cache  CacheConfig  `yaml:"cache" json:"cache"`
	System SystemConfig `yaml:"system" json:"system"`
}

// WebUIConfig HTTP API 配置
type WebUIConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	ListenPort int  `yaml:"listen_port,omitempty" json:"listen_port"`
}

// StoreConfig 规则文件配置
type StoreConfig struct {
	// 扩展名决定格式：.yaml / .yml / .json
	Path string `yaml:"path,omitempty" json:"path"`
}

// 规则导入模式
const (
	ImportModeMerge   = "merge"
	ImportModeReplace = "replace"
)

// RulesConfig 规则来源配置
type RulesConfig struct {
	ImportURLs           []string `yaml:"import_urls,omitempty" json:"import_urls"`
	ImportMode           string   `yaml:"import_mode,omitempty" json:"import_mode"`
	UpdateIntervalHours  int      `yaml:"update_interval_hours" json:"update_interval_hours"` // 0 表示只在手动触发时导入
	ImportTimeoutSeconds int      `yaml:"import_timeout_seconds,omitempty" json:"import_timeout_seconds"`
	MaxConcurrentImports int      `yaml:"max_concurrent_imports,omitempty" json:"max_concurrent_imports"`
}

// CacheConfig 分类结果缓存配置
type CacheConfig struct {
	ResultCacheSize int `yaml:"result_cache_size,omitempty" json:"result_cache_size"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	LogLevel  string `yaml:"log_level,omitempty" json:"log_level"`
	LogFormat string `yaml:"log_format,omitempty" json:"log_format"` // text | json
}
