package config

// DefaultConfigContent 默认配置文件内容，包含详细说明
const DefaultConfigContent = `# envbadge 配置文件

# HTTP API 配置
webui:
  # 是否启用 HTTP API，默认 true
  enabled: true
  # 监听端口，默认 8787
  listen_port: 8787

# 规则存储
store:
  # 规则文件路径，扩展名决定格式（.yaml / .yml / .json）
  # 文件不存在时会写入内置默认规则
  path: "./envbadge_rules.yaml"

# 规则来源
rules:
  # 额外的规则文档，支持 http(s) 地址和本地文件
  # 文档格式与规则文件相同，也可以直接是规则数组
  import_urls: []
#    - "https://example.com/team-rules.yaml"
#    - "./shared/rules.json"

  # 导入模式：
  # merge   - 导入的规则追加在本地规则之后（重复规则保留本地的）
  # replace - 导入的规则替换本地规则列表
  import_mode: "merge"

  # 自动导入间隔（小时），0 表示只在手动触发时导入
  update_interval_hours: 0

  # 单个来源的下载超时（秒），默认 15
  import_timeout_seconds: 15

  # 同时下载的来源数量，默认 5
  max_concurrent_imports: 5

# 分类结果缓存
cache:
  # 缓存的 URL 分类结果数量，默认 1024
  # 规则变化后旧结果自动失效
  result_cache_size: 1024

# 系统配置
system:
  # 日志级别：debug / info / warn / error，默认 info
  log_level: "info"
  # 日志格式：text / json，默认 text
  log_format: "text"
`
