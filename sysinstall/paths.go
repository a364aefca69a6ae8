package sysinstall

import "path/filepath"

const (
	// 标准目录
	DefaultConfigDir = "/etc/envbadge"
	DefaultDataDir   = "/var/lib/envbadge"
	DefaultBinaryDir = "/usr/local/bin"
	DefaultUnitDir   = "/etc/systemd/system"

	// 文件与服务名
	BinaryName  = "envbadge"
	ServiceName = "envbadge"
)

// DefaultConfigPath 获取默认配置文件完整路径
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir, "config.yaml")
}

// DefaultBinaryPath 获取默认二进制文件完整路径
func DefaultBinaryPath() string {
	return filepath.Join(DefaultBinaryDir, BinaryName)
}
