// Package sysinstall 把 envbadge 安装为 systemd 服务（仅 Linux）。
package sysinstall

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"

	"envbadge/config"
)

var ErrNotRoot = errors.New("root privileges required, run with sudo")

// InstallerConfig 安装配置
type InstallerConfig struct {
	ConfigPath string // 配置文件路径
	WorkDir    string // 工作目录，规则文件保存在这里
	RunUser    string // 运行用户
	BinaryPath string // 二进制路径
	UnitDir    string // systemd unit 目录
	DryRun     bool   // 只打印步骤
	Verbose    bool
	Out        io.Writer
}

// CommandRunner 执行外部命令并返回合并输出
type CommandRunner func(name string, args ...string) ([]byte, error)

func execRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// SystemInstaller 系统安装器
type SystemInstaller struct {
	config InstallerConfig
	out    io.Writer
	run    CommandRunner
	isRoot func() bool
}

// step 安装或卸载流程中的一步
type step struct {
	desc string
	fn   func() error
	// 失败只警告，不中断流程
	optional bool
}

// NewSystemInstaller 创建新的系统安装器，未设置的路径使用标准路径
func NewSystemInstaller(cfg InstallerConfig) *SystemInstaller {
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = DefaultConfigPath()
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = DefaultDataDir
	}
	if cfg.RunUser == "" {
		cfg.RunUser = "root"
	}
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = DefaultBinaryPath()
	}
	if cfg.UnitDir == "" {
		cfg.UnitDir = DefaultUnitDir
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	return &SystemInstaller{
		config: cfg,
		out:    out,
		run:    execRunner,
		isRoot: currentUserIsRoot,
	}
}

// SetRunner 替换命令执行器
func (si *SystemInstaller) SetRunner(run CommandRunner) {
	si.run = run
}

func currentUserIsRoot() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	u, err := user.Current()
	return err == nil && u.Uid == "0"
}

func (si *SystemInstaller) logf(format string, args ...interface{}) {
	if si.config.Verbose {
		fmt.Fprintf(si.out, "[INFO] "+format+"\n", args...)
	}
}

// UnitPath systemd unit 文件路径
func (si *SystemInstaller) UnitPath() string {
	return filepath.Join(si.config.UnitDir, ServiceName+".service")
}

// GenerateServiceFile 生成 systemd 服务文件内容
func (si *SystemInstaller) GenerateServiceFile() string {
	execStart := fmt.Sprintf("%s serve -c %s -w %s", si.config.BinaryPath, si.config.ConfigPath, si.config.WorkDir)

	return fmt.Sprintf(`[Unit]
Description=envbadge environment rule service
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s
Restart=always
RestartSec=5
User=%s
WorkingDirectory=%s
StandardOutput=journal
StandardError=journal
SyslogIdentifier=%s

[Install]
WantedBy=multi-user.target
`, execStart, si.config.RunUser, si.config.WorkDir, ServiceName)
}

func (si *SystemInstaller) systemctl(args ...string) error {
	if output, err := si.run("systemctl", args...); err != nil {
		return fmt.Errorf("systemctl %s failed: %w, output: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (si *SystemInstaller) checkSystemd() error {
	if runtime.GOOS != "linux" {
		return errors.New("systemd services are only supported on Linux")
	}
	if _, err := si.run("systemctl", "--version"); err != nil {
		return errors.New("systemd not available on this system")
	}
	return nil
}

func (si *SystemInstaller) createDirectories() error {
	for _, dir := range []string{filepath.Dir(si.config.ConfigPath), si.config.WorkDir} {
		si.logf("create directory %s", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating %s: %w", dir, err)
		}
	}
	return nil
}

// writeDefaultConfig 已有配置文件时保留
func (si *SystemInstaller) writeDefaultConfig() error {
	if _, err := os.Stat(si.config.ConfigPath); err == nil {
		si.logf("config file exists: %s", si.config.ConfigPath)
		return nil
	}
	return config.CreateDefaultConfig(si.config.ConfigPath)
}

func (si *SystemInstaller) copyBinary() error {
	src, err := os.Executable()
	if err != nil {
		return fmt.Errorf("error locating executable: %w", err)
	}
	if src == si.config.BinaryPath {
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(si.config.BinaryPath), 0755); err != nil {
		return err
	}
	si.logf("copy %s -> %s", src, si.config.BinaryPath)
	return os.WriteFile(si.config.BinaryPath, data, 0755)
}

func (si *SystemInstaller) writeServiceFile() error {
	si.logf("write unit file %s", si.UnitPath())
	return os.WriteFile(si.UnitPath(), []byte(si.GenerateServiceFile()), 0644)
}

func (si *SystemInstaller) removeFiles() error {
	for _, p := range []string{si.UnitPath(), si.config.BinaryPath, filepath.Dir(si.config.ConfigPath), si.config.WorkDir} {
		si.logf("remove %s", p)
		if err := os.RemoveAll(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("error removing %s: %w", p, err)
		}
	}
	return nil
}

// runSteps 依次执行；DryRun 时只打印步骤
func (si *SystemInstaller) runSteps(steps []step) error {
	for _, s := range steps {
		if si.config.DryRun {
			fmt.Fprintf(si.out, "[DRY-RUN] %s\n", s.desc)
			continue
		}
		si.logf("%s", s.desc)
		if err := s.fn(); err != nil {
			if s.optional {
				fmt.Fprintf(si.out, "warning: %s: %v\n", s.desc, err)
				continue
			}
			return err
		}
	}
	return nil
}

func (si *SystemInstaller) banner(title string) {
	line := strings.Repeat("=", 44)
	fmt.Fprintf(si.out, "%s\n%s\n%s\n", line, title, line)
}

// Install 执行安装流程
func (si *SystemInstaller) Install() error {
	si.banner("envbadge service installer")
	if !si.config.DryRun && !si.isRoot() {
		return ErrNotRoot
	}

	err := si.runSteps([]step{
		{desc: "check systemd", fn: si.checkSystemd},
		{desc: "create directories " + filepath.Dir(si.config.ConfigPath) + ", " + si.config.WorkDir, fn: si.createDirectories},
		{desc: "write default config " + si.config.ConfigPath, fn: si.writeDefaultConfig},
		{desc: "copy binary to " + si.config.BinaryPath, fn: si.copyBinary},
		{desc: "write unit file " + si.UnitPath(), fn: si.writeServiceFile},
		{desc: "systemctl daemon-reload", fn: func() error { return si.systemctl("daemon-reload") }},
		{desc: "systemctl enable " + ServiceName, fn: func() error { return si.systemctl("enable", ServiceName) }},
		{desc: "systemctl start " + ServiceName, fn: func() error { return si.systemctl("start", ServiceName) }},
	})
	if err != nil {
		return err
	}

	if !si.config.DryRun {
		fmt.Fprintf(si.out, "envbadge installed\n  config: %s\n  rules:  %s\n  logs:   journalctl -u %s -f\n",
			si.config.ConfigPath, si.config.WorkDir, ServiceName)
	}
	return nil
}

// Uninstall 执行卸载流程，停止与禁用失败时继续
func (si *SystemInstaller) Uninstall() error {
	si.banner("envbadge service uninstaller")
	if !si.config.DryRun && !si.isRoot() {
		return ErrNotRoot
	}

	return si.runSteps([]step{
		{desc: "systemctl stop " + ServiceName, fn: func() error { return si.systemctl("stop", ServiceName) }, optional: true},
		{desc: "systemctl disable " + ServiceName, fn: func() error { return si.systemctl("disable", ServiceName) }, optional: true},
		{desc: "remove unit file, binary, config and data", fn: si.removeFiles},
		{desc: "systemctl daemon-reload", fn: func() error { return si.systemctl("daemon-reload") }},
	})
}

// ServiceStatus 返回 systemctl is-active 的结果
func (si *SystemInstaller) ServiceStatus() (string, error) {
	output, err := si.run("systemctl", "is-active", ServiceName)
	return strings.TrimSpace(string(output)), err
}

// Status 显示服务状态与最近日志
func (si *SystemInstaller) Status() error {
	si.banner("envbadge service status")

	status, err := si.ServiceStatus()
	if err != nil && status == "" {
		return errors.New("could not query service status, is the service installed?")
	}
	if status != "active" {
		fmt.Fprintf(si.out, "service: %s (not running)\n", status)
		fmt.Fprintf(si.out, "install with: sudo %s service install\n", BinaryName)
		return nil
	}

	fmt.Fprintf(si.out, "service: %s\n\n", status)
	if details, err := si.run("systemctl", "status", ServiceName, "--no-pager"); err == nil {
		fmt.Fprintln(si.out, strings.TrimSpace(string(details)))
	}
	if logs, err := si.run("journalctl", "-u", ServiceName, "-n", "10", "--no-pager"); err == nil {
		fmt.Fprintf(si.out, "\nrecent logs:\n%s\n", strings.TrimSpace(string(logs)))
	}
	return nil
}
