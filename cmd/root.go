package main

import (
	"fmt"
	"os"
	"path/filepath"

	"envbadge/classifier"
	"envbadge/config"
	"envbadge/logger"

	"github.com/spf13/cobra"
)

// globalOptions 所有子命令共享的参数
type globalOptions struct {
	configPath string
	workDir    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "envbadge",
		Short: "Environment badge rule service",
		Long: `envbadge classifies page URLs against an ordered list of glob rules
and tells the caller which environment badge (PROD, QA, LOCAL ...) to show.

Without a subcommand it runs the rule service (same as "envbadge serve").`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// 结果写 stdout，日志写 stderr
			logger.SetOutput(cmd.ErrOrStderr())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "配置文件路径")
	root.PersistentFlags().StringVarP(&opts.workDir, "workdir", "w", "", "工作目录（默认：当前目录）")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "覆盖配置中的日志级别 (debug/info/warn/error)")

	root.AddCommand(
		newServeCmd(opts),
		newClassifyCmd(opts),
		newImportCmd(opts),
		newNormalizeCmd(),
		newDefaultsCmd(),
		newSuggestCmd(),
		newServiceCmd(),
	)
	return root
}

// resolve 相对路径以工作目录为基准
func (o *globalOptions) resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	workDir := o.workDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("无法获取当前工作目录：%w", err)
		}
		workDir = wd
	}
	return filepath.Join(workDir, path), nil
}

// loadConfig 加载配置并立即应用日志设置，确保后续日志遵循配置
func (o *globalOptions) loadConfig() (*config.Config, error) {
	path, err := o.resolve(o.configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if cfg.Store.Path, err = o.resolve(cfg.Store.Path); err != nil {
		return nil, err
	}

	level := cfg.System.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger.SetFormat(cfg.System.LogFormat)
	logger.SetLevel(level)
	logger.Debugf("Config loaded from %s, rules stored in %s", path, cfg.Store.Path)
	return cfg, nil
}

// openManager 加载配置并载入规则集
func (o *globalOptions) openManager() (*config.Config, *classifier.Manager, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	mgr, err := classifier.NewManager(cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	if err := mgr.Load(); err != nil {
		return nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}
	return cfg, mgr, nil
}
