package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"text/tabwriter"

	"envbadge/classifier"
	"envbadge/rules"
	"envbadge/store"
	"envbadge/sysinstall"

	"github.com/spf13/cobra"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newClassifyCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	var only string

	cmd := &cobra.Command{
		Use:   "classify URL...",
		Short: "Classify URLs against the stored rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind rules.MatchKind
			if only != "" {
				if err := kind.UnmarshalText([]byte(only)); err != nil {
					return err
				}
			}

			_, mgr, err := opts.openManager()
			if err != nil {
				return err
			}
			results, err := mgr.ClassifyBatch(cmd.Context(), args)
			if err != nil {
				return err
			}
			if only != "" {
				results = filterKind(results, kind)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, results)
			}
			return printClassifications(out, results)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	cmd.Flags().StringVar(&only, "only", "", "只输出指定结果 (matched/blocked/no_match)")
	return cmd
}

func filterKind(results []classifier.Classification, kind rules.MatchKind) []classifier.Classification {
	out := make([]classifier.Classification, 0, len(results))
	for _, c := range results {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func printClassifications(w io.Writer, results []classifier.Classification) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tRESULT\tLABEL\tCOLOR\tSEVERITY\tRULE")
	for _, c := range results {
		rule := "-"
		switch c.Kind {
		case rules.Matched:
			rule = fmt.Sprintf("#%d %s", c.Position, c.RuleID)
		case rules.Blocked:
			rule = "blocked by " + c.BlockID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", c.URL, c.Kind, c.Label, c.Color, c.Severity, rule)
	}
	return tw.Flush()
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import rules from the configured sources once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, mgr, err := opts.openManager()
			if err != nil {
				return err
			}
			result, err := mgr.Import(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newNormalizeCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "normalize FILE",
		Short: "Print the canonical form of a rule file",
		Long: `normalize reads a YAML or JSON rule file, fills defaults, assigns stable ids,
drops duplicates and prints the result. The file itself is not modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := store.FormatFromPath(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			raw, err := store.Parse(data, in)
			if err != nil {
				return err
			}

			outFormat := in
			if format != "" {
				outFormat = store.Format(format)
				if outFormat != store.FormatYAML && outFormat != store.FormatJSON {
					return fmt.Errorf("%w: %q", store.ErrUnsupportedFormat, format)
				}
			}
			encoded, err := store.Encode(store.Document{
				Rules:     rules.Normalize(raw.Rules),
				Blocklist: rules.NormalizeBlocklist(raw.Blocklist),
			}, outFormat)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(encoded)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "", "输出格式 yaml/json（默认与输入相同）")
	return cmd
}

func newDefaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the built-in default rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded, err := store.Encode(store.Document{Rules: rules.DefaultRules()}, store.FormatYAML)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(encoded)
			return err
		},
	}
}

func newSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest URL",
		Short: "Suggest a rule for a page address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), rules.SuggestRule(args[0]))
		},
	}
}

func newServiceCmd() *cobra.Command {
	var cfg sysinstall.InstallerConfig

	cmd := &cobra.Command{
		Use:       "service install|uninstall|status",
		Short:     "Manage the systemd service (Linux only)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if runtime.GOOS != "linux" {
				return fmt.Errorf("系统服务管理仅在 Linux 系统上支持")
			}

			// 服务模式强制使用标准绝对路径，忽略 -c 和 -w
			cfg.Out = cmd.OutOrStdout()
			installer := sysinstall.NewSystemInstaller(cfg)

			switch args[0] {
			case "install":
				return installer.Install()
			case "uninstall":
				return installer.Uninstall()
			case "status":
				return installer.Status()
			}
			return fmt.Errorf("未知的子命令 '%s'，支持的命令：install, uninstall, status", args[0])
		},
	}
	cmd.Flags().StringVar(&cfg.RunUser, "user", "", "运行用户（仅限 install，默认：root）")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "干运行模式，仅预览不执行")
	cmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "详细输出")
	return cmd
}
