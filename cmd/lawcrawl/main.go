package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/RecoveryAshes/lawcrawl/internal/browser"
	"github.com/RecoveryAshes/lawcrawl/internal/config"
	"github.com/RecoveryAshes/lawcrawl/internal/core"
	"github.com/RecoveryAshes/lawcrawl/internal/ledger"
	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/RecoveryAshes/lawcrawl/internal/utils"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// 浏览器请求头参数
	headers []string

	// 爬取参数
	siteNames       []string
	headless        bool
	outputDir       string
	continueOnError bool
	siteDelay       int
	formats         []string

	// init 参数
	initPath  string
	initForce bool
)

// appConfig 由 PersistentPreRunE 加载
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "lawcrawl",
	Short: "法律公报文档爬取工具",
	Long: `lawcrawl - 基于浏览器的法律公报文档爬取工具

驱动真实浏览器访问以框架和按钮导航的法律文档站点,支持:
  • 按语言分类逐条下载文档正文
  • 从标题或正文片段推导稳定的文件名
  • 维护 metadata.json 台账,重复运行不会重复下载
  • 浏览器崩溃后自动重启,单个文档失败不影响其余文档

示例:
  # 生成默认配置
  lawcrawl init

  # 爬取全部内置站点
  lawcrawl crawl

  # 只爬取比利时站点,额外保存HTML与Markdown
  lawcrawl crawl --site belgium --formats html,md -H "Accept-Language: fr-BE"

  # 检查台账与磁盘文件是否一致
  lawcrawl verify

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig = cfg

		// 初始化日志系统
		logConfig := utils.LogConfig{
			Level:      cfg.Logging.Level,
			LogDir:     cfg.Logging.LogDir,
			MaxSize:    cfg.Logging.Rotation.MaxSize,
			MaxBackups: cfg.Logging.Rotation.MaxBackups,
			MaxAge:     cfg.Logging.Rotation.MaxAge,
			Compress:   cfg.Logging.Rotation.Compress,
		}

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		}
		if verbose {
			logConfig.Level = "debug"
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		utils.Debug("详细模式已启用")
		return nil
	},
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "爬取站点文档",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig

		// 命令行参数覆盖配置文件
		flags := cmd.Flags()
		if flags.Changed("headless") {
			cfg.Crawl.Headless = headless
		}
		if flags.Changed("output") {
			cfg.Output.BaseDir = outputDir
		}
		if flags.Changed("continue-on-error") {
			cfg.Crawl.ContinueOnError = continueOnError
		}
		if flags.Changed("site-delay") {
			cfg.Crawl.SiteDelay = siteDelay
		}
		if flags.Changed("formats") {
			cfg.Crawl.Formats = normalizeFormats(formats)
		}

		if err := ValidateFlags(cfg.Crawl.SiteDelay, cfg.Crawl.Formats); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("配置无效: %w", err)
		}

		sites, err := SelectSites(cfg.Sites, siteNames)
		if err != nil {
			return err
		}

		headerManager, err := core.NewHeaderManager(cfg.Headers, headers)
		if err != nil {
			return fmt.Errorf("创建请求头管理器失败: %w", err)
		}
		if err := headerManager.Validate(); err != nil {
			return fmt.Errorf("请求头配置无效: %w", err)
		}
		if ua := headerManager.UserAgent(); ua != "" {
			cfg.Crawl.UserAgent = ua
		}

		if err := utils.EnsureWritableDir(cfg.Output.BaseDir); err != nil {
			return err
		}

		// 设置信号处理(Ctrl+C 后写出台账再退出)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := browser.OptionsFromConfig(cfg.Crawl, headerManager)
		batch := core.NewBatchCrawler(cfg, func(site models.SiteConfig) browser.Factory {
			return browser.RodFactory(opts)
		})
		if cfg.Crawl.Progress {
			batch.SetProgress(os.Stderr)
		}

		summary, err := batch.CrawlBatch(ctx, sites)
		if err != nil {
			utils.Warnf("\n收到中断信号,已写出台账: %v", err)
			return err
		}
		if summary.FailCount > 0 {
			return fmt.Errorf("%d/%d 个站点爬取失败", summary.FailCount, summary.TotalSites)
		}

		utils.Info("✨ 爬取任务完成!")
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "生成默认配置文件",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := initPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if err := config.WriteDefault(path, initForce); err != nil {
			return err
		}
		utils.Infof("✅ 已生成配置文件: %s", path)
		return nil
	},
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "列出已配置的站点",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, site := range appConfig.Sites {
			fmt.Fprintf(out, "%s (%s)\n", site.Name, site.Country)
			fmt.Fprintf(out, "  入口: %s\n", site.StartURL)
			fmt.Fprintf(out, "  台账: %s\n", appConfig.LedgerPath(site))
			labels := make([]string, 0, len(site.Categories))
			for _, c := range site.Categories {
				labels = append(labels, fmt.Sprintf("%s→%s", c.Label, c.Language))
			}
			fmt.Fprintf(out, "  分类: %s\n", strings.Join(labels, ", "))
		}
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "检查台账与磁盘文件是否一致",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flag := cmd.Flags().Lookup("output"); flag != nil && flag.Changed {
			appConfig.Output.BaseDir = outputDir
		}
		sites, err := SelectSites(appConfig.Sites, siteNames)
		if err != nil {
			return err
		}

		problems := 0
		for _, site := range sites {
			res, err := ledger.Verify(appConfig.LedgerPath(site))
			if err != nil {
				utils.Errorf("❌ [%s] %v", site.Name, err)
				problems++
				continue
			}
			if !res.Exists {
				utils.Infof("[%s] 尚无台账: %s", site.Name, res.Path)
				continue
			}

			utils.Infof("[%s] 台账记录: %d", site.Name, res.Records)
			for _, p := range res.Missing {
				utils.Warnf("  文件缺失: %s", p)
			}
			for _, p := range res.Duplicates {
				utils.Warnf("  路径重复: %s", p)
			}
			for _, msg := range res.Invalid {
				utils.Warnf("  记录无效: %s", msg)
			}
			if !res.OK() {
				problems++
			}

			pending := pendingJournal(appConfig.SiteRoot(site), site.Name)
			if pending > 0 {
				utils.Warnf("  追加日志中有 %d 条记录尚未写出,下次运行时会自动恢复", pending)
			}
		}

		if problems > 0 {
			return fmt.Errorf("%d 个站点的台账存在问题", problems)
		}
		utils.Info("✅ 台账检查通过")
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "验证配置、请求头与浏览器环境",
	RunE: func(cmd *cobra.Command, args []string) error {
		utils.Info("🔍 验证配置...")
		if err := appConfig.Validate(); err != nil {
			return fmt.Errorf("配置验证失败: %w", err)
		}

		headerManager, err := core.NewHeaderManager(appConfig.Headers, headers)
		if err != nil {
			return err
		}
		if err := headerManager.Validate(); err != nil {
			return fmt.Errorf("请求头验证失败: %w", err)
		}
		safeHeaders := headerManager.GetSafeHeaders()
		utils.Infof("当前有效的浏览器额外请求头 (%d个):", len(safeHeaders))
		for name, value := range safeHeaders {
			utils.Infof("  %s: %s", name, value)
		}

		if path, found := launcher.LookPath(); found {
			utils.Infof("✅ 浏览器: %s", path)
		} else {
			utils.Warn("⚠️  未找到本地Chrome/Chromium,首次运行时将自动下载")
		}
		browser.Preflight(appConfig.Crawl.MinFreeMemoryMB)

		if err := utils.EnsureWritableDir(appConfig.Output.BaseDir); err != nil {
			return err
		}
		utils.Info("✅ 配置验证通过!")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lawcrawl %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// pendingJournal 追加日志中尚未写出的记录数,日志不存在时返回0
func pendingJournal(root, site string) int {
	if !utils.PathExists(filepath.Join(root, ledger.JournalFile)) {
		return 0
	}
	j, err := ledger.OpenJournal(root, site)
	if err != nil {
		utils.Debugf("打开追加日志失败: %v", err)
		return 0
	}
	defer j.Close()
	pending, err := j.Pending()
	if err != nil {
		utils.Debugf("读取追加日志失败: %v", err)
		return 0
	}
	return len(pending)
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "浏览器额外请求头,格式: 'Name: Value',可多次指定")

	// 爬取参数
	crawlCmd.Flags().StringSliceVarP(&siteNames, "site", "s", nil, "只爬取指定站点 (可多次指定,默认全部)")
	crawlCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	crawlCmd.Flags().StringVarP(&outputDir, "output", "o", "data", "输出目录")
	crawlCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "站点失败后继续处理下一个站点")
	crawlCmd.Flags().IntVar(&siteDelay, "site-delay", 1, "站点之间的延迟(秒)")
	crawlCmd.Flags().StringSliceVar(&formats, "formats", nil, "额外输出格式 (html, md)")

	verifyCmd.Flags().StringSliceVarP(&siteNames, "site", "s", nil, "只检查指定站点")
	verifyCmd.Flags().StringVarP(&outputDir, "output", "o", "data", "输出目录")

	initCmd.Flags().StringVarP(&initPath, "path", "p", "", "配置文件路径 (默认 $XDG_CONFIG_HOME/lawcrawl/config.yaml)")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "覆盖已存在的配置文件")

	// 添加子命令
	rootCmd.AddCommand(crawlCmd, initCmd, sitesCmd, verifyCmd, checkCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
