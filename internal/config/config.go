package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// AppName 应用名称,用于配置与数据目录
const AppName = "lawcrawl"

// MaxConfigFileSize 配置文件最大大小 (1MB)
const MaxConfigFileSize = 1 * 1024 * 1024

// Config 应用程序配置
type Config struct {
	Crawl   models.CrawlConfig  `mapstructure:"crawl" yaml:"crawl"`
	Logging LoggingConfig       `mapstructure:"logging" yaml:"logging"`
	Output  OutputConfig        `mapstructure:"output" yaml:"output"`
	Headers map[string]string   `mapstructure:"headers" yaml:"headers"`
	Sites   []models.SiteConfig `mapstructure:"sites" yaml:"sites"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level" yaml:"level"`
	LogDir   string         `mapstructure:"log_dir" yaml:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int  `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"` // 文档与台账根目录
	Journal bool   `mapstructure:"journal" yaml:"journal"`   // 启用SQLite追加日志
	Reports bool   `mapstructure:"reports" yaml:"reports"`   // 生成JSON/Markdown报告
	Metrics bool   `mapstructure:"metrics" yaml:"metrics"`   // 导出Prometheus文本指标
}

// SearchPaths 返回默认配置搜索路径
func SearchPaths() []string {
	return []string{
		"./configs",
		".",
		filepath.Join(xdg.ConfigHome, AppName),
	}
}

// DefaultConfigPath 返回 init 命令默认写入的配置路径
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// Load 加载配置文件
// configPath 为空时在 SearchPaths 中查找 config.yaml,找不到则使用默认值
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		if err := checkFileSize(configPath); err != nil {
			return nil, err
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range SearchPaths() {
			v.AddConfigPath(p)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: fmt.Errorf("读取配置文件失败: %w", err)}
		}
		// 配置文件不存在,使用默认值
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置文件失败: %w", err)}
	}

	if len(cfg.Sites) == 0 {
		cfg.Sites = models.DefaultSites()
	}
	for i := range cfg.Sites {
		cfg.Sites[i].ApplyDefaults()
	}

	return &cfg, nil
}

// Validate 验证整体配置
func (c *Config) Validate() error {
	if err := c.Crawl.Validate(); err != nil {
		return fmt.Errorf("爬取配置无效: %w", err)
	}
	seen := make(map[string]bool)
	for i := range c.Sites {
		if err := c.Sites[i].Validate(); err != nil {
			return err
		}
		if seen[c.Sites[i].Name] {
			return fmt.Errorf("站点名称重复: %s", c.Sites[i].Name)
		}
		seen[c.Sites[i].Name] = true
	}
	if c.Output.BaseDir == "" {
		return fmt.Errorf("输出目录不能为空")
	}
	return nil
}

// checkFileSize 验证配置文件大小是否在限制内
func checkFileSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &models.ConfigError{FilePath: path, Cause: err}
	}
	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			FilePath: path,
			Cause:    fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)", info.Size(), MaxConfigFileSize),
		}
	}
	return nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	d := models.DefaultCrawlConfig()

	// 爬取配置默认值
	v.SetDefault("crawl.headless", d.Headless)
	v.SetDefault("crawl.locate_timeout", d.LocateTimeout)
	v.SetDefault("crawl.navigation_timeout", d.NavigationTimeout)
	v.SetDefault("crawl.settle_delay", d.SettleDelay)
	v.SetDefault("crawl.max_browser_restarts", d.MaxBrowserRestarts)
	v.SetDefault("crawl.user_agent", d.UserAgent)
	v.SetDefault("crawl.min_free_memory_mb", d.MinFreeMemoryMB)
	v.SetDefault("crawl.progress", d.Progress)
	v.SetDefault("crawl.continue_on_error", d.ContinueOnError)
	v.SetDefault("crawl.site_delay", d.SiteDelay)
	v.SetDefault("crawl.formats", []string{})

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "data")
	v.SetDefault("output.journal", true)
	v.SetDefault("output.reports", true)
	v.SetDefault("output.metrics", false)
}

// Default 返回与 setDefaults 一致的完整默认配置
func Default() *Config {
	sites := models.DefaultSites()
	return &Config{
		Crawl: models.DefaultCrawlConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			LogDir: "logs",
			Rotation: RotationConfig{
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
				Compress:   true,
			},
		},
		Output: OutputConfig{
			BaseDir: "data",
			Journal: true,
			Reports: true,
		},
		Headers: map[string]string{
			"Accept-Language": "fr-BE,fr;q=0.9,nl;q=0.8,de;q=0.7",
		},
		Sites: sites,
	}
}

// LedgerPath 返回站点台账文件路径
func (c *Config) LedgerPath(site models.SiteConfig) string {
	return filepath.Join(c.Output.BaseDir, site.Dir, site.LedgerFile)
}

// SiteRoot 返回站点文档根目录
func (c *Config) SiteRoot(site models.SiteConfig) string {
	return filepath.Join(c.Output.BaseDir, site.Dir)
}

// ReportDir 返回站点报告目录
func (c *Config) ReportDir(site models.SiteConfig) string {
	return filepath.Join(c.Output.BaseDir, site.Dir, "reports")
}
