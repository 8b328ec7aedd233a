package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 失败
	TaskStatusCancelled TaskStatus = "cancelled" // 已取消
)

// TaskStats 任务统计
type TaskStats struct {
	Discovered          int     `json:"discovered"`           // 发现的文档链接数
	Downloaded          int     `json:"downloaded"`           // 新下载的文档数
	Skipped             int     `json:"skipped"`              // 已存在而跳过的文档数
	Collisions          int     `json:"collisions"`           // 本次运行内标识冲突数
	Failed              int     `json:"failed"`               // 失败的文档数
	SuspectedDuplicates int     `json:"suspected_duplicates"` // 疑似重复读取同一页面的次数
	Enumerations        int     `json:"enumerations"`         // 链接枚举次数
	CategoriesFailed    int     `json:"categories_failed"`    // 失败的分类数
	BrowserRestarts     int     `json:"browser_restarts"`     // 浏览器重启次数
	Duration            float64 `json:"duration"`             // 总耗时(秒)
}

// Processed 已处理(下载+跳过+冲突)的文档数
func (s TaskStats) Processed() int {
	return s.Downloaded + s.Skipped + s.Collisions
}

// Add 累加另一份统计(耗时除外)
func (s *TaskStats) Add(o TaskStats) {
	s.Discovered += o.Discovered
	s.Downloaded += o.Downloaded
	s.Skipped += o.Skipped
	s.Collisions += o.Collisions
	s.Failed += o.Failed
	s.SuspectedDuplicates += o.SuspectedDuplicates
	s.Enumerations += o.Enumerations
	s.CategoriesFailed += o.CategoriesFailed
	s.BrowserRestarts += o.BrowserRestarts
}

// CrawlConfig 爬取配置
type CrawlConfig struct {
	Headless           bool     `mapstructure:"headless" yaml:"headless" json:"headless"`                                 // 无头模式 (默认:true)
	LocateTimeout      int      `mapstructure:"locate_timeout" yaml:"locate_timeout" json:"locate_timeout"`                // 元素定位超时(秒) (默认:5)
	NavigationTimeout  int      `mapstructure:"navigation_timeout" yaml:"navigation_timeout" json:"navigation_timeout"`    // 页面导航超时(秒) (默认:30)
	SettleDelay        int      `mapstructure:"settle_delay" yaml:"settle_delay" json:"settle_delay"`                      // 兜底固定等待(毫秒) (默认:1000)
	MaxBrowserRestarts int      `mapstructure:"max_browser_restarts" yaml:"max_browser_restarts" json:"max_browser_restarts"` // 最大浏览器重启次数 (默认:3)
	UserAgent          string   `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`                            // 浏览器User-Agent
	MinFreeMemoryMB    int      `mapstructure:"min_free_memory_mb" yaml:"min_free_memory_mb" json:"min_free_memory_mb"`    // 启动浏览器前要求的最小可用内存
	Progress           bool     `mapstructure:"progress" yaml:"progress" json:"progress"`                                  // 显示进度条
	ContinueOnError    bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`       // 站点失败后继续下一个站点
	SiteDelay          int      `mapstructure:"site_delay" yaml:"site_delay" json:"site_delay"`                            // 站点之间的延迟(秒)
	Formats            []string `mapstructure:"formats" yaml:"formats" json:"formats"`                                     // 额外输出格式 (html, md)
}

// DefaultCrawlConfig 默认爬取配置
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		Headless:           true,
		LocateTimeout:      5,
		NavigationTimeout:  30,
		SettleDelay:        1000,
		MaxBrowserRestarts: 3,
		UserAgent:          DefaultUserAgent,
		MinFreeMemoryMB:    256,
		Progress:           true,
		ContinueOnError:    true,
		SiteDelay:          1,
	}
}

// DefaultUserAgent 默认User-Agent(与旧版抓取脚本保持一致)
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 4.0; WOW64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/37.0.2049.0 Safari/537.36"

// SupportedFormats 支持的额外输出格式
var SupportedFormats = map[string]bool{
	"html": true,
	"md":   true,
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.LocateTimeout < 1 || c.LocateTimeout > 120 {
		return fmt.Errorf("定位超时必须在1-120秒之间")
	}
	if c.NavigationTimeout < 1 || c.NavigationTimeout > 600 {
		return fmt.Errorf("导航超时必须在1-600秒之间")
	}
	if c.SettleDelay < 0 || c.SettleDelay > 60000 {
		return fmt.Errorf("固定等待必须在0-60000毫秒之间")
	}
	if c.MaxBrowserRestarts < 0 || c.MaxBrowserRestarts > 10 {
		return fmt.Errorf("浏览器重启次数必须在0-10之间")
	}
	if c.SiteDelay < 0 || c.SiteDelay > 3600 {
		return fmt.Errorf("站点延迟必须在0-3600秒之间")
	}
	for _, f := range c.Formats {
		if !SupportedFormats[f] {
			return fmt.Errorf("不支持的输出格式: %s (有效值: html, md)", f)
		}
	}
	return nil
}

// LocateTimeoutDuration 定位超时
func (c *CrawlConfig) LocateTimeoutDuration() time.Duration {
	return time.Duration(c.LocateTimeout) * time.Second
}

// NavigationTimeoutDuration 导航超时
func (c *CrawlConfig) NavigationTimeoutDuration() time.Duration {
	return time.Duration(c.NavigationTimeout) * time.Second
}

// SettleDelayDuration 兜底固定等待
func (c *CrawlConfig) SettleDelayDuration() time.Duration {
	return time.Duration(c.SettleDelay) * time.Millisecond
}

// CrawlTask 单个站点的爬取任务
type CrawlTask struct {
	ID          string     `json:"id"`                     // 任务唯一ID (UUID)
	Site        string     `json:"site"`                   // 站点名称
	StartURL    string     `json:"start_url"`              // 入口URL
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	StartedAt   *time.Time `json:"started_at,omitempty"`   // 开始时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间

	Config CrawlConfig `json:"config"` // 爬取配置
	Status TaskStatus  `json:"status"` // 任务状态
	Stats  TaskStats   `json:"stats"`  // 任务统计

	ErrorMessage string `json:"error_message,omitempty"` // 错误消息
}

// NewCrawlTask 创建新任务
func NewCrawlTask(site SiteConfig, config CrawlConfig) (*CrawlTask, error) {
	if err := site.Validate(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &CrawlTask{
		ID:        NewRunID(),
		Site:      site.Name,
		StartURL:  site.StartURL,
		CreatedAt: time.Now(),
		Config:    config,
		Status:    TaskStatusPending,
	}, nil
}

// Start 标记任务开始
func (t *CrawlTask) Start() {
	now := time.Now()
	t.StartedAt = &now
	t.Status = TaskStatusRunning
}

// Finish 标记任务结束
func (t *CrawlTask) Finish(err error) {
	now := time.Now()
	t.CompletedAt = &now
	if err != nil {
		t.Status = TaskStatusFailed
		t.ErrorMessage = err.Error()
		return
	}
	t.Status = TaskStatusCompleted
}

// ToJSON 序列化为JSON
func (t *CrawlTask) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}
