package models

import "time"

// CrawlReport 单个站点的爬取报告
type CrawlReport struct {
	// 任务信息
	TaskID   string `json:"task_id"`
	Site     string `json:"site"`
	Country  string `json:"country"`
	StartURL string `json:"start_url"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Stats TaskStats `json:"stats"`

	// 分类明细
	Categories []CategoryReport `json:"categories"`

	// 输出路径
	OutputDir  string `json:"output_dir"`
	LedgerPath string `json:"ledger_path"`

	// 配置快照
	Config CrawlConfig `json:"config"`
}

// CategoryReport 分类爬取结果
type CategoryReport struct {
	Label     string       `json:"label"`
	Language  Language     `json:"language"`
	Selected  bool         `json:"selected"`        // 分类控件是否找到并激活
	Error     string       `json:"error,omitempty"` // 分类级错误
	Stats     TaskStats    `json:"stats"`
	Failures  []FailedItem `json:"failures,omitempty"`
	Duplicate []int        `json:"suspected_duplicates,omitempty"` // 疑似重复页面的条目序号
}

// FailedItem 失败条目
type FailedItem struct {
	Index     int    `json:"index"`      // 在链接列表中的序号(从0开始)
	Stage     string `json:"stage"`      // open, extract, persist
	ErrorType string `json:"error_type"` // stale_handle, locator, io, panic 等
	ErrorMsg  string `json:"error_msg"`
}
