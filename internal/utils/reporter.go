package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/nao1215/markdown"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
type Reporter struct {
	reportsDir string
}

// NewReporter 创建报告生成器
func NewReporter(reportsDir string) *Reporter {
	return &Reporter{reportsDir: reportsDir}
}

// GenerateReport 生成JSON与Markdown爬取报告
func (r *Reporter) GenerateReport(report *models.CrawlReport) error {
	if err := os.MkdirAll(r.reportsDir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}

	if err := r.saveJSONReport("crawl_report.json", report); err != nil {
		return err
	}

	failures := make([]models.FailedItem, 0)
	for _, c := range report.Categories {
		failures = append(failures, c.Failures...)
	}
	if err := r.saveJSONReport("failed_items.json", failures); err != nil {
		return err
	}

	mdPath := filepath.Join(r.reportsDir, "crawl_report.md")
	f, err := os.Create(mdPath)
	if err != nil {
		return fmt.Errorf("创建Markdown报告失败: %w", err)
	}
	defer f.Close()

	if err := WriteMarkdownReport(f, report); err != nil {
		return err
	}

	Infof("✅ 报告已生成: %s", r.reportsDir)
	return nil
}

// WriteMarkdownReport 以Markdown格式输出报告
func WriteMarkdownReport(w io.Writer, report *models.CrawlReport) error {
	s := report.Stats

	md := markdown.NewMarkdown(w).
		H1("爬取报告: "+report.Site).
		PlainTextf("国家: %s", report.Country).LF().
		PlainTextf("入口: %s", report.StartURL).LF().
		PlainTextf("台账: %s", report.LedgerPath).LF().
		PlainTextf("耗时: %.2f秒", report.Duration).LF().
		H2("统计").
		Table(markdown.TableSet{
			Header: []string{"指标", "数值"},
			Rows: [][]string{
				{"发现链接", strconv.Itoa(s.Discovered)},
				{"新下载", strconv.Itoa(s.Downloaded)},
				{"已存在跳过", strconv.Itoa(s.Skipped)},
				{"标识冲突", strconv.Itoa(s.Collisions)},
				{"失败", strconv.Itoa(s.Failed)},
				{"疑似重复页面", strconv.Itoa(s.SuspectedDuplicates)},
				{"链接枚举次数", strconv.Itoa(s.Enumerations)},
				{"失败分类", strconv.Itoa(s.CategoriesFailed)},
				{"浏览器重启", strconv.Itoa(s.BrowserRestarts)},
			},
		}).
		H2("分类")

	rows := make([][]string, 0, len(report.Categories))
	for _, c := range report.Categories {
		status := "✅"
		if !c.Selected || c.Error != "" {
			status = "❌ " + c.Error
		}
		rows = append(rows, []string{
			c.Label,
			string(c.Language),
			status,
			strconv.Itoa(c.Stats.Downloaded),
			strconv.Itoa(c.Stats.Skipped),
			strconv.Itoa(c.Stats.Failed),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"标签", "语言", "状态", "下载", "跳过", "失败"},
		Rows:   rows,
	})

	var failures []string
	for _, c := range report.Categories {
		for _, f := range c.Failures {
			failures = append(failures, fmt.Sprintf("%s #%d [%s/%s] %s", c.Label, f.Index, f.Stage, f.ErrorType, f.ErrorMsg))
		}
	}
	if len(failures) > 0 {
		md.H2("失败条目").BulletList(failures...)
	}

	if err := md.Build(); err != nil {
		return fmt.Errorf("生成Markdown报告失败: %w", err)
	}
	return nil
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(filename string, data interface{}) error {
	path := filepath.Join(r.reportsDir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string, out io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
