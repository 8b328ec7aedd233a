package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/RecoveryAshes/lawcrawl/internal/browser"
	"github.com/RecoveryAshes/lawcrawl/internal/config"
	"github.com/RecoveryAshes/lawcrawl/internal/metrics"
	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/RecoveryAshes/lawcrawl/internal/utils"
)

// FactoryFunc 为站点创建浏览器会话工厂
type FactoryFunc func(site models.SiteConfig) browser.Factory

// BatchCrawler 依次爬取多个站点,每个站点使用独立的浏览器会话
type BatchCrawler struct {
	cfg           *config.Config
	factoryFor    FactoryFunc
	siteDelay     time.Duration
	continueOnErr bool
	progress      io.Writer
}

// BatchResult 单个站点的结果
type BatchResult struct {
	Site        string
	Success     bool
	Error       error
	Stats       models.TaskStats
	Report      *models.CrawlReport
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量爬取摘要
type BatchSummary struct {
	TotalSites      int
	SuccessCount    int
	FailCount       int
	TotalDownloaded int
	TotalFailed     int
	TotalDuration   float64
	Results         []BatchResult
}

// NewBatchCrawler 创建批量爬取器
func NewBatchCrawler(cfg *config.Config, factoryFor FactoryFunc) *BatchCrawler {
	return &BatchCrawler{
		cfg:           cfg,
		factoryFor:    factoryFor,
		siteDelay:     time.Duration(cfg.Crawl.SiteDelay) * time.Second,
		continueOnErr: cfg.Crawl.ContinueOnError,
	}
}

// SetProgress 设置进度条输出
func (bc *BatchCrawler) SetProgress(w io.Writer) {
	bc.progress = w
}

// CrawlBatch 依次爬取站点
// 只有上下文取消时返回错误,站点失败记录在摘要中
func (bc *BatchCrawler) CrawlBatch(ctx context.Context, sites []models.SiteConfig) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量爬取: %d个站点", len(sites))

	summary := &BatchSummary{
		TotalSites: len(sites),
		Results:    make([]BatchResult, 0, len(sites)),
	}

	var recorder *metrics.Recorder
	if bc.cfg.Output.Metrics {
		recorder = metrics.NewRecorder()
	}

	startTime := time.Now()
	var ctxErr error

	for i, site := range sites {
		utils.Infof("==================== [%d/%d] %s ====================", i+1, len(sites), site.Name)

		result := bc.crawlSite(ctx, site, recorder)
		summary.Results = append(summary.Results, result)

		if result.Success {
			summary.SuccessCount++
		} else {
			summary.FailCount++
			utils.Errorf("❌ 站点爬取失败 [%s]: %v", site.Name, result.Error)
		}
		summary.TotalDownloaded += result.Stats.Downloaded
		summary.TotalFailed += result.Stats.Failed

		if err := ctx.Err(); err != nil {
			ctxErr = err
			utils.Warn("批量爬取已取消")
			break
		}
		if !result.Success && !bc.continueOnErr {
			utils.Warn("批量爬取中止 (--continue-on-error=false)")
			break
		}

		if i < len(sites)-1 && bc.siteDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个站点...", bc.siteDelay.Seconds())
			if err := wait(ctx, bc.siteDelay); err != nil {
				ctxErr = err
				break
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()

	if recorder != nil {
		if path, err := recorder.WriteTextfile(bc.cfg.Output.BaseDir); err != nil {
			utils.Warnf("写出指标失败: %v", err)
		} else {
			utils.Infof("📈 指标已写出: %s", path)
		}
	}

	bc.printSummary(summary)
	return summary, ctxErr
}

// crawlSite 爬取单个站点
func (bc *BatchCrawler) crawlSite(ctx context.Context, site models.SiteConfig, recorder *metrics.Recorder) BatchResult {
	result := BatchResult{
		Site:        site.Name,
		ProcessedAt: time.Now(),
	}
	startTime := time.Now()

	crawler, err := NewCrawler(bc.cfg, site, bc.factoryFor(site))
	if err != nil {
		result.Error = fmt.Errorf("创建爬取器失败: %w", err)
		result.Duration = time.Since(startTime).Seconds()
		return result
	}
	if recorder != nil {
		crawler.SetMetrics(recorder)
	}
	crawler.SetProgress(bc.progress)

	report, err := crawler.Crawl(ctx)
	result.Report = report
	if report != nil {
		result.Stats = report.Stats
	}
	result.Duration = time.Since(startTime).Seconds()
	if err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	return result
}

// printSummary 打印批量爬取摘要
func (bc *BatchCrawler) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量爬取摘要")
	utils.Info("==================================================")
	utils.Infof("总站点数: %d", summary.TotalSites)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("📄 新下载文档: %d", summary.TotalDownloaded)
	utils.Infof("⚠️  失败文档: %d", summary.TotalFailed)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的站点:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.Site, result.Error)
			}
		}
	}
}

// wait 可取消的等待
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
