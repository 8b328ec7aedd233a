package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/lawcrawl/internal/browser"
	"github.com/RecoveryAshes/lawcrawl/internal/config"
	"github.com/RecoveryAshes/lawcrawl/internal/crawlers"
	"github.com/RecoveryAshes/lawcrawl/internal/ledger"
	"github.com/RecoveryAshes/lawcrawl/internal/metrics"
	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/RecoveryAshes/lawcrawl/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// ErrRestartsExhausted 浏览器重启次数已用尽
var ErrRestartsExhausted = errors.New("浏览器重启次数已用尽")

// Crawler 单个站点的爬取会话
// 持有一个浏览器会话与一份台账,按分类依次驱动 DocumentCrawler
type Crawler struct {
	cfg     *config.Config
	site    models.SiteConfig
	factory browser.Factory

	task    *models.CrawlTask
	session browser.Session
	ledger  *ledger.Ledger

	metrics     *metrics.Recorder
	ownsMetrics bool
	progress    io.Writer

	restarts int
	fatal    error // 会话无法恢复的原因
}

// NewCrawler 创建站点爬取器
func NewCrawler(cfg *config.Config, site models.SiteConfig, factory browser.Factory) (*Crawler, error) {
	if factory == nil {
		return nil, fmt.Errorf("未提供浏览器会话工厂")
	}
	site.ApplyDefaults()

	task, err := models.NewCrawlTask(site, cfg.Crawl)
	if err != nil {
		return nil, fmt.Errorf("创建爬取任务失败: %w", err)
	}

	c := &Crawler{
		cfg:     cfg,
		site:    site,
		factory: factory,
		task:    task,
	}
	if cfg.Output.Metrics {
		c.metrics = metrics.NewRecorder()
		c.ownsMetrics = true
	}
	return c, nil
}

// SetMetrics 使用外部指标记录器(批量爬取时共享),由调用方负责写出
func (c *Crawler) SetMetrics(r *metrics.Recorder) {
	c.metrics = r
	c.ownsMetrics = false
}

// SetProgress 设置进度条输出,nil 表示不显示
func (c *Crawler) SetProgress(w io.Writer) {
	c.progress = w
}

// Task 返回任务信息
func (c *Crawler) Task() *models.CrawlTask {
	return c.task
}

// Crawl 执行站点爬取
// 执行流程:
//  1. 读取已有台账,从追加日志恢复未写出的记录
//  2. 启动浏览器 (失败则在任何工作之前终止)
//  3. 依次爬取每个分类,每个分类结束后写出台账
//  4. 写出最终台账、报告与指标
func (c *Crawler) Crawl(ctx context.Context) (*models.CrawlReport, error) {
	start := time.Now()
	c.task.Start()

	root := c.cfg.SiteRoot(c.site)
	ledgerPath := c.cfg.LedgerPath(c.site)

	utils.Infof("🚀 开始爬取站点: %s (%s)", c.site.Name, c.site.Country)
	utils.Infof("入口URL: %s", c.site.StartURL)
	utils.Infof("输出目录: %s", root)

	report := &models.CrawlReport{
		TaskID:     c.task.ID,
		Site:       c.site.Name,
		Country:    c.site.Country,
		StartURL:   c.site.StartURL,
		StartTime:  start,
		OutputDir:  root,
		LedgerPath: ledgerPath,
		Config:     c.cfg.Crawl,
	}

	l, err := ledger.Load(ledgerPath)
	if err != nil {
		c.task.Finish(err)
		return report, err
	}
	c.ledger = l
	utils.Infof("📒 已有台账记录: %d", l.Len())

	if c.cfg.Output.Journal {
		if j := c.openJournal(root); j != nil {
			defer j.Close()
		}
	}

	if err := c.launch(ctx); err != nil {
		c.task.Finish(err)
		return report, err
	}
	defer c.closeSession()

	var runErr error
	for _, category := range c.site.Categories {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		catReport := c.crawlCategory(ctx, category)
		report.Categories = append(report.Categories, catReport)
		report.Stats.Add(catReport.Stats)

		if err := l.Flush(ledgerPath); err != nil {
			utils.Errorf("写出台账失败: %v", err)
		}

		if c.session == nil {
			runErr = c.fatal
			break
		}
	}
	if runErr == nil {
		runErr = ctx.Err()
	}

	if err := l.Flush(ledgerPath); err != nil {
		utils.Errorf("写出台账失败: %v", err)
		if runErr == nil {
			runErr = err
		}
	}

	report.Stats.BrowserRestarts = c.restarts
	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(start).Seconds()
	report.Stats.Duration = report.Duration
	c.task.Stats = report.Stats
	c.task.Finish(runErr)

	c.writeOutputs(report)
	c.printSummary(report)

	return report, runErr
}

// openJournal 打开追加日志并恢复上次未写出的记录
func (c *Crawler) openJournal(root string) *ledger.Journal {
	j, err := ledger.OpenJournal(root, c.site.Name)
	if err != nil {
		utils.Warnf("⚠️  无法打开台账日志,继续运行但不具备崩溃恢复能力: %v", err)
		return nil
	}
	utils.Debugf("台账日志: %s", j.Path())

	n, err := j.Recover(c.ledger)
	if err != nil {
		utils.Warnf("从台账日志恢复失败: %v", err)
	} else if n > 0 {
		utils.Infof("♻️  从台账日志恢复 %d 条未写出的记录", n)
	}

	c.ledger.AttachJournal(j)
	return j
}

// launch 启动浏览器会话
func (c *Crawler) launch(ctx context.Context) error {
	session, err := c.factory(ctx)
	if err != nil {
		if !errors.Is(err, browser.ErrSessionInit) {
			err = fmt.Errorf("%w: %v", browser.ErrSessionInit, err)
		}
		utils.Errorf("❌ 浏览器启动失败: %v", err)
		return err
	}
	c.session = session
	return nil
}

// relaunch 关闭失效的会话并重新启动
func (c *Crawler) relaunch(ctx context.Context) error {
	c.closeSession()
	c.restarts++
	if c.metrics != nil {
		c.metrics.ObserveRestart(c.site.Name)
	}
	utils.Warnf("浏览器会话丢失,准备重启(重试%d/%d)", c.restarts, c.cfg.Crawl.MaxBrowserRestarts)
	return c.launch(ctx)
}

func (c *Crawler) closeSession() {
	if c.session == nil {
		return
	}
	if err := c.session.Close(); err != nil {
		utils.Debugf("关闭浏览器失败: %v", err)
	}
	c.session = nil
}

// crawlCategory 爬取一个分类,会话丢失时重启浏览器并重试该分类
// 重试时已下载的文档因路径已存在而跳过
func (c *Crawler) crawlCategory(ctx context.Context, category models.CategoryConfig) models.CategoryReport {
	rep := models.CategoryReport{
		Label:    category.Label,
		Language: category.Language,
	}
	utils.Infof("📂 分类: %s (%s)", category.Label, category.Name())

	for {
		res, selected, err := c.runCategory(ctx, category)
		rep.Selected = rep.Selected || selected

		discovered := max(rep.Stats.Discovered, res.Stats.Discovered)
		rep.Stats.Add(res.Stats)
		rep.Stats.Discovered = discovered
		rep.Failures = append(rep.Failures, res.Failures...)
		rep.Duplicate = append(rep.Duplicate, res.Duplicates...)

		if c.metrics != nil {
			c.metrics.ObserveEnumerations(c.site.Name, res.Stats.Enumerations)
		}

		if err == nil {
			break
		}

		if browser.IsFatal(err) && ctx.Err() == nil {
			if c.restarts >= c.cfg.Crawl.MaxBrowserRestarts {
				c.closeSession()
				c.fatal = fmt.Errorf("%w (%d次): %v", ErrRestartsExhausted, c.restarts, err)
				rep.Error = c.fatal.Error()
				break
			}
			if lerr := c.relaunch(ctx); lerr != nil {
				c.fatal = lerr
				rep.Error = lerr.Error()
				break
			}
			continue
		}

		rep.Error = err.Error()
		break
	}

	result := "ok"
	if rep.Error != "" {
		rep.Stats.CategoriesFailed = 1
		result = "failed"
		siteLog := utils.WithSite(c.site.Name)
		siteLog.Error().
			Str("category", category.Label).
			Str("error", rep.Error).
			Msg("❌ 分类爬取失败")
	} else {
		utils.Infof("✅ 分类完成: %s (下载 %d, 跳过 %d, 失败 %d)",
			category.Label, rep.Stats.Downloaded, rep.Stats.Skipped, rep.Stats.Failed)
	}
	if c.metrics != nil {
		c.metrics.ObserveCategory(c.site.Name, result)
	}
	return rep
}

// runCategory 进入分类并运行一次文档爬取
func (c *Crawler) runCategory(ctx context.Context, category models.CategoryConfig) (crawlers.CategoryResult, bool, error) {
	nav := crawlers.NewListingNavigator(c.session, c.site, category)
	if err := nav.Open(ctx); err != nil {
		return crawlers.CategoryResult{}, false, err
	}

	var bar *progressbar.ProgressBar
	if c.progress != nil {
		bar = utils.NewProgressBar(-1, fmt.Sprintf("[%s] %s", c.site.Name, category.Label), c.progress)
		defer bar.Finish()
	}

	dc := crawlers.NewDocumentCrawler(c.session, nav, c.site, category, c.ledger, crawlers.Options{
		Root:    c.cfg.SiteRoot(c.site),
		Formats: c.cfg.Crawl.Formats,
		OnItem: func(item crawlers.ItemResult) {
			if bar != nil {
				_ = bar.Add(1)
			}
			if c.metrics != nil {
				c.metrics.ObserveDocument(c.site.Name, category.Name(), string(item.Status))
			}
		},
	})

	res, err := dc.Run(ctx)
	return res, true, err
}

// writeOutputs 写出报告与指标,失败只记录警告
func (c *Crawler) writeOutputs(report *models.CrawlReport) {
	if c.metrics != nil {
		c.metrics.ObserveDuration(c.site.Name, report.Duration)
	}

	if c.cfg.Output.Reports {
		dir := c.cfg.ReportDir(c.site)
		if err := utils.NewReporter(dir).GenerateReport(report); err != nil {
			utils.Warnf("生成报告失败: %v", err)
		}
		if data, err := c.task.ToJSON(); err == nil {
			if err := utils.WriteFileAtomic(filepath.Join(dir, "task.json"), data); err != nil {
				utils.Warnf("保存任务信息失败: %v", err)
			}
		}
	}

	if c.ownsMetrics {
		path, err := c.metrics.WriteTextfile(c.cfg.SiteRoot(c.site))
		if err != nil {
			utils.Warnf("写出指标失败: %v", err)
		} else {
			utils.Debugf("指标已写出: %s", path)
		}
	}
}

func (c *Crawler) printSummary(report *models.CrawlReport) {
	s := report.Stats
	utils.Info("==================================================")
	utils.Infof("📊 站点 %s 爬取完成", report.Site)
	utils.Infof("📄 新下载: %d  ⏭️  跳过: %d  ⚠️  冲突: %d  ❌ 失败: %d", s.Downloaded, s.Skipped, s.Collisions, s.Failed)
	if s.SuspectedDuplicates > 0 {
		utils.Warnf("疑似重复读取同一页面: %d 次 (详见报告)", s.SuspectedDuplicates)
	}
	if s.CategoriesFailed > 0 {
		utils.Warnf("失败分类: %d", s.CategoriesFailed)
	}
	utils.Infof("📒 台账记录: %d (%s)", c.ledger.Len(), report.LedgerPath)
	utils.Infof("⏱️  总耗时: %.2f秒", report.Duration)
	utils.Info("==================================================")
}
