package core

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/lawcrawl/internal/browser"
	"github.com/RecoveryAshes/lawcrawl/internal/browser/browsertest"
	"github.com/RecoveryAshes/lawcrawl/internal/config"
	"github.com/RecoveryAshes/lawcrawl/internal/ledger"
	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Output.BaseDir = t.TempDir()
	cfg.Output.Journal = true
	cfg.Output.Reports = true
	cfg.Output.Metrics = true
	cfg.Crawl.SiteDelay = 0
	return cfg
}

func doc(title string) browsertest.Document {
	return browsertest.Document{Title: title, Text: strings.Repeat("texte de "+title+" ", 60)}
}

func belgiumSite() *browsertest.Site {
	return browsertest.NewSite(models.DefaultSites()[0])
}

func readLedger(t *testing.T, path string) []models.DocumentRecord {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var recs []models.DocumentRecord
	require.NoError(t, json.Unmarshal(data, &recs))
	return recs
}

func titles(recs []models.DocumentRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Title
	}
	return out
}

func TestCrawlEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	failing := doc("Loi B")
	failing.FailExtract = true
	site := belgiumSite().
		AddCategory("Français", doc("Loi A"), failing, doc("Loi C")).
		AddCategory("Nederlands", doc("Wet X"))

	c, err := NewCrawler(cfg, site.Config, site.Factory())
	require.NoError(t, err)
	report, err := c.Crawl(context.Background())
	require.NoError(t, err)

	ledgerPath := cfg.LedgerPath(site.Config)
	recs := readLedger(t, ledgerPath)
	assert.Equal(t, []string{"Loi A", "Loi C", "Wet X"}, titles(recs))
	assert.Equal(t, models.LanguageDutch, recs[2].Language)

	root := cfg.SiteRoot(site.Config)
	for _, p := range []string{
		filepath.Join(root, "french", "txt", "loi-a.txt"),
		filepath.Join(root, "french", "txt", "loi-c.txt"),
		filepath.Join(root, "dutch", "txt", "wet-x.txt"),
	} {
		assert.FileExists(t, p)
	}
	assert.NoFileExists(t, filepath.Join(root, "french", "txt", "loi-b.txt"))

	require.Len(t, report.Categories, 3)
	assert.True(t, report.Categories[0].Selected)
	assert.Equal(t, []int{1}, indices(report.Categories[0].Failures))
	assert.False(t, report.Categories[2].Selected, "Deutsch 分类不存在")
	assert.NotEmpty(t, report.Categories[2].Error)

	assert.Equal(t, 3, report.Stats.Downloaded)
	assert.Equal(t, 1, report.Stats.Failed)
	assert.Equal(t, 1, report.Stats.CategoriesFailed)
	assert.Equal(t, 6, report.Stats.Enumerations)
	assert.Equal(t, 0, report.Stats.BrowserRestarts)

	assert.Equal(t, models.TaskStatusCompleted, c.Task().Status)
	assert.Equal(t, 1, site.Sessions())

	reports := cfg.ReportDir(site.Config)
	for _, name := range []string{"crawl_report.json", "crawl_report.md", "failed_items.json", "task.json"} {
		assert.FileExists(t, filepath.Join(reports, name))
	}
	prom, err := os.ReadFile(filepath.Join(root, "lawcrawl.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), `lawcrawl_documents_total{category="french/txt",site="belgium",status="downloaded"} 2`)
	assert.Contains(t, string(prom), `lawcrawl_enumerations_total{site="belgium"} 6`)
}

func indices(items []models.FailedItem) []int {
	out := make([]int, len(items))
	for i, f := range items {
		out[i] = f.Index
	}
	return out
}

func TestCrawlRestartsAfterSessionLoss(t *testing.T) {
	cfg := testConfig(t)
	site := belgiumSite().
		AddCategory("Français", doc("Loi A"), doc("Loi B"), doc("Loi C")).
		CrashOnOpen("Français", 1)

	c, err := NewCrawler(cfg, site.Config, site.Factory())
	require.NoError(t, err)
	report, err := c.Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, site.Sessions())
	assert.Equal(t, 1, report.Stats.BrowserRestarts)
	assert.Equal(t, 3, report.Stats.Downloaded)
	assert.Equal(t, 1, report.Stats.Skipped, "重试时已下载的文档被跳过")
	assert.Equal(t, []string{"Loi A", "Loi B", "Loi C"}, titles(readLedger(t, cfg.LedgerPath(site.Config))))
}

func TestCrawlStopsWhenRestartsExhausted(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crawl.MaxBrowserRestarts = 0
	site := belgiumSite().
		AddCategory("Français", doc("Loi A"), doc("Loi B")).
		AddCategory("Nederlands", doc("Wet X")).
		CrashOnOpen("Français", 1)

	c, err := NewCrawler(cfg, site.Config, site.Factory())
	require.NoError(t, err)
	report, err := c.Crawl(context.Background())

	require.ErrorIs(t, err, ErrRestartsExhausted)
	assert.Equal(t, models.TaskStatusFailed, c.Task().Status)
	require.Len(t, report.Categories, 1)
	assert.Equal(t, []string{"Loi A"}, titles(readLedger(t, cfg.LedgerPath(site.Config))))
}

func TestCrawlReportsRelaunchFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crawl.MaxBrowserRestarts = 3
	site := belgiumSite().
		AddCategory("Français", doc("Loi A"), doc("Loi B")).
		AddCategory("Nederlands", doc("Wet X")).
		CrashOnOpen("Français", 1)

	launches := 0
	factory := func(ctx context.Context) (browser.Session, error) {
		launches++
		if launches > 1 {
			return nil, errors.New("chrome 进程退出")
		}
		return site.Factory()(ctx)
	}

	c, err := NewCrawler(cfg, site.Config, factory)
	require.NoError(t, err)
	report, err := c.Crawl(context.Background())

	require.ErrorIs(t, err, browser.ErrSessionInit)
	assert.NotErrorIs(t, err, ErrRestartsExhausted, "仍有重启次数时应报告启动失败本身")
	assert.Equal(t, 2, launches)
	assert.Equal(t, 1, report.Stats.BrowserRestarts)
	require.Len(t, report.Categories, 1)
	assert.Contains(t, report.Categories[0].Error, "chrome 进程退出")
	assert.Equal(t, []string{"Loi A"}, titles(readLedger(t, cfg.LedgerPath(site.Config))))
}

func TestCrawlAbortsWhenBrowserCannotStart(t *testing.T) {
	cfg := testConfig(t)
	site := belgiumSite().AddCategory("Français", doc("Loi A"))
	factory := func(ctx context.Context) (browser.Session, error) {
		return nil, errors.New("chrome 不存在")
	}

	c, err := NewCrawler(cfg, site.Config, factory)
	require.NoError(t, err)
	report, err := c.Crawl(context.Background())

	require.ErrorIs(t, err, browser.ErrSessionInit)
	assert.Empty(t, report.Categories)
	assert.NoFileExists(t, cfg.LedgerPath(site.Config))
	assert.NoDirExists(t, filepath.Join(cfg.SiteRoot(site.Config), "french"))
}

func TestCrawlTwiceIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	site := belgiumSite().AddCategory("Français", doc("Loi A"), doc("Loi B"), doc("Loi C"))
	ledgerPath := cfg.LedgerPath(site.Config)

	first, err := NewCrawler(cfg, site.Config, site.Factory())
	require.NoError(t, err)
	_, err = first.Crawl(context.Background())
	require.NoError(t, err)
	before, err := os.ReadFile(ledgerPath)
	require.NoError(t, err)

	second, err := NewCrawler(cfg, site.Config, site.Factory())
	require.NoError(t, err)
	report, err := second.Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Stats.Downloaded)
	assert.Equal(t, 3, report.Stats.Skipped)
	after, err := os.ReadFile(ledgerPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestCrawlRecoversUnflushedJournalRecords(t *testing.T) {
	cfg := testConfig(t)
	site := belgiumSite().AddCategory("Français", doc("Loi B"))
	root := cfg.SiteRoot(site.Config)

	// 上一次运行追加后在写出台账前中断
	orphan := filepath.Join(root, "french", "txt", "loi-a.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(orphan), 0755))
	require.NoError(t, os.WriteFile(orphan, []byte("texte"), 0644))
	j, err := ledger.OpenJournal(root, site.Config.Name)
	require.NoError(t, err)
	require.NoError(t, j.Record(models.DocumentRecord{
		Title:        "Loi A",
		Link:         site.Config.SourceLink,
		DownloadPath: orphan,
		DownloadDate: models.NewDate(time.Date(2021, 12, 9, 0, 0, 0, 0, time.UTC)),
		Language:     models.LanguageFrench,
		Country:      "Belgium",
	}))
	require.NoError(t, j.Close())

	c, err := NewCrawler(cfg, site.Config, site.Factory())
	require.NoError(t, err)
	_, err = c.Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Loi A", "Loi B"}, titles(readLedger(t, cfg.LedgerPath(site.Config))))

	j, err = ledger.OpenJournal(root, site.Config.Name)
	require.NoError(t, err)
	defer j.Close()
	pending, err := j.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCrawlCancelled(t *testing.T) {
	cfg := testConfig(t)
	site := belgiumSite().AddCategory("Français", doc("Loi A"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := NewCrawler(cfg, site.Config, site.Factory())
	require.NoError(t, err)
	_, err = c.Crawl(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.FileExists(t, cfg.LedgerPath(site.Config))
}

func TestNewCrawlerRejectsInvalidSite(t *testing.T) {
	cfg := testConfig(t)
	site := models.DefaultSites()[0]
	site.StartURL = "not a url"

	_, err := NewCrawler(cfg, site, belgiumSite().Factory())
	require.Error(t, err)

	_, err = NewCrawler(cfg, models.DefaultSites()[0], nil)
	require.Error(t, err)
}

func TestBatchCrawl(t *testing.T) {
	cfg := testConfig(t)
	be := belgiumSite().AddCategory("Français", doc("Loi A"))
	drc := browsertest.NewSite(models.DefaultSites()[1]).AddCategory("Législation",
		browsertest.Document{Text: strings.Repeat("decret loi ", 120), URL: "http://www.leganet.cd/a.htm"})

	fakes := map[string]*browsertest.Site{"belgium": be, "drc": drc}
	bc := NewBatchCrawler(cfg, func(site models.SiteConfig) browser.Factory {
		return fakes[site.Name].Factory()
	})

	summary, err := bc.CrawlBatch(context.Background(), []models.SiteConfig{be.Config, drc.Config})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 2, summary.TotalDownloaded)
	assert.FileExists(t, filepath.Join(cfg.Output.BaseDir, "lawcrawl.prom"))
	assert.NoFileExists(t, filepath.Join(cfg.SiteRoot(be.Config), "lawcrawl.prom"))

	drcRecs := readLedger(t, cfg.LedgerPath(drc.Config))
	require.Len(t, drcRecs, 1)
	assert.Equal(t, "http://www.leganet.cd/a.htm", drcRecs[0].Link)
	assert.Equal(t, filepath.Join(cfg.Output.BaseDir, "DRC", "metadata.json"), cfg.LedgerPath(drc.Config))
}

func TestBatchCrawlStopsOnError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crawl.ContinueOnError = false
	be := belgiumSite().AddCategory("Français", doc("Loi A"))

	bc := NewBatchCrawler(cfg, func(site models.SiteConfig) browser.Factory {
		if site.Name == "drc" {
			return func(ctx context.Context) (browser.Session, error) {
				return nil, errors.New("chrome 不存在")
			}
		}
		return be.Factory()
	})

	summary, err := bc.CrawlBatch(context.Background(), []models.SiteConfig{models.DefaultSites()[1], be.Config})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FailCount)
	assert.Equal(t, 0, summary.SuccessCount)
	require.Len(t, summary.Results, 1)
	assert.ErrorIs(t, summary.Results[0].Error, browser.ErrSessionInit)
	assert.Equal(t, 0, be.Sessions())
}
