package crawlers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/RecoveryAshes/lawcrawl/internal/browser"
	"github.com/RecoveryAshes/lawcrawl/internal/identity"
	"github.com/RecoveryAshes/lawcrawl/internal/ledger"
	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/RecoveryAshes/lawcrawl/internal/utils"
)

// ErrItemPanic 处理条目时发生panic
var ErrItemPanic = errors.New("处理文档时发生panic")

// ItemStatus 单个条目的处理结果
type ItemStatus string

const (
	ItemDownloaded ItemStatus = "downloaded" // 新写入并追加台账
	ItemSkipped    ItemStatus = "skipped"    // 文件已存在(之前的运行)
	ItemCollision  ItemStatus = "collision"  // 本次运行中已有同名标识
	ItemFailed     ItemStatus = "failed"
)

// 处理阶段
const (
	StageOpen    = "open"
	StageExtract = "extract"
	StagePersist = "persist"
)

// ItemResult 条目处理结果
type ItemResult struct {
	Index              int
	Status             ItemStatus
	Stage              string
	Path               string
	Title              string
	SuspectedDuplicate bool
	Err                error
}

// CategoryResult 一个分类的爬取结果
type CategoryResult struct {
	Stats      models.TaskStats
	Failures   []models.FailedItem
	Duplicates []int // 疑似重复读取的条目序号
}

// Options 文档爬取参数
type Options struct {
	Root    string   // 站点输出根目录
	Formats []string // 额外输出格式
	Now     func() time.Time
	OnItem  func(ItemResult) // 每个条目处理完成后回调(进度、指标)
}

// DocumentCrawler 单个分类的爬取状态机
//
//	AtListing → OpeningDocument → ExtractingDocument → Returning → AtListing
//
// 链接集在每次返回列表后重新枚举;单个条目的错误或panic只影响该条目。
type DocumentCrawler struct {
	session   browser.Session
	navigator *ListingNavigator
	site      models.SiteConfig
	category  models.CategoryConfig
	ledger    *ledger.Ledger
	opts      Options
	idOpts    identity.Options

	written map[string]bool // 本次运行写入的路径
	dup     DuplicateDetector
}

// NewDocumentCrawler 创建文档爬取器
func NewDocumentCrawler(session browser.Session, navigator *ListingNavigator, site models.SiteConfig,
	category models.CategoryConfig, l *ledger.Ledger, opts Options) *DocumentCrawler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DocumentCrawler{
		session:   session,
		navigator: navigator,
		site:      site,
		category:  category,
		ledger:    l,
		opts:      opts,
		idOpts:    identity.OptionsFor(site),
		written:   make(map[string]bool),
	}
}

// Run 遍历当前列表直到结束
// 返回的错误只表示该分类无法继续(会话丢失、无法回到列表、上下文取消)
func (c *DocumentCrawler) Run(ctx context.Context) (CategoryResult, error) {
	var result CategoryResult
	log := utils.WithSite(c.site.Name)

	links, err := c.navigator.CurrentLinks(ctx)
	if err != nil {
		return c.finish(result), err
	}
	utils.Infof("📑 [%s] 发现 %d 个文档链接", c.category.Name(), links.Len())

	for i := 0; ; i++ {
		if links.Len() > result.Stats.Discovered {
			result.Stats.Discovered = links.Len()
		}
		if i >= links.Len() {
			break
		}
		if err := ctx.Err(); err != nil {
			return c.finish(result), err
		}

		item := c.processItem(ctx, links, i)
		c.record(&result, item)

		if item.Status == ItemFailed {
			log.Warn().
				Str("category", c.category.Name()).
				Int("index", i).
				Str("stage", item.Stage).
				Err(item.Err).
				Msg("⚠️  文档处理失败,继续下一个")
		}
		if browser.IsFatal(item.Err) {
			return c.finish(result), item.Err
		}

		if err := c.navigator.ReturnToListing(ctx); err != nil {
			return c.finish(result), err
		}

		links, err = c.navigator.CurrentLinks(ctx)
		if err != nil {
			return c.finish(result), err
		}
	}

	return c.finish(result), nil
}

func (c *DocumentCrawler) finish(result CategoryResult) CategoryResult {
	result.Stats.Enumerations = c.navigator.Enumerations()
	return result
}

// record 累计条目结果
func (c *DocumentCrawler) record(result *CategoryResult, item ItemResult) {
	switch item.Status {
	case ItemDownloaded:
		result.Stats.Downloaded++
		utils.Infof("📄 [%s #%d] 已保存: %s", c.category.Name(), item.Index, item.Path)
	case ItemSkipped:
		result.Stats.Skipped++
		utils.Debugf("[%s #%d] 已存在,跳过: %s", c.category.Name(), item.Index, item.Path)
	case ItemCollision:
		result.Stats.Collisions++
		utils.Warnf("⚠️  [%s #%d] 标识冲突,本次运行已写入同名文档: %s", c.category.Name(), item.Index, item.Path)
	case ItemFailed:
		result.Stats.Failed++
		result.Failures = append(result.Failures, models.FailedItem{
			Index:     item.Index,
			Stage:     item.Stage,
			ErrorType: errorType(item.Err),
			ErrorMsg:  item.Err.Error(),
		})
	}

	if item.SuspectedDuplicate {
		result.Stats.SuspectedDuplicates++
		result.Duplicates = append(result.Duplicates, item.Index)
		utils.Warnf("⚠️  [%s #%d] 正文与上一个文档完全相同,疑似重复读取同一页面", c.category.Name(), item.Index)
	}

	if c.opts.OnItem != nil {
		c.opts.OnItem(item)
	}
}

// processItem 打开、提取并保存第 i 个文档
func (c *DocumentCrawler) processItem(ctx context.Context, links *LinkSet, i int) (item ItemResult) {
	item = ItemResult{Index: i, Stage: StageOpen}
	defer func() {
		if r := recover(); r != nil {
			item.Status = ItemFailed
			item.Err = fmt.Errorf("%w: %v", ErrItemPanic, r)
		}
	}()

	fail := func(err error) ItemResult {
		item.Status = ItemFailed
		item.Err = err
		return item
	}

	if err := links.Open(ctx, i); err != nil {
		return fail(err)
	}

	item.Stage = StageExtract
	p, err := c.readPage(ctx)
	if err != nil {
		return fail(err)
	}
	item.SuspectedDuplicate = c.dup.Observe(p.Text)

	id, err := identity.BuildID(p.Title, p.Text, c.idOpts)
	if err != nil {
		return fail(err)
	}
	item.Title = id.Title
	item.Path = identity.ResolvePath(c.opts.Root, c.category.Language, c.category.Segment, id.Value, c.site.Extension)

	if c.written[item.Path] {
		item.Status = ItemCollision
		return item
	}
	item.Stage = StagePersist
	exists, err := identity.Exists(item.Path)
	if err != nil {
		return fail(fmt.Errorf("检查目标路径失败: %w", err))
	}
	if exists {
		item.Status = ItemSkipped
		return item
	}

	if err := writeDocument(item.Path, p, c.opts.Formats); err != nil {
		return fail(err)
	}
	c.written[item.Path] = true

	link := c.site.SourceLink
	if link == "" {
		link = p.URL
	}
	rec := models.DocumentRecord{
		Title:        id.Title,
		Link:         link,
		DownloadPath: item.Path,
		DownloadDate: models.NewDate(c.opts.Now()),
		Language:     c.category.Language,
		Country:      c.site.Country,
	}
	if err := c.ledger.Append(rec); err != nil {
		return fail(err)
	}

	item.Status = ItemDownloaded
	return item
}

// readPage 在文档框架中读取标题、正文与来源URL
func (c *DocumentCrawler) readPage(ctx context.Context) (page, error) {
	var p page

	if err := c.session.ExitToDefault(); err != nil {
		return p, err
	}
	if c.site.DocumentFrame != "" {
		if err := c.session.EnterFrame(ctx, c.site.DocumentFrame); err != nil {
			return p, fmt.Errorf("进入文档框架失败: %w", err)
		}
	}

	if c.site.TitleLocator != "" {
		title, err := c.readTitle(ctx)
		if err != nil {
			if browser.IsFatal(err) {
				return p, err
			}
			// 标题缺失时由正文片段推导标识
			utils.Debugf("读取标题失败,使用正文片段: %v", err)
		}
		p.Title = title
	}

	text, err := c.session.PageText(ctx)
	if err != nil {
		return p, fmt.Errorf("读取正文失败: %w", err)
	}
	p.Text = text

	if len(c.opts.Formats) > 0 {
		source, err := c.session.PageSource(ctx)
		if err != nil {
			if browser.IsFatal(err) {
				return p, err
			}
			utils.Warnf("读取页面HTML失败,跳过额外格式: %v", err)
		}
		p.Source = source
	}

	if c.site.SourceLink == "" || len(c.opts.Formats) > 0 {
		u, err := c.session.CurrentURL(ctx)
		if err != nil {
			return p, err
		}
		p.URL = u
	}

	return p, nil
}

// readTitle 读取标题元素文本,不存在时返回空字符串
func (c *DocumentCrawler) readTitle(ctx context.Context) (string, error) {
	el, err := c.session.LocateOne(ctx, c.site.TitleLocator)
	if err != nil || el == nil {
		return "", err
	}
	return el.Text(ctx)
}

// errorType 失败条目的错误分类
func errorType(err error) string {
	var pathErr *fs.PathError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrItemPanic):
		return "panic"
	case errors.Is(err, browser.ErrStaleHandle):
		return "stale_handle"
	case errors.Is(err, browser.ErrSessionLost):
		return "session_lost"
	case errors.Is(err, browser.ErrNavigation):
		return "navigation"
	case errors.Is(err, browser.ErrLocator):
		return "locator"
	case errors.Is(err, ErrLinkIndex):
		return "link_index"
	case errors.Is(err, identity.ErrEmptyIdentity):
		return "identity"
	case errors.Is(err, ledger.ErrDuplicatePath):
		return "ledger"
	case errors.As(err, &pathErr):
		return "io"
	default:
		return "other"
	}
}
