// Package crawlers 实现基于框架、点击驱动站点的文档爬取
//
// # 核心组件
//
// ## ListingNavigator
//
// 从入口页选择分类(语言/栏目),进入列表框架并枚举文档链接。
// 每次枚举得到一个 LinkSet,它记录枚举时的会话代数:
//
//	nav := NewListingNavigator(session, site, category)
//	if err := nav.Open(ctx); err != nil { /* 放弃该分类 */ }
//	links, err := nav.CurrentLinks(ctx)
//
// ## LinkSet
//
// 一次枚举的链接句柄集合。会话发生任何导航(点击、切换框架、重新加载)后,
// Open 返回 browser.ErrStaleHandle,必须重新调用 CurrentLinks。
//
// ## DocumentCrawler
//
// 单个分类的状态机:
//
//	AtListing → OpeningDocument → ExtractingDocument → Returning → AtListing
//
// 第 i 次迭代点击 links[i],进入文档框架读取标题与正文,推导标识与路径,
// 写入文件并追加台账,然后回到列表并重新枚举链接。n 个文档共枚举 n+1 次。
//
//	dc := NewDocumentCrawler(session, nav, site, category, ledger, Options{Root: root})
//	result, err := dc.Run(ctx)
//
// # 错误处理
//
//   - 单个条目的错误与panic被捕获并记录为 models.FailedItem,继续下一个条目
//   - 路径已存在: 不重新写入也不追加台账,计为 skipped(或本次运行内的 collision)
//   - browser.ErrSessionLost: 终止该分类,由驱动层重启浏览器
//   - 分类控件不存在: ErrCategoryNotFound,只放弃该分类
//
// # 重复页面检测
//
// 相邻两个条目正文哈希相同时标记为疑似重复读取,只记录不修正。
package crawlers
