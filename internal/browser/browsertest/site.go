// Package browsertest 提供内存中的假站点,模拟基于框架、点击驱动的法律文档站点
//
// 假站点按 models.SiteConfig 中的定位表达式应答查询,与真实浏览器一样在每次
// 导航类事件后使旧的元素句柄失效,并统计链接枚举次数,供爬取流程测试使用。
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/RecoveryAshes/lawcrawl/internal/browser"
	"github.com/RecoveryAshes/lawcrawl/internal/models"
)

// Document 假站点中的一个文档
type Document struct {
	Title string // 为空时页面上没有标题元素
	Text  string
	URL   string

	FailExtract  bool // 读取正文时返回错误
	PanicExtract bool // 读取正文时panic
	FailOpen     bool // 点击链接时返回句柄失效
}

// Site 假站点数据与跨会话计数器
type Site struct {
	Config models.SiteConfig

	mu           sync.Mutex
	categories   map[string][]Document
	sessions     int
	enumerations int
	navigations  int
	crashAt      map[string]int // 分类标签 -> 点击该序号链接时浏览器崩溃(仅一次)
	navFail      bool
}

// NewSite 按站点定义创建假站点
func NewSite(cfg models.SiteConfig) *Site {
	cfg.ApplyDefaults()
	return &Site{
		Config:     cfg,
		categories: make(map[string][]Document),
		crashAt:    make(map[string]int),
	}
}

// AddCategory 添加分类及其文档列表
func (s *Site) AddCategory(label string, docs ...Document) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[label] = docs
	return s
}

// CrashOnOpen 点击指定分类第 index 个链接时模拟浏览器崩溃,只触发一次
func (s *Site) CrashOnOpen(label string, index int) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crashAt[label] = index
	return s
}

// FailNavigation 之后的所有导航都失败
func (s *Site) FailNavigation() *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navFail = true
	return s
}

// Enumerations 所有会话中链接定位(枚举)的总次数
func (s *Site) Enumerations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enumerations
}

// Navigations 所有会话中导航(加载入口页)的总次数
func (s *Site) Navigations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navigations
}

// Sessions 已创建的会话数
func (s *Site) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

// Factory 返回创建假会话的工厂
func (s *Site) Factory() browser.Factory {
	return func(ctx context.Context) (browser.Session, error) {
		return s.NewSession(), nil
	}
}

// NewSession 创建新的假会话
func (s *Site) NewSession() *Session {
	s.mu.Lock()
	s.sessions++
	s.mu.Unlock()
	return &Session{site: s}
}

func (s *Site) docs(label string) []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories[label]
}

func (s *Site) labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.categories))
	for label := range s.categories {
		out = append(out, label)
	}
	return out
}

func (s *Site) countEnumeration() {
	s.mu.Lock()
	s.enumerations++
	s.mu.Unlock()
}

// takeCrash 是否在该位置触发崩溃,触发后清除
func (s *Site) takeCrash(label string, index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.crashAt[label]
	if !ok || at != index {
		return false
	}
	delete(s.crashAt, label)
	return true
}

// navigate 记录一次导航并返回该导航是否失败
func (s *Site) navigate() (fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigations++
	return s.navFail
}

type pageKind int

const (
	pageBlank pageKind = iota
	pageWelcome
	pageListing
	pageDocument
)

// Session 假浏览器会话
type Session struct {
	site *Site

	mu         sync.Mutex
	page       pageKind
	category   string
	doc        int
	frame      string // 当前所在框架的定位表达式,空为默认内容
	generation uint64
	closed     bool
	lost       bool
}

var _ browser.Session = (*Session)(nil)

func (s *Session) alive() error {
	if s.closed || s.lost {
		return browser.ErrSessionLost
	}
	return nil
}

// Navigate 加载URL,回到欢迎页
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return err
	}
	s.generation++
	s.frame = ""
	if s.site.navigate() {
		s.page = pageBlank
		return fmt.Errorf("%w [%s]: 站点不可达", browser.ErrNavigation, url)
	}
	s.page = pageWelcome
	s.category = ""
	return nil
}

// Locate 按定位表达式查找元素
func (s *Session) Locate(ctx context.Context, locator string) ([]browser.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return nil, err
	}
	return s.lookup(locator), nil
}

// LocateOne 查找首个匹配元素
func (s *Session) LocateOne(ctx context.Context, locator string) (browser.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return nil, err
	}
	found := s.lookup(locator)
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// lookup 根据当前页面与框架应答定位表达式,调用方持有锁
func (s *Session) lookup(locator string) []browser.Element {
	cfg := &s.site.Config

	switch s.page {
	case pageWelcome:
		if s.frame != "" {
			return nil
		}
		for _, label := range s.site.labels() {
			if locator == cfg.CategoryControl(label) {
				label := label
				return []browser.Element{s.element(label, func() error {
					s.page = pageListing
					s.category = label
					return nil
				})}
			}
		}

	case pageListing:
		if s.frame != cfg.ListingFrame || locator != cfg.LinkLocator {
			return nil
		}
		s.site.countEnumeration()
		docs := s.site.docs(s.category)
		out := make([]browser.Element, 0, len(docs))
		for i := range docs {
			i := i
			out = append(out, s.element(fmt.Sprintf("link-%d", i), func() error {
				return s.openDocument(i)
			}))
		}
		return out

	case pageDocument:
		doc := s.currentDoc()
		if cfg.TitleLocator != "" && locator == cfg.TitleLocator && s.frame == cfg.DocumentFrame && doc.Title != "" {
			return []browser.Element{s.element(doc.Title, func() error { return nil })}
		}
		if cfg.HasBackControl() && locator == cfg.BackLocator && s.frame == cfg.BackFrame {
			return []browser.Element{s.element("menu", func() error {
				s.page = pageListing
				return nil
			})}
		}
	}
	return nil
}

// openDocument 点击文档链接,调用方持有锁
func (s *Session) openDocument(i int) error {
	if s.site.takeCrash(s.category, i) {
		s.lost = true
		return fmt.Errorf("%w: 浏览器进程退出", browser.ErrSessionLost)
	}
	docs := s.site.docs(s.category)
	if i >= len(docs) {
		return fmt.Errorf("%w: 链接已从页面移除", browser.ErrStaleHandle)
	}
	if docs[i].FailOpen {
		return fmt.Errorf("%w: 链接已从页面移除", browser.ErrStaleHandle)
	}
	s.page = pageDocument
	s.doc = i
	return nil
}

func (s *Session) currentDoc() Document {
	docs := s.site.docs(s.category)
	if s.doc < 0 || s.doc >= len(docs) {
		return Document{}
	}
	return docs[s.doc]
}

// frames 当前页面可进入的框架
func (s *Session) frames() []string {
	cfg := &s.site.Config
	switch s.page {
	case pageListing:
		return []string{cfg.ListingFrame}
	case pageDocument:
		return []string{cfg.DocumentFrame, cfg.BackFrame}
	}
	return nil
}

// hasFrame 默认内容中是否存在该框架
func (s *Session) hasFrame(locator string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame != "" {
		return false
	}
	for _, f := range s.frames() {
		if f != "" && f == locator {
			return true
		}
	}
	return false
}

// EnterFrame 进入框架,只能从默认内容进入
func (s *Session) EnterFrame(ctx context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return err
	}
	if s.frame != "" {
		return fmt.Errorf("%w: 已在框架 %s 中,需先回到默认内容", browser.ErrLocator, s.frame)
	}
	for _, f := range s.frames() {
		if f != "" && f == locator {
			s.frame = locator
			s.generation++
			return nil
		}
	}
	return fmt.Errorf("%w: 未找到框架 %s", browser.ErrLocator, locator)
}

// ExitToDefault 回到默认内容
func (s *Session) ExitToDefault() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return err
	}
	s.frame = ""
	s.generation++
	return nil
}

// PageSource 当前页面HTML
func (s *Session) PageSource(ctx context.Context) (string, error) {
	text, err := s.PageText(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("<html><body>")
	s.mu.Lock()
	if s.page == pageDocument {
		if title := s.currentDoc().Title; title != "" {
			fmt.Fprintf(&b, "<h3><center><u>%s</u></center></h3>", title)
		}
	}
	s.mu.Unlock()
	fmt.Fprintf(&b, "<p>%s</p></body></html>", text)
	return b.String(), nil
}

// PageText 当前页面可见文本
func (s *Session) PageText(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return "", err
	}
	switch s.page {
	case pageDocument:
		if s.frame != s.site.Config.DocumentFrame {
			return "", nil
		}
		doc := s.currentDoc()
		if doc.PanicExtract {
			panic(fmt.Sprintf("文档 %d 渲染异常", s.doc))
		}
		if doc.FailExtract {
			return "", fmt.Errorf("读取文档 %d 正文失败", s.doc)
		}
		return doc.Text, nil
	case pageListing:
		return "liste des documents", nil
	case pageWelcome:
		return "bienvenue", nil
	}
	return "", nil
}

// CurrentURL 当前文档URL
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return "", err
	}
	if s.page == pageDocument {
		if u := s.currentDoc().URL; u != "" {
			return u, nil
		}
	}
	return s.site.Config.StartURL, nil
}

// Wait 定位表达式存在则立即返回,为空时不等待
func (s *Session) Wait(ctx context.Context, locator string) error {
	if locator == "" {
		return ctx.Err()
	}
	if s.hasFrame(locator) {
		return nil
	}
	el, err := s.LocateOne(ctx, locator)
	if err != nil {
		return err
	}
	if el == nil {
		return fmt.Errorf("%w: 等待 %s 超时", browser.ErrLocator, locator)
	}
	return nil
}

// Generation 当前代数
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Close 关闭会话
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// element 创建绑定当前代数的元素,调用方持有锁
func (s *Session) element(text string, onClick func() error) *Element {
	return &Element{session: s, generation: s.generation, text: text, onClick: onClick}
}

// Element 假元素句柄
type Element struct {
	session    *Session
	generation uint64
	text       string
	onClick    func() error
}

var _ browser.Element = (*Element)(nil)

// Click 点击元素,点击是导航类事件
func (e *Element) Click(ctx context.Context) error {
	s := e.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return err
	}
	if e.generation != s.generation {
		return browser.ErrStaleHandle
	}
	s.generation++
	return e.onClick()
}

// Text 元素文本
func (e *Element) Text(ctx context.Context) (string, error) {
	s := e.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alive(); err != nil {
		return "", err
	}
	if e.generation != s.generation {
		return "", browser.ErrStaleHandle
	}
	return e.text, nil
}

