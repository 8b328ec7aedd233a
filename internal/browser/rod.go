package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/lawcrawl/internal/extract"
	"github.com/RecoveryAshes/lawcrawl/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Timeouts 会话超时设置
type Timeouts struct {
	Locate     time.Duration // 等待元素出现
	Navigation time.Duration // 页面与框架加载
	Settle     time.Duration // 无可等待条件时的固定等待
}

// RodSession 基于go-rod的会话实现
type RodSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	root     *rod.Page

	mu     sync.Mutex
	frames []*rod.Page // 框架栈,空表示默认内容

	timeouts   Timeouts
	generation atomic.Uint64
}

// NewRodSession 使用已创建的页面构造会话
func NewRodSession(b *rod.Browser, l *launcher.Launcher, page *rod.Page, timeouts Timeouts) *RodSession {
	return &RodSession{
		browser:  b,
		launcher: l,
		root:     page,
		timeouts: timeouts,
	}
}

// Generation 当前代数
func (s *RodSession) Generation() uint64 {
	return s.generation.Load()
}

// bump 记录一次导航类事件
func (s *RodSession) bump() {
	s.generation.Add(1)
}

// current 当前框架页面
func (s *RodSession) current() *rod.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return s.root
	}
	return s.frames[len(s.frames)-1]
}

// Navigate 在顶层页面加载URL
func (s *RodSession) Navigate(ctx context.Context, url string) (err error) {
	defer s.recoverPanic("导航", &err)

	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()
	s.bump()

	page := s.root.Context(ctx).Timeout(s.timeouts.Navigation)
	if err := page.Navigate(url); err != nil {
		return s.classify(ctx, fmt.Errorf("%w [%s]: %v", ErrNavigation, url, err))
	}
	if err := page.WaitLoad(); err != nil {
		return s.classify(ctx, fmt.Errorf("%w [%s]: 等待加载: %v", ErrNavigation, url, err))
	}

	utils.Debugf("页面加载完成: %s", url)
	return nil
}

// Locate 查找全部匹配元素
// 先在定位超时内等待首个元素出现,超时后返回空切片
func (s *RodSession) Locate(ctx context.Context, locator string) (elements []Element, err error) {
	defer s.recoverPanic("定位", &err)

	first, err := s.waitFirst(ctx, locator)
	if err != nil || first == nil {
		return nil, err
	}

	loc := ParseLocator(locator)
	page := s.current().Context(ctx).Timeout(s.timeouts.Locate)
	var found rod.Elements
	if loc.CSS {
		found, err = page.Elements(loc.Expr)
	} else {
		found, err = page.ElementsX(loc.Expr)
	}
	if err != nil {
		return nil, s.classify(ctx, fmt.Errorf("%w [%s]: %v", ErrLocator, locator, err))
	}

	gen := s.Generation()
	out := make([]Element, 0, len(found))
	for _, el := range found {
		out = append(out, &rodElement{el: el, session: s, generation: gen})
	}
	return out, nil
}

// LocateOne 等待首个匹配元素
func (s *RodSession) LocateOne(ctx context.Context, locator string) (element Element, err error) {
	defer s.recoverPanic("定位", &err)

	el, err := s.waitFirst(ctx, locator)
	if err != nil || el == nil {
		return nil, err
	}
	return &rodElement{el: el, session: s, generation: s.Generation()}, nil
}

// waitFirst 在定位超时内等待首个匹配元素,超时返回 nil, nil
func (s *RodSession) waitFirst(ctx context.Context, locator string) (*rod.Element, error) {
	loc := ParseLocator(locator)
	if loc.Expr == "" {
		return nil, fmt.Errorf("%w: 定位表达式为空", ErrLocator)
	}

	page := s.current().Context(ctx).Timeout(s.timeouts.Locate)
	var el *rod.Element
	var err error
	if loc.CSS {
		el, err = page.Element(loc.Expr)
	} else {
		el, err = page.ElementX(loc.Expr)
	}
	if err == nil {
		return el, nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, nil
	}
	return nil, s.classify(ctx, fmt.Errorf("%w [%s]: %v", ErrLocator, locator, err))
}

// EnterFrame 进入子框架
func (s *RodSession) EnterFrame(ctx context.Context, locator string) (err error) {
	defer s.recoverPanic("进入框架", &err)

	el, err := s.waitFirst(ctx, locator)
	if err != nil {
		return err
	}
	if el == nil {
		return fmt.Errorf("%w: 未找到框架 %s", ErrLocator, locator)
	}

	frame, err := el.Frame()
	if err != nil {
		return s.classify(ctx, fmt.Errorf("%w: 切换框架 %s: %v", ErrLocator, locator, err))
	}
	if err := frame.Context(ctx).Timeout(s.timeouts.Navigation).WaitLoad(); err != nil {
		return s.classify(ctx, fmt.Errorf("%w: 等待框架加载 %s: %v", ErrNavigation, locator, err))
	}

	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
	s.bump()
	return nil
}

// ExitToDefault 回到默认内容
func (s *RodSession) ExitToDefault() error {
	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()
	s.bump()
	return nil
}

// PageSource 当前框架的HTML
func (s *RodSession) PageSource(ctx context.Context) (source string, err error) {
	defer s.recoverPanic("读取页面", &err)

	res, err := s.current().Context(ctx).Timeout(s.timeouts.Navigation).
		Eval(`() => document.documentElement ? document.documentElement.outerHTML : ""`)
	if err != nil {
		return "", s.classify(ctx, fmt.Errorf("读取页面HTML失败: %w", err))
	}
	return res.Value.String(), nil
}

// PageText 当前框架的可见文本
func (s *RodSession) PageText(ctx context.Context) (string, error) {
	source, err := s.PageSource(ctx)
	if err != nil {
		return "", err
	}
	return extract.VisibleText(source)
}

// CurrentURL 当前框架的文档URL
func (s *RodSession) CurrentURL(ctx context.Context) (u string, err error) {
	defer s.recoverPanic("读取URL", &err)

	res, err := s.current().Context(ctx).Timeout(s.timeouts.Locate).Eval(`() => location.href`)
	if err != nil {
		return "", s.classify(ctx, fmt.Errorf("读取当前URL失败: %w", err))
	}
	return res.Value.String(), nil
}

// Wait 显式等待定位表达式出现,表达式为空时固定等待 Settle
func (s *RodSession) Wait(ctx context.Context, locator string) error {
	if locator == "" {
		return sleep(ctx, s.timeouts.Settle)
	}
	el, err := s.LocateOne(ctx, locator)
	if err != nil {
		return err
	}
	if el == nil {
		return fmt.Errorf("%w: 等待 %s 超时 (%s)", ErrLocator, locator, s.timeouts.Locate)
	}
	return nil
}

// Close 关闭浏览器并清理启动器
func (s *RodSession) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	utils.Debugf("浏览器已关闭")
	return err
}

// alive 检查浏览器连接是否仍然可用
func (s *RodSession) alive() bool {
	if s.browser == nil {
		return false
	}
	_, err := proto.BrowserGetVersion{}.Call(s.browser)
	return err == nil
}

// classify 浏览器已不可用时把错误升级为 ErrSessionLost
func (s *RodSession) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", err, ctx.Err())
	}
	if !s.alive() {
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	return err
}

// recoverPanic 把rod内部panic转换为 ErrSessionLost
func (s *RodSession) recoverPanic(op string, err *error) {
	if r := recover(); r != nil {
		utils.Errorf("浏览器操作panic [%s]: %v", op, r)
		*err = fmt.Errorf("%w: %s: %v", ErrSessionLost, op, r)
	}
}

// sleep 可取消的固定等待
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// rodElement 元素句柄,记录获取时的代数
type rodElement struct {
	el         *rod.Element
	session    *RodSession
	generation uint64
}

func (e *rodElement) checkFresh() error {
	if e.generation != e.session.Generation() {
		return ErrStaleHandle
	}
	return nil
}

// Click 点击元素,点击视为一次导航类事件
func (e *rodElement) Click(ctx context.Context) (err error) {
	defer e.session.recoverPanic("点击", &err)

	if err := e.checkFresh(); err != nil {
		return err
	}
	defer e.session.bump()

	if err := e.el.Context(ctx).Timeout(e.session.timeouts.Locate).Click(proto.InputMouseButtonLeft, 1); err != nil {
		var notFound *rod.ObjectNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %v", ErrStaleHandle, err)
		}
		return e.session.classify(ctx, fmt.Errorf("点击元素失败: %w", err))
	}
	return nil
}

// Text 元素显示的文本
func (e *rodElement) Text(ctx context.Context) (text string, err error) {
	defer e.session.recoverPanic("读取文本", &err)

	if err := e.checkFresh(); err != nil {
		return "", err
	}
	text, err = e.el.Context(ctx).Timeout(e.session.timeouts.Locate).Text()
	if err != nil {
		return "", e.session.classify(ctx, fmt.Errorf("读取元素文本失败: %w", err))
	}
	return text, nil
}

