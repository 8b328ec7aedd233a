// Package browser 封装可控浏览器会话: 导航、按定位表达式查找元素、读取页面内容、进入与退出嵌套框架
//
// 会话维护一个单调递增的"代数"(generation)。任何导航类事件(页面导航、点击、框架切换)
// 都会使代数加一,在旧代数下获得的元素句柄随之失效,再次使用会返回 ErrStaleHandle。
package browser

import (
	"context"
	"errors"
	"strings"
)

// 错误类型定义
var (
	ErrNavigation  = errors.New("页面导航失败")
	ErrLocator     = errors.New("元素定位失败")
	ErrStaleHandle = errors.New("元素句柄已失效")
	ErrSessionLost = errors.New("浏览器会话已丢失")
	ErrSessionInit = errors.New("浏览器启动失败")
)

// Element 页面元素句柄
type Element interface {
	Click(ctx context.Context) error
	Text(ctx context.Context) (string, error)
}

// Session 浏览器会话
type Session interface {
	// Navigate 在顶层页面加载URL,并回到默认内容
	Navigate(ctx context.Context, url string) error
	// Locate 在当前框架中查找全部匹配元素,无匹配时返回空切片
	Locate(ctx context.Context, locator string) ([]Element, error)
	// LocateOne 在当前框架中等待首个匹配元素,超时仍无匹配时返回 nil, nil
	LocateOne(ctx context.Context, locator string) (Element, error)
	// EnterFrame 进入当前框架中的子框架
	EnterFrame(ctx context.Context, locator string) error
	// ExitToDefault 回到顶层默认内容
	ExitToDefault() error
	// PageSource 当前框架的HTML
	PageSource(ctx context.Context) (string, error)
	// PageText 当前框架的可见文本
	PageText(ctx context.Context) (string, error)
	// CurrentURL 当前框架的文档URL
	CurrentURL(ctx context.Context) (string, error)
	// Wait 等待定位表达式出现;表达式为空时退化为固定等待
	Wait(ctx context.Context, locator string) error
	// Generation 当前代数
	Generation() uint64
	Close() error
}

// Locator 解析后的定位表达式
type Locator struct {
	Expr string
	CSS  bool
}

// cssPrefix CSS选择器前缀,其余按XPath处理
const cssPrefix = "css="

// ParseLocator 解析定位表达式
func ParseLocator(s string) Locator {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, cssPrefix) {
		return Locator{Expr: strings.TrimSpace(strings.TrimPrefix(s, cssPrefix)), CSS: true}
	}
	return Locator{Expr: s}
}

// String 还原为定位表达式
func (l Locator) String() string {
	if l.CSS {
		return cssPrefix + l.Expr
	}
	return l.Expr
}

// IsFatal 错误是否意味着会话不可继续使用
func IsFatal(err error) bool {
	return errors.Is(err, ErrSessionLost) || errors.Is(err, ErrSessionInit)
}
