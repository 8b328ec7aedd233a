package crawlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/RecoveryAshes/lawcrawl/internal/browser"
	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/RecoveryAshes/lawcrawl/internal/utils"
)

// 错误类型定义
var (
	ErrCategoryNotFound = errors.New("未找到分类控件")
	ErrLinkIndex        = errors.New("链接序号超出范围")
)

// ListingNavigator 负责进入某个分类的文档列表并枚举其中的链接
type ListingNavigator struct {
	session  browser.Session
	site     models.SiteConfig
	category models.CategoryConfig

	enumerations int
}

// NewListingNavigator 创建列表导航器
func NewListingNavigator(session browser.Session, site models.SiteConfig, category models.CategoryConfig) *ListingNavigator {
	return &ListingNavigator{
		session:  session,
		site:     site,
		category: category,
	}
}

// Open 从入口页进入分类列表
func (n *ListingNavigator) Open(ctx context.Context) error {
	if err := n.session.Navigate(ctx, n.site.StartURL); err != nil {
		return err
	}

	ok, err := n.SelectCategory(ctx, n.category.Label)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, n.category.Label)
	}
	return nil
}

// SelectCategory 定位并点击可见标签为 label 的分类控件
// 控件不存在时返回 false,由调用方放弃该分类
func (n *ListingNavigator) SelectCategory(ctx context.Context, label string) (bool, error) {
	if n.site.CategoryLocator == "" {
		return true, nil
	}

	locator := n.site.CategoryControl(label)
	el, err := n.session.LocateOne(ctx, locator)
	if err != nil {
		return false, err
	}
	if el == nil {
		utils.Debugf("分类控件不存在: %s", locator)
		return false, nil
	}

	if err := el.Click(ctx); err != nil {
		return false, fmt.Errorf("点击分类控件 [%s] 失败: %w", label, err)
	}

	// 列表框架就绪即可枚举链接,无框架时只能固定等待
	if err := n.session.Wait(ctx, n.site.ListingFrame); err != nil {
		return false, err
	}
	return true, nil
}

// CurrentLinks 重新枚举当前列表中的文档链接
// 每次可能发生导航后都必须重新调用,旧的 LinkSet 不可复用
func (n *ListingNavigator) CurrentLinks(ctx context.Context) (*LinkSet, error) {
	n.enumerations++

	if err := n.session.ExitToDefault(); err != nil {
		return nil, err
	}
	if n.site.ListingFrame != "" {
		if err := n.session.EnterFrame(ctx, n.site.ListingFrame); err != nil {
			return nil, fmt.Errorf("进入列表框架失败: %w", err)
		}
	}

	elements, err := n.session.Locate(ctx, n.site.LinkLocator)
	if err != nil {
		return nil, fmt.Errorf("枚举文档链接失败: %w", err)
	}

	return &LinkSet{
		session:    n.session,
		elements:   elements,
		generation: n.session.Generation(),
	}, nil
}

// ReturnToListing 从文档页回到列表
// 配置了返回按钮时在其所在框架中点击;没有返回按钮或点击失败(非致命)时重新进入分类,
// 重新进入也失败则返回错误,该分类无法继续
func (n *ListingNavigator) ReturnToListing(ctx context.Context) error {
	if err := n.session.ExitToDefault(); err != nil {
		return err
	}

	if n.site.HasBackControl() {
		err := n.clickBack(ctx)
		if err == nil {
			return nil
		}
		if browser.IsFatal(err) || ctx.Err() != nil {
			return err
		}
		utils.Debugf("返回按钮不可用,重新进入分类: %v", err)
	}

	if err := n.Open(ctx); err != nil {
		return fmt.Errorf("重新进入分类失败: %w", err)
	}
	return nil
}

// clickBack 在返回按钮所在框架中点击返回按钮
func (n *ListingNavigator) clickBack(ctx context.Context) error {
	if n.site.BackFrame != "" {
		if err := n.session.EnterFrame(ctx, n.site.BackFrame); err != nil {
			return fmt.Errorf("进入返回按钮框架失败: %w", err)
		}
	}

	back, err := n.session.LocateOne(ctx, n.site.BackLocator)
	if err != nil {
		return err
	}
	if back == nil {
		return fmt.Errorf("%w: 未找到返回按钮", browser.ErrLocator)
	}
	if err := back.Click(ctx); err != nil {
		return fmt.Errorf("点击返回按钮失败: %w", err)
	}

	return n.session.ExitToDefault()
}

// Enumerations 链接枚举次数
func (n *ListingNavigator) Enumerations() int {
	return n.enumerations
}

// LinkSet 一次枚举得到的文档链接
// 只能由 ListingNavigator.CurrentLinks 获得,会话发生任何导航后即失效
type LinkSet struct {
	session    browser.Session
	elements   []browser.Element
	generation uint64
}

// Len 链接数
func (s *LinkSet) Len() int {
	return len(s.elements)
}

// Valid 会话自枚举以来是否没有发生导航
func (s *LinkSet) Valid() bool {
	return s.generation == s.session.Generation()
}

// Open 点击第 i 个链接
// 链接集已失效时返回 browser.ErrStaleHandle,调用方必须重新枚举
func (s *LinkSet) Open(ctx context.Context, i int) error {
	if !s.Valid() {
		return fmt.Errorf("%w: 链接集枚举后已发生导航", browser.ErrStaleHandle)
	}
	if i < 0 || i >= len(s.elements) {
		return fmt.Errorf("%w: %d (共%d个)", ErrLinkIndex, i, len(s.elements))
	}
	return s.elements[i].Click(ctx)
}
