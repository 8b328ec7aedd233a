package browser

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/RecoveryAshes/lawcrawl/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"github.com/shirou/gopsutil/v3/mem"
)

// LaunchOptions 浏览器启动参数
type LaunchOptions struct {
	Headless        bool
	UserAgent       string
	MinFreeMemoryMB int
	Timeouts        Timeouts
	Headers         models.HeaderProvider // 额外请求头,可为nil
}

// OptionsFromConfig 从爬取配置构造启动参数
func OptionsFromConfig(cfg models.CrawlConfig, headers models.HeaderProvider) LaunchOptions {
	return LaunchOptions{
		Headless:        cfg.Headless,
		UserAgent:       cfg.UserAgent,
		MinFreeMemoryMB: cfg.MinFreeMemoryMB,
		Headers:         headers,
		Timeouts: Timeouts{
			Locate:     cfg.LocateTimeoutDuration(),
			Navigation: cfg.NavigationTimeoutDuration(),
			Settle:     cfg.SettleDelayDuration(),
		},
	}
}

// Launch 启动浏览器并创建会话
// 任何失败都以 ErrSessionInit 返回
func Launch(ctx context.Context, opts LaunchOptions) (*RodSession, error) {
	Preflight(opts.MinFreeMemoryMB)

	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		Set("ignore-certificate-errors")
	if opts.UserAgent != "" {
		l = l.Set("user-agent", opts.UserAgent)
	}
	utils.Debugf("浏览器启动参数: headless=%v, --ignore-certificate-errors", opts.Headless)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionInit, err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: 连接浏览器失败: %v", ErrSessionInit, err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("%w: 创建页面失败: %v", ErrSessionInit, err)
	}

	if opts.Headers != nil {
		if err := applyHeaders(page, opts.Headers); err != nil {
			_ = b.Close()
			l.Kill()
			return nil, fmt.Errorf("%w: %v", ErrSessionInit, err)
		}
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return NewRodSession(b, l, page, opts.Timeouts), nil
}

// applyHeaders 为页面设置额外请求头
// User-Agent 由启动参数控制,这里跳过
func applyHeaders(page *rod.Page, provider models.HeaderProvider) error {
	headers, err := provider.GetHeaders()
	if err != nil {
		return fmt.Errorf("获取请求头失败: %w", err)
	}

	dict := make([]string, 0, len(headers)*2)
	for name, values := range headers {
		if len(values) == 0 || name == "User-Agent" {
			continue
		}
		dict = append(dict, name, values[0])
	}
	if len(dict) == 0 {
		return nil
	}

	if _, err := page.SetExtraHeaders(dict); err != nil {
		return fmt.Errorf("设置请求头失败: %w", err)
	}
	return nil
}

// Preflight 启动前检查可用内存,不足时仅记录警告
func Preflight(minFreeMB int) {
	if minFreeMB <= 0 {
		return
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		utils.Debugf("获取内存信息失败: %v", err)
		return
	}
	availableMB := int(vm.Available / 1024 / 1024)
	if availableMB < minFreeMB {
		utils.Warnf("⚠️  可用内存不足: %dMB < %dMB, 浏览器可能不稳定", availableMB, minFreeMB)
		return
	}
	utils.Debugf("可用内存: %dMB", availableMB)
}

// Factory 创建会话的函数,便于测试时替换为假站点
type Factory func(ctx context.Context) (Session, error)

// RodFactory 返回启动真实浏览器的工厂
func RodFactory(opts LaunchOptions) Factory {
	return func(ctx context.Context) (Session, error) {
		s, err := Launch(ctx, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
