package main

import (
	"fmt"
	"strings"

	"github.com/RecoveryAshes/lawcrawl/internal/models"
)

// ValidateFlags 验证命令行标志
func ValidateFlags(siteDelay int, formats []string) error {
	// 验证站点延迟
	if siteDelay < 0 || siteDelay > 3600 {
		return fmt.Errorf("站点延迟必须在0-3600秒之间,当前值: %d", siteDelay)
	}

	// 验证输出格式
	for _, f := range formats {
		if !models.SupportedFormats[f] {
			return fmt.Errorf("无效的输出格式: %s (有效值: html, md)", f)
		}
	}

	return nil
}

// normalizeFormats 去除空白与重复项,统一为小写,txt 始终写出因此忽略
func normalizeFormats(formats []string) []string {
	seen := make(map[string]bool, len(formats))
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || f == "txt" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// SelectSites 按名称筛选站点,names 为空时返回全部
func SelectSites(sites []models.SiteConfig, names []string) ([]models.SiteConfig, error) {
	if len(names) == 0 {
		if len(sites) == 0 {
			return nil, fmt.Errorf("未配置任何站点")
		}
		return sites, nil
	}

	out := make([]models.SiteConfig, 0, len(names))
	for _, name := range names {
		site, ok := models.FindSite(sites, strings.TrimSpace(name))
		if !ok {
			known := make([]string, 0, len(sites))
			for _, s := range sites {
				known = append(known, s.Name)
			}
			return nil, fmt.Errorf("未知站点: %s (可用: %s)", name, strings.Join(known, ", "))
		}
		out = append(out, site)
	}
	return out, nil
}
