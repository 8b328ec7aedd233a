package core

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/RecoveryAshes/lawcrawl/internal/utils"
)

// MaxHeaderValueLength 请求头值最大长度 (8KB)
const MaxHeaderValueLength = 8192

var (
	// forbiddenHeaders 由浏览器自行管理,不允许覆盖
	forbiddenHeaders = map[string]bool{
		"host":              true,
		"content-length":    true,
		"transfer-encoding": true,
		"connection":        true,
		"cookie":            true,
	}

	// sensitiveKeywords 日志中需要脱敏的头部名称关键字
	sensitiveKeywords = []string{"authorization", "token", "key", "secret", "password", "credential", "cookie"}

	headerNameRe  = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	headerValueRe = regexp.MustCompile(`^[\x20-\x7E\t]*$`)
)

// HeaderManager 合并浏览器额外请求头: 默认 < 配置文件 < 命令行
// 实现 models.HeaderProvider
type HeaderManager struct {
	defaults http.Header
	config   http.Header
	cli      http.Header
}

var _ models.HeaderProvider = (*HeaderManager)(nil)

// NewHeaderManager 创建请求头管理器
func NewHeaderManager(configHeaders map[string]string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults: http.Header{
			"Accept": []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		},
		config: make(http.Header),
		cli:    make(http.Header),
	}

	for name, value := range configHeaders {
		hm.config.Set(name, value)
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	}

	return hm, nil
}

// Validate 依次验证默认、配置文件、命令行头部
func (hm *HeaderManager) Validate() error {
	for _, layer := range []struct {
		name    string
		headers http.Header
	}{
		{"默认", hm.defaults},
		{"配置文件", hm.config},
		{"命令行", hm.cli},
	} {
		if err := validateHeaders(layer.headers); err != nil {
			return fmt.Errorf("%s头部无效: %w", layer.name, err)
		}
	}
	return nil
}

// GetMergedHeaders 按优先级合并头部
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = values
		}
	}
	return result
}

// GetHeaders 验证并返回合并后的头部
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	merged := hm.GetMergedHeaders()
	utils.Debugf("浏览器额外请求头: %s", RedactHeaders(merged))
	return merged, nil
}

// GetSafeHeaders 脱敏后的合并头部,用于日志
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	merged := hm.GetMergedHeaders()
	out := make(map[string]string, len(merged))
	for name, values := range merged {
		if len(values) > 0 {
			out[name] = redactValue(name, values[0])
		}
	}
	return out
}

// UserAgent 命令行或配置文件指定的User-Agent,未指定时返回空字符串
func (hm *HeaderManager) UserAgent() string {
	if ua := hm.cli.Get("User-Agent"); ua != "" {
		return ua
	}
	return hm.config.Get("User-Agent")
}

// validateHeaders 验证头部名称与值
func validateHeaders(headers http.Header) error {
	for name, values := range headers {
		if forbiddenHeaders[strings.ToLower(name)] {
			return &models.ValidationError{
				Field:      "name",
				HeaderName: name,
				Reason:     "此头部由浏览器管理,不允许自定义",
				Suggestion: fmt.Sprintf("移除 '%s' 头部配置", name),
			}
		}
		if !headerNameRe.MatchString(name) {
			return &models.ValidationError{
				Field:      "name",
				HeaderName: name,
				Reason:     "头部名称包含非法字符 (仅允许字母、数字和连字符)",
			}
		}
		for _, value := range values {
			if len(value) > MaxHeaderValueLength {
				return &models.ValidationError{
					Field:      "value",
					HeaderName: name,
					Reason:     fmt.Sprintf("头部值过长: %d 字节 (最大 %d)", len(value), MaxHeaderValueLength),
				}
			}
			if !headerValueRe.MatchString(value) {
				return &models.ValidationError{
					Field:      "value",
					HeaderName: name,
					Reason:     "头部值包含非法字符 (仅允许可打印ASCII字符)",
					Suggestion: "移除控制字符和非ASCII字符",
				}
			}
		}
	}
	return nil
}

func isSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// redactValue 脱敏敏感头部的值
func redactValue(name, value string) string {
	if !isSensitive(name) {
		return value
	}
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

// RedactHeaders 脱敏并格式化为 "Name: value, ..." (按名称排序)
func RedactHeaders(headers http.Header) string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if values := headers[name]; len(values) > 0 {
			parts = append(parts, name+": "+redactValue(name, values[0]))
		}
	}
	return strings.Join(parts, ", ")
}
