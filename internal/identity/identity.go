// Package identity 从文档标题(或正文片段)推导文件系统安全的文档标识与落盘路径
//
// 标识是纯函数结果: 相同输入总是得到相同标识。两个不同文档规范化后标题相同会
// 得到同一个标识,后出现的文档被跳过,这一行为是已知限制,调用方需把它作为
// 冲突统计出来而不是掩盖。
package identity

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/RecoveryAshes/lawcrawl/internal/utils"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyIdentity 标题与正文片段规范化后均为空
var ErrEmptyIdentity = errors.New("无法推导文档标识: 标题与正文片段均为空")

// Options 标识推导参数
type Options struct {
	TitleMax int                   // 有标题时的最大长度
	Fallback models.FallbackConfig // 无标题时的正文片段偏移
}

// OptionsFor 从站点定义构造推导参数
func OptionsFor(site models.SiteConfig) Options {
	return Options{TitleMax: site.TitleMax, Fallback: site.Fallback}
}

// ID 推导出的文档标识
type ID struct {
	Value    string // 规范化标识,仅包含 [a-z0-9-]
	Title    string // 台账中记录的标题
	Fallback bool   // 是否来自正文片段
}

// Normalize 规范化字符串: 去除重音,转小写,把非 [a-z0-9] 字符串折叠为单个连字符,
// 去掉首尾连字符并截断到 max 个字符
func Normalize(s string, max int) string {
	folded := foldAccents(s)

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	out := b.String()
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return strings.Trim(out, "-")
}

// foldAccents 分解字符并去除组合记号 (é -> e)
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// BuildID 推导文档标识
// 标题非空时使用标题;否则从正文截取头部与尾部片段拼接,降低开头相似文档的冲突概率
func BuildID(title, fallbackText string, opts Options) (ID, error) {
	if id := Normalize(title, opts.TitleMax); id != "" {
		return ID{Value: id, Title: strings.TrimSpace(title)}, nil
	}

	fb := opts.Fallback
	head := Slice(fallbackText, fb.HeadFrom, fb.HeadTo)
	tail := Slice(fallbackText, fb.TailFrom, fb.TailTo)

	headID := Normalize(head, fb.HeadMax)
	tailID := Normalize(tail, fb.TailMax)

	var parts []string
	for _, p := range []string{headID, tailID} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ID{}, ErrEmptyIdentity
	}

	value := strings.Join(parts, "-")
	if opts.TitleMax > 0 && len(value) > opts.TitleMax {
		value = strings.Trim(value[:opts.TitleMax], "-")
	}

	return ID{
		Value:    value,
		Title:    strings.TrimSpace(head),
		Fallback: true,
	}, nil
}

// Slice 按字符截取 s[from:to],负数偏移从末尾倒数,越界时截断到有效范围
func Slice(s string, from, to int) string {
	r := []rune(s)
	n := len(r)

	from = clampIndex(from, n)
	to = clampIndex(to, n)
	if from >= to {
		return ""
	}
	return string(r[from:to])
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			return 0
		}
	}
	if i > n {
		return n
	}
	return i
}

// ResolvePath 生成落盘路径: root/language/category/id.ext
func ResolvePath(root string, language models.Language, category, id, ext string) string {
	return filepath.Join(root, string(language), category, id+"."+strings.TrimPrefix(ext, "."))
}

// Exists 目标路径是否已存在(存在则跳过重新下载与台账追加)
// 无法确认时返回 *fs.PathError
func Exists(path string) (bool, error) {
	return utils.StatExists(path)
}
