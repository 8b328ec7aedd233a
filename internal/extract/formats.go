package extract

import (
	"fmt"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

const (
	FormatHTML     = "html" // 净化后的HTML
	FormatMarkdown = "md"   // Markdown
)

var (
	ugcPolicy = bluemonday.UGCPolicy()

	mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
)

// SanitizedHTML 去除脚本、事件属性等不安全内容,保留文档结构
func SanitizedHTML(source string) string {
	return ugcPolicy.Sanitize(source)
}

// Markdown 将HTML转换为Markdown,相对链接按 pageURL 补全
func Markdown(source, pageURL string) (string, error) {
	var opts []converter.ConvertOptionFunc
	if pageURL != "" {
		opts = append(opts, converter.WithDomain(pageURL))
	}
	out, err := mdConverter.ConvertString(source, opts...)
	if err != nil {
		return "", fmt.Errorf("转换Markdown失败: %w", err)
	}
	return out, nil
}

// Render 按格式渲染页面内容
func Render(format, source, pageURL string) (string, error) {
	switch format {
	case FormatHTML:
		return SanitizedHTML(source), nil
	case FormatMarkdown:
		return Markdown(source, pageURL)
	default:
		return "", fmt.Errorf("不支持的输出格式: %s", format)
	}
}
