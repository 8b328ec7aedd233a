// Package extract 把渲染后的页面HTML转换为落盘内容: 纯文本,以及可选的净化HTML与Markdown
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// invisibleSelectors 不属于可见正文的元素
const invisibleSelectors = "script, style, noscript, template"

// Parse 解析HTML为goquery文档
func Parse(source string) (*goquery.Document, error) {
	root, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// VisibleText 提取页面全部可见文本,保留原始换行
func VisibleText(source string) (string, error) {
	doc, err := Parse(source)
	if err != nil {
		return "", err
	}
	return TextOf(doc.Selection), nil
}

// TextOf 提取选择集中的可见文本
func TextOf(sel *goquery.Selection) string {
	clone := sel.Clone()
	clone.Find(invisibleSelectors).Remove()
	return clone.Text()
}
