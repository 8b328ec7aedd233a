package crawlers

import (
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/lawcrawl/internal/extract"
	"github.com/RecoveryAshes/lawcrawl/internal/utils"
)

// page 从文档页读取到的内容
type page struct {
	Title  string
	Text   string
	Source string // 仅在需要额外格式时读取
	URL    string
}

// writeDocument 写入正文,并按需写入额外格式
// 正文写入失败返回错误;额外格式失败只记录警告
func writeDocument(path string, p page, formats []string) error {
	if err := utils.WriteTextFile(path, p.Text); err != nil {
		return err
	}

	for _, format := range formats {
		out, err := extract.Render(format, p.Source, p.URL)
		if err != nil {
			utils.Warnf("⚠️  生成 %s 格式失败 [%s]: %v", format, path, err)
			continue
		}
		sibling := siblingPath(path, format)
		if err := utils.WriteTextFile(sibling, out); err != nil {
			utils.Warnf("⚠️  写入 %s 失败: %v", sibling, err)
		}
	}
	return nil
}

// siblingPath 同目录下替换扩展名的路径
func siblingPath(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + ext
}
