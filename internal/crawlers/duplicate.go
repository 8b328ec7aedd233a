package crawlers

import (
	"crypto/sha256"
	"strings"
)

// DuplicateDetector 比较相邻两个条目的正文哈希
// 连续读到相同正文通常说明点击后读取的仍是同一页面(例如链接在新窗口打开)
type DuplicateDetector struct {
	last [sha256.Size]byte
	seen bool
}

// Observe 记录一次正文,与上一次相同时返回 true
// 空白正文不参与比较
func (d *DuplicateDetector) Observe(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	sum := sha256.Sum256([]byte(text))
	dup := d.seen && sum == d.last
	d.last = sum
	d.seen = true
	return dup
}
