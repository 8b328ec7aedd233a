package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout 台账中下载日期的格式
const DateLayout = "2006-01-02"

// Date 仅保留日期部分的时间,序列化为 "YYYY-MM-DD"
type Date struct {
	time.Time
}

// NewDate 截取时间的日期部分
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}
// String 返回ISO日期字符串
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON 实现json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON 实现json.Unmarshaler
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("下载日期必须是字符串: %w", err)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("无效的下载日期 %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// DocumentRecord 台账记录
// 追加后不可修改,以 DownloadPath 唯一标识
type DocumentRecord struct {
	Title        string   `json:"title"`         // 文档标题(或回退推导的标题)
	Link         string   `json:"link"`          // 来源链接
	DownloadPath string   `json:"download_path"` // 本地文件路径
	DownloadDate Date     `json:"download_date"` // 下载日期
	Language     Language `json:"language"`      // 语言
	Country      string   `json:"country"`       // 国家
}

// Validate 验证记录字段完整性
func (r *DocumentRecord) Validate() error {
	if r.DownloadPath == "" {
		return fmt.Errorf("记录缺少下载路径")
	}
	if r.Country == "" {
		return fmt.Errorf("记录缺少国家 [%s]", r.DownloadPath)
	}
	if err := r.Language.Validate(); err != nil {
		return fmt.Errorf("记录语言无效 [%s]: %w", r.DownloadPath, err)
	}
	return nil
}
