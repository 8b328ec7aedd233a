package models

import (
	"fmt"
	"strings"
)

// LabelPlaceholder 分类定位表达式中的标签占位符
const LabelPlaceholder = "{label}"

// CategoryConfig 一个待爬取的分类(语言/栏目)
type CategoryConfig struct {
	Label    string   `mapstructure:"label" yaml:"label" json:"label"`       // 页面上分类控件的可见标签
	Language Language `mapstructure:"language" yaml:"language" json:"language"` // 文档语言
	Segment  string   `mapstructure:"segment" yaml:"segment" json:"segment"`   // 输出路径中的分类目录
}

// Name 分类的可读名称(用于日志和指标)
func (c CategoryConfig) Name() string {
	return string(c.Language) + "/" + c.Segment
}

// FallbackConfig 无标题时从正文截取片段推导标识的偏移量
// 偏移按字符计,负数表示从末尾倒数
type FallbackConfig struct {
	HeadFrom int `mapstructure:"head_from" yaml:"head_from" json:"head_from"`
	HeadTo   int `mapstructure:"head_to" yaml:"head_to" json:"head_to"`
	HeadMax  int `mapstructure:"head_max" yaml:"head_max" json:"head_max"`
	TailFrom int `mapstructure:"tail_from" yaml:"tail_from" json:"tail_from"`
	TailTo   int `mapstructure:"tail_to" yaml:"tail_to" json:"tail_to"`
	TailMax  int `mapstructure:"tail_max" yaml:"tail_max" json:"tail_max"`
}

// DefaultFallback 默认回退偏移(正文[300:550] + 正文[-300:-250])
func DefaultFallback() FallbackConfig {
	return FallbackConfig{
		HeadFrom: 300,
		HeadTo:   550,
		HeadMax:  200,
		TailFrom: -300,
		TailTo:   -250,
		TailMax:  50,
	}
}

// SiteConfig 站点定义
// 所有定位表达式默认为XPath,以 "css=" 开头时按CSS选择器处理
type SiteConfig struct {
	Name     string `mapstructure:"name" yaml:"name" json:"name"`             // 站点键名
	Country  string `mapstructure:"country" yaml:"country" json:"country"`    // 台账中的国家
	StartURL string `mapstructure:"start_url" yaml:"start_url" json:"start_url"` // 入口URL
	Dir      string `mapstructure:"dir" yaml:"dir" json:"dir"`                // 输出根目录下的站点目录

	Categories      []CategoryConfig `mapstructure:"categories" yaml:"categories" json:"categories"`
	CategoryLocator string           `mapstructure:"category_locator" yaml:"category_locator" json:"category_locator"` // 可包含 {label}

	ListingFrame  string `mapstructure:"listing_frame" yaml:"listing_frame,omitempty" json:"listing_frame,omitempty"`
	LinkLocator   string `mapstructure:"link_locator" yaml:"link_locator" json:"link_locator"`
	DocumentFrame string `mapstructure:"document_frame" yaml:"document_frame,omitempty" json:"document_frame,omitempty"`
	TitleLocator  string `mapstructure:"title_locator" yaml:"title_locator,omitempty" json:"title_locator,omitempty"`
	BackFrame     string `mapstructure:"back_frame" yaml:"back_frame,omitempty" json:"back_frame,omitempty"`
	BackLocator   string `mapstructure:"back_locator" yaml:"back_locator,omitempty" json:"back_locator,omitempty"`

	// SourceLink 固定来源链接,为空时使用文档页面的当前URL
	SourceLink string `mapstructure:"source_link" yaml:"source_link,omitempty" json:"source_link,omitempty"`

	TitleMax  int            `mapstructure:"title_max" yaml:"title_max" json:"title_max"`
	Fallback  FallbackConfig `mapstructure:"fallback" yaml:"fallback" json:"fallback"`
	Extension string         `mapstructure:"extension" yaml:"extension" json:"extension"`
	LedgerFile string        `mapstructure:"ledger_file" yaml:"ledger_file" json:"ledger_file"`
}

// CategoryControl 返回指定分类标签的定位表达式
func (s *SiteConfig) CategoryControl(label string) string {
	return strings.ReplaceAll(s.CategoryLocator, LabelPlaceholder, label)
}

// HasBackControl 站点是否需要显式点击返回按钮
func (s *SiteConfig) HasBackControl() bool {
	return s.BackLocator != ""
}

// ApplyDefaults 为未设置的字段填充默认值
func (s *SiteConfig) ApplyDefaults() {
	if s.TitleMax <= 0 {
		s.TitleMax = 250
	}
	if s.Fallback == (FallbackConfig{}) {
		s.Fallback = DefaultFallback()
	}
	if s.Extension == "" {
		s.Extension = "txt"
	}
	if s.LedgerFile == "" {
		s.LedgerFile = "metadata.json"
	}
	if s.Dir == "" {
		s.Dir = s.Name
	}
	for i := range s.Categories {
		if s.Categories[i].Segment == "" {
			s.Categories[i].Segment = s.Extension
		}
	}
}

// Validate 验证站点定义
func (s *SiteConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("站点缺少名称")
	}
	if err := ValidateURL(s.StartURL); err != nil {
		return fmt.Errorf("站点 %s 入口URL无效: %w", s.Name, err)
	}
	if s.Country == "" {
		return fmt.Errorf("站点 %s 缺少国家", s.Name)
	}
	if s.LinkLocator == "" {
		return fmt.Errorf("站点 %s 缺少文档链接定位表达式", s.Name)
	}
	if len(s.Categories) == 0 {
		return fmt.Errorf("站点 %s 未配置任何分类", s.Name)
	}
	for i, c := range s.Categories {
		if err := c.Language.Validate(); err != nil {
			return fmt.Errorf("站点 %s 第%d个分类: %w", s.Name, i+1, err)
		}
		if strings.Contains(s.CategoryLocator, LabelPlaceholder) && c.Label == "" {
			return fmt.Errorf("站点 %s 第%d个分类缺少标签", s.Name, i+1)
		}
	}
	if s.BackLocator != "" && s.BackFrame == "" && s.ListingFrame != "" {
		return fmt.Errorf("站点 %s 配置了返回按钮但未配置其所在框架", s.Name)
	}
	return nil
}

// DefaultSites 内置站点定义: 比利时司法公报与刚果(金)法律网
func DefaultSites() []SiteConfig {
	belgium := SiteConfig{
		Name:     "belgium",
		Country:  "Belgium",
		StartURL: "http://www.ejustice.just.fgov.be/cgi/welcome.pl",
		Dir:      "belgium",
		Categories: []CategoryConfig{
			{Label: "Français", Language: LanguageFrench, Segment: "txt"},
			{Label: "Nederlands", Language: LanguageDutch, Segment: "txt"},
			{Label: "Deutsch", Language: LanguageGerman, Segment: "txt"},
		},
		CategoryLocator: "//input[@type='Submit' and @value='{label}']",
		ListingFrame:    "/html/frameset/frame[2]",
		LinkLocator:     "//input[@type='submit' and @name='numac']",
		DocumentFrame:   "/html/frameset/frame[2]",
		TitleLocator:    "/html/body/h3/center/u",
		BackFrame:       "/html/frameset/frame[3]",
		BackLocator:     "/html/body/table/tbody/tr/td[4]/form/input[5]",
		SourceLink:      "www.ejustice.just.fgov.be/cgi/article.pl",
		TitleMax:        250,
		Fallback:        DefaultFallback(),
		Extension:       "txt",
		LedgerFile:      "metadata.json",
	}

	drc := SiteConfig{
		Name:     "drc",
		Country:  "DRC",
		StartURL: "http://www.leganet.cd/JO.htm",
		Dir:      "DRC",
		Categories: []CategoryConfig{
			{Label: "Législation", Language: LanguageFrench, Segment: "txt"},
		},
		CategoryLocator: "//img[@alt='{label}']",
		LinkLocator:     "//a[@target='_blank']",
		TitleMax:        200,
		Fallback:        DefaultFallback(),
		Extension:       "txt",
		LedgerFile:      "metadata.json",
	}

	return []SiteConfig{belgium, drc}
}

// FindSite 按名称查找站点(不区分大小写)
func FindSite(sites []SiteConfig, name string) (SiteConfig, bool) {
	for _, s := range sites {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return SiteConfig{}, false
}
