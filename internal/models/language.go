package models

import (
	"fmt"
	"strings"
)

// Language 文档语言
type Language string

const (
	LanguageFrench Language = "french" // 法语
	LanguageDutch  Language = "dutch"  // 荷兰语
	LanguageGerman Language = "german" // 德语
)

// knownLanguages 已知语言集合
var knownLanguages = map[Language]bool{
	LanguageFrench: true,
	LanguageDutch:  true,
	LanguageGerman: true,
}

// ParseLanguage 解析语言名称(不区分大小写)
func ParseLanguage(s string) (Language, error) {
	lang := Language(strings.ToLower(strings.TrimSpace(s)))
	if err := lang.Validate(); err != nil {
		return "", err
	}
	return lang, nil
}

// Validate 验证语言是否受支持
func (l Language) Validate() error {
	if !knownLanguages[l] {
		return fmt.Errorf("不支持的语言: %q (有效值: french, dutch, german)", string(l))
	}
	return nil
}

// String 实现fmt.Stringer
func (l Language) String() string {
	return string(l)
}
