package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/RecoveryAshes/lawcrawl/internal/utils"
)

// VerifyResult 台账与磁盘的一致性检查结果
type VerifyResult struct {
	Path       string
	Exists     bool     // 台账文件是否存在
	Records    int      // 台账中的记录数
	Missing    []string // 文件已不存在的下载路径
	Duplicates []string // 重复出现的下载路径
	Invalid    []string // 字段不完整的记录
}

// OK 台账是否完全一致
func (r VerifyResult) OK() bool {
	return len(r.Missing) == 0 && len(r.Duplicates) == 0 && len(r.Invalid) == 0
}

// Verify 检查台账文件中的每条记录是否指向存在的文件且路径唯一
// 与 Load 不同,这里不丢弃任何记录,只报告问题
func Verify(path string) (VerifyResult, error) {
	result := VerifyResult{Path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("读取台账失败 [%s]: %w", path, err)
	}
	result.Exists = true

	var records []models.DocumentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return result, fmt.Errorf("解析台账失败 [%s]: %w", path, err)
	}
	result.Records = len(records)

	seen := make(map[string]bool, len(records))
	for i := range records {
		rec := &records[i]
		if err := rec.Validate(); err != nil {
			result.Invalid = append(result.Invalid, fmt.Sprintf("#%d: %v", i, err))
			continue
		}
		if seen[rec.DownloadPath] {
			result.Duplicates = append(result.Duplicates, rec.DownloadPath)
			continue
		}
		seen[rec.DownloadPath] = true
		if !utils.PathExists(rec.DownloadPath) {
			result.Missing = append(result.Missing, rec.DownloadPath)
		}
	}
	return result, nil
}
