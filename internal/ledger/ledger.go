// Package ledger 维护文档台账: 运行期间只追加的有序记录序列,结束时(或每个分类结束时)
// 整体写入JSON文件,并可选地把每次追加同步写入SQLite日志以便崩溃后恢复
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/RecoveryAshes/lawcrawl/internal/utils"
)

// ErrDuplicatePath 同一下载路径已有记录
var ErrDuplicatePath = errors.New("台账中已存在相同下载路径的记录")

// Ledger 有序台账,并发安全
type Ledger struct {
	mu      sync.RWMutex
	records []models.DocumentRecord
	index   map[string]int // download_path -> 序号
	journal *Journal
}

// New 创建空台账
func New() *Ledger {
	return &Ledger{index: make(map[string]int)}
}

// Load 读取已有台账文件作为初始内容
// 文件不存在时返回空台账;对应文件已被删除的记录会被丢弃
func Load(path string) (*Ledger, error) {
	l := New()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取台账失败 [%s]: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return l, nil
	}

	var records []models.DocumentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("解析台账失败 [%s]: %w", path, err)
	}

	dropped := 0
	for _, rec := range records {
		if !utils.PathExists(rec.DownloadPath) {
			dropped++
			continue
		}
		if _, dup := l.index[rec.DownloadPath]; dup {
			continue
		}
		l.index[rec.DownloadPath] = len(l.records)
		l.records = append(l.records, rec)
	}
	if dropped > 0 {
		utils.Warnf("台账 %s 中有 %d 条记录的文件已不存在,已丢弃", path, dropped)
	}

	return l, nil
}

// AttachJournal 关联追加日志,之后每次 Append 同步写入日志
func (l *Ledger) AttachJournal(j *Journal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.journal = j
}

// Append 追加一条记录,不修改已有记录
func (l *Ledger) Append(rec models.DocumentRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.index[rec.DownloadPath]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicatePath, rec.DownloadPath)
	}

	if l.journal != nil {
		if err := l.journal.Record(rec); err != nil {
			// 日志只是加固手段,失败不影响内存台账
			utils.Warnf("写入台账日志失败 [%s]: %v", rec.DownloadPath, err)
		}
	}

	l.index[rec.DownloadPath] = len(l.records)
	l.records = append(l.records, rec)
	return nil
}

// Contains 台账中是否已有该下载路径
func (l *Ledger) Contains(path string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.index[path]
	return ok
}

// Len 记录数
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records 返回记录副本(保持追加顺序)
func (l *Ledger) Records() []models.DocumentRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.DocumentRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Flush 将完整记录序列写入 path,覆盖已有文件
// 文件已不存在的记录不会写出,保证台账中的每个路径在写出时都存在
func (l *Ledger) Flush(path string) error {
	l.mu.RLock()
	out := make([]models.DocumentRecord, 0, len(l.records))
	missing := 0
	for _, rec := range l.records {
		if !utils.PathExists(rec.DownloadPath) {
			missing++
			continue
		}
		out = append(out, rec)
	}
	journal := l.journal
	l.mu.RUnlock()

	if missing > 0 {
		utils.Warnf("⚠️  %d 条记录的文件在写出台账前已消失,未写入 %s", missing, path)
	}

	data, err := Marshal(out)
	if err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("写入台账失败: %w", err)
	}

	if journal != nil {
		if err := journal.MarkFlushed(); err != nil {
			utils.Warnf("更新台账日志状态失败: %v", err)
		}
	}

	utils.Debugf("台账已写出: %s (%d 条记录)", path, len(out))
	return nil
}

// Marshal 序列化记录数组(UTF-8,不转义非ASCII字符)
func Marshal(records []models.DocumentRecord) ([]byte, error) {
	if records == nil {
		records = []models.DocumentRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("序列化台账失败: %w", err)
	}
	return buf.Bytes(), nil
}
