package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite驱动

	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/RecoveryAshes/lawcrawl/internal/utils"
)

// JournalFile 追加日志数据库文件名
const JournalFile = "journal.db"

// Journal 基于SQLite的台账追加日志
// 每次追加立即落库,台账写出成功后标记为已写出;崩溃后未标记的记录即为待恢复记录
type Journal struct {
	db   *sql.DB
	path string
	site string
}

// OpenJournal 打开(或创建) dir 下的追加日志
func OpenJournal(dir, site string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	path := filepath.Join(dir, JournalFile)

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("打开台账日志失败: %w", err)
	}

	// SQLite只支持单写入者
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("启用WAL失败: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		download_path TEXT NOT NULL,
		record_json TEXT NOT NULL,
		flushed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(site, download_path)
	);

	CREATE INDEX IF NOT EXISTS idx_records_pending ON records(site, flushed);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("创建日志表失败: %w", err)
	}

	return &Journal{db: db, path: path, site: site}, nil
}

// Path 数据库文件路径
func (j *Journal) Path() string {
	return j.path
}

// Record 写入一条追加记录
func (j *Journal) Record(rec models.DocumentRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}

	_, err = j.db.ExecContext(context.Background(),
		`INSERT INTO records (site, download_path, record_json, flushed) VALUES (?, ?, ?, 0)
		 ON CONFLICT(site, download_path) DO UPDATE SET record_json = excluded.record_json, flushed = 0`,
		j.site, rec.DownloadPath, string(payload))
	if err != nil {
		return fmt.Errorf("写入日志记录失败: %w", err)
	}
	return nil
}

// MarkFlushed 将当前站点的全部记录标记为已写出
func (j *Journal) MarkFlushed() error {
	_, err := j.db.ExecContext(context.Background(),
		`UPDATE records SET flushed = 1 WHERE site = ? AND flushed = 0`, j.site)
	if err != nil {
		return fmt.Errorf("标记日志记录失败: %w", err)
	}
	return nil
}

// Pending 返回已追加但尚未写出到台账文件的记录(按追加顺序)
func (j *Journal) Pending() ([]models.DocumentRecord, error) {
	rows, err := j.db.QueryContext(context.Background(),
		`SELECT record_json FROM records WHERE site = ? AND flushed = 0 ORDER BY id`, j.site)
	if err != nil {
		return nil, fmt.Errorf("查询待写出记录失败: %w", err)
	}
	defer rows.Close()

	var out []models.DocumentRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("读取日志记录失败: %w", err)
		}
		var rec models.DocumentRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("解析日志记录失败: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Recover 把待写出记录中文件仍存在、且台账中尚无的记录补回台账
func (j *Journal) Recover(l *Ledger) (int, error) {
	pending, err := j.Pending()
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, rec := range pending {
		if l.Contains(rec.DownloadPath) || !utils.PathExists(rec.DownloadPath) {
			continue
		}
		if err := l.Append(rec); err != nil {
			utils.Warnf("恢复日志记录失败 [%s]: %v", rec.DownloadPath, err)
			continue
		}
		recovered++
	}
	return recovered, nil
}

// Close 关闭数据库
func (j *Journal) Close() error {
	return j.db.Close()
}
