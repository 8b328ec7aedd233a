package utils

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestLogConfig(t *testing.T, level string) LogConfig {
	t.Helper()
	return LogConfig{
		Level:      level,
		LogDir:     t.TempDir(),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   false,
		Console:    &bytes.Buffer{},
	}
}

func TestInitLogger(t *testing.T) {
	config := newTestLogConfig(t, "debug")

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Info("测试信息日志")
	Warn("测试警告日志")
	Debug("测试调试日志")

	time.Sleep(100 * time.Millisecond)

	mainLogPath := filepath.Join(config.LogDir, MainLogFile)
	if _, err := os.Stat(mainLogPath); os.IsNotExist(err) {
		t.Errorf("主日志文件未创建: %s", mainLogPath)
	}
}

func TestLogLevels(t *testing.T) {
	config := newTestLogConfig(t, "info")

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Infof("格式化信息日志: %s", "测试")
	Warnf("格式化警告日志: %d", 123)
	Debugf("调试日志不应写入: %v", true)

	content, err := os.ReadFile(filepath.Join(config.LogDir, MainLogFile))
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}

	if !strings.Contains(string(content), "格式化信息日志") {
		t.Error("信息日志未写入主日志")
	}
	if strings.Contains(string(content), "调试日志不应写入") {
		t.Error("info级别下不应写入调试日志")
	}
}

func TestErrorLogOnlyReceivesErrors(t *testing.T) {
	config := newTestLogConfig(t, "debug")

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Info("普通信息")
	Error(errors.New("磁盘已满"), "写入文档失败")

	content, err := os.ReadFile(filepath.Join(config.LogDir, ErrorLogFile))
	if err != nil {
		t.Fatalf("读取错误日志失败: %v", err)
	}

	if strings.Contains(string(content), "普通信息") {
		t.Error("错误日志不应包含信息级别日志")
	}
	if !strings.Contains(string(content), "写入文档失败") {
		t.Error("错误日志缺少错误级别日志")
	}
}

func TestFilteredWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &FilteredWriter{Writer: &buf, MinLevel: zerolog.WarnLevel}

	tests := []struct {
		name    string
		level   zerolog.Level
		written bool
	}{
		{"调试级别被过滤", zerolog.DebugLevel, false},
		{"信息级别被过滤", zerolog.InfoLevel, false},
		{"警告级别写入", zerolog.WarnLevel, true},
		{"错误级别写入", zerolog.ErrorLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			n, err := w.WriteLevel(tt.level, []byte("x"))
			if err != nil || n != 1 {
				t.Fatalf("WriteLevel() = %d, %v", n, err)
			}
			if (buf.Len() > 0) != tt.written {
				t.Errorf("写入状态 = %v, 期望 %v", buf.Len() > 0, tt.written)
			}
		})
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != "info" {
		t.Errorf("默认日志级别错误: 期望 'info', 得到 '%s'", config.Level)
	}
	if config.LogDir != "logs" {
		t.Errorf("默认日志目录错误: 期望 'logs', 得到 '%s'", config.LogDir)
	}
	if config.MaxSize != 10 || config.MaxBackups != 3 || config.MaxAge != 28 {
		t.Errorf("默认轮转配置错误: %+v", config)
	}
	if !config.Compress {
		t.Error("默认应该启用压缩")
	}
}
