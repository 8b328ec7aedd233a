package identity

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/RecoveryAshes/lawcrawl/internal/models"
)

var safeID = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"法律标题", "Loi du 10/12/2021 — Article 5!", 250, "loi-du-10-12-2021-article-5"},
		{"去除重音", "Arrêté royal relatif à l'Économie", 250, "arrete-royal-relatif-a-l-economie"},
		{"首尾符号", "  --Décret--  ", 250, "decret"},
		{"连续分隔符折叠", "a   /// b", 250, "a-b"},
		{"截断后去掉末尾连字符", "abcd efgh", 5, "abcd"},
		{"仅符号", "!!! ???", 250, ""},
		{"不限制长度", "Wet van 1 mei", 0, "wet-van-1-mei"},
		{"荷兰语", "Koninklijk besluit van 3 juni 2021", 250, "koninklijk-besluit-van-3-juni-2021"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input, tt.max)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeProperties(t *testing.T) {
	inputs := []string{
		"Loi du 10/12/2021 — Article 5!",
		strings.Repeat("Gesetz über die Änderung ", 40),
		"-leading and trailing-",
		"Ordonnance-loi n° 21/012 du 16 juin 2021",
	}

	for _, in := range inputs {
		got := Normalize(in, 250)
		if len(got) > 250 {
			t.Errorf("长度超过上限: %d", len(got))
		}
		if got != "" && !safeID.MatchString(got) {
			t.Errorf("Normalize(%q) = %q 包含非法字符或多余连字符", in, got)
		}
		if Normalize(in, 250) != got {
			t.Errorf("Normalize 不是纯函数: %q", in)
		}
	}
}

func TestBuildIDWithTitle(t *testing.T) {
	opts := Options{TitleMax: 250, Fallback: models.DefaultFallback()}

	id, err := BuildID("  Loi du 10/12/2021 — Article 5!  ", "ignored body", opts)
	if err != nil {
		t.Fatalf("BuildID() error = %v", err)
	}
	if id.Value != "loi-du-10-12-2021-article-5" {
		t.Errorf("Value = %q", id.Value)
	}
	if id.Title != "Loi du 10/12/2021 — Article 5!" {
		t.Errorf("Title = %q", id.Title)
	}
	if id.Fallback {
		t.Error("有标题时不应使用回退标识")
	}
}

func TestBuildIDCollision(t *testing.T) {
	opts := Options{TitleMax: 250, Fallback: models.DefaultFallback()}

	a, _ := BuildID("Loi du 10/12/2021", "", opts)
	b, _ := BuildID("LOI DU 10-12-2021", "", opts)
	if a.Value != b.Value {
		t.Errorf("规范化后相同的标题应得到相同标识: %q != %q", a.Value, b.Value)
	}
}

func TestBuildIDFallback(t *testing.T) {
	opts := Options{TitleMax: 200, Fallback: models.DefaultFallback()}

	body := strings.Repeat("x", 300) + "Ordonnance portant organisation" + strings.Repeat(" ", 219) +
		strings.Repeat("y", 200) + "Fait à Kinshasa le 16 juin 2021" + strings.Repeat("z", 19) + strings.Repeat(".", 250)

	id, err := BuildID("", body, opts)
	if err != nil {
		t.Fatalf("BuildID() error = %v", err)
	}
	if !id.Fallback {
		t.Error("无标题时应使用回退标识")
	}
	if !strings.HasPrefix(id.Value, "ordonnance-portant-organisation") {
		t.Errorf("头部片段不正确: %q", id.Value)
	}
	if !strings.Contains(id.Value, "fait-a-kinshasa-le-16-juin-2021") {
		t.Errorf("尾部片段不正确: %q", id.Value)
	}
	if id.Title != "Ordonnance portant organisation" {
		t.Errorf("Title = %q", id.Title)
	}
	if !safeID.MatchString(id.Value) {
		t.Errorf("回退标识包含非法字符: %q", id.Value)
	}

	tests := []struct {
		name string
		body string
	}{
		{"单个长词", strings.Repeat("a", 1000)},
		{"短词重复", strings.Repeat("loi ", 250)},
		{"截断落在分隔符", strings.Repeat("decret ", 150)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := BuildID("", tt.body, opts)
			if err != nil {
				t.Fatalf("BuildID() error = %v", err)
			}
			if len(id.Value) > opts.TitleMax {
				t.Errorf("回退标识长度 %d 超过上限 %d", len(id.Value), opts.TitleMax)
			}
			if !safeID.MatchString(id.Value) {
				t.Errorf("回退标识首尾不应为分隔符: %q", id.Value)
			}
		})
	}
}

func TestBuildIDEmpty(t *testing.T) {
	opts := Options{TitleMax: 250, Fallback: models.DefaultFallback()}

	_, err := BuildID("", "short", opts)
	if !errors.Is(err, ErrEmptyIdentity) {
		t.Errorf("期望 ErrEmptyIdentity, 得到 %v", err)
	}
}

func TestSlice(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		from, to int
		want     string
	}{
		{"正向", "abcdef", 1, 3, "bc"},
		{"负向", "abcdef", -3, -1, "de"},
		{"越界截断", "abc", 1, 100, "bc"},
		{"负向越界", "abc", -300, -250, ""},
		{"部分负向越界", "abcdef", -300, -4, "ab"},
		{"多字节字符", "éàü", 1, 2, "à"},
		{"起点大于终点", "abc", 2, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slice(tt.s, tt.from, tt.to); got != tt.want {
				t.Errorf("Slice(%q, %d, %d) = %q, want %q", tt.s, tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestResolvePathAndExists(t *testing.T) {
	root := t.TempDir()

	path := ResolvePath(root, models.LanguageDutch, "txt", "wet-van-1-mei", ".txt")
	want := filepath.Join(root, "dutch", "txt", "wet-van-1-mei.txt")
	if path != want {
		t.Errorf("ResolvePath() = %q, want %q", path, want)
	}

	if ok, err := Exists(path); err != nil || ok {
		t.Errorf("文件尚未写入,Exists() = %v, %v", ok, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if ok, err := Exists(path); err != nil || !ok {
		t.Errorf("写入后应存在,Exists() = %v, %v", ok, err)
	}

	// 父路径是普通文件时无法确认,返回错误而不是"存在"
	under := filepath.Join(path, "child.txt")
	ok, err := Exists(under)
	if err == nil || ok {
		t.Errorf("Exists(%q) = %v, %v, 期望错误", under, ok, err)
	}
	var pathErr *fs.PathError
	if !errors.As(err, &pathErr) {
		t.Errorf("期望 *fs.PathError, 得到 %T", err)
	}
}
