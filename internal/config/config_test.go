package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	d := models.DefaultCrawlConfig()
	assert.Equal(t, d.LocateTimeout, cfg.Crawl.LocateTimeout)
	assert.Equal(t, d.MaxBrowserRestarts, cfg.Crawl.MaxBrowserRestarts)
	assert.Equal(t, "data", cfg.Output.BaseDir)
	assert.True(t, cfg.Output.Journal)
	assert.False(t, cfg.Output.Metrics)
	require.Len(t, cfg.Sites, 2)
	assert.Equal(t, "belgium", cfg.Sites[0].Name)
	require.NoError(t, cfg.Validate())
}

func TestWriteDefaultThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lawcrawl", "config.yaml")
	require.NoError(t, WriteDefault(path, false))

	err := WriteDefault(path, false)
	require.Error(t, err, "已存在的配置文件不应被覆盖")
	require.NoError(t, WriteDefault(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	want := Default()
	assert.Equal(t, want.Crawl.UserAgent, cfg.Crawl.UserAgent)
	assert.Equal(t, want.Headers["Accept-Language"], cfg.Headers["accept-language"])
	require.Len(t, cfg.Sites, 2)
	assert.Equal(t, want.Sites[0].BackLocator, cfg.Sites[0].BackLocator)
	assert.Equal(t, "DRC", cfg.Sites[1].Dir)
}

func TestLoadOverridesAndSiteDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
crawl:
  locate_timeout: 10
  formats: [md]
output:
  base_dir: /tmp/lawcrawl
  metrics: true
sites:
  - name: moniteur
    country: Belgium
    start_url: http://www.ejustice.just.fgov.be/cgi/welcome.pl
    link_locator: "css=input[name=numac]"
    categories:
      - label: Français
        language: french
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Crawl.LocateTimeout)
	assert.Equal(t, 30, cfg.Crawl.NavigationTimeout, "未设置的字段使用默认值")
	assert.Equal(t, []string{"md"}, cfg.Crawl.Formats)
	assert.True(t, cfg.Output.Metrics)

	require.Len(t, cfg.Sites, 1)
	site := cfg.Sites[0]
	assert.Equal(t, "moniteur", site.Dir)
	assert.Equal(t, "txt", site.Extension)
	assert.Equal(t, "txt", site.Categories[0].Segment)
	assert.Equal(t, models.DefaultFallback(), site.Fallback)
	assert.Equal(t, filepath.Join("/tmp/lawcrawl", "moniteur", "metadata.json"), cfg.LedgerPath(site))
	assert.Equal(t, filepath.Join("/tmp/lawcrawl", "moniteur", "reports"), cfg.ReportDir(site))
}

func TestLoadRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("crawl: [unclosed"), 0644))
	_, err := Load(broken)
	var cerr *models.ConfigError
	require.ErrorAs(t, err, &cerr)

	big := filepath.Join(dir, "big.yaml")
	require.NoError(t, os.WriteFile(big, make([]byte, MaxConfigFileSize+1), 0644))
	_, err = Load(big)
	require.ErrorAs(t, err, &cerr)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsDuplicateSites(t *testing.T) {
	cfg := Default()
	cfg.Sites = append(cfg.Sites, cfg.Sites[0])
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Output.BaseDir = ""
	require.Error(t, cfg.Validate())
}
