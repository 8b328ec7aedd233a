package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/lawcrawl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("texte"), 0644))
	return path
}

func record(path, title string) models.DocumentRecord {
	return models.DocumentRecord{
		Title:        title,
		Link:         "www.ejustice.just.fgov.be/cgi/article.pl",
		DownloadPath: path,
		DownloadDate: models.NewDate(time.Date(2021, 12, 10, 15, 4, 5, 0, time.UTC)),
		Language:     models.LanguageFrench,
		Country:      "Belgium",
	}
}

func TestAppendKeepsOrderAndRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	l := New()

	a := writeDoc(t, dir, "french/txt/a.txt")
	b := writeDoc(t, dir, "french/txt/b.txt")

	require.NoError(t, l.Append(record(a, "Loi A")))
	require.NoError(t, l.Append(record(b, "Loi B")))

	err := l.Append(record(a, "Loi A bis"))
	require.ErrorIs(t, err, ErrDuplicatePath)

	recs := l.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "Loi A", recs[0].Title)
	assert.Equal(t, "Loi B", recs[1].Title)
	assert.True(t, l.Contains(a))
	assert.False(t, l.Contains(filepath.Join(dir, "missing.txt")))
}

func TestAppendValidatesRecord(t *testing.T) {
	l := New()
	rec := record("x.txt", "Loi")
	rec.Language = "klingon"
	require.Error(t, l.Append(rec))
	assert.Equal(t, 0, l.Len())
}

func TestFlushWritesJSONArray(t *testing.T) {
	dir := t.TempDir()
	l := New()
	a := writeDoc(t, dir, "french/txt/arrete-royal.txt")
	require.NoError(t, l.Append(record(a, "Arrêté royal")))

	out := filepath.Join(dir, "metadata.json")
	require.NoError(t, os.WriteFile(out, []byte("old content"), 0644))
	require.NoError(t, l.Flush(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Arrêté royal")
	assert.Contains(t, string(data), `"download_date": "2021-12-10"`)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	for _, key := range []string{"title", "link", "download_path", "download_date", "language", "country"} {
		assert.Contains(t, raw[0], key)
	}
}

func TestFlushDropsRecordsWithoutFiles(t *testing.T) {
	dir := t.TempDir()
	l := New()
	a := writeDoc(t, dir, "a.txt")
	b := writeDoc(t, dir, "b.txt")
	require.NoError(t, l.Append(record(a, "A")))
	require.NoError(t, l.Append(record(b, "B")))
	require.NoError(t, os.Remove(a))

	out := filepath.Join(dir, "metadata.json")
	require.NoError(t, l.Flush(out))

	loaded, err := Load(out)
	require.NoError(t, err)
	recs := loaded.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, b, recs[0].DownloadPath)
}

func TestFlushDropsRecordsWithUnverifiablePaths(t *testing.T) {
	dir := t.TempDir()
	l := New()
	a := writeDoc(t, dir, "a.txt")
	require.NoError(t, l.Append(record(a, "A")))
	require.NoError(t, l.Append(record(filepath.Join(a, "b.txt"), "B")))

	out := filepath.Join(dir, "metadata.json")
	require.NoError(t, l.Flush(out))

	loaded, err := Load(out)
	require.NoError(t, err)
	recs := loaded.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, a, recs[0].DownloadPath)
}

func TestFlushEmptyLedger(t *testing.T) {
	out := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, New().Flush(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := New()
	a := writeDoc(t, dir, "a.txt")
	require.NoError(t, l.Append(record(a, "A")))
	out := filepath.Join(dir, "metadata.json")
	require.NoError(t, l.Flush(out))

	loaded, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, l.Records(), loaded.Records())

	missing, err := Load(filepath.Join(dir, "none.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, missing.Len())
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(out, []byte("{not json"), 0644))
	_, err := Load(out)
	require.Error(t, err)
}

func TestJournalPendingAndRecover(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(dir, "belgium")
	require.NoError(t, err)
	defer j.Close()

	l := New()
	l.AttachJournal(j)

	a := writeDoc(t, dir, "a.txt")
	b := writeDoc(t, dir, "b.txt")
	require.NoError(t, l.Append(record(a, "A")))

	out := filepath.Join(dir, "metadata.json")
	require.NoError(t, l.Flush(out))

	pending, err := j.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	// 追加后在写出前"崩溃"
	require.NoError(t, l.Append(record(b, "B")))
	pending, err = j.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b, pending[0].DownloadPath)
	assert.Equal(t, "2021-12-10", pending[0].DownloadDate.String())

	restored, err := Load(out)
	require.NoError(t, err)
	require.Equal(t, 1, restored.Len())

	n, err := j.Recover(restored)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, restored.Contains(b))
}

func TestJournalIsolatedPerSite(t *testing.T) {
	dir := t.TempDir()
	be, err := OpenJournal(dir, "belgium")
	require.NoError(t, err)
	defer be.Close()

	a := writeDoc(t, dir, "a.txt")
	require.NoError(t, be.Record(record(a, "A")))

	drc, err := OpenJournal(dir, "drc")
	require.NoError(t, err)
	defer drc.Close()

	pending, err := drc.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	a := writeDoc(t, dir, "french/txt/a.txt")
	gone := filepath.Join(dir, "french/txt/gone.txt")
	bad := record(writeDoc(t, dir, "french/txt/c.txt"), "C")
	bad.Country = ""

	data, err := json.Marshal([]models.DocumentRecord{record(a, "A"), record(gone, "B"), record(a, "A bis"), bad})
	require.NoError(t, err)
	out := filepath.Join(dir, "metadata.json")
	require.NoError(t, os.WriteFile(out, data, 0644))

	res, err := Verify(out)
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, 4, res.Records)
	assert.Equal(t, []string{gone}, res.Missing)
	assert.Equal(t, []string{a}, res.Duplicates)
	assert.Len(t, res.Invalid, 1)
	assert.False(t, res.OK())
}

func TestVerifyMissingLedger(t *testing.T) {
	res, err := Verify(filepath.Join(t.TempDir(), "metadata.json"))
	require.NoError(t, err)
	assert.False(t, res.Exists)
	assert.True(t, res.OK())
}
