package lexicon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `[
	{"paiwan": "vavayan", "chinese": "女人"},
	{"paiwan": "vavayan", "chinese": ["女性", "女人", " "]},
	{"paiwan": "  kikai ", "chinese": ["女性用語", 7, null]},
	{"paiwan": "a", "chinese": "[虛]"},
	{"paiwan": "na", "chinese": ["[虛", "[虛]"]},
	{"paiwan": "", "chinese": "空"},
	{"paiwan": "sun", "chinese": null},
	{"paiwan": "Ka.vu", "chinese": "第一"},
	{"paiwan": "kavu", "chinese": "第二"}
]`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSource(t *testing.T) {
	path := writeFile(t, t.TempDir(), "src.json", sampleSource)

	src, err := LoadSource("jiaocai", 1.0, path)
	require.NoError(t, err)

	assert.Equal(t, "jiaocai", src.Key())
	assert.Equal(t, 1.0, src.Weight())
	assert.Equal(t, []Entry{
		{Surface: "vavayan", Glosses: []string{"女人", "女性"}},
		{Surface: "kikai", Glosses: []string{"女性用語"}},
		{Surface: "Ka.vu", Glosses: []string{"第一"}},
		{Surface: "kavu", Glosses: []string{"第二"}},
	}, src.Entries())
}

func TestSourceNormalizedCollisionKeepsFirst(t *testing.T) {
	src := NewSource("s", 1, []Record{rec("Ka.vu", "第一"), rec("kavu", "第二")})

	glosses, ok := src.exact("kavu")
	require.True(t, ok)
	assert.Equal(t, []string{"第二"}, glosses, "verbatim match wins over the normalized index")

	glosses, ok = src.exact("KAVU")
	require.True(t, ok)
	assert.Equal(t, []string{"第一"}, glosses, "normalized collisions resolve to the first loaded form")
}

func TestLoadSourceErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSource("missing", 1, filepath.Join(dir, "nope.json"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.json", `{"paiwan": "not a list"}`)
	_, err = LoadSource("bad", 1, bad)
	assert.Error(t, err)

	badGloss := writeFile(t, dir, "gloss.json", `[{"paiwan": "x", "chinese": {"k": 1}}]`)
	_, err = LoadSource("gloss", 1, badGloss)
	assert.Error(t, err)
}

func TestNewStoreRejectsDuplicates(t *testing.T) {
	_, err := NewStore(NewSource("a", 1, nil), NewSource("a", 2, nil))
	assert.ErrorIs(t, err, ErrDuplicateSource)

	_, err = NewStore(NewSource(SelectorAll, 1, nil))
	assert.ErrorIs(t, err, ErrDuplicateSource)
}

func TestLoadWithManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.json", `[{"paiwan": "ita", "chinese": "一"}]`)
	writeFile(t, dir, "two.json", `[{"paiwan": "drusa", "chinese": "二"}]`)
	manifest := writeFile(t, dir, "lexicon.yaml", `
sources:
  - key: one
    file: one.json
    weight: 0.5
  - key: two
    file: two.json
    weight: 0.8
`)

	m, err := LoadManifest(manifest)
	require.NoError(t, err)

	st, err := Load(dir, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, st.Keys())
	assert.Equal(t, map[string]float64{"one": 0.5, "two": 0.8}, st.Weights())

	src, err := st.Source("two")
	require.NoError(t, err)
	assert.Equal(t, 1, src.Len())
}

func TestLoadManifestDefaultsAndValidation(t *testing.T) {
	m, err := LoadManifest("")
	require.NoError(t, err)
	require.Len(t, m.Sources, 3)
	assert.Equal(t, "jiaocai", m.Sources[0].Key)

	dir := t.TempDir()
	noFile := writeFile(t, dir, "m.yaml", "sources:\n  - key: x\n")
	_, err = LoadManifest(noFile)
	assert.Error(t, err)

	empty := writeFile(t, dir, "e.yaml", "sources: []\n")
	_, err = LoadManifest(empty)
	assert.Error(t, err)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(t.TempDir(), DefaultManifest())
	assert.Error(t, err)
}
