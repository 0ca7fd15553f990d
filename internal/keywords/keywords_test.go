package keywords

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	table := New(map[string]string{
		"Parasite":  "기생충",
		"올드보이 박찬욱":  "올드보이",
		"the  host": "괴물",
	})

	tests := []struct {
		name     string
		query    string
		expected string
	}{
		{"known phrase", "Parasite", "기생충"},
		{"case insensitive", "parasite", "기생충"},
		{"surrounding whitespace", "  parasite  ", "기생충"},
		{"korean phrase", "올드보이 박찬욱", "올드보이"},
		{"internal whitespace normalized", "the host", "괴물"},
		{"unknown passes through", "모르는 영화", "모르는 영화"},
		{"unknown is trimmed", "  모르는 영화 ", "모르는 영화"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, table.Expand(tt.query))
		})
	}
}

func TestExpandNilTable(t *testing.T) {
	var table *Table
	assert.Equal(t, "기생충", table.Expand(" 기생충 "))
}

func TestDefaultTable(t *testing.T) {
	table := Default()
	assert.Greater(t, table.Size(), 0)
	assert.Equal(t, "기생충", table.Expand("parasite"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"oldboy": "올드보이"}`), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Size())
	assert.Equal(t, "올드보이", table.Expand("Oldboy"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
