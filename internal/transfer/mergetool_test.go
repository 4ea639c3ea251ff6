package transfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMergeTool(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path, err := WriteMergeTool(dir, "lecture", ".mp4", 3)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lecture_merge.html"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(raw)

	// The tool is only usable offline if every part name is baked in literally.
	assert.Contains(t, html, `"lecture_part001of003.mp4"`)
	assert.Contains(t, html, `"lecture_part002of003.mp4"`)
	assert.Contains(t, html, `"lecture_part003of003.mp4"`)
	assert.Contains(t, html, `var mergedName = "lecture_merged.mp4";`)
	assert.Contains(t, html, "all 3 parts")
	assert.NotContains(t, html, "{{")
}

func TestWriteMergeTool_BadDir(t *testing.T) {
	t.Parallel()
	_, err := WriteMergeTool(filepath.Join(t.TempDir(), "missing"), "x", ".mp4", 2)
	assert.Error(t, err)
}
