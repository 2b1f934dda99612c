package backlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFindSuppressedRulesScansSourceFiles(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/a.ts", "// eslint-disable-next-line no-unused-vars\nconst x = 1;\n")
	writeProjectFile(t, root, "src/nested/b.js", "/* eslint-disable no-console, prefer-const */\nconsole.log('x')\n")
	writeProjectFile(t, root, "node_modules/pkg/index.js", "// eslint-disable-next-line no-explicit-any\n")

	rules, err := FindSuppressedRules(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"no-unused-vars", "no-console", "prefer-const"}, rules)
}

func TestNormalizeRefillReplacesGenericNoise(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/a.ts", "// eslint-disable-next-line no-unused-vars\nconst x = 1;\n")

	store := &Store{Path: filepath.Join(t.TempDir(), "backlog.md")}
	require.NoError(t, store.Write([]string{
		"clean up eslint-disable comments across the codebase",
		"unrelated task about caching",
	}))

	changed, err := NormalizeRefill(store, root)
	require.NoError(t, err)
	assert.True(t, changed)

	tasks, _ := store.Read()
	assert.NotContains(t, tasks, "clean up eslint-disable comments across the codebase")
	assert.Contains(t, tasks, "unrelated task about caching")
	assert.Contains(t, tasks, "Remove unnecessary eslint-disable for no-unused-vars and fix the underlying issue")
}

func TestNormalizeRefillNoopWhenNothingToChange(t *testing.T) {
	root := t.TempDir()

	store := &Store{Path: filepath.Join(t.TempDir(), "backlog.md")}
	require.NoError(t, store.Write([]string{"unrelated task"}))

	changed, err := NormalizeRefill(store, root)
	require.NoError(t, err)
	assert.False(t, changed)
}
