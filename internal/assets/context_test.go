package assets

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/savaki/image-deployer/internal/errors"
	"github.com/stretchr/testify/assert"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	assert.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupContext(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "Dockerfile", "FROM scratch\n")
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "README.md", "# readme\n")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main\n")
	writeFile(t, root, "target/debug/app", "binary\n")
	writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}\n")
	return root
}

func rels(files []ContextFile) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.Rel)
	}
	return out
}

func TestCollectContextAppliesExclusions(t *testing.T) {
	root := setupContext(t)

	files, err := CollectContext(root, "Dockerfile", []string{".git", "target", "node_modules", "*.md"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"Dockerfile", "main.go"}, rels(files))
}

func TestCollectContextKeepsBuildFile(t *testing.T) {
	root := setupContext(t)

	// the build file must survive even when an exclusion pattern matches it
	files, err := CollectContext(root, "Dockerfile", []string{"Dockerfile", "*.md"})
	assert.NoError(t, err)
	assert.Contains(t, rels(files), "Dockerfile")
}

func TestCollectContextMissingBuildFile(t *testing.T) {
	root := setupContext(t)

	_, err := CollectContext(root, "missing/Dockerfile", nil)
	assert.ErrorIs(t, err, apperrors.ErrBuildFileNotFound)
}

func TestCollectContextEmpty(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sub/Dockerfile", "FROM scratch\n")

	// excluding the directory that holds the build file leaves nothing to build
	_, err := CollectContext(root, "sub/Dockerfile", []string{"sub"})
	assert.ErrorIs(t, err, apperrors.ErrEmptyBuildContext)
}

func TestContextHashDeterministic(t *testing.T) {
	root := setupContext(t)
	exclude := []string{".git", "target", "node_modules", "*.md"}

	files, err := CollectContext(root, "Dockerfile", exclude)
	assert.NoError(t, err)

	first, err := ContextHash(files, "Dockerfile")
	assert.NoError(t, err)
	assert.Len(t, first, 64)

	again, err := ContextHash(files, "Dockerfile")
	assert.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestContextHashChangesWithContent(t *testing.T) {
	root := setupContext(t)
	exclude := []string{".git", "target", "node_modules", "*.md"}

	files, err := CollectContext(root, "Dockerfile", exclude)
	assert.NoError(t, err)
	before, err := ContextHash(files, "Dockerfile")
	assert.NoError(t, err)

	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	files, err = CollectContext(root, "Dockerfile", exclude)
	assert.NoError(t, err)
	after, err := ContextHash(files, "Dockerfile")
	assert.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestContextHashIgnoresExcludedChanges(t *testing.T) {
	root := setupContext(t)
	exclude := []string{".git", "target", "node_modules", "*.md"}

	files, err := CollectContext(root, "Dockerfile", exclude)
	assert.NoError(t, err)
	before, err := ContextHash(files, "Dockerfile")
	assert.NoError(t, err)

	writeFile(t, root, "README.md", "# changed\n")
	writeFile(t, root, "target/debug/app", "rebuilt\n")

	files, err = CollectContext(root, "Dockerfile", exclude)
	assert.NoError(t, err)
	after, err := ContextHash(files, "Dockerfile")
	assert.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestTarContext(t *testing.T) {
	root := setupContext(t)

	files, err := CollectContext(root, "Dockerfile", []string{".git", "target", "node_modules", "*.md"})
	assert.NoError(t, err)

	stream, err := TarContext(files)
	assert.NoError(t, err)

	got := map[string]string{}
	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		assert.NoError(t, err)

		content, err := io.ReadAll(tr)
		assert.NoError(t, err)
		got[hdr.Name] = string(content)
	}

	assert.Equal(t, map[string]string{
		"Dockerfile": "FROM scratch\n",
		"main.go":    "package main\n",
	}, got)
}

func TestNormalizeBuildFile(t *testing.T) {
	assert.Equal(t, "agent-b/Dockerfile", NormalizeBuildFile(" agent-b/Dockerfile "))
	assert.Equal(t, "Dockerfile", NormalizeBuildFile("./Dockerfile"))
}
