package urlsource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSingleURL(t *testing.T) {
	urls, err := Resolve("https://example.com/file.bin")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/file.bin"}, urls)
}

func TestResolveStripsFormatCharacters(t *testing.T) {
	// U+200B is ZERO WIDTH SPACE, category Cf.
	urls, err := Resolve("https://example.com/​file.bin")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/file.bin"}, urls)
}

func TestResolveURLListFile(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "mirrors.txt")
	require.NoError(t, os.WriteFile(listPath, []byte("https://a.example/f\nhttps://b.example/f\n"), 0o600))

	urls, err := Resolve(listPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/f", "https://b.example/f"}, urls)
}

func TestResolveRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := Resolve(dir)
	assert.ErrorIs(t, err, ErrIsDirectory)
}

func TestDestinationPath(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	dest, err := DestinationPath("https://example.com/dir/file.bin")
	require.NoError(t, err)
	assert.Equal(t, cwd+"/file.bin", dest)
}
