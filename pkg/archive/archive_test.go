package archive

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/habitat-sh/core/pkg/target"
)

type tarEntry struct {
	name    string
	content string
}

func writeTar(t *testing.T, path string, entries []tarEntry) {
	t.Helper()

	hdl, err := os.Create(path)
	require.NoError(t, err)
	defer hdl.Close()

	var tw *tar.Writer
	if filepath.Ext(path) == ".xz" || filepath.Ext(path) == ".hart" {
		xw, err := xz.NewWriter(hdl)
		require.NoError(t, err)
		defer xw.Close()
		tw = tar.NewWriter(xw)
	} else {
		tw = tar.NewWriter(hdl)
	}
	defer tw.Close()

	for _, entry := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     entry.name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(entry.content)),
		}))
		_, err := tw.Write([]byte(entry.content))
		require.NoError(t, err)
	}
}

func testArchive(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	writeTar(t, path, []tarEntry{
		{"acme/redis/4.0.14/20200101000000/IDENT", "acme/redis/4.0.14/20200101000000\n"},
		{"acme/redis/4.0.14/20200101000000/TARGET", "x86_64-linux\n"},
		{"acme/redis/4.0.14/20200101000000/bin/redis-server", "#!/bin/sh\n"},
	})
	return path
}

func TestOpenReadsMetadata(t *testing.T) {
	a, err := Open(testArchive(t, "acme-redis-4.0.14-20200101000000-x86_64-linux.hart"))
	require.NoError(t, err)

	assert.Equal(t, "acme/redis/4.0.14/20200101000000", a.Ident.String())
	assert.Equal(t, target.X86_64Linux, a.Target)
}

func TestOpenPlainTar(t *testing.T) {
	a, err := Open(testArchive(t, "redis.tar"))
	require.NoError(t, err)

	assert.Equal(t, "redis", a.Ident.Name)
}

func TestOpenRejectsMissingIdent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.tar")
	writeTar(t, path, []tarEntry{
		{"acme/redis/4.0.14/20200101000000/TARGET", "x86_64-linux\n"},
	})

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDENT")
}

func TestOpenRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redis.zip")
	require.NoError(t, os.WriteFile(path, []byte("nope"), 0o644))

	_, err := Open(path)
	require.Error(t, err)
}

func TestUnpack(t *testing.T) {
	a, err := Open(testArchive(t, "acme-redis-4.0.14-20200101000000-x86_64-linux.hart"))
	require.NoError(t, err)

	fsRoot := t.TempDir()
	require.NoError(t, a.Unpack(fsRoot))

	content, err := os.ReadFile(filepath.Join(fsRoot, "hab", "pkgs",
		"acme", "redis", "4.0.14", "20200101000000", "bin", "redis-server"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(content))

	// No staging directory may survive the unpack.
	entries, err := os.ReadDir(filepath.Join(fsRoot, "hab", "pkgs"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "acme", entries[0].Name())
}

func TestUnpackIsIdempotent(t *testing.T) {
	a, err := Open(testArchive(t, "redis.tar"))
	require.NoError(t, err)

	fsRoot := t.TempDir()
	require.NoError(t, a.Unpack(fsRoot))
	require.NoError(t, a.Unpack(fsRoot))
}

func TestUnpackRejectsTraversal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evil.tar")
	writeTar(t, path, []tarEntry{
		{"acme/redis/4.0.14/20200101000000/IDENT", "acme/redis/4.0.14/20200101000000\n"},
		{"acme/redis/4.0.14/20200101000000/TARGET", "x86_64-linux\n"},
		{"../../../../etc/passwd", "root\n"},
	})

	a, err := Open(path)
	require.NoError(t, err)

	err = a.Unpack(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}
