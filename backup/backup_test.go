package backup

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clockAt(ts ...string) func() time.Time {
	i := 0
	return func() time.Time {
		t, err := time.ParseInLocation(Layout, ts[i], time.Local)
		if err != nil {
			panic(err)
		}
		if i < len(ts)-1 {
			i++
		}
		return t
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestBackupAndRestoreLatest(t *testing.T) {
	root := t.TempDir()
	server := filepath.Join(root, "conf", "server.xml")
	writeFile(t, server, "T1")

	v := New(root, clockAt("2024-03-01_10-00-00"))
	dest, err := v.Begin().Backup(server)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, DirName, "2024-03-01_10-00-00", "conf", "server.xml"), dest)

	writeFile(t, server, "T2")
	name, err := RestoreLatest(root)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01_10-00-00", name)
	assert.Equal(t, "T1", readFile(t, server))
}

func TestRestorePicksNewestSet(t *testing.T) {
	root := t.TempDir()
	f := filepath.Join(root, "conf", "web.xml")
	v := New(root, clockAt("2024-01-02_09-00-00", "2024-01-10_08-00-00", "2023-12-31_23-59-59"))

	for _, content := range []string{"old", "newest", "older"} {
		writeFile(t, f, content)
		_, err := v.Begin().Backup(f)
		require.NoError(t, err)
	}
	writeFile(t, f, "current")

	name, err := RestoreLatest(root)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10_08-00-00", name)
	assert.Equal(t, "newest", readFile(t, f))
}

func TestBackupMissingFileIsNoop(t *testing.T) {
	root := t.TempDir()
	dest, err := New(root, nil).Begin().Backup(filepath.Join(root, "conf", "absent.xml"))
	require.NoError(t, err)
	assert.Empty(t, dest)
	_, err = os.Stat(filepath.Join(root, DirName))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRestoreWithoutBackups(t *testing.T) {
	_, err := RestoreLatest(t.TempDir())
	assert.ErrorIs(t, err, ErrNoBackups)
}

func TestBackupFallsBackNextToOriginal(t *testing.T) {
	root := t.TempDir()
	f := filepath.Join(root, "conf", "context.xml")
	writeFile(t, f, "ctx")
	// A plain file where the backup directory should go.
	writeFile(t, filepath.Join(root, DirName), "not a directory")

	dest, err := New(root, clockAt("2024-05-05_05-05-05")).Begin().Backup(f)
	require.NoError(t, err)
	assert.Equal(t, f+".2024-05-05_05-05-05.bak", dest)
	assert.Equal(t, "ctx", readFile(t, dest))
}

func TestBackupUnreadableSource(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	root := t.TempDir()
	f := filepath.Join(root, "secret.xml")
	writeFile(t, f, "x")
	require.NoError(t, os.Chmod(f, 0o000))
	t.Cleanup(func() { _ = os.Chmod(f, 0o644) })

	_, err := New(root, nil).Begin().Backup(f)
	var be *BackupError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, f, be.File)
}

func TestGlobAndList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "conf", "server.xml"), "s")
	writeFile(t, filepath.Join(root, "conf", "Catalina", "localhost", "app.xml"), "app")
	writeFile(t, filepath.Join(root, "logs", "catalina.out"), "log")

	set := New(root, clockAt("2024-02-02_02-02-02")).Begin()
	got, err := set.Glob("conf/**/*.xml", "conf/server.xml")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// A second pass must not pick up the backups themselves.
	set2 := New(root, clockAt("2024-02-02_02-02-03")).Begin()
	got, err = set2.Glob("**/*.xml")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	writeFile(t, filepath.Join(root, DirName, "notes"), "ignored")
	require.NoError(t, os.MkdirAll(filepath.Join(root, DirName, "manual"), 0o755))

	sets, err := List(root)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "2024-02-02_02-02-02", sets[0].Name)
	assert.Equal(t, 2, sets[0].Files)
	assert.Equal(t, int64(len("s")+len("app")), sets[0].Bytes)
}
