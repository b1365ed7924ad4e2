package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups := listMigrationFiles(migrationFS, migrationDir)
	require.NotEmpty(t, ups)
	for _, up := range ups {
		down := up[:len(up)-len(".up.sql")] + ".down.sql"
		_, err := migrationFS.Open(migrationDir + "/" + down)
		require.NoError(t, err, "missing %s", down)
	}
}

func TestListMigrationFilesSortsUpOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_b.up.sql":   {},
		"m/000001_a.up.sql":   {},
		"m/000001_a.down.sql": {},
		"m/notes.txt":         {},
	}
	require.Equal(t, []string{"000001_a.up.sql", "000002_b.up.sql"}, listMigrationFiles(fsys, "m"))
	require.Nil(t, listMigrationFiles(fsys, "missing"))
}

func TestSelectApplied(t *testing.T) {
	files := []string{"000001_a.up.sql", "000002_b.up.sql", "000003_c.up.sql"}
	require.Equal(t, []string{"000002_b.up.sql", "000003_c.up.sql"}, selectApplied(files, 1, 3))
	require.Nil(t, selectApplied(files, 3, 3))
	require.Equal(t, uint64(2), parseVersion("000002_b.up.sql"))
	require.Zero(t, parseVersion("junk"))
}

func TestConfigNormalizeAndURL(t *testing.T) {
	var off Config
	require.NoError(t, off.Normalize())
	require.False(t, off.Enabled())

	cfg := Config{Host: "db", User: "bot", Password: "p@ss", Name: "appeals"}
	require.NoError(t, cfg.Normalize())
	require.Equal(t, "5432", cfg.Port)
	require.Equal(t, "disable", cfg.SSLMode)
	require.Equal(t, 5, cfg.MaxConnections)
	require.Equal(t, "postgres://bot:p%40ss@db:5432/appeals?sslmode=disable", cfg.URL())
	require.Contains(t, cfg.DSN(), "dbname=appeals")

	require.Error(t, (&Config{Host: "db"}).Normalize())
}
