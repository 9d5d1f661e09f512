package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex-data/coach.report/internal/testutil"
)

const migrationsDir = "../../../migrations"

func TestMigrateUpAndVersion(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion(migrationsDir)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp(migrationsDir))

	version, dirty, err = db.MigrateVersion(migrationsDir)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Up again is a no-op.
	require.NoError(t, db.MigrateUp(migrationsDir))
}

func TestMigrateDownStepsBack(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.MigrateUp(migrationsDir))

	require.NoError(t, db.MigrateDown(migrationsDir))
	version, _, err := db.MigrateVersion(migrationsDir)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestMigratedSchemaIsUsable(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "migrated.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.MigrateUp(migrationsDir))

	lapID, err := db.RecordLap("sess-m", 1, "synthetic", "gt3", testutil.SyntheticLap(2, nil))
	require.NoError(t, err)
	_, err = db.GetLap(lapID)
	require.NoError(t, err)
}
