package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	dbPath := filepath.Join(t.TempDir(), "pulsetrack-test.db")
	logger := zerolog.New(os.Stderr)
	store, err := New(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew_CreatesDB(t *testing.T) {
	store := newTestStore(t)

	// Verify tables exist
	tables := []string{"projects", "updates", "risk_alerts", "meta"}

	for _, table := range tables {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}

	// Verify indices exist
	var idxCount int
	err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name LIKE 'idx_%'").Scan(&idxCount)
	require.NoError(t, err)
	assert.Greater(t, idxCount, 0, "indices should be created")
}

func TestMigrate_SchemaVersion(t *testing.T) {
	store := newTestStore(t)

	var version string
	err := store.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, "2", version)

	// V2 columns exist
	_, err = store.db.Exec("SELECT tags, comments FROM updates LIMIT 1")
	assert.NoError(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.migrate())
	require.NoError(t, store.migrate())
}

func TestNew_ReopenExistingDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pulsetrack-test.db")
	logger := zerolog.New(os.Stderr)

	first, err := New(dbPath, logger)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// A restart must not replay migrations against the stamped schema.
	second, err := New(dbPath, logger)
	require.NoError(t, err)
	defer second.Close()

	var version string
	require.NoError(t, second.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version))
	assert.Equal(t, "2", version)
}

func TestMigrate_VersionComparedNumerically(t *testing.T) {
	store := newTestStore(t)

	// A future two-digit version must not look older than '2'.
	_, err := store.db.Exec("INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '10')")
	require.NoError(t, err)

	require.NoError(t, store.migrate())

	var version string
	require.NoError(t, store.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version))
	assert.Equal(t, "10", version)
}

func TestRunRetention_PrunesAlertsBeyondCap(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UnixMilli()

	_, err := store.db.Exec(
		"INSERT INTO projects (id, name, created_at, updated_at) VALUES ('p1', 'Test', ?, ?)",
		now, now,
	)
	require.NoError(t, err)

	for i := 0; i < 15; i++ {
		_, err := store.db.Exec(
			"INSERT INTO risk_alerts (id, project_id, type, severity, message, created_at) VALUES (?, 'p1', 'stalled_progress', 'low', ?, ?)",
			fmt.Sprintf("a%02d", i), fmt.Sprintf("alert %d", i), now+int64(i),
		)
		require.NoError(t, err)
	}

	require.NoError(t, store.RunRetention(context.Background()))

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM risk_alerts WHERE project_id = 'p1'").Scan(&count))
	assert.Equal(t, AlertRetention, count)

	// The survivors are the most recent ones.
	var oldest string
	require.NoError(t, store.db.QueryRow("SELECT id FROM risk_alerts WHERE project_id = 'p1' ORDER BY created_at ASC LIMIT 1").Scan(&oldest))
	assert.Equal(t, "a05", oldest)
}

func TestRunRetention_RemovesOrphans(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UnixMilli()

	// Orphaned rows pointing at a project that does not exist. Foreign keys
	// are disabled for the setup inserts only.
	store.db.SetMaxOpenConns(1)
	_, err := store.db.Exec("PRAGMA foreign_keys=OFF")
	require.NoError(t, err)

	_, err = store.db.Exec(
		"INSERT INTO updates (id, project_id, text, created_at) VALUES ('u1', 'ghost', 'hello', ?)", now,
	)
	require.NoError(t, err)
	_, err = store.db.Exec(
		"INSERT INTO risk_alerts (id, project_id, type, severity, message, created_at) VALUES ('a1', 'ghost', 'blocker_surge', 'high', 'm', ?)", now,
	)
	require.NoError(t, err)

	require.NoError(t, store.RunRetention(context.Background()))

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM updates").Scan(&count))
	assert.Equal(t, 0, count)
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM risk_alerts").Scan(&count))
	assert.Equal(t, 0, count)
}
