package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/caseload/internal/domain/client"
	"github.com/rpggio/caseload/internal/domain/lifecycle"
	"github.com/rpggio/caseload/internal/domain/therapist"
	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	tables := []string{
		"subscriptions",
		"therapists",
		"clients",
		"assignments",
		"therapy_sessions",
		"activity_log",
		"api_keys",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}

	// Migrations are idempotent.
	require.NoError(t, db.Migrate(context.Background()))
}

func TestRebind(t *testing.T) {
	lite := &DB{dialect: DialectSQLite}
	pg := &DB{dialect: DialectPostgres}

	q := "SELECT * FROM clients WHERE clinic_id = ? AND id = ?"
	require.Equal(t, q, lite.rebind(q))
	require.Equal(t, "SELECT * FROM clients WHERE clinic_id = $1 AND id = $2", pg.rebind(q))
}

func TestSchema_PostgresTypes(t *testing.T) {
	var joined string
	for _, stmt := range schema(DialectPostgres) {
		joined += stmt
	}
	require.Contains(t, joined, "TIMESTAMPTZ")
	require.Contains(t, joined, "BIGSERIAL PRIMARY KEY")
	require.NotContains(t, joined, "AUTOINCREMENT")
	require.NotContains(t, joined, "{{")
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Dialect("oracle"), "x")
	require.Error(t, err)
}

func insertTherapist(t *testing.T, db *DB, clinicID, id string, status therapist.ActivityStatus, maxClients int) {
	t.Helper()
	repo := NewTherapistRepository(db)
	require.NoError(t, repo.Create(context.Background(), clinicID, &therapist.Therapist{
		ID:             id,
		Name:           "Therapist " + id,
		ActivityStatus: status,
		MaxClients:     maxClients,
		CreatedAt:      time.Now().UTC(),
	}))
}

func insertClient(t *testing.T, db *DB, clinicID, id string) {
	t.Helper()
	repo := NewClientRepository(db)
	now := time.Now().UTC()
	require.NoError(t, repo.Create(context.Background(), clinicID, &client.Client{
		ID:       id,
		Name:     "Client " + id,
		Status:   lifecycle.StatusNew,
		JoinDate: now,
	}))
}
