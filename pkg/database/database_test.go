package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "postgres", want: DriverPostgres},
		{in: "postgresql", want: DriverPostgres},
		{in: "sqlite", want: DriverSQLite},
		{in: "", want: DriverSQLite},
		{in: "mysql", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := DriverName(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "postgres fields",
			cfg:  Config{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Database: "journal"},
			want: "host=db port=5432 user=u password=p dbname=journal sslmode=disable",
		},
		{
			name: "url wins",
			cfg:  Config{Driver: "postgres", URL: "postgres://u:p@db/journal", Host: "ignored"},
			want: "postgres://u:p@db/journal",
		},
		{
			name: "sqlite default file",
			cfg:  Config{Driver: "sqlite"},
			want: "voicejournal.db",
		},
		{
			name: "sqlite memory",
			cfg:  Config{Driver: "sqlite", Database: ":memory:"},
			want: ":memory:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.DSN()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := New(ctx, &Config{Driver: "sqlite", Database: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate(ctx))
	// second call is a no-op
	require.NoError(t, db.Migrate(ctx))

	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='journals'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "journals", name)

	version, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestNewUnsupportedDriver(t *testing.T) {
	_, err := New(context.Background(), &Config{Driver: "oracle"})
	assert.Error(t, err)
}
