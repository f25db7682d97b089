package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"gallery/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	base := config.DatabaseConfig{Host: "db", Port: "5432", User: "gallery", Name: "gallery"}

	tests := []struct {
		name    string
		mutate  func(c *config.DatabaseConfig)
		want    string
		wantErr bool
	}{
		{
			name:   "no password, no sslmode",
			mutate: func(c *config.DatabaseConfig) {},
			want:   "postgres://gallery@db:5432/gallery?application_name=gallery&connect_timeout=5",
		},
		{
			name: "password is escaped",
			mutate: func(c *config.DatabaseConfig) {
				c.Password = "p@ss/word"
				c.SSLMode = "disable"
			},
			want: "postgres://gallery:p%40ss%2Fword@db:5432/gallery?application_name=gallery&connect_timeout=5&sslmode=disable",
		},
		{
			name:   "ipv6 host",
			mutate: func(c *config.DatabaseConfig) { c.Host = "::1" },
			want:   "postgres://gallery@[::1]:5432/gallery?application_name=gallery&connect_timeout=5",
		},
		{name: "missing host", mutate: func(c *config.DatabaseConfig) { c.Host = "" }, wantErr: true},
		{name: "missing port", mutate: func(c *config.DatabaseConfig) { c.Port = "" }, wantErr: true},
		{name: "missing user", mutate: func(c *config.DatabaseConfig) { c.User = "" }, wantErr: true},
		{name: "missing name", mutate: func(c *config.DatabaseConfig) { c.Name = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)

			got, err := BuildPostgresDSN(c)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func stubOpen(t *testing.T, db *sql.DB, err error) {
	t.Helper()
	orig := sqlOpen
	sqlOpen = func(driverName, dsn string) (*sql.DB, error) {
		return db, err
	}
	t.Cleanup(func() { sqlOpen = orig })
}

func TestNewPostgres(t *testing.T) {
	conf := config.DatabaseConfig{
		Host:               "localhost",
		Port:               "5432",
		User:               "gallery",
		Password:           "secret",
		Name:               "gallery",
		MaxOpenConns:       10,
		MaxIdleConns:       5,
		ConnMaxLifetimeSec: 300,
	}

	t.Run("success", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		stubOpen(t, db, nil)

		mock.ExpectPing()

		gotDB, err := NewPostgres(context.Background(), conf)
		assert.NoError(t, err)
		assert.NotNil(t, gotDB)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sqlOpen error", func(t *testing.T) {
		stubOpen(t, nil, errors.New("open error"))

		gotDB, err := NewPostgres(context.Background(), conf)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "sql open: open error")
		assert.Nil(t, gotDB)
	})

	t.Run("ping error", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)

		stubOpen(t, db, nil)

		mock.ExpectPing().WillReturnError(errors.New("ping failed"))

		gotDB, err := NewPostgres(context.Background(), conf)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "db ping: ping failed")
		assert.Nil(t, gotDB)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("canceled context", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)

		stubOpen(t, db, nil)

		mock.ExpectPing().WillReturnError(context.Canceled)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		gotDB, err := NewPostgres(ctx, conf)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, gotDB)
	})

	t.Run("invalid DSN", func(t *testing.T) {
		invalidConf := config.DatabaseConfig{} // missing host etc
		gotDB, err := NewPostgres(context.Background(), invalidConf)
		assert.Error(t, err)
		assert.Nil(t, gotDB)
	})
}
