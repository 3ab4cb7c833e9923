package bootstrap

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/bookingbot/core/config"
	coredatabase "github.com/m3rciful/bookingbot/core/database"
	"github.com/m3rciful/bookingbot/core/telegram/state"
)

func mockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	return sqlx.NewDb(raw, "postgres"), mock
}

func noLogger(*coreconfig.Config) error { return nil }

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(Options{})
	assert.Error(t, err)
}

func TestRunWiresDatabaseAndSessions(t *testing.T) {
	db, mock := mockDB(t)
	migrated := false

	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return db, nil },
		Migrate: func(coredatabase.Config) error {
			migrated = true
			return nil
		},
	})
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.Same(t, db, res.DB)
	require.NotNil(t, res.Sessions)

	res.Sessions.Start(state.Key{UserID: 1, Flow: "booking"}, "date")
	assert.Equal(t, map[string]int{"booking": 1}, res.Sessions.Count())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunClosesDatabaseWhenMigrationsFail(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectClose()

	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return db, nil },
		Migrate:    func(coredatabase.Config) error { return errors.New("dirty") },
	})
	require.ErrorContains(t, err, "migrations failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStopsOnConnectError(t *testing.T) {
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return nil, errors.New("refused") },
		Migrate: func(coredatabase.Config) error {
			t.Fatal("migrate must not run")
			return nil
		},
	})
	assert.ErrorContains(t, err, "refused")
}

func TestNewSessionsExpire(t *testing.T) {
	sessions := NewSessions(coreconfig.ConversationConfig{IdleTimeoutSeconds: 1, CleanupIntervalSeconds: 1})
	sessions.Start(state.Key{UserID: 5, Flow: "download"}, "awaiting_link")

	assert.Eventually(t, func() bool {
		_, ok := sessions.Get(state.Key{UserID: 5, Flow: "download"})
		return !ok
	}, 3*time.Second, 50*time.Millisecond)
}

func TestServeMetrics(t *testing.T) {
	srv, err := ServeMetrics("")
	require.NoError(t, err)
	assert.Nil(t, srv)

	srv, err = ServeMetrics("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}
