package repositories_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rohits-web03/vidtube/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_LogsFailedSQLThroughSlogWithoutValues(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	db, err := repositories.Open(sqlite.Open(filepath.Join(t.TempDir(), "log.db")), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repositories.CloseDatabase(db) })
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()

	first := newUser("ann_k", "ann@example.com")
	first.PasswordHash = "hash-value-first"
	require.NoError(t, repo.Create(ctx, first))

	dup := newUser("ann_k", "ann@example.com")
	dup.PasswordHash = "hash-value-second"
	err = repo.Create(ctx, dup)
	require.True(t, errors.Is(err, repositories.ErrDuplicate), err)

	out := buf.String()
	assert.Contains(t, out, "SQL executed")
	assert.Contains(t, out, `"component":"gorm"`)
	assert.Contains(t, out, "users")
	assert.NotContains(t, out, "hash-value-second")
}

func TestOpen_NotFoundIsNotLogged(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	db, err := repositories.Open(sqlite.Open(filepath.Join(t.TempDir(), "quiet.db")), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repositories.CloseDatabase(db) })

	buf.Reset()
	_, err = repositories.NewUserRepository(db).FindByLogin(context.Background(), "nobody@example.com", "")
	require.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Empty(t, buf.String())
}

func TestConnectDatabase_EmptyDSN(t *testing.T) {
	_, err := repositories.ConnectDatabase("", nil)
	require.Error(t, err)
}
