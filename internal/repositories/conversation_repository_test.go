package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/models"
)

func newConversationRepoMock(t *testing.T) (*ConversationRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewConversationRepo(sqlx.NewDb(db, "sqlmock")), mock
}

func directRow(id string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "type", "name", "description", "created_at"}).
		AddRow(id, string(models.ConversationDirect), "", "", time.Now())
}

func TestCreateOrGetDirectReturnsExisting(t *testing.T) {
	repo, mock := newConversationRepoMock(t)

	mock.ExpectQuery(`SELECT id, type, name, description, created_at FROM conversations WHERE direct_key=`).
		WithArgs("1:2").
		WillReturnRows(directRow("c1"))

	conv, err := repo.CreateOrGetDirect(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrGetDirectCreatesWithMembership(t *testing.T) {
	repo, mock := newConversationRepoMock(t)

	mock.ExpectQuery(`SELECT id, type, name, description, created_at FROM conversations WHERE direct_key=`).
		WithArgs("1:2").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO conversations`).
		WillReturnRows(directRow("c1"))
	mock.ExpectExec(`INSERT INTO conversation_participants`).
		WithArgs("c1", int64(1), string(models.RoleMember)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO conversation_participants`).
		WithArgs("c1", int64(2), string(models.RoleMember)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	conv, err := repo.CreateOrGetDirect(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Two concurrent callers race on the direct_key unique index; the loser's
// insert returns no row and it must roll back and converge on the winner's
// conversation.
func TestCreateOrGetDirectLostRaceReselects(t *testing.T) {
	repo, mock := newConversationRepoMock(t)

	mock.ExpectQuery(`SELECT id, type, name, description, created_at FROM conversations WHERE direct_key=`).
		WithArgs("1:2").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO conversations`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()
	mock.ExpectQuery(`SELECT id, type, name, description, created_at FROM conversations WHERE direct_key=`).
		WithArgs("1:2").
		WillReturnRows(directRow("winner"))

	conv, err := repo.CreateOrGetDirect(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "winner", conv.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
