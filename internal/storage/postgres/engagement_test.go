package postgres

import (
	"context"
	"testing"

	"vidstream/internal/storage"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestInsertLike_DuplicateMapsToErrDuplicate(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO likes`).
		WithArgs("video", int64(10), int64(2)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.InsertLike(ctx, "video", 10, 2))

	mock.ExpectExec(`INSERT INTO likes`).
		WithArgs("video", int64(10), int64(2)).
		WillReturnError(uniqueViolation())

	err := repo.InsertLike(ctx, "video", 10, 2)
	require.ErrorIs(t, err, storage.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteLike_ReportsWhetherRowExisted(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM likes`).
		WithArgs("video", int64(10), int64(2)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	deleted, err := repo.DeleteLike(ctx, "video", 10, 2)
	require.NoError(t, err)
	require.True(t, deleted)

	mock.ExpectExec(`DELETE FROM likes`).
		WithArgs("video", int64(10), int64(2)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	deleted, err = repo.DeleteLike(ctx, "video", 10, 2)
	require.NoError(t, err)
	require.False(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSubscription_DuplicateMapsToErrDuplicate(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO subscriptions`).
		WithArgs(int64(1), int64(2)).
		WillReturnError(uniqueViolation())

	err := repo.InsertSubscription(ctx, 1, 2)
	require.ErrorIs(t, err, storage.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertView_AuthenticatedAndAnonymous(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	viewer := int64(2)

	mock.ExpectExec(`INSERT INTO views`).
		WithArgs(int64(10), &viewer, (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.InsertView(ctx, 10, &viewer, nil))

	ip := "203.0.113.7"

	mock.ExpectExec(`INSERT INTO views`).
		WithArgs(int64(10), (*int64)(nil), &ip).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.InsertView(ctx, 10, nil, &ip))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertView_RepeatViewerMapsToErrDuplicate(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	viewer := int64(2)

	mock.ExpectExec(`INSERT INTO views`).
		WithArgs(int64(10), &viewer, (*string)(nil)).
		WillReturnError(uniqueViolation())

	err := repo.InsertView(ctx, 10, &viewer, nil)
	require.ErrorIs(t, err, storage.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddWatchHistory_ConflictIsSilent(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	// ON CONFLICT DO NOTHING means a repeat insert affects zero rows and
	// still succeeds.
	mock.ExpectExec(`INSERT INTO watch_history`).
		WithArgs(int64(2), int64(10)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	require.NoError(t, repo.AddWatchHistory(ctx, 2, 10))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementViews(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE videos SET views`).
		WithArgs(int64(10)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.IncrementViews(ctx, 10))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriberCount(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	count, err := repo.SubscriberCount(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
	require.NoError(t, mock.ExpectationsWereMet())
}
