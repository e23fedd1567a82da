package executor

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func command(text string, values ...any) *core.QueryCommand {
	cmd := &core.QueryCommand{CommandText: text}
	for i, v := range values {
		name := "p" + string(rune('0'+i))
		cmd.Parameters = append(cmd.Parameters, core.QueryParameter{Name: name, Value: v})
		cmd.Bindings = append(cmd.Bindings, core.Binding{Name: name})
	}
	return cmd
}

func newMock(t *testing.T) (*BaseSQLExecutor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &BaseSQLExecutor{DB: db, Cfg: Config{Type: "mock"}}, mock
}

func TestBaseSQLExecutor_Close(t *testing.T) {
	tests := []struct {
		name    string
		setupDB bool
	}{
		{name: "close with nil DB"},
		{name: "close with open DB", setupDB: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLExecutor{}
			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				mock.ExpectClose()
				base.DB = db
			}
			require.NoError(t, base.Close())
			assert.False(t, base.IsConnected())
		})
	}
}

func TestBaseSQLExecutor_Query(t *testing.T) {
	base, mock := newMock(t)
	mock.ExpectQuery("SELECT name FROM customers WHERE id = $1 AND name <> $2").
		WithArgs(7, "bob").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ann"))

	rows, err := base.Query(context.Background(), command("SELECT name FROM customers WHERE id = $1 AND name <> $2", 7, "bob"))
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	require.True(t, rows.Next())
	var name string
	require.NoError(t, rows.Scan(&name))
	assert.Equal(t, "ann", name)
	assert.False(t, rows.Next())
	require.NoError(t, rows.Err())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLExecutor_Exec(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		want      int64
		errMsg    string
	}{
		{
			name: "exec success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM orders WHERE qty = ?").WithArgs(0).WillReturnResult(sqlmock.NewResult(0, 3))
			},
			want: 3,
		},
		{
			name: "exec with error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM orders WHERE qty = ?").WithArgs(0).WillReturnError(assert.AnError)
			},
			errMsg: "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, mock := newMock(t)
			tt.setupMock(mock)

			n, err := base.Exec(context.Background(), command("DELETE FROM orders WHERE qty = ?", 0))
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.ErrorIs(t, err, assert.AnError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBaseSQLExecutor_NotConnected(t *testing.T) {
	base := &BaseSQLExecutor{}
	ctx := context.Background()

	_, err := base.Query(ctx, command("SELECT 1"))
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = base.Exec(ctx, command("SELECT 1"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestBaseSQLExecutor_BadBinding(t *testing.T) {
	base, mock := newMock(t)
	cmd := command("SELECT $1")
	cmd.Bindings = []core.Binding{{Name: "p9"}}

	_, err := base.Query(context.Background(), cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown parameter")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLExecutor_Attach(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(assert.AnError)
	mock.ExpectClose()

	base := &BaseSQLExecutor{}
	err = base.Attach(context.Background(), db, Config{Type: "mock"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping mock")
	assert.False(t, base.IsConnected())
	assert.NoError(t, mock.ExpectationsWereMet())
}
