package cli

import (
	"bytes"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoot(t *testing.T) (*RootOptions, sqlmock.Sqlmock, *bytes.Buffer) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	opts := &RootOptions{Open: func(dsn string) (*sql.DB, error) {
		assert.Equal(t, "postgres://test", dsn)
		return db, nil
	}}
	return opts, mock, &bytes.Buffer{}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "paymentctl", cmd.Use)

	for _, name := range []string{"migrate", "create-superadmin"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	dsn := cmd.PersistentFlags().Lookup("dsn")
	require.NotNil(t, dsn)
	assert.Equal(t, "", dsn.DefValue)
}

func TestMigrateCommand(t *testing.T) {
	opts, mock, out := newTestRoot(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS transactions`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	cmd := newRootCommand(opts)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"migrate", "--dsn", "postgres://test"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "schema is up to date")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSuperadminCommand(t *testing.T) {
	t.Run("creates principal with hashed password", func(t *testing.T) {
		opts, mock, out := newTestRoot(t)
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO principals (id, name, email, password_hash, role) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`)).
			WithArgs(sqlmock.AnyArg(), "Root", "root@example.com", sqlmock.AnyArg(), "superadmin").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
		mock.ExpectClose()

		cmd := newRootCommand(opts)
		cmd.SetOut(out)
		cmd.SetIn(strings.NewReader("correct-horse-battery\n"))
		cmd.SetArgs([]string{"create-superadmin", "--dsn", "postgres://test", "--name", "Root", "--email", "Root@Example.com"})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "created superadmin root@example.com")
		assert.NotContains(t, out.String(), "correct-horse-battery")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		opts, mock, _ := newTestRoot(t)
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO principals`)).
			WillReturnError(&pq.Error{Code: "23505"})

		cmd := newRootCommand(opts)
		cmd.SetIn(strings.NewReader("correct-horse-battery\n"))
		cmd.SetArgs([]string{"create-superadmin", "--dsn", "postgres://test", "--name", "Root", "--email", "root@example.com"})

		err := cmd.Execute()
		assert.ErrorContains(t, err, "failed to create superadmin")
	})

	t.Run("empty password", func(t *testing.T) {
		opts := &RootOptions{Open: func(string) (*sql.DB, error) {
			return nil, fmt.Errorf("must not open the database")
		}}

		cmd := newRootCommand(opts)
		cmd.SetIn(strings.NewReader(""))
		cmd.SetArgs([]string{"create-superadmin", "--name", "Root", "--email", "root@example.com"})

		assert.ErrorContains(t, cmd.Execute(), "failed to read password")
	})

	t.Run("short password is rejected", func(t *testing.T) {
		opts, _, _ := newTestRoot(t)

		cmd := newRootCommand(opts)
		cmd.SetIn(strings.NewReader("short\n"))
		cmd.SetArgs([]string{"create-superadmin", "--dsn", "postgres://test", "--name", "Root", "--email", "root@example.com"})

		assert.Error(t, cmd.Execute())
	})
}
