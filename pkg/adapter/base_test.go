package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSQLAdapter_Close(t *testing.T) {
	tests := []struct {
		name    string
		setupDB bool
	}{
		{name: "close with nil DB", setupDB: false},
		{name: "close with open DB", setupDB: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}
			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				mock.ExpectClose()
				base.Conn = db
			}

			assert.NoError(t, base.Close())
			assert.False(t, base.IsConnected())
			assert.Nil(t, base.DB())
		})
	}
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		args      []any
		errMsg    string
	}{
		{
			name:    "exec without connection",
			sql:     "SELECT 1",
			errMsg:  "database connection not established",
			setupDB: false,
		},
		{
			name:    "exec success with args",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO intervention_logs").
					WithArgs(7, "tutoring").
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
			sql:  "INSERT INTO intervention_logs (enroll_id, intervention_type) VALUES ($1, $2)",
			args: []any{7, "tutoring"},
		},
		{
			name:    "exec with error",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INVALID SQL").WillReturnError(assert.AnError)
			},
			sql:    "INVALID SQL",
			errMsg: "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}
			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()
				tt.setupMock(mock)
				base.Conn = db
			}

			err := base.Exec(context.Background(), tt.sql, tt.args...)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	base := &BaseSQLAdapter{}
	_, err := base.Query(context.Background(), "SELECT 1")
	assert.True(t, errors.Is(err, ErrNotConnected))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	base.Conn = db

	mock.ExpectQuery("SELECT code FROM courses").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("CSE100").AddRow("CSE101"))

	rows, err := base.Query(context.Background(), "SELECT code FROM courses")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var codes []string
	for rows.Next() {
		var c string
		require.NoError(t, rows.Scan(&c))
		codes = append(codes, c)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"CSE100", "CSE101"}, codes)

	mock.ExpectQuery("SELECT broken").WillReturnError(assert.AnError)
	_, err = base.Query(context.Background(), "SELECT broken")
	assert.ErrorContains(t, err, "failed to execute query")
}

func TestParseQualifiedName(t *testing.T) {
	d := Dialect{Name: "duckdb", DefaultSchema: "main"}
	tests := []struct {
		in, schema, name string
	}{
		{"students", "main", "students"},
		{"analytics.students", "analytics", "students"},
	}
	for _, tt := range tests {
		schema, name := ParseQualifiedName(tt.in, d)
		assert.Equal(t, tt.schema, schema)
		assert.Equal(t, tt.name, name)
	}
}

func TestBaseSQLAdapter_GetTableMetadataCommon(t *testing.T) {
	d := Dialect{Name: "postgres", DefaultSchema: "public"}

	t.Run("columns and count", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery("FROM information_schema.columns").
			WithArgs("public", "courses").
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
				AddRow("course_id", "integer", "NO", 1).
				AddRow("code", "character varying", "YES", 2))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM public.courses`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(8))

		base := &BaseSQLAdapter{Conn: db}
		meta, err := base.GetTableMetadataCommon(context.Background(), "courses", d)
		require.NoError(t, err)
		assert.Equal(t, "public", meta.Schema)
		assert.Equal(t, int64(8), meta.RowCount)
		require.Len(t, meta.Columns, 2)
		assert.False(t, meta.Columns[0].Nullable)
		assert.True(t, meta.Columns[1].Nullable)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing table", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery("FROM information_schema.columns").
			WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}))

		base := &BaseSQLAdapter{Conn: db}
		_, err = base.GetTableMetadataCommon(context.Background(), "nope", d)
		assert.ErrorContains(t, err, "not found")
	})
}

func TestDialect_Placeholder(t *testing.T) {
	d := Dialect{Name: "duckdb"}
	assert.Equal(t, "$1", d.Placeholder(1))
	assert.Equal(t, "$12", d.Placeholder(12))
}
