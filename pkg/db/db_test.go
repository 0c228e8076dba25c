package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"scrumboard/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{
		Host:     "pg",
		Port:     5433,
		User:     "board",
		Password: "p@ss word",
		Name:     "scrum",
	})
	assert.Equal(t, "postgres://board:p%40ss%20word@pg:5433/scrum?sslmode=disable", dsn)
}

func TestOperationOf(t *testing.T) {
	tests := map[string]string{
		"SELECT 1":                           "select",
		"\n\t\tUPDATE issues SET x = 1":      "update",
		"with cte as (select 1) select 1":    "with",
		"(SELECT 1)":                         "select",
		"VACUUM":                             "other",
		"":                                   "unknown",
		"   ":                                "unknown",
	}
	for sql, want := range tests {
		assert.Equal(t, want, operationOf(sql), "sql=%q", sql)
	}
}

func TestTruncateSQL(t *testing.T) {
	long := make([]byte, 250)
	for i := range long {
		long[i] = 'x'
	}
	got := truncateSQL(string(long))
	assert.Len(t, got, 203)
	assert.Equal(t, "unknown", truncateSQL(""))
}

func TestErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "projects_organization_id_key_key"})
	fk := &pgconn.PgError{Code: CodeForeignKeyViolation}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.Equal(t, "projects_organization_id_key_key", ConstraintName(unique))
	assert.Equal(t, "", ConstraintName(pgx.ErrNoRows))
	assert.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
}

func TestMigrationsAreEmbeddedInOrder(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, "0001_init", migrations[0].Version)
	assert.Contains(t, migrations[0].SQL, "DEFERRABLE INITIALLY DEFERRED")
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
}

func TestSlowQueryTracer_LogsOnlySlowQueries(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tracer := NewSlowQueryTracer(zap.New(core), time.Nanosecond)

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "UPDATE issues SET \"order\" = $1"})
	time.Sleep(time.Millisecond)
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("UPDATE 1")})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "slow-query", entry.Message)
	assert.Equal(t, "UPDATE 1", entry.ContextMap()["command_tag"])

	fast := NewSlowQueryTracer(zap.New(core), time.Hour)
	ctx = fast.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	fast.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
	assert.Equal(t, 1, logs.Len())
}

func TestSlowQueryTracer_IgnoresForeignContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tracer := NewSlowQueryTracer(zap.New(core), 0)
	tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
	assert.Equal(t, 0, logs.Len())
}
