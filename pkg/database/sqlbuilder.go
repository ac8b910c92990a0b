package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// Row is one set of column values for a batched insert.
type Row []any

// BatchInsert splits rows into multi-row INSERT statements of at most batchSize rows.
func BatchInsert(table string, columns []string, rows []Row, batchSize int) []Statement {
	if batchSize <= 0 {
		batchSize = 500
	}

	statements := make([]Statement, 0, len(rows)/batchSize+1)
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))

		ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
		ib.InsertInto(table)
		ib.Cols(columns...)
		for _, row := range rows[i:end] {
			ib.Values(row...)
		}
		query, args := ib.Build()
		statements = append(statements, Statement{Query: query, Args: args, Rows: end - i})
	}
	return statements
}

// Statement is a built query with its arguments.
type Statement struct {
	Query string
	Args  []any
	Rows  int
}

// Truncate builds a TRUNCATE for the given tables, restarting identities so
// surrogate keys are dense on every rebuild.
func Truncate(tables ...string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
}

func NewSelectBuilder() *sqlbuilder.SelectBuilder {
	return sqlbuilder.PostgreSQL.NewSelectBuilder()
}

func NewUpdateBuilder() *sqlbuilder.UpdateBuilder {
	return sqlbuilder.PostgreSQL.NewUpdateBuilder()
}

func NewInsertBuilder() *sqlbuilder.InsertBuilder {
	return sqlbuilder.PostgreSQL.NewInsertBuilder()
}

func NewDeleteBuilder() *sqlbuilder.DeleteBuilder {
	return sqlbuilder.PostgreSQL.NewDeleteBuilder()
}
