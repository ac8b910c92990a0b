// Package repositories holds helpers shared by the table repositories.
package repositories

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/fern/pkg/database"
)

// NotFound returns a 404 HTTP error with a descriptive message
func NotFound(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf(format, args...))
}

// Internal returns a 500 HTTP error
func Internal(message string) error {
	return httperror.NewHTTPError(http.StatusInternalServerError, message)
}

// ExecStatements runs built statements in order and returns the rows they carried.
func ExecStatements(ctx context.Context, exec database.Executor, statements []database.Statement) (int, error) {
	written := 0
	for _, statement := range statements {
		if _, err := exec.ExecContext(ctx, statement.Query, statement.Args...); err != nil {
			return written, err
		}
		written += statement.Rows
	}
	return written, nil
}

// DateArg renders a calendar date for a DATE column, or nil.
func DateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

// IntArg dereferences a nullable integer argument.
func IntArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
