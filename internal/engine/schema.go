package engine

import (
	"context"
	_ "embed"
	"strings"

	"github.com/gradesim/gradesim/internal/dataset"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/views.sql
var viewsSQL string

// sqlTables maps dataset tables to warehouse table names.
var sqlTables = map[string]string{
	dataset.TableStudents:    "students",
	dataset.TableCourses:     "courses",
	dataset.TableEnrollments: "enroll",
	dataset.TableAttendance:  "attendance",
	dataset.TableAssessments: "assess",
	dataset.TableFinals:      "finals",
	dataset.TableFeedback:    "feedback",
}

// SQLTable returns the warehouse table name of a dataset table.
func SQLTable(table string) string {
	return sqlTables[table]
}

// splitStatements splits a script on ';' after dropping full-line comments.
func splitStatements(script string) []string {
	var kept []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, stmt := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func (e *Engine) execScript(ctx context.Context, name, script string) error {
	for _, stmt := range splitStatements(script) {
		if err := e.db.Exec(ctx, stmt); err != nil {
			return unavailable(name, err)
		}
	}
	return nil
}
