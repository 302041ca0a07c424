package commands

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gradesim/gradesim/pkg/adapter"
)

func renderResults(w io.Writer, rows *sql.Rows, format string) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			val := values[i]
			// Convert []byte to string for readability
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			row[col] = val
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	switch format {
	case "json":
		return renderJSON(w, results)
	case "csv":
		return renderCSV(w, cols, results)
	case "md", "markdown":
		return renderGrid(w, cols, results, true)
	default:
		return renderGrid(w, cols, results, false)
	}
}

func renderGrid(w io.Writer, cols []string, results []map[string]any, markdown bool) error {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)

	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, result := range results {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(result[col])
		}
		t.AppendRow(row)
	}

	if markdown {
		t.RenderMarkdown()
		return nil
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(results))
	return nil
}

func renderJSON(w io.Writer, results []map[string]any) error {
	if results == nil {
		results = []map[string]any{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func renderCSV(w io.Writer, cols []string, results []map[string]any) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	for _, result := range results {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = formatValue(result[col])
		}
		if err := cw.Write(values); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func listTables(ctx context.Context, w io.Writer, db adapter.Adapter, format string, viewsOnly bool) error {
	d := db.Dialect()
	query := fmt.Sprintf(`
		SELECT table_name AS name,
		       CASE WHEN table_type = 'VIEW' THEN 'view' ELSE 'table' END AS type
		FROM information_schema.tables
		WHERE table_schema = %s`, d.Placeholder(1))
	if viewsOnly {
		query += ` AND table_type = 'VIEW'`
	}
	query += ` ORDER BY type, name`

	rows, err := db.Query(ctx, query, d.DefaultSchema)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	return renderResults(w, rows, format)
}

// columnInfo represents schema column information.
type columnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type schemaOutput struct {
	Name     string       `json:"name"`
	Schema   string       `json:"schema"`
	RowCount int64        `json:"row_count"`
	Columns  []columnInfo `json:"columns"`
}

func showSchema(ctx context.Context, w io.Writer, db adapter.Adapter, tableName, format string) error {
	meta, err := db.GetTableMetadata(ctx, tableName)
	if err != nil {
		return err
	}

	out := schemaOutput{Name: meta.Name, Schema: meta.Schema, RowCount: meta.RowCount}
	for _, c := range meta.Columns {
		out.Columns = append(out.Columns, columnInfo{Name: c.Name, Type: c.Type, Nullable: c.Nullable})
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	_, _ = fmt.Fprintf(w, "%s.%s (%d rows)\n", out.Schema, out.Name, out.RowCount)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Column", "Type", "Nullable"})
	for _, col := range out.Columns {
		nullable := "NO"
		if col.Nullable {
			nullable = "YES"
		}
		t.AppendRow(table.Row{col.Name, col.Type, nullable})
	}
	if format == "md" || format == "markdown" {
		t.RenderMarkdown()
		return nil
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}
