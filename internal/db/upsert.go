package db

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a single-row INSERT ... ON CONFLICT statement.
type UpsertConfig struct {
	Table        string   // target table
	Columns      []string // inserted columns, bound as $1..$n
	ConflictKeys []string // columns forming the unique constraint
	// Set maps a column to its update expression. Empty means DO NOTHING.
	// The literal "EXCLUDED" copies the incoming value.
	Set map[string]string
	// SetOrder fixes the SET clause order; Set keys missing from it are
	// appended sorted.
	SetOrder []string
}

// Excluded is the Set expression that takes the incoming value.
const Excluded = "EXCLUDED"

// UpsertSQL renders cfg as a parameterized statement.
func UpsertSQL(cfg UpsertConfig) (string, error) {
	if len(cfg.Columns) == 0 {
		return "", eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return "", eris.New("db: upsert: no conflict keys specified")
	}

	placeholders := make([]string, len(cfg.Columns))
	for i := range cfg.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		sanitizeTable(cfg.Table),
		quoteAndJoin(cfg.Columns),
		strings.Join(placeholders, ", "),
		quoteAndJoin(cfg.ConflictKeys),
	)
	if len(cfg.Set) == 0 {
		return stmt + "DO NOTHING", nil
	}

	var clauses []string
	for _, col := range setColumns(cfg) {
		expr := cfg.Set[col]
		id := pgx.Identifier{col}.Sanitize()
		if expr == Excluded {
			expr = "EXCLUDED." + id
		}
		clauses = append(clauses, fmt.Sprintf("%s = %s", id, expr))
	}
	return stmt + "DO UPDATE SET " + strings.Join(clauses, ", "), nil
}

func setColumns(cfg UpsertConfig) []string {
	seen := make(map[string]bool, len(cfg.Set))
	var out []string
	for _, col := range cfg.SetOrder {
		if _, ok := cfg.Set[col]; ok && !seen[col] {
			out = append(out, col)
			seen[col] = true
		}
	}
	var rest []string
	for col := range cfg.Set {
		if !seen[col] {
			rest = append(rest, col)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// sanitizeTable handles schema-qualified table names like "public.candidates".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
